package server

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guiyumin/vsniff/internal/core/publish"
)

// eventBuffer is the per-client backlog; a slower client misses batches
const eventBuffer = 64

// keepAliveInterval spaces comment lines that keep idle proxies from closing the stream
const keepAliveInterval = 20 * time.Second

// handleEvents streams relayed batches as server-sent events. Each client
// sees every asset once.
func (s *Server) handleEvents(c *gin.Context) {
	ch, unsubscribe := s.relay.Channel(eventBuffer)
	defer unsubscribe()

	dedup := publish.NewDedup()
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"subscribers": s.relay.Len()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case b, ok := <-ch:
			if !ok {
				return false
			}
			if fresh := dedup.Filter(b); len(fresh.Candidates) > 0 {
				c.SSEvent("batch", fresh)
			}
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		}
	})
}
