// Package publish fans candidate batches out to listeners. It is the single
// coupling point between the capture sources and the relay.
package publish

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/guiyumin/vsniff/internal/core/media"
)

// Batch is one outbound event: the candidates one source found on one page
type Batch struct {
	Source     string            `json:"source"`
	PageURL    string            `json:"pageUrl"`
	Candidates []media.Candidate `json:"candidates"`
}

// Listener receives published batches. It must not retain the candidate slice
// beyond the call unless it copies it.
type Listener func(Batch)

type subscriber struct {
	id int64
	fn Listener
}

// Publisher is a typed observer list. Delivery is synchronous and follows
// subscription order. A panicking listener is logged and skipped; later
// listeners still receive the batch.
type Publisher struct {
	mu     sync.RWMutex
	subs   []subscriber
	nextID atomic.Int64
	logger *slog.Logger
}

// New creates a Publisher. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{logger: logger}
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (p *Publisher) Subscribe(fn Listener) (unsubscribe func()) {
	id := p.nextID.Add(1)
	p.mu.Lock()
	p.subs = append(p.subs, subscriber{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers b to every listener. Empty batches are dropped.
// Nested batches are flattened by the caller with media.Flatten.
func (p *Publisher) Publish(b Batch) {
	if len(b.Candidates) == 0 {
		return
	}

	p.mu.RLock()
	subs := make([]subscriber, len(p.subs))
	copy(subs, p.subs)
	p.mu.RUnlock()

	for _, s := range subs {
		p.deliver(s, b)
	}
}

func (p *Publisher) deliver(s subscriber, b Batch) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Warn("candidate listener panicked", "listener", s.id, "source", b.Source, "panic", rec)
		}
	}()
	s.fn(b)
}

// Len returns the number of active listeners
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Channel subscribes a buffered channel. Sends never block the publisher;
// batches are dropped while the buffer is full. The returned function
// unsubscribes and closes the channel.
func (p *Publisher) Channel(buf int) (<-chan Batch, func()) {
	ch := make(chan Batch, buf)
	var mu sync.Mutex
	closed := false

	unsubscribe := p.Subscribe(func(b Batch) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- b:
		default:
		}
	})

	return ch, func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}
