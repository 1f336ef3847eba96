package publish

import (
	"sync"

	"github.com/guiyumin/vsniff/internal/core/media"
)

// Dedup suppresses candidates already seen across batches, keyed by
// (url, quality, playlist). Sources re-report the same asset freely; relay
// consumers use a Dedup to show each one once.
type Dedup struct {
	mu   sync.Mutex
	seen map[media.Key]bool
}

// NewDedup creates an empty Dedup
func NewDedup() *Dedup {
	return &Dedup{seen: make(map[media.Key]bool)}
}

// Filter returns b with already seen candidates removed and records the rest
func (d *Dedup) Filter(b Batch) Batch {
	d.mu.Lock()
	defer d.mu.Unlock()

	fresh := make([]media.Candidate, 0, len(b.Candidates))
	for _, c := range b.Candidates {
		k := c.Key()
		if d.seen[k] {
			continue
		}
		d.seen[k] = true
		fresh = append(fresh, c)
	}
	b.Candidates = fresh
	return b
}

// Len returns the number of distinct candidates seen
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
