// Package dedup provides the process-wide idempotency cache that collapses
// Slack's at-least-once event delivery to at-most-one user-visible
// notification per logical event.
//
// The cache is memory-resident and best-effort: it bounds duplicate work for
// the lifetime of one process instance, it is not a durable queue. Size is
// bounded with FIFO eviction (oldest fingerprints leave first), so a very old
// fingerprint may be reprocessed after heavy traffic — an accepted trade-off.
package dedup

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultCapacity is the reference cache bound.
const DefaultCapacity = 1000

// Cache is a bounded FIFO set of event fingerprints. It is safe for
// concurrent use: the background dispatcher may run several detections in
// overlapping windows.
type Cache struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string // insertion order for FIFO eviction
}

// NewCache creates a Cache holding at most capacity fingerprints.
// A non-positive capacity falls back to DefaultCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// ShouldProcess records the fingerprint on first observation and returns
// true; repeat observations within the retention window return false.
// Insertion beyond the bound evicts the oldest entries first.
func (c *Cache) ShouldProcess(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.seen[fingerprint]; dup {
		log.Debug().Str("fingerprint", fingerprint).Msg("Duplicate event fingerprint, skipping")
		return false
	}

	c.seen[fingerprint] = struct{}{}
	c.order = append(c.order, fingerprint)

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
		log.Debug().Str("fingerprint", oldest).Msg("Evicted oldest fingerprint from dedup cache")
	}

	return true
}

// Forget removes a fingerprint so a legitimate redelivery can re-attempt
// processing. This is the only sanctioned removal path besides eviction; it
// is used when the event turned out not to need a slot (no eligible files)
// or when the messaging platform reported a duplicate send.
func (c *Cache) Forget(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[fingerprint]; !ok {
		return
	}
	delete(c.seen, fingerprint)
	for i, fp := range c.order {
		if fp == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	log.Debug().Str("fingerprint", fingerprint).Msg("Released dedup slot for retry")
}

// Len returns the current number of cached fingerprints.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
