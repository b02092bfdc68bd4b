package webhooks

import (
	"sync"
	"time"
)

// DedupStore drops webhook deliveries whose message id was already seen
// within the TTL window. Facebook retries deliveries it thinks were not
// acknowledged, so exact duplicates are expected.
type DedupStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

// NewDedupStore creates a de-duplication store with the given TTL.
func NewDedupStore(ttl time.Duration) *DedupStore {
	return &DedupStore{
		ttl:  ttl,
		seen: make(map[string]time.Time),
	}
}

// Seen reports whether the id was observed within the TTL window and
// records it. The first call for an id returns false, later calls within
// the window return true.
func (d *DedupStore) Seen(id string) bool {
	if id == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	d.prune(now)

	if at, ok := d.seen[id]; ok && now.Sub(at) < d.ttl {
		return true
	}

	d.seen[id] = now
	return false
}

// prune removes expired entries. Caller holds the lock.
func (d *DedupStore) prune(now time.Time) {
	for id, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, id)
		}
	}
}

// Len returns the number of tracked ids.
func (d *DedupStore) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
