package store

import (
	"strings"
	"sync"
	"time"
)

// Dedup is the short-TTL idempotency guard that drops redundant webhook
// deliveries. Keys are composite (event kind, customer key, order code) so
// distinct orders for the same customer never collide.
//
// The check-and-set is atomic under the store lock, which closes the race
// of two identical deliveries arriving concurrently. A duplicate arriving
// after the TTL expired is reprocessed; that is documented behavior, not a
// bug.
type Dedup struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewDedup returns a guard with the given TTL.
func NewDedup(ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Dedup{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Seen reports whether the (kind, customerKey, orderCode) triple was already
// observed within the TTL, recording it when it was not. Expired entries are
// discarded before the membership check.
func (d *Dedup) Seen(kind, customerKey, orderCode string) bool {
	key := strings.Join([]string{kind, customerKey, orderCode}, ":")

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.sweepLocked(now)

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = now
	return false
}

// Size returns the current number of tracked entries.
func (d *Dedup) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Sweep discards entries older than the TTL relative to now. The guard is
// self-sweeping on every Seen call; this exists so the retention sweeper can
// bound memory even when traffic stops.
func (d *Dedup) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sweepLocked(now)
}

func (d *Dedup) sweepLocked(now time.Time) int {
	removed := 0
	for k, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, k)
			removed++
		}
	}
	return removed
}
