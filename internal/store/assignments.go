package store

import (
	"context"
	"sync"
	"time"

	"github.com/flowzap/pixrelay/internal/domain"
)

// LivenessProber answers whether a sending instance is connected. Probe
// failures must read as "not live", never as an error.
type LivenessProber interface {
	Alive(ctx context.Context, instance string) bool
}

// Assignments pins customers to sending instances. The first lookup for a
// key picks the next pool member round-robin; later lookups return the same
// instance (sticky routing) until the record is swept or, when a prober is
// configured, the instance fails a liveness check and the key is reassigned.
//
// Probes are network calls and therefore never run under the store lock;
// results are cached for a short TTL to bound probe volume.
type Assignments struct {
	mu      sync.Mutex
	pool    []string
	counter uint64
	byKey   map[string]domain.Assignment
	now     func() time.Time

	prober   LivenessProber
	probeTTL time.Duration

	cacheMu sync.Mutex
	cache   map[string]probeResult
}

type probeResult struct {
	alive bool
	at    time.Time
}

// NewAssignments builds the store over a fixed, ordered instance pool.
// prober may be nil, which disables liveness checking entirely. The pool
// must be non-empty.
func NewAssignments(pool []string, prober LivenessProber, probeTTL time.Duration) *Assignments {
	if probeTTL <= 0 {
		probeTTL = 30 * time.Second
	}
	return &Assignments{
		pool:     pool,
		byKey:    make(map[string]domain.Assignment),
		now:      time.Now,
		prober:   prober,
		probeTTL: probeTTL,
		cache:    make(map[string]probeResult),
	}
}

// Assign resolves the sending instance for key. It never fails: when every
// pool member reads as down, the first pool entry is returned as a last
// resort so the event still carries a routable identity.
func (a *Assignments) Assign(ctx context.Context, key string) string {
	a.mu.Lock()
	if cur, ok := a.byKey[key]; ok {
		inst := cur.Instance
		a.mu.Unlock()
		if a.prober == nil || a.alive(ctx, inst) {
			return inst
		}
		// Instance went down: drop the pin, unless a concurrent call
		// already replaced it.
		a.mu.Lock()
		if latest, ok := a.byKey[key]; ok && latest.Instance == inst {
			delete(a.byKey, key)
		}
	}

	start := a.counter
	a.counter++
	a.mu.Unlock()

	inst := a.pool[start%uint64(len(a.pool))]
	if a.prober != nil && !a.alive(ctx, inst) {
		inst = a.firstLive(ctx, start+1)
	}
	return a.record(key, inst)
}

// firstLive scans the pool once starting at offset and returns the first
// live member, or the first pool entry when none responds.
func (a *Assignments) firstLive(ctx context.Context, offset uint64) string {
	n := uint64(len(a.pool))
	for i := uint64(0); i < n-1; i++ {
		cand := a.pool[(offset+i)%n]
		if a.alive(ctx, cand) {
			return cand
		}
	}
	return a.pool[0]
}

// record stores the assignment unless a concurrent Assign won the race, in
// which case the earlier instance is kept so routing stays sticky.
func (a *Assignments) record(key, inst string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.byKey[key]; ok {
		return cur.Instance
	}
	a.byKey[key] = domain.Assignment{Instance: inst, CreatedAt: a.now()}
	return inst
}

// alive consults the probe cache before asking the prober.
func (a *Assignments) alive(ctx context.Context, inst string) bool {
	now := a.now()

	a.cacheMu.Lock()
	if res, ok := a.cache[inst]; ok && now.Sub(res.at) < a.probeTTL {
		a.cacheMu.Unlock()
		return res.alive
	}
	a.cacheMu.Unlock()

	alive := a.prober.Alive(ctx, inst)

	a.cacheMu.Lock()
	a.cache[inst] = probeResult{alive: alive, at: now}
	a.cacheMu.Unlock()
	return alive
}

// Count returns the number of active assignments.
func (a *Assignments) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byKey)
}

// Snapshot returns a copy of every assignment keyed by customer key.
func (a *Assignments) Snapshot() map[string]domain.Assignment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]domain.Assignment, len(a.byKey))
	for k, v := range a.byKey {
		out[k] = v
	}
	return out
}

// Sweep removes assignments created before cutoff, along with stale probe
// cache entries, and returns how many assignments were removed.
func (a *Assignments) Sweep(cutoff time.Time) int {
	a.mu.Lock()
	removed := 0
	for k, v := range a.byKey {
		if v.CreatedAt.Before(cutoff) {
			delete(a.byKey, k)
			removed++
		}
	}
	a.mu.Unlock()

	a.cacheMu.Lock()
	now := a.now()
	for k, res := range a.cache {
		if now.Sub(res.at) >= a.probeTTL {
			delete(a.cache, k)
		}
	}
	a.cacheMu.Unlock()
	return removed
}
