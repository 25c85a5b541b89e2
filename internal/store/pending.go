package store

import (
	"sync"
	"time"

	"github.com/flowzap/pixrelay/internal/domain"
)

// PendingOrders owns the deferred abandonment timers, one per order code.
// Arming replaces any prior timer for the same order code or the same
// customer key, so a customer re-entering checkout never accumulates
// competing timers.
//
// Cancellation happens-before the fire check: a firing callback re-validates
// under the store lock that its entry is still the authoritative one, and a
// canceled-but-already-scheduled callback resolves to no dispatch. Canceling
// a timer that already fired, or never existed, is a no-op.
type PendingOrders struct {
	mu      sync.Mutex
	byOrder map[string]*pendingEntry
	byKey   map[string]string // customer key -> order code
	now     func() time.Time
}

type pendingEntry struct {
	snap   domain.PendingSnapshot
	timer  *time.Timer
	onFire func(domain.PendingSnapshot)
}

// NewPendingOrders returns an empty timer table.
func NewPendingOrders() *PendingOrders {
	return &PendingOrders{
		byOrder: make(map[string]*pendingEntry),
		byKey:   make(map[string]string),
		now:     time.Now,
	}
}

// Arm schedules onFire to run after delay unless the order is canceled
// first. Any armed timer for the same order code or the same customer key
// is canceled before the new one is stored.
func (p *PendingOrders) Arm(snap domain.PendingSnapshot, delay time.Duration, onFire func(domain.PendingSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked(snap.OrderCode)
	if prior, ok := p.byKey[snap.CustomerKey]; ok {
		p.cancelLocked(prior)
	}

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = p.now()
	}
	e := &pendingEntry{snap: snap, onFire: onFire}
	e.timer = time.AfterFunc(delay, func() { p.fire(snap.OrderCode, e) })
	p.byOrder[snap.OrderCode] = e
	p.byKey[snap.CustomerKey] = snap.OrderCode
}

// fire runs on the timer goroutine. The entry identity check (not just the
// order code) guards against a replacement timer armed under the same code
// after this one was scheduled.
func (p *PendingOrders) fire(orderCode string, e *pendingEntry) {
	p.mu.Lock()
	cur, ok := p.byOrder[orderCode]
	if !ok || cur != e {
		p.mu.Unlock()
		return
	}
	delete(p.byOrder, orderCode)
	if p.byKey[e.snap.CustomerKey] == orderCode {
		delete(p.byKey, e.snap.CustomerKey)
	}
	p.mu.Unlock()

	// Dispatch outside the lock: the callback performs network I/O.
	if e.onFire != nil {
		e.onFire(e.snap)
	}
}

// CancelByKey cancels the armed timer for a customer key, if any. Returns
// whether a timer was canceled.
func (p *PendingOrders) CancelByKey(customerKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	orderCode, ok := p.byKey[customerKey]
	if !ok {
		return false
	}
	return p.cancelLocked(orderCode)
}

// CancelByOrder cancels the armed timer for an order code, if any. Returns
// whether a timer was canceled.
func (p *PendingOrders) CancelByOrder(orderCode string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelLocked(orderCode)
}

func (p *PendingOrders) cancelLocked(orderCode string) bool {
	e, ok := p.byOrder[orderCode]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(p.byOrder, orderCode)
	if p.byKey[e.snap.CustomerKey] == orderCode {
		delete(p.byKey, e.snap.CustomerKey)
	}
	return true
}

// Count returns the number of armed timers.
func (p *PendingOrders) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byOrder)
}

// List returns a snapshot of every armed pending order.
func (p *PendingOrders) List() []domain.PendingSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.PendingSnapshot, 0, len(p.byOrder))
	for _, e := range p.byOrder {
		out = append(out, e.snap)
	}
	return out
}

// Sweep cancels and removes timers armed before cutoff, returning how many
// were removed. Entries that resolved normally are already gone; this only
// collects orphans.
func (p *PendingOrders) Sweep(cutoff time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for code, e := range p.byOrder {
		if e.snap.CreatedAt.Before(cutoff) {
			if p.cancelLocked(code) {
				removed++
			}
		}
	}
	return removed
}
