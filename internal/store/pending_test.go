package store

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowzap/pixrelay/internal/domain"
)

func snap(order, key string) domain.PendingSnapshot {
	return domain.PendingSnapshot{
		OrderCode:    order,
		CustomerKey:  key,
		Product:      "CS",
		Instance:     "GABY01",
		CustomerName: "Maria Silva",
		Amount:       "R$ 49,90",
	}
}

func TestPendingFires(t *testing.T) {
	p := NewPendingOrders()
	fired := make(chan domain.PendingSnapshot, 1)

	p.Arm(snap("X1", "5511"), 10*time.Millisecond, func(s domain.PendingSnapshot) {
		fired <- s
	})

	select {
	case got := <-fired:
		if got.OrderCode != "X1" || got.Amount != "R$ 49,90" {
			t.Fatalf("fired snapshot = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	// The record is discarded on fire; re-canceling is a no-op.
	if p.Count() != 0 {
		t.Fatalf("Count after fire = %d", p.Count())
	}
	if p.CancelByOrder("X1") {
		t.Fatal("cancel after fire should be a no-op")
	}
	if p.CancelByKey("5511") {
		t.Fatal("cancel by key after fire should be a no-op")
	}
}

func TestPendingCancelPreventsFire(t *testing.T) {
	p := NewPendingOrders()
	var fires int32

	p.Arm(snap("X1", "5511"), 20*time.Millisecond, func(domain.PendingSnapshot) {
		atomic.AddInt32(&fires, 1)
	})
	if !p.CancelByKey("5511") {
		t.Fatal("CancelByKey found nothing")
	}

	time.Sleep(80 * time.Millisecond)
	if n := atomic.LoadInt32(&fires); n != 0 {
		t.Fatalf("canceled timer fired %d times", n)
	}
	if p.Count() != 0 {
		t.Fatalf("Count = %d", p.Count())
	}
}

func TestPendingRearmSameOrderNoDoubleFire(t *testing.T) {
	p := NewPendingOrders()
	var fires int32

	onFire := func(domain.PendingSnapshot) { atomic.AddInt32(&fires, 1) }
	p.Arm(snap("X1", "5511"), 30*time.Millisecond, onFire)
	p.Arm(snap("X1", "5511"), 30*time.Millisecond, onFire) // replaces, never stacks

	if p.Count() != 1 {
		t.Fatalf("Count after re-arm = %d", p.Count())
	}
	time.Sleep(120 * time.Millisecond)
	if n := atomic.LoadInt32(&fires); n != 1 {
		t.Fatalf("fired %d times, want 1", n)
	}
}

func TestPendingNewOrderSameKeyReplaces(t *testing.T) {
	p := NewPendingOrders()
	var firedOrders []string
	var mu sync.Mutex

	onFire := func(s domain.PendingSnapshot) {
		mu.Lock()
		firedOrders = append(firedOrders, s.OrderCode)
		mu.Unlock()
	}
	// The customer re-enters checkout under a new order code while the old
	// timer is still armed: only the new order may ever fire.
	p.Arm(snap("X1", "5511"), 30*time.Millisecond, onFire)
	p.Arm(snap("X2", "5511"), 30*time.Millisecond, onFire)

	if p.Count() != 1 {
		t.Fatalf("Count = %d, want 1", p.Count())
	}
	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(firedOrders) != 1 || firedOrders[0] != "X2" {
		t.Fatalf("fired orders = %v, want [X2]", firedOrders)
	}
}

func TestPendingCancelRace(t *testing.T) {
	p := NewPendingOrders()
	var fires int32

	// Hammer arm/cancel cycles; the invariant is at most one fire per armed
	// lifecycle and no fire after a successful cancel.
	for i := 0; i < 50; i++ {
		p.Arm(snap("X1", "5511"), time.Millisecond, func(domain.PendingSnapshot) {
			atomic.AddInt32(&fires, 1)
		})
		canceled := p.CancelByOrder("X1")
		time.Sleep(3 * time.Millisecond)
		if canceled && p.Count() != 0 {
			t.Fatal("canceled entry still present")
		}
	}
	// Every cycle either canceled in time (no fire) or fired once; never more
	// than one fire per cycle.
	if n := atomic.LoadInt32(&fires); n > 50 {
		t.Fatalf("fired %d times across 50 cycles", n)
	}
}

func TestPendingSweepCancelsOrphans(t *testing.T) {
	p := NewPendingOrders()
	var fires int32

	past := time.Now().Add(-25 * time.Hour)
	old := snap("X1", "5511")
	old.CreatedAt = past
	p.Arm(old, time.Hour, func(domain.PendingSnapshot) { atomic.AddInt32(&fires, 1) })
	p.Arm(snap("X2", "5522"), time.Hour, func(domain.PendingSnapshot) { atomic.AddInt32(&fires, 1) })

	if removed := p.Sweep(time.Now().Add(-24 * time.Hour)); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if p.Count() != 1 {
		t.Fatalf("Count = %d", p.Count())
	}
	if got := p.List(); len(got) != 1 || got[0].OrderCode != "X2" {
		t.Fatalf("List = %+v", got)
	}
	if atomic.LoadInt32(&fires) != 0 {
		t.Fatal("sweep caused a fire")
	}
}
