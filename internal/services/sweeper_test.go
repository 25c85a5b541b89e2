package services

import (
	"context"
	"testing"
	"time"

	"github.com/flowzap/pixrelay/internal/domain"
	"github.com/flowzap/pixrelay/internal/repo"
	"github.com/flowzap/pixrelay/internal/store"
)

func TestSweep_RemovesExpiredStateEverywhere(t *testing.T) {
	db := newServiceDB(t)
	now := time.Now().UTC()
	old := now.Add(-25 * time.Hour)

	conversations := store.NewConversations()
	conversations.Put("5511911111111", domain.Conversation{OrderCode: "OLD", CreatedAt: old})
	conversations.Put("5511922222222", domain.Conversation{OrderCode: "NEW", CreatedAt: now})

	assignments := store.NewAssignments([]string{"GABY01"}, upProber{}, time.Minute)
	assignments.Assign(context.Background(), "5511922222222")

	pending := store.NewPendingOrders()
	pending.Arm(domain.PendingSnapshot{
		OrderCode: "OLD", CustomerKey: "5511911111111", CreatedAt: old,
	}, time.Hour, func(domain.PendingSnapshot) {})

	dedup := store.NewDedup(5 * time.Minute)
	dedup.Seen("SALE_APPROVED", "5511922222222", "NEW")

	for _, age := range []time.Duration{time.Minute, 26 * time.Hour} {
		rec := &domain.EventRecord{
			ID: age.String(), EventType: domain.EventApprovedSale,
			Phone: "55", Instance: "GABY01", Status: domain.DeliverySent,
			CreatedAt: now.Add(-age),
		}
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	s := &Sweeper{
		Conversations: conversations,
		Assignments:   assignments,
		Pending:       pending,
		Dedup:         dedup,
		DB:            db,
		Interval:      10 * time.Minute,
		Retention:     24 * time.Hour,
	}
	s.Sweep(context.Background(), now)

	if conversations.Count() != 1 {
		t.Fatalf("conversations = %d, want 1", conversations.Count())
	}
	if _, ok := conversations.Get("5511911111111"); ok {
		t.Fatal("expired conversation survived")
	}
	if pending.Count() != 0 {
		t.Fatal("orphaned pending entry survived")
	}
	if assignments.Count() != 1 {
		t.Fatalf("fresh assignment swept: count = %d", assignments.Count())
	}

	total, err := repo.CountEvents(context.Background(), db)
	if err != nil || total != 1 {
		t.Fatalf("history rows = %d, %v", total, err)
	}

	// Idempotent: a second pass at the same instant removes nothing further.
	s.Sweep(context.Background(), now)
	if conversations.Count() != 1 || assignments.Count() != 1 {
		t.Fatal("second sweep removed fresh state")
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	s := &Sweeper{
		Conversations: store.NewConversations(),
		Assignments:   store.NewAssignments([]string{"GABY01"}, upProber{}, time.Minute),
		Pending:       store.NewPendingOrders(),
		Dedup:         store.NewDedup(time.Minute),
		Interval:      5 * time.Millisecond,
		Retention:     24 * time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
