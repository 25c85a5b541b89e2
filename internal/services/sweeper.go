// Package services – Sweeper
//
// This file implements the periodic retention sweep: conversations,
// assignments, orphaned timers, idempotency sightings and persisted history
// older than the retention window are removed on a fixed interval.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowzap/pixrelay/internal/repo"
	"github.com/flowzap/pixrelay/internal/store"
)

// Sweeper removes expired state on a fixed interval. DB may be nil, in which
// case only the in-memory stores are swept.
type Sweeper struct {
	Conversations *store.Conversations
	Assignments   *store.Assignments
	Pending       *store.PendingOrders
	Dedup         *store.Dedup
	DB            *gorm.DB

	Interval  time.Duration
	Retention time.Duration
}

// Run sweeps on every tick until ctx is canceled. It never sweeps at start;
// the first pass happens one full interval in.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Sweep(ctx, now)
		}
	}
}

// Sweep removes state older than the retention window as of now. It is
// idempotent: a second call with the same now removes nothing.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	retention := s.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	cutoff := now.Add(-retention)

	removed := map[string]int{
		"conversations": s.Conversations.Sweep(cutoff),
		"assignments":   s.Assignments.Sweep(cutoff),
		"pending":       s.Pending.Sweep(cutoff),
		"dedup":         s.Dedup.Sweep(now),
	}
	total := 0
	for name, n := range removed {
		sweepRemovals.WithLabelValues(name).Add(float64(n))
		total += n
	}

	if s.DB != nil {
		n, err := repo.PurgeEvents(ctx, s.DB, cutoff)
		if err != nil {
			log.Warn().Err(err).Msg("event history purge failed")
		} else {
			sweepRemovals.WithLabelValues("history").Add(float64(n))
			total += int(n)
		}
	}

	log.Info().
		Int("removed", total).
		Time("cutoff", cutoff).
		Msg("retention sweep completed")
}
