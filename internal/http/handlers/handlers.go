// Package handlers provides HTTP handler implementations for the relay API.
//
// Handlers are transport-thin: they decode webhook payloads, delegate to the
// application services, and translate service outcomes into the stable
// response envelopes the payment provider and gateway expect.
package handlers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/flowzap/pixrelay/internal/evolution"
	"github.com/flowzap/pixrelay/internal/services"
	"github.com/flowzap/pixrelay/internal/store"
)

//
// Service contracts (context-aware)
//

// PaymentProcessor ingests payment provider webhooks.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PaymentProcessor interface {
	// Process classifies and acts on one payment webhook.
	Process(ctx context.Context, w services.PaymentWebhook) (string, error)
}

// MessageProcessor ingests WhatsApp gateway webhooks.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageProcessor interface {
	// Process handles one messaging webhook.
	Process(ctx context.Context, w evolution.Webhook) (string, error)
}

//
// Handler wiring
//

// StatusInfo is the static configuration surfaced by GET /status.
type StatusInfo struct {
	N8NWebhookURL    string
	EvolutionBaseURL string
	InstanceCount    int
	HistoryLimit     int
	Retention        time.Duration
}

// Handlers groups the relay's HTTP endpoints. It depends on abstract service
// interfaces for the webhook paths and reads the stores directly for the
// observability surface.
type Handlers struct {
	payments PaymentProcessor
	messages MessageProcessor

	conversations *store.Conversations
	pending       *store.PendingOrders
	assignments   *store.Assignments
	dedup         *store.Dedup

	db      *gorm.DB
	info    StatusInfo
	started time.Time
}

// New constructs a Handlers instance bound to the given services and stores.
// db may be nil when the event history is disabled.
func New(
	payments PaymentProcessor,
	messages MessageProcessor,
	conversations *store.Conversations,
	pending *store.PendingOrders,
	assignments *store.Assignments,
	dedup *store.Dedup,
	db *gorm.DB,
	info StatusInfo,
) *Handlers {
	return &Handlers{
		payments:      payments,
		messages:      messages,
		conversations: conversations,
		pending:       pending,
		assignments:   assignments,
		dedup:         dedup,
		db:            db,
		info:          info,
		started:       time.Now().UTC(),
	}
}
