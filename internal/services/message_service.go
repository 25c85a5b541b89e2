// Package services – MessageService
//
// This file implements MessageService, the component that ingests WhatsApp
// gateway webhooks. Outbound (fromMe) messages arm the conversation for a
// reply; the first inbound reply after arming is dispatched downstream
// exactly once, and every later reply is absorbed silently.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowzap/pixrelay/internal/domain"
	"github.com/flowzap/pixrelay/internal/evolution"
	"github.com/flowzap/pixrelay/internal/phone"
	"github.com/flowzap/pixrelay/internal/store"
)

// replyDedupKind namespaces first-reply sightings in the idempotency guard so
// they never collide with payment event kinds.
const replyDedupKind = "RESPOSTA_01"

// MessageService ingests messaging webhooks and drives the first-reply flow.
type MessageService struct {
	Conversations *store.Conversations
	Dedup         *store.Dedup
	Dispatcher    *Dispatcher
}

// Process handles one messaging webhook. Sentinel errors describe payloads
// that were received fine but deliberately not acted on; only local dispatch
// faults surface as real errors.
func (s *MessageService) Process(ctx context.Context, w evolution.Webhook) (string, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(attribute.String("evolution.instance", w.Instance)),
	)
	defer span.End()

	if !w.Valid() {
		webhookEvents.WithLabelValues("evolution", "invalid").Inc()
		return "invalid payload", ErrIgnoredMessage
	}

	key := phone.Normalize(evolution.RemotePhone(w.Data.Key.RemoteJid))
	if key == "" {
		webhookEvents.WithLabelValues("evolution", "no_phone").Inc()
		return "no usable phone", ErrIgnoredMessage
	}
	span.SetAttributes(attribute.Bool("message.from_me", w.Data.Key.FromMe))

	text, variant := evolution.ExtractText(w.Data.Message)

	conv, ok := s.Conversations.Get(key)
	if !ok {
		webhookEvents.WithLabelValues("evolution", "no_conversation").Inc()
		log.Debug().Str("phone", key).Msg("message for customer without active conversation")
		return "customer not in active conversation", ErrIgnoredMessage
	}

	// Outbound message sent through the gateway by the automation: from this
	// point on the next inbound message counts as the first reply.
	if w.Data.Key.FromMe {
		s.Conversations.MarkAwaiting(key)
		webhookEvents.WithLabelValues("evolution", "outbound").Inc()
		log.Info().Str("phone", key).Msg("system message observed, awaiting reply")
		return "awaiting customer reply", nil
	}

	// Inbound: act only on the first reply of an armed conversation.
	if !conv.Awaiting || conv.ReplyCount > 0 {
		webhookEvents.WithLabelValues("evolution", "not_first_reply").Inc()
		return "reply ignored", ErrIgnoredMessage
	}

	if s.Dedup.Seen(replyDedupKind, key, conv.OrderCode) {
		webhookEvents.WithLabelValues("evolution", "duplicate").Inc()
		return "duplicate reply ignored", ErrDuplicateEvent
	}

	conv, outcome := s.Conversations.FirstReply(key)
	if outcome != store.ReplyAccepted {
		// Lost the race against a concurrent delivery of the same reply.
		webhookEvents.WithLabelValues("evolution", "not_first_reply").Inc()
		return "reply ignored", ErrIgnoredMessage
	}

	webhookEvents.WithLabelValues("evolution", "first_reply").Inc()
	log.Info().
		Str("phone", key).
		Str("order", conv.OrderCode).
		Str("variant", string(variant)).
		Msg("first customer reply captured")

	err := s.Dispatcher.Dispatch(ctx, domain.OutboundEvent{
		EventType:   domain.EventFirstReply,
		Product:     conv.Product,
		Instance:    conv.Instance,
		OriginEvent: conv.OriginEvent,
		Customer: domain.CustomerBlock{
			FirstName: FirstName(conv.CustomerName),
			Phone:     key,
		},
		Order: domain.OrderBlock{Code: conv.OrderCode, BilletURL: conv.QRCode},
		Reply: &domain.ReplyBlock{
			Number:    1,
			Content:   text,
			Timestamp: time.Now().UTC(),
		},
	})
	if err != nil {
		return "", err
	}
	return "first reply dispatched", nil
}
