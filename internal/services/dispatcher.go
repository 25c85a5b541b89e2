// Package services – Dispatcher
//
// This file implements Dispatcher, the single path through which every
// outbound automation event leaves the process. It records each attempt in
// the event history (pending → sent/error), delivers exactly once with a
// bounded timeout and no retry, and instruments the outcome.
//
// Observability: Dispatch is OpenTelemetry-instrumented; spans include the
// event type and target instance.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/flowzap/pixrelay/internal/domain"
	"github.com/flowzap/pixrelay/internal/n8n"
	"github.com/flowzap/pixrelay/internal/repo"
)

// fallbackName labels customers whose payment webhook carried no name.
const fallbackName = "Cliente"

// Sender delivers one outbound event. Satisfied by *n8n.Client.
type Sender interface {
	Send(ctx context.Context, ev domain.OutboundEvent) (n8n.Result, error)
}

// Dispatcher records and delivers outbound events. DB may be nil, in which
// case history recording is skipped and only delivery happens.
type Dispatcher struct {
	Sender Sender
	DB     *gorm.DB
}

// Dispatch delivers ev downstream and records the attempt. Delivery failure
// is not an error from the relay's point of view: it is recorded, counted,
// and logged, and the relay moves on. The returned error covers only local
// faults (payload marshaling, request construction).
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.OutboundEvent) error {
	tr := otel.Tracer("services/Dispatcher")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(
			attribute.String("event.type", ev.EventType),
			attribute.String("evolution.instance", ev.Instance),
		),
	)
	defer span.End()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	var recID string
	if d.DB != nil {
		rec, err := repo.CreateEventRecord(ctx, d.DB, ev.EventType, ev.Customer.Phone, ev.Instance)
		if err != nil {
			// History is observability only; a write failure must not block delivery.
			log.Warn().Err(err).Str("event_type", ev.EventType).Msg("event history insert failed")
		} else {
			recID = rec.ID
		}
	}

	res, err := d.Sender.Send(ctx, ev)
	if err != nil {
		d.record(ctx, recID, false, err.Error())
		dispatches.WithLabelValues(ev.EventType, "error").Inc()
		return err
	}

	if !res.Success {
		d.record(ctx, recID, false, res.Err)
		dispatches.WithLabelValues(ev.EventType, "error").Inc()
		log.Warn().
			Str("event_type", ev.EventType).
			Str("instance", ev.Instance).
			Int("status", res.StatusCode).
			Str("reason", res.Err).
			Msg("outbound delivery failed")
		return nil
	}

	d.record(ctx, recID, true, "")
	dispatches.WithLabelValues(ev.EventType, "sent").Inc()
	log.Info().
		Str("event_type", ev.EventType).
		Str("instance", ev.Instance).
		Int("status", res.StatusCode).
		Msg("outbound event delivered")
	return nil
}

func (d *Dispatcher) record(ctx context.Context, id string, ok bool, reason string) {
	if d.DB == nil || id == "" {
		return
	}
	var err error
	if ok {
		err = repo.MarkSent(ctx, d.DB, id)
	} else {
		err = repo.MarkError(ctx, d.DB, id, reason)
	}
	if err != nil {
		log.Warn().Err(err).Str("record_id", id).Msg("event history update failed")
	}
}

var nameCaser = cases.Title(language.BrazilianPortuguese)

// FirstName extracts the customer's first name from the full name, title-cased.
// Empty or whitespace-only input yields the generic fallback.
func FirstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return fallbackName
	}
	return nameCaser.String(strings.ToLower(fields[0]))
}
