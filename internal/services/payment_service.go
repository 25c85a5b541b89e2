// Package services – PaymentService
//
// This file implements PaymentService, the component that ingests payment
// provider webhooks. It normalizes the customer phone, suppresses duplicate
// deliveries, resolves the product and sending instance, and then either
// registers an approved sale or arms the pending-PIX abandonment timer.
//
// Observability: Process is OpenTelemetry-instrumented; spans include the
// normalized event classification and order code.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowzap/pixrelay/internal/domain"
	"github.com/flowzap/pixrelay/internal/phone"
	"github.com/flowzap/pixrelay/internal/store"
	"github.com/flowzap/pixrelay/internal/sysutil"
)

// PaymentWebhook is the inbound payload from the payment provider. Providers
// spread the same facts across several optional locations, so most fields
// have fallbacks resolved in Process.
type PaymentWebhook struct {
	Event         string            `json:"event"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentMethod string            `json:"payment_method"`
	SaleID        string            `json:"sale_id"`
	CheckoutID    string            `json:"checkout_id"`
	TotalPrice    domain.FlexAmount `json:"total_price"`
	Customer      *PaymentCustomer  `json:"customer"`
	Products      []PaymentProduct  `json:"products"`
	Payment       *PaymentDetails   `json:"payment"`
}

// PaymentCustomer identifies the buyer.
type PaymentCustomer struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// PaymentProduct carries the offer identifier used for catalog resolution.
type PaymentProduct struct {
	OfferID string `json:"offer_id"`
}

// PaymentDetails is the nested payment block some providers send.
type PaymentDetails struct {
	Method      string `json:"method"`
	Status      string `json:"status"`
	QRCode      string `json:"qrcode"`
	QRCodeImage string `json:"qrcode_image"`
}

// PaymentService ingests payment webhooks and drives the order lifecycle.
type PaymentService struct {
	Conversations *store.Conversations
	Assignments   *store.Assignments
	Pending       *store.PendingOrders
	Dedup         *store.Dedup
	Dispatcher    *Dispatcher
	Catalog       domain.Catalog
	PixTimeout    time.Duration
}

// Process classifies and acts on one payment webhook. The returned message
// is a short summary suitable for the webhook response body. Sentinel errors
// (ErrNoPhone, ErrDuplicateEvent, ErrUnknownEvent) describe payloads that
// were received fine but deliberately not acted on.
func (s *PaymentService) Process(ctx context.Context, w PaymentWebhook) (string, error) {
	tr := otel.Tracer("services/PaymentService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(attribute.String("payment.event", w.Event)),
	)
	defer span.End()

	ev := strings.ToUpper(strings.TrimSpace(w.Event))
	st := strings.ToUpper(sysutil.FirstNonEmpty(w.Status, w.PaymentStatus, w.nestedStatus()))
	pm := strings.ToUpper(sysutil.FirstNonEmpty(w.nestedMethod(), w.PaymentMethod))

	orderCode := sysutil.FirstNonEmpty(w.SaleID, w.CheckoutID)
	if orderCode == "" {
		orderCode = fmt.Sprintf("ORDER_%d", time.Now().UnixMilli())
	}
	span.SetAttributes(attribute.String("order.code", orderCode))

	customerName := fallbackName
	rawPhone := ""
	if w.Customer != nil {
		customerName = sysutil.FirstNonEmpty(w.Customer.Name, fallbackName)
		rawPhone = w.Customer.PhoneNumber
	}
	amount := sysutil.FirstNonEmpty(w.TotalPrice.String(), "R$ 0,00")

	key := phone.Normalize(rawPhone)
	if key == "" {
		webhookEvents.WithLabelValues("payment", "no_phone").Inc()
		log.Warn().Str("event", ev).Str("order", orderCode).Msg("payment webhook without usable phone")
		return "invalid or missing phone number", ErrNoPhone
	}

	if s.Dedup.Seen(ev, key, orderCode) {
		webhookEvents.WithLabelValues("payment", "duplicate").Inc()
		return "duplicate event ignored", ErrDuplicateEvent
	}

	product := domain.ProductUnknown
	if len(w.Products) > 0 {
		product = s.Catalog.Resolve(w.Products[0].OfferID)
	}

	instance := s.Assignments.Assign(ctx, key)

	switch {
	case domain.IsApprovedEvent(ev, st):
		return s.approved(ctx, key, orderCode, product, instance, customerName, amount, ev)

	case domain.IsPendingPixEvent(ev, st, pm):
		qr := ""
		if w.Payment != nil {
			qr = sysutil.FirstNonEmpty(w.Payment.QRCodeImage, w.Payment.QRCode)
		}
		return s.pendingPix(ctx, key, orderCode, product, instance, customerName, amount, qr)

	default:
		webhookEvents.WithLabelValues("payment", "ignored").Inc()
		log.Info().Str("event", ev).Str("status", st).Str("method", pm).Msg("payment event ignored")
		return "event ignored", ErrUnknownEvent
	}
}

func (s *PaymentService) approved(ctx context.Context, key, orderCode, product, instance, customerName, amount, ev string) (string, error) {
	// A settled sale always disarms the abandonment timer, even when the
	// approval arrived under a different order code.
	if s.Pending.CancelByKey(key) {
		timeouts.WithLabelValues("canceled").Inc()
	}

	s.Conversations.Put(key, domain.Conversation{
		OrderCode:    orderCode,
		Product:      product,
		Instance:     instance,
		OriginEvent:  domain.EventApprovedSale,
		CustomerName: customerName,
		Amount:       amount,
	})

	webhookEvents.WithLabelValues("payment", "approved").Inc()
	log.Info().Str("order", orderCode).Str("instance", instance).Msg("approved sale registered")

	err := s.Dispatcher.Dispatch(ctx, domain.OutboundEvent{
		EventType:   domain.EventApprovedSale,
		Product:     product,
		Instance:    instance,
		OriginEvent: domain.EventApprovedSale,
		Customer: domain.CustomerBlock{
			FirstName: FirstName(customerName),
			Phone:     key,
			FullName:  customerName,
		},
		Order: domain.OrderBlock{Code: orderCode, Amount: amount},
	})
	if err != nil {
		return "", err
	}
	return "approved sale processed", nil
}

func (s *PaymentService) pendingPix(ctx context.Context, key, orderCode, product, instance, customerName, amount, qr string) (string, error) {
	s.Conversations.Put(key, domain.Conversation{
		OrderCode:    orderCode,
		Product:      product,
		Instance:     instance,
		OriginEvent:  domain.EventPendingPix,
		CustomerName: customerName,
		Amount:       amount,
		QRCode:       qr,
	})

	snap := domain.PendingSnapshot{
		OrderCode:    orderCode,
		CustomerKey:  key,
		Product:      product,
		Instance:     instance,
		CustomerName: customerName,
		Amount:       amount,
		QRCode:       qr,
	}
	s.Pending.Arm(snap, s.PixTimeout, s.onTimeout)

	webhookEvents.WithLabelValues("payment", "pending_pix").Inc()
	log.Info().
		Str("order", orderCode).
		Str("instance", instance).
		Dur("timeout", s.PixTimeout).
		Msg("pending pix registered, timer armed")

	err := s.Dispatcher.Dispatch(ctx, domain.OutboundEvent{
		EventType:   domain.EventPendingPix,
		Product:     product,
		Instance:    instance,
		OriginEvent: domain.EventPendingPix,
		Customer: domain.CustomerBlock{
			FirstName: FirstName(customerName),
			Phone:     key,
			FullName:  customerName,
		},
		Order: domain.OrderBlock{Code: orderCode, Amount: amount, QRCode: qr},
	})
	if err != nil {
		return "", err
	}
	return "pending pix registered", nil
}

// onTimeout runs on the timer goroutine when a pending order was neither
// paid nor replaced within the window.
func (s *PaymentService) onTimeout(snap domain.PendingSnapshot) {
	// The conversation may have been overwritten by a newer order after this
	// timer was scheduled; fire only when it still describes the same order.
	conv, ok := s.Conversations.Get(snap.CustomerKey)
	if !ok || conv.OrderCode != snap.OrderCode {
		timeouts.WithLabelValues("stale").Inc()
		return
	}

	timeouts.WithLabelValues("fired").Inc()
	log.Info().Str("order", snap.OrderCode).Str("phone", snap.CustomerKey).Msg("pix timeout fired")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = s.Dispatcher.Dispatch(ctx, domain.OutboundEvent{
		EventType:   domain.EventPixTimeout,
		Product:     snap.Product,
		Instance:    snap.Instance,
		OriginEvent: domain.EventPendingPix,
		Customer: domain.CustomerBlock{
			FirstName: FirstName(snap.CustomerName),
			Phone:     snap.CustomerKey,
			FullName:  snap.CustomerName,
		},
		Order:   domain.OrderBlock{Code: snap.OrderCode, Amount: snap.Amount, QRCode: snap.QRCode},
		Timeout: true,
	})
}

func (w PaymentWebhook) nestedStatus() string {
	if w.Payment == nil {
		return ""
	}
	return w.Payment.Status
}

func (w PaymentWebhook) nestedMethod() string {
	if w.Payment == nil {
		return ""
	}
	return w.Payment.Method
}
