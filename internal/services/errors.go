// Package services implements the relay's business logic: classifying
// payment webhooks, correlating WhatsApp messages with orders, dispatching
// outbound automation events, and the periodic retention sweep.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrUnknownEvent is returned when a payment webhook carries an event
	// the relay does not act on (refunds, chargebacks, unknown statuses).
	ErrUnknownEvent = errors.New("event not actionable")

	// ErrDuplicateEvent is returned when the idempotency guard has already
	// seen the same (event kind, customer, order) within its TTL.
	ErrDuplicateEvent = errors.New("duplicate event suppressed")

	// ErrNoPhone is returned when a webhook carries no usable phone number
	// after normalization.
	ErrNoPhone = errors.New("no usable phone number")

	// ErrIgnoredMessage is returned when a messaging webhook is structurally
	// valid but carries nothing the relay acts on (group chat, empty text,
	// unknown envelope).
	ErrIgnoredMessage = errors.New("message not actionable")
)
