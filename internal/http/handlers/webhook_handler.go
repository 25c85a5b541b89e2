// Webhook HTTP handlers.
//
// This file exposes the two ingress endpoints:
//   - POST /webhook/kirvano    (payment provider events)
//   - POST /webhook/evolution  (WhatsApp gateway message events)
//
// Both endpoints acknowledge with 200 whenever the payload was received and
// understood, even when the relay deliberately ignores it: webhook senders
// retry on non-2xx, and a retried duplicate is pure noise. Only malformed
// JSON (400) and unexpected internal faults (500) break that rule.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowzap/pixrelay/internal/evolution"
	"github.com/flowzap/pixrelay/internal/services"
)

// WebhookResponse is the acknowledgment envelope for both ingress endpoints.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// PostPaymentWebhook godoc
// @ID          postPaymentWebhook
// @Summary     Ingest a payment provider event
// @Description Classifies the event (approved sale, pending PIX, other) and
// @Description drives the order lifecycle. Duplicates and non-actionable
// @Description events are acknowledged without side effects.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       body  body  services.PaymentWebhook  true  "Provider payload"
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed payload"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /webhook/kirvano [post]
func (h *Handlers) PostPaymentWebhook(c *gin.Context) {
	var w services.PaymentWebhook
	if err := c.ShouldBindJSON(&w); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed payload")
		return
	}

	msg, err := h.payments.Process(c.Request.Context(), w)
	switch {
	case err == nil:
		ok(c, http.StatusOK, WebhookResponse{Success: true, Message: msg})
	case errors.Is(err, services.ErrNoPhone):
		ok(c, http.StatusOK, WebhookResponse{Success: false, Message: msg})
	case errors.Is(err, services.ErrDuplicateEvent), errors.Is(err, services.ErrUnknownEvent):
		ok(c, http.StatusOK, WebhookResponse{Success: true, Message: msg})
	default:
		fail(c, http.StatusInternalServerError, ErrCodeProcessFailed, err.Error())
	}
}

// PostMessagingWebhook godoc
// @ID          postMessagingWebhook
// @Summary     Ingest a WhatsApp gateway message event
// @Description Outbound (fromMe) messages arm the conversation; the first
// @Description inbound reply is forwarded downstream exactly once. Everything
// @Description else is acknowledged and absorbed.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       body  body  evolution.Webhook  true  "Gateway payload"
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed payload"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /webhook/evolution [post]
func (h *Handlers) PostMessagingWebhook(c *gin.Context) {
	var w evolution.Webhook
	if err := c.ShouldBindJSON(&w); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed payload")
		return
	}

	msg, err := h.messages.Process(c.Request.Context(), w)
	switch {
	case err == nil:
		ok(c, http.StatusOK, WebhookResponse{Success: true, Message: msg})
	case errors.Is(err, services.ErrIgnoredMessage), errors.Is(err, services.ErrDuplicateEvent):
		ok(c, http.StatusOK, WebhookResponse{Success: true, Message: msg})
	default:
		fail(c, http.StatusInternalServerError, ErrCodeProcessFailed, err.Error())
	}
}
