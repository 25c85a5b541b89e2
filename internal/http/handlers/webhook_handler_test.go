package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowzap/pixrelay/internal/evolution"
	"github.com/flowzap/pixrelay/internal/services"
	"github.com/flowzap/pixrelay/internal/store"
)

type stubPayments struct {
	msg string
	err error
	got *services.PaymentWebhook
}

func (s *stubPayments) Process(_ context.Context, w services.PaymentWebhook) (string, error) {
	s.got = &w
	return s.msg, s.err
}

type stubMessages struct {
	msg string
	err error
}

func (s *stubMessages) Process(context.Context, evolution.Webhook) (string, error) {
	return s.msg, s.err
}

type alwaysUp struct{}

func (alwaysUp) Alive(context.Context, string) bool { return true }

func newTestHandlers(p PaymentProcessor, m MessageProcessor) *Handlers {
	return New(
		p, m,
		store.NewConversations(),
		store.NewPendingOrders(),
		store.NewAssignments([]string{"GABY01"}, alwaysUp{}, time.Minute),
		store.NewDedup(5*time.Minute),
		nil,
		StatusInfo{
			N8NWebhookURL:    "https://n8n.local/webhook/relay",
			EvolutionBaseURL: "https://evo.local",
			InstanceCount:    1,
			HistoryLimit:     1000,
			Retention:        24 * time.Hour,
		},
	)
}

func performJSON(t *testing.T, register func(*gin.Engine), method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeAck(t *testing.T, w *httptest.ResponseRecorder) WebhookResponse {
	t.Helper()
	var resp WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestPostPaymentWebhook_Processed(t *testing.T) {
	p := &stubPayments{msg: "approved sale processed"}
	h := newTestHandlers(p, &stubMessages{})

	w := performJSON(t, func(r *gin.Engine) { r.POST("/webhook/kirvano", h.PostPaymentWebhook) },
		http.MethodPost, "/webhook/kirvano",
		`{"event":"SALE_APPROVED","sale_id":"S1","customer":{"name":"Maria","phone_number":"11988887777"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeAck(t, w)
	if !resp.Success || resp.Message != "approved sale processed" {
		t.Fatalf("resp = %+v", resp)
	}
	if p.got == nil || p.got.SaleID != "S1" {
		t.Fatalf("payload not forwarded: %+v", p.got)
	}
}

func TestPostPaymentWebhook_SentinelMapping(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		wantSuccess bool
	}{
		{"no phone", services.ErrNoPhone, false},
		{"duplicate", services.ErrDuplicateEvent, true},
		{"unknown event", services.ErrUnknownEvent, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandlers(&stubPayments{msg: "x", err: tc.err}, &stubMessages{})
			w := performJSON(t, func(r *gin.Engine) { r.POST("/webhook/kirvano", h.PostPaymentWebhook) },
				http.MethodPost, "/webhook/kirvano", `{"event":"E"}`)

			if w.Code != http.StatusOK {
				t.Fatalf("sentinel must acknowledge with 200, got %d", w.Code)
			}
			if resp := decodeAck(t, w); resp.Success != tc.wantSuccess {
				t.Fatalf("success = %v, want %v", resp.Success, tc.wantSuccess)
			}
		})
	}
}

func TestPostPaymentWebhook_MalformedJSON(t *testing.T) {
	h := newTestHandlers(&stubPayments{}, &stubMessages{})
	w := performJSON(t, func(r *gin.Engine) { r.POST("/webhook/kirvano", h.PostPaymentWebhook) },
		http.MethodPost, "/webhook/kirvano", `{"event":`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Code != ErrCodeBadRequest {
		t.Fatalf("error envelope = %s (err %v)", w.Body.String(), err)
	}
}

func TestPostPaymentWebhook_InternalError(t *testing.T) {
	h := newTestHandlers(&stubPayments{err: errors.New("history write: disk full")}, &stubMessages{})
	w := performJSON(t, func(r *gin.Engine) { r.POST("/webhook/kirvano", h.PostPaymentWebhook) },
		http.MethodPost, "/webhook/kirvano", `{"event":"E"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Code != ErrCodeProcessFailed {
		t.Fatalf("error envelope = %s (err %v)", w.Body.String(), err)
	}
}

func TestPostMessagingWebhook_Processed(t *testing.T) {
	h := newTestHandlers(&stubPayments{}, &stubMessages{msg: "first reply dispatched"})
	w := performJSON(t, func(r *gin.Engine) { r.POST("/webhook/evolution", h.PostMessagingWebhook) },
		http.MethodPost, "/webhook/evolution",
		`{"event":"messages.upsert","data":{"key":{"remoteJid":"5511988887777@s.whatsapp.net","fromMe":false},"message":{"conversation":"oi"}}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp := decodeAck(t, w); !resp.Success || resp.Message != "first reply dispatched" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestPostMessagingWebhook_IgnoredStillAcknowledged(t *testing.T) {
	h := newTestHandlers(&stubPayments{}, &stubMessages{msg: "reply ignored", err: services.ErrIgnoredMessage})
	w := performJSON(t, func(r *gin.Engine) { r.POST("/webhook/evolution", h.PostMessagingWebhook) },
		http.MethodPost, "/webhook/evolution", `{"data":{"key":{"remoteJid":"x@s.whatsapp.net"}}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decodeAck(t, w); !resp.Success {
		t.Fatalf("ignored message must acknowledge success, got %+v", resp)
	}
}
