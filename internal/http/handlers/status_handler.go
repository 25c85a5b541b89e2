// Status and health HTTP handlers.
//
// This file exposes the observability surface:
//   - GET /status  (live stores, delivery stats, recent event history)
//   - GET /health  (liveness probe)
//
// The status payload is read-only and assembled from store snapshots; it
// never mutates relay state.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowzap/pixrelay/internal/domain"
	"github.com/flowzap/pixrelay/internal/repo"
	"github.com/flowzap/pixrelay/internal/utils"
)

//
// DTOs
//

// StatusConfigView mirrors the relay's effective upstream configuration.
type StatusConfigView struct {
	N8NWebhook       string `json:"n8n_webhook"`
	EvolutionBaseURL string `json:"evolution_base_url"`
	InstancesCount   int    `json:"instances_count"`
}

// StatusStatsView aggregates delivery outcomes within the retention window.
type StatusStatsView struct {
	TotalEvents int64 `json:"total_events"`
	SentEvents  int64 `json:"sent_events"`
	ErrorEvents int64 `json:"error_events"`
}

// StatusMetricsView reports live store sizes.
type StatusMetricsView struct {
	PendingPix          int `json:"pending_pix"`
	ActiveConversations int `json:"active_conversations"`
	InstanceAssignments int `json:"instance_assignments"`
	IdempotencyCache    int `json:"idempotency_cache"`
}

// PendingView is one armed abandonment timer.
type PendingView struct {
	Phone     string    `json:"phone"`
	OrderCode string    `json:"order_code"`
	Product   string    `json:"product"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationView is one active conversation record.
type ConversationView struct {
	Phone              string `json:"phone"`
	OrderCode          string `json:"order_code"`
	Product            string `json:"product"`
	Instance           string `json:"instance"`
	OriginalEvent      string `json:"original_event"`
	ResponseCount      int    `json:"response_count"`
	WaitingForResponse bool   `json:"waiting_for_response"`
}

// StatusResponse is the full GET /status payload.
type StatusResponse struct {
	Status        string               `json:"status"`
	Timestamp     time.Time            `json:"timestamp"`
	Config        StatusConfigView     `json:"config"`
	Stats         StatusStatsView      `json:"stats"`
	Metrics       StatusMetricsView    `json:"metrics"`
	PendingList   []PendingView        `json:"pending_list"`
	Conversations []ConversationView   `json:"conversations_list"`
	Events        []domain.EventRecord `json:"events"`
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UptimeSec float64   `json:"uptime"`
}

//
// Handlers
//

// GetStatus godoc
// @ID          getStatus
// @Summary     Relay status snapshot
// @Description Returns live store contents, delivery statistics for the
// @Description retention window, and the most recent event history rows.
// @Tags        Status
// @Produce     json
// @Param       limit  query  int  false  "Max history rows"  minimum(1)
// @Success     200  {object}  handlers.StatusResponse
// @Router      /status [get]
func (h *Handlers) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	limit := utils.AtoiDefault(c.Query("limit"), h.info.HistoryLimit)
	if limit < 1 || limit > h.info.HistoryLimit {
		limit = h.info.HistoryLimit
	}

	resp := StatusResponse{
		Status:    "online",
		Timestamp: now,
		Config: StatusConfigView{
			N8NWebhook:       h.info.N8NWebhookURL,
			EvolutionBaseURL: h.info.EvolutionBaseURL,
			InstancesCount:   h.info.InstanceCount,
		},
		Metrics: StatusMetricsView{
			PendingPix:          h.pending.Count(),
			ActiveConversations: h.conversations.Count(),
			InstanceAssignments: h.assignments.Count(),
			IdempotencyCache:    h.dedup.Size(),
		},
		PendingList:   []PendingView{},
		Conversations: []ConversationView{},
		Events:        []domain.EventRecord{},
	}

	for _, snap := range h.pending.List() {
		resp.PendingList = append(resp.PendingList, PendingView{
			Phone:     snap.CustomerKey,
			OrderCode: snap.OrderCode,
			Product:   snap.Product,
			CreatedAt: snap.CreatedAt,
		})
	}

	for key, conv := range h.conversations.Snapshot() {
		resp.Conversations = append(resp.Conversations, ConversationView{
			Phone:              key,
			OrderCode:          conv.OrderCode,
			Product:            conv.Product,
			Instance:           conv.Instance,
			OriginalEvent:      conv.OriginEvent,
			ResponseCount:      conv.ReplyCount,
			WaitingForResponse: conv.Awaiting,
		})
	}

	if h.db != nil {
		cutoff := now.Add(-h.info.Retention)
		if counts, err := repo.CountEventsSince(ctx, h.db, cutoff); err == nil {
			resp.Stats = StatusStatsView{
				TotalEvents: counts[domain.DeliverySent] + counts[domain.DeliveryError] + counts[domain.DeliveryPending],
				SentEvents:  counts[domain.DeliverySent],
				ErrorEvents: counts[domain.DeliveryError],
			}
		}
		if events, err := repo.RecentEvents(ctx, h.db, limit); err == nil {
			resp.Events = events
		}
	}

	ok(c, http.StatusOK, resp)
}

// GetHealth godoc
// @ID          getHealth
// @Summary     Liveness probe
// @Tags        Status
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) GetHealth(c *gin.Context) {
	now := time.Now().UTC()
	ok(c, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now,
		UptimeSec: now.Sub(h.started).Seconds(),
	})
}
