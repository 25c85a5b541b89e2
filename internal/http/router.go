// Package httpapi wires the HTTP transport (Gin) to the relay services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/flowzap/pixrelay/docs"
	"github.com/flowzap/pixrelay/internal/config"
	"github.com/flowzap/pixrelay/internal/domain"
	"github.com/flowzap/pixrelay/internal/http/handlers"
	"github.com/flowzap/pixrelay/internal/http/middleware"
	"github.com/flowzap/pixrelay/internal/n8n"
	"github.com/flowzap/pixrelay/internal/services"
	"github.com/flowzap/pixrelay/internal/store"
)

// Deps carries the long-lived process state the router needs. Stores and
// clients are constructed in main (they outlive the HTTP layer: the sweeper
// and store gauges use them too) and injected here; the services and handlers
// that sit on top are assembled by RegisterRoutes.
type Deps struct {
	DB            *gorm.DB // nil disables the event history
	Conversations *store.Conversations
	Assignments   *store.Assignments
	Pending       *store.PendingOrders
	Dedup         *store.Dedup
	N8N           *n8n.Client
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the webhook ingress and status surface.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per client IP)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (webhook payloads carry phones)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Dependency injection: services ← stores/clients/db
	dispatcher := &services.Dispatcher{Sender: d.N8N, DB: d.DB}
	paySvc := &services.PaymentService{
		Conversations: d.Conversations,
		Assignments:   d.Assignments,
		Pending:       d.Pending,
		Dedup:         d.Dedup,
		Dispatcher:    dispatcher,
		Catalog:       domain.DefaultCatalog(),
		PixTimeout:    cfg.Relay.PixTimeout,
	}
	msgSvc := &services.MessageService{
		Conversations: d.Conversations,
		Dedup:         d.Dedup,
		Dispatcher:    dispatcher,
	}

	h := handlers.New(paySvc, msgSvc, d.Conversations, d.Pending, d.Assignments, d.Dedup, d.DB, handlers.StatusInfo{
		N8NWebhookURL:    cfg.N8N.WebhookURL,
		EvolutionBaseURL: cfg.Evolution.BaseURL,
		InstanceCount:    len(cfg.Evolution.Instances),
		HistoryLimit:     cfg.Relay.HistoryLimit,
		Retention:        cfg.Relay.DataRetention,
	})

	// Webhook ingress
	webhook := r.Group("/webhook")
	{
		webhook.POST("/kirvano", h.PostPaymentWebhook)
		webhook.POST("/evolution", h.PostMessagingWebhook)
	}

	// Observability surface. /status can grow large (history + store dumps),
	// so it is served compressed.
	r.GET("/status", gzip.Gzip(gzip.DefaultCompression), h.GetStatus)
	r.GET("/health", h.GetHealth)

	// API docs (disabled by default outside dev)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
