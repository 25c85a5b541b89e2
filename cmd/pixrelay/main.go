// Command pixrelay runs the payment-to-WhatsApp relay service.
//
// Startup order:
//  1. Load .env (best effort) and validate configuration
//  2. Configure zerolog (level, pretty console in dev)
//  3. Initialize OpenTelemetry tracing (optional)
//  4. Open the SQLite event history (optional; the relay runs without it)
//  5. Build stores, upstream clients, and the retention sweeper
//  6. Serve HTTP until SIGINT/SIGTERM, then drain gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowzap/pixrelay/internal/config"
	"github.com/flowzap/pixrelay/internal/evolution"
	httpapi "github.com/flowzap/pixrelay/internal/http"
	"github.com/flowzap/pixrelay/internal/n8n"
	"github.com/flowzap/pixrelay/internal/observability"
	"github.com/flowzap/pixrelay/internal/repo"
	"github.com/flowzap/pixrelay/internal/services"
	"github.com/flowzap/pixrelay/internal/store"
	"github.com/flowzap/pixrelay/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// The event history is observability-only: if the database cannot be
	// opened the relay still runs, it just serves /status without history.
	var db *gorm.DB
	if d, err := repo.OpenSQLite(cfg.DBPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.DBPath).Msg("event history disabled")
	} else if err := repo.AutoMigrate(d); err != nil {
		log.Warn().Err(err).Msg("event history migration failed, history disabled")
	} else {
		db = d
	}

	// Upstream clients.
	evoClient := evolution.NewClient(cfg.Evolution.BaseURL, cfg.Evolution.APIKey, cfg.Evolution.ProbeTimeout)
	n8nClient := n8n.NewClient(cfg.N8N.WebhookURL, cfg.N8N.Timeout)

	// In-memory state.
	var prober store.LivenessProber
	if cfg.Evolution.ProbeEnabled {
		prober = evoClient
	}
	conversations := store.NewConversations()
	assignments := store.NewAssignments(cfg.Evolution.Instances, prober, cfg.Evolution.ProbeTTL)
	pending := store.NewPendingOrders()
	dedup := store.NewDedup(cfg.Relay.IdempotencyTTL)

	services.RegisterStoreGauges(conversations.Count, assignments.Count, pending.Count, dedup.Size)

	// Retention sweeper.
	sweeper := &services.Sweeper{
		Conversations: conversations,
		Assignments:   assignments,
		Pending:       pending,
		Dedup:         dedup,
		DB:            db,
		Interval:      cfg.Relay.CleanupInterval,
		Retention:     cfg.Relay.DataRetention,
	}
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go sweeper.Run(runCtx)

	// HTTP surface.
	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		DB:            db,
		Conversations: conversations,
		Assignments:   assignments,
		Pending:       pending,
		Dedup:         dedup,
		N8N:           n8nClient,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Int("instances", len(cfg.Evolution.Instances)).
			Dur("pix_timeout", cfg.Relay.PixTimeout).
			Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = srv.Close()
	}

	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	log.Info().Msg("shutdown complete")
}
