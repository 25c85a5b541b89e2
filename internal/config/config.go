// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, relay windows, upstream endpoints, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "pixrelay")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// N8NConfig defines the downstream automation webhook settings.
type N8NConfig struct {
	WebhookURL string        // N8N_WEBHOOK_URL
	Timeout    time.Duration // N8N_TIMEOUT per-delivery bound
}

// EvolutionConfig defines the WhatsApp gateway settings.
type EvolutionConfig struct {
	BaseURL      string        // EVOLUTION_BASE_URL
	APIKey       string        // EVOLUTION_API_KEY
	Instances    []string      // EVOLUTION_INSTANCES (CSV)
	ProbeTimeout time.Duration // EVOLUTION_PROBE_TIMEOUT per liveness probe
	ProbeTTL     time.Duration // EVOLUTION_PROBE_TTL liveness cache window
	ProbeEnabled bool          // EVOLUTION_PROBE_ENABLED
}

// RelayConfig defines the timing windows of the order lifecycle.
type RelayConfig struct {
	PixTimeout      time.Duration // PIX_TIMEOUT abandonment window
	CleanupInterval time.Duration // CLEANUP_INTERVAL sweep period
	DataRetention   time.Duration // DATA_RETENTION max record age
	IdempotencyTTL  time.Duration // IDEMPOTENCY_TTL duplicate window
	HistoryLimit    int           // HISTORY_LIMIT max rows returned by /status
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route

	// App
	DBPath string // SQLite path for the event history

	// Upstreams
	N8N       N8NConfig
	Evolution EvolutionConfig
	Relay     RelayConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// defaultInstances is the built-in sending pool used when
// EVOLUTION_INSTANCES is unset.
const defaultInstances = "GABY01,GABY02,GABY03,GABY04,GABY05,GABY06,GABY07,GABY08,GABY09"

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		// App
		DBPath: getenv("DB_PATH", "relay.db"),

		// Upstreams
		N8N: N8NConfig{
			WebhookURL: getenv("N8N_WEBHOOK_URL", ""),
			Timeout:    getdur("N8N_TIMEOUT", 15*time.Second),
		},
		Evolution: EvolutionConfig{
			BaseURL:      getenv("EVOLUTION_BASE_URL", ""),
			APIKey:       getenv("EVOLUTION_API_KEY", ""),
			Instances:    splitCSV(getenv("EVOLUTION_INSTANCES", defaultInstances)),
			ProbeTimeout: getdur("EVOLUTION_PROBE_TIMEOUT", 5*time.Second),
			ProbeTTL:     getdur("EVOLUTION_PROBE_TTL", 30*time.Second),
			ProbeEnabled: getbool("EVOLUTION_PROBE_ENABLED", true),
		},
		Relay: RelayConfig{
			PixTimeout:      getdur("PIX_TIMEOUT", 7*time.Minute),
			CleanupInterval: getdur("CLEANUP_INTERVAL", 10*time.Minute),
			DataRetention:   getdur("DATA_RETENTION", 24*time.Hour),
			IdempotencyTTL:  getdur("IDEMPOTENCY_TTL", 5*time.Minute),
			HistoryLimit:    getint("HISTORY_LIMIT", 1000),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 25.0),
		RateBurst: getint("RATE_BURST", 50),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "pixrelay"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.N8N.Timeout <= 0 {
		return cfg, errors.New("N8N_TIMEOUT must be > 0")
	}
	if len(cfg.Evolution.Instances) == 0 {
		return cfg, errors.New("EVOLUTION_INSTANCES must name at least one instance")
	}
	if cfg.Evolution.ProbeTimeout <= 0 || cfg.Evolution.ProbeTTL <= 0 {
		return cfg, errors.New("liveness probe durations must be > 0")
	}
	if cfg.Relay.PixTimeout <= 0 {
		return cfg, errors.New("PIX_TIMEOUT must be > 0")
	}
	if cfg.Relay.CleanupInterval <= 0 {
		return cfg, errors.New("CLEANUP_INTERVAL must be > 0")
	}
	if cfg.Relay.DataRetention <= 0 {
		return cfg, errors.New("DATA_RETENTION must be > 0")
	}
	if cfg.Relay.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.Relay.HistoryLimit < 1 {
		return cfg, errors.New("HISTORY_LIMIT must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
