// Package config loads gateway configuration from environment variables.
//
// Values are parsed with caarlos0/env and credential fields may carry
// secretref: references resolved through the secret package.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/PetroPricesnearMe/content-gateway/secret"
)

// Sentinel errors for configuration validation.
var (
	ErrNoProviders     = errors.New("config: at least one provider must be enabled")
	ErrUnknownProvider = errors.New("config: unknown provider in priority list")
	ErrInvalidTTL      = errors.New("config: fresh TTL must not exceed stale TTL")
	ErrMissingToken    = errors.New("config: revalidation token required when revalidation endpoint is enabled")
)

// Config is the full gateway configuration.
type Config struct {
	Server     ServerConfig
	Providers  ProvidersConfig
	Cache      CacheConfig
	Resilience ResilienceConfig
	Revalidate RevalidateConfig
	Observe    ObserveConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `env:"GATEWAY_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"GATEWAY_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"GATEWAY_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"GATEWAY_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// HealthCollection is the collection probed by provider health checks.
	HealthCollection string `env:"GATEWAY_HEALTH_COLLECTION" envDefault:"stations"`
}

// ProvidersConfig selects and orders the content backends.
type ProvidersConfig struct {
	// Priority lists enabled providers in failover order.
	Priority []string `env:"GATEWAY_PROVIDERS" envSeparator:"," envDefault:"baserow"`

	Baserow  BaserowConfig
	Sheets   SheetsConfig
	Dynamo   DynamoConfig
	Postgres PostgresConfig
}

// BaserowConfig configures the Baserow REST backend.
type BaserowConfig struct {
	BaseURL string `env:"BASEROW_BASE_URL" envDefault:"https://api.baserow.io"`
	Token   string `env:"BASEROW_TOKEN"`
	// Tables maps collection names to Baserow table IDs.
	Tables map[string]string `env:"BASEROW_TABLES" envKeyValSeparator:":"`
}

// SheetsConfig configures the Google Sheets backend.
type SheetsConfig struct {
	BaseURL       string `env:"SHEETS_BASE_URL" envDefault:"https://sheets.googleapis.com"`
	SpreadsheetID string `env:"SHEETS_SPREADSHEET_ID"`
	APIKey        string `env:"SHEETS_API_KEY"`
	// Tabs maps collection names to sheet tab names.
	Tabs map[string]string `env:"SHEETS_TABS" envKeyValSeparator:":"`
}

// DynamoConfig configures the DynamoDB backend.
type DynamoConfig struct {
	Table  string `env:"DYNAMO_TABLE" envDefault:"content"`
	Region string `env:"DYNAMO_REGION" envDefault:"ap-southeast-2"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSN         string `env:"POSTGRES_DSN"`
	CreateTable bool   `env:"POSTGRES_CREATE_TABLE" envDefault:"false"`
}

// CacheConfig configures the in-memory store.
type CacheConfig struct {
	Disabled   bool          `env:"CACHE_DISABLED" envDefault:"false"`
	FreshTTL   time.Duration `env:"CACHE_FRESH_TTL" envDefault:"5m"`
	StaleTTL   time.Duration `env:"CACHE_STALE_TTL" envDefault:"30m"`
	MaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"1024"`

	// RefreshMaxConcurrent caps background refreshes in flight at
	// once. Zero disables the cap.
	RefreshMaxConcurrent int `env:"CACHE_REFRESH_MAX_CONCURRENT" envDefault:"8"`
}

// ResilienceConfig configures per-provider call protection.
type ResilienceConfig struct {
	Timeout          time.Duration `env:"RESILIENCE_TIMEOUT" envDefault:"10s"`
	MaxAttempts      int           `env:"RESILIENCE_MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay        time.Duration `env:"RESILIENCE_BASE_DELAY" envDefault:"200ms"`
	MaxDelay         time.Duration `env:"RESILIENCE_MAX_DELAY" envDefault:"5s"`
	FailureThreshold int           `env:"RESILIENCE_FAILURE_THRESHOLD" envDefault:"5"`
	Cooldown         time.Duration `env:"RESILIENCE_COOLDOWN" envDefault:"30s"`

	// RateLimit caps each provider's client-side call rate in
	// operations per second. Zero disables the limiter.
	RateLimit      float64 `env:"RESILIENCE_RATE_LIMIT" envDefault:"0"`
	RateLimitBurst int     `env:"RESILIENCE_RATE_LIMIT_BURST" envDefault:"10"`
}

// RevalidateConfig configures cache revalidation.
type RevalidateConfig struct {
	// Enabled exposes the authenticated POST /revalidate endpoint.
	Enabled bool `env:"REVALIDATE_ENABLED" envDefault:"true"`
	// Token is the shared secret for the revalidation endpoint.
	Token string `env:"REVALIDATE_TOKEN"`
	// Interval drives time-based revalidation; zero disables it.
	Interval time.Duration `env:"REVALIDATE_INTERVAL" envDefault:"0"`
	// Eager refetches the default page after invalidation.
	Eager bool `env:"REVALIDATE_EAGER" envDefault:"false"`
	// Collections limits periodic revalidation to these collections.
	Collections []string `env:"REVALIDATE_COLLECTIONS" envSeparator:","`

	// JWTSecret optionally allows JWT-authenticated revalidation
	// alongside the shared token.
	JWTSecret   string `env:"REVALIDATE_JWT_SECRET"`
	JWTIssuer   string `env:"REVALIDATE_JWT_ISSUER"`
	JWTAudience string `env:"REVALIDATE_JWT_AUDIENCE"`
}

// ObserveConfig configures logging, tracing and metrics.
type ObserveConfig struct {
	ServiceName     string  `env:"OBSERVE_SERVICE_NAME" envDefault:"content-gateway"`
	LogLevel        string  `env:"OBSERVE_LOG_LEVEL" envDefault:"info"`
	TracingEnabled  bool    `env:"OBSERVE_TRACING_ENABLED" envDefault:"false"`
	TracingExporter string  `env:"OBSERVE_TRACING_EXPORTER" envDefault:"otlp"`
	SamplePct       float64 `env:"OBSERVE_TRACING_SAMPLE_PCT" envDefault:"1.0"`
	MetricsEnabled  bool    `env:"OBSERVE_METRICS_ENABLED" envDefault:"false"`
	MetricsExporter string  `env:"OBSERVE_METRICS_EXPORTER" envDefault:"prometheus"`
}

// knownProviders are the provider names accepted in GATEWAY_PROVIDERS.
var knownProviders = map[string]bool{
	"baserow":  true,
	"sheets":   true,
	"dynamo":   true,
	"postgres": true,
}

// Load parses configuration from the environment, resolves secret
// references in credential fields, and validates the result.
func Load(ctx context.Context, resolver *secret.Resolver) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if resolver != nil {
		if err := cfg.resolveSecrets(ctx, resolver); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolveSecrets(ctx context.Context, resolver *secret.Resolver) error {
	fields := []*string{
		&c.Providers.Baserow.Token,
		&c.Providers.Sheets.APIKey,
		&c.Providers.Postgres.DSN,
		&c.Revalidate.Token,
		&c.Revalidate.JWTSecret,
	}
	for _, f := range fields {
		if *f == "" {
			continue
		}
		resolved, err := resolver.ResolveValue(ctx, *f)
		if err != nil {
			return fmt.Errorf("config: resolve secret: %w", err)
		}
		*f = resolved
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if len(c.Providers.Priority) == 0 {
		return ErrNoProviders
	}
	for _, name := range c.Providers.Priority {
		if !knownProviders[name] {
			return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
		}
	}
	if !c.Cache.Disabled && c.Cache.FreshTTL > c.Cache.StaleTTL {
		return ErrInvalidTTL
	}
	if c.Revalidate.Enabled && c.Revalidate.Token == "" {
		return ErrMissingToken
	}
	return nil
}
