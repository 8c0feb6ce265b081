// Package config defines the global configuration structure for the SEOPilot
// connector. Configuration is loaded once at process startup and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating code
// from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the process to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"seopilot/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the SEOPilot connector.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"seopilot-connector"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Backend  BackendConfig
	Billing  BillingConfig
	Usage    UsageConfig
	Generate GenerateConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// DashboardURL is the CMS admin base used to build checkout/portal
	// redirect URLs server-side (no trailing slash). Redirect targets are
	// never accepted from client input.
	DashboardURL string `envconfig:"DASHBOARD_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// BackendConfig holds the remote SEOPilot backend endpoint and transport
// tuning. Every outbound call is bounded by RequestTimeout; exceeding it is
// reported as a network timeout, never an indefinite wait.
type BackendConfig struct {
	BaseURL        string        `envconfig:"SEOPILOT_API_URL" validate:"required,url"`
	RequestTimeout time.Duration `envconfig:"SEOPILOT_API_TIMEOUT" default:"30s"`
	UserAgent      string        `envconfig:"SEOPILOT_USER_AGENT" default:"SEOPilot-Connector/1.0"`
}

// BillingConfig holds checkout configuration. The price IDs map plan keys to
// payment-provider price identifiers; both must be set before checkout can
// be attempted for the corresponding plan.
type BillingConfig struct {
	PriceIDPro    string       `envconfig:"PRICE_ID_PRO"`
	PriceIDAgency string       `envconfig:"PRICE_ID_AGENCY"`
	WebhookSecret SecretString `envconfig:"PLAN_WEBHOOK_SECRET" validate:"required"`
}

// PriceMap assembles the plan-to-price lookup from the configured IDs.
// Entries may be empty; the checkout orchestrator treats an empty entry as
// an admin misconfiguration, not a backend fault.
func (b BillingConfig) PriceMap() types.PlanPriceMap {
	return types.PlanPriceMap{
		types.PlanPro:    b.PriceIDPro,
		types.PlanAgency: b.PriceIDAgency,
	}
}

// UsageConfig tunes the usage cache.
type UsageConfig struct {
	// CacheTTL bounds staleness of cached usage counters while avoiding
	// request amplification against the backend.
	CacheTTL time.Duration `envconfig:"USAGE_CACHE_TTL" default:"60s"`
}

// GenerateConfig tunes the meta-generation executor.
type GenerateConfig struct {
	// BulkConcurrency caps parallel backend calls during bulk generation.
	BulkConcurrency int `envconfig:"GENERATE_BULK_CONCURRENCY" default:"4"`
	// BulkMaxPosts caps the number of posts accepted in one bulk request.
	BulkMaxPosts int `envconfig:"GENERATE_BULK_MAX_POSTS" default:"50"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
