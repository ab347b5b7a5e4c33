// Package config provides application configuration management using environment variables.
// It uses github.com/kelseyhightower/envconfig for loading configuration from environment
// variables with support for validation, default values, and environment-specific helpers.
//
// # Basic Usage
//
// Load configuration from environment variables:
//
//	cfg, err := config.Load("TUNETRAIL")
//	if err != nil {
//		log.Fatalf("Failed to load configuration: %v", err)
//	}
//
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
//
// # Environment Helpers
//
// Use environment detection helpers:
//
//	if cfg.IsDevelopment() {
//		// Development-specific logic
//	}
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents the application configuration loaded from environment variables.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Logging configuration
	Logging LoggingConfig

	// Telemetry configuration
	Telemetry TelemetryConfig

	// JWT configuration for session bearer tokens
	JWT JWTConfig

	// Engine configuration for the RecommendationEngine boundary
	Engine EngineConfig

	// NATS configuration for the messaging transport. Empty URL selects the
	// in-process GoChannel transport.
	NATS NATSConfig

	// Timing defaults for recommendation caching, sessions, and key rotation.
	Quota QuotaConfig

	// Environment: local, development, staging, production
	Environment string `envconfig:"ENVIRONMENT" default:"local"`

	// Edition distinguishes the self-hosted open-core deployment from the
	// hosted multi-tenant deployment. Hosted editions resolve each
	// principal's plan from its organization; self-hosted always resolves
	// to the enterprise plan with unlimited quotas.
	Edition string `envconfig:"EDITION" default:"self-hosted"`

	// Shutdown timeout for the phased shutdown sequence
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// ServerConfig represents server-specific configuration.
type ServerConfig struct {
	Port              int           `envconfig:"SERVER_PORT" default:"8080"`
	Host              string        `envconfig:"SERVER_HOST" default:"localhost"`
	ReadHeaderTimeout time.Duration `envconfig:"SERVER_READ_HEADER_TIMEOUT" default:"500ms"`
	ReadTimeout       time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"2s"`
	HandlerTimeout    time.Duration `envconfig:"SERVER_HANDLER_TIMEOUT" default:"10s"`
	IdleTimeout       time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// Allowed CORS origins
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// HealthPort is the port for the lightweight /healthz, /readyz probe server.
	HealthPort int `envconfig:"HEALTH_PORT" default:"8081"`

	// ConsumerHealthPort is the probe port for the separate event-consumer
	// process (cmd/consumer), distinct from HealthPort so both processes
	// can run on the same host during local development.
	ConsumerHealthPort int `envconfig:"CONSUMER_HEALTH_PORT" default:"8082"`
}

// DatabaseConfig represents database-specific configuration.
type DatabaseConfig struct {
	Host            string `envconfig:"DATABASE_HOST" default:"localhost"`
	Port            int    `envconfig:"DATABASE_PORT" default:"5432"`
	Name            string `envconfig:"DATABASE_NAME" required:"true"`
	User            string `envconfig:"DATABASE_USER" required:"true"`
	Password        string `envconfig:"DATABASE_PASSWORD"`
	SSLMode         string `envconfig:"DATABASE_SSL_MODE" default:"disable"`
	MaxOpenConns    int    `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int    `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime int    `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"300"`
}

// LoggingConfig represents logging-specific configuration.
type LoggingConfig struct {
	Level         string `envconfig:"LOGGING_LEVEL" default:"info"`
	Format        string `envconfig:"LOGGING_FORMAT" default:"json"`
	Structured    bool   `envconfig:"LOGGING_STRUCTURED" default:"true"`
	IncludeCaller bool   `envconfig:"LOGGING_INCLUDE_CALLER" default:"false"`
}

// TelemetryConfig represents telemetry-specific configuration.
type TelemetryConfig struct {
	OTLPEndpoint   string `envconfig:"TELEMETRY_OTLP_ENDPOINT"`
	ServiceName    string `envconfig:"TELEMETRY_SERVICE_NAME" default:"tunetrail-backend"`
	ServiceVersion string `envconfig:"TELEMETRY_SERVICE_VERSION" default:"1.0.0"`
}

// JWTConfig configures session bearer token validation via JWKS.
type JWTConfig struct {
	// Issuer is the accepted token issuer.
	Issuer string `envconfig:"JWT_ISSUER" required:"true"`
	// JWKSURL is the JSON Web Key Set endpoint. Defaults to "<issuer>/.well-known/jwks.json".
	JWKSURL string `envconfig:"JWT_JWKS_URL"`
	// JWKSRefreshInterval is the minimum interval between JWKS refreshes.
	JWKSRefreshInterval time.Duration `envconfig:"JWT_JWKS_REFRESH_INTERVAL" default:"15m"`
	// AcceptedIssuers, if set, allows tokens from additional issuers during a signing-key migration.
	AcceptedIssuers []string `envconfig:"JWT_ACCEPTED_ISSUERS"`
	// SessionSecret signs TuneTrail's own self-issued session tokens
	// (HS256). Required whenever no external identity provider is
	// configured, which is the only path self-hosted deployments take.
	SessionSecret string `envconfig:"JWT_SESSION_SECRET"`
}

// EngineConfig configures the outbound RecommendationEngine HTTP client.
type EngineConfig struct {
	Endpoint              string        `envconfig:"ENGINE_ENDPOINT" required:"true"`
	DefaultTimeout        time.Duration `envconfig:"ENGINE_DEFAULT_TIMEOUT" default:"2s"`
	TasteProfileTimeout   time.Duration `envconfig:"ENGINE_TASTE_PROFILE_TIMEOUT" default:"10s"`
	MaxConcurrentRequests int           `envconfig:"ENGINE_MAX_CONCURRENT_REQUESTS" default:"32"`
}

// NATSConfig configures the Watermill pub/sub transport.
type NATSConfig struct {
	URL string `envconfig:"NATS_URL"`
}

// QuotaConfig carries the timing defaults for recommendation result
// caching, listening-session expiry, and API-key rotation.
type QuotaConfig struct {
	// RecommendationCacheTTL is the default freshness window for cached
	// recommendation results (spec default: 5m).
	RecommendationCacheTTL time.Duration `envconfig:"QUOTA_RECOMMENDATION_CACHE_TTL" default:"5m"`
	// StaleWhileErrorTTL bounds how long a stale cache entry may still be
	// served after an upstream engine failure (spec default: 1h).
	StaleWhileErrorTTL time.Duration `envconfig:"QUOTA_STALE_WHILE_ERROR_TTL" default:"1h"`
	// SessionIdleTimeout is the listening-session idle timeout (spec default: 15m).
	SessionIdleTimeout time.Duration `envconfig:"QUOTA_SESSION_IDLE_TIMEOUT" default:"15m"`
	// SessionSweepInterval is how often the expiry sweep runs (spec default: 60s).
	SessionSweepInterval time.Duration `envconfig:"QUOTA_SESSION_SWEEP_INTERVAL" default:"60s"`
	// ApiKeyRotationGrace is how long a rotated-out API key keeps authenticating.
	ApiKeyRotationGrace time.Duration `envconfig:"QUOTA_API_KEY_ROTATION_GRACE" default:"24h"`
}

// Load loads configuration from environment variables. The prefix namespaces
// the environment variables, e.g. with prefix "TUNETRAIL",
// TUNETRAIL_SERVER_PORT sets Server.Port.
func Load(prefix string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.JWT.JWKSURL == "" {
		cfg.JWT.JWKSURL = cfg.JWT.Issuer + "/.well-known/jwks.json"
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	validEnvironments := []string{"local", "development", "staging", "production"}
	if !contains(validEnvironments, c.Environment) {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	validEditions := []string{"self-hosted", "hosted"}
	if !contains(validEditions, c.Edition) {
		return fmt.Errorf("invalid edition: %s", c.Edition)
	}

	if c.Engine.Endpoint == "" {
		return fmt.Errorf("engine endpoint is required")
	}

	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// GetDSN returns the database connection string.
func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// IsDevelopment returns true if the environment is "development".
func (c *Config) IsDevelopment() bool { return c.Environment == "development" }

// IsProduction returns true if the environment is "production".
func (c *Config) IsProduction() bool { return c.Environment == "production" }

// IsStaging returns true if the environment is "staging".
func (c *Config) IsStaging() bool { return c.Environment == "staging" }

// IsLocal returns true if the environment is "local".
func (c *Config) IsLocal() bool { return c.Environment == "local" }

// IsSelfHosted returns true for the self-hosted open-core edition.
func (c *Config) IsSelfHosted() bool { return c.Edition == "self-hosted" }
