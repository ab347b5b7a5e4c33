package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    *Config
		wantErr bool

		wantJWKSURL string
	}{
		{
			name: "load with default values",
			envVars: map[string]string{
				"TT_DATABASE_NAME": "defaultdb",
				"TT_DATABASE_USER": "defaultuser",
				"TT_JWT_ISSUER":    "https://auth.tunetrail.test",
				"TT_ENGINE_ENDPOINT": "https://engine.tunetrail.test",
			},
			want: &Config{
				Environment:     "local",
				Edition:         "self-hosted",
				ShutdownTimeout: 10 * time.Second,
				Server: ServerConfig{
					Port:              8080,
					Host:              "localhost",
					ReadHeaderTimeout: 500 * time.Millisecond,
					ReadTimeout:       2 * time.Second,
					HandlerTimeout:    10 * time.Second,
					IdleTimeout:       60 * time.Second,
					AllowedOrigins:    []string{"http://localhost:3000"},
					HealthPort:        8081,
					ConsumerHealthPort: 8082,
				},
				Database: DatabaseConfig{
					Host:            "localhost",
					Port:            5432,
					Name:            "defaultdb",
					User:            "defaultuser",
					SSLMode:         "disable",
					MaxOpenConns:    25,
					MaxIdleConns:    5,
					ConnMaxLifetime: 300,
				},
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
					Structured: true,
				},
				Telemetry: TelemetryConfig{
					ServiceName:    "tunetrail-backend",
					ServiceVersion: "1.0.0",
				},
				JWT: JWTConfig{
					Issuer:              "https://auth.tunetrail.test",
					JWKSURL:             "https://auth.tunetrail.test/.well-known/jwks.json",
					JWKSRefreshInterval: 15 * time.Minute,
				},
				Engine: EngineConfig{
					Endpoint:              "https://engine.tunetrail.test",
					DefaultTimeout:        2 * time.Second,
					TasteProfileTimeout:   10 * time.Second,
					MaxConcurrentRequests: 32,
				},
				Quota: QuotaConfig{
					RecommendationCacheTTL: 5 * time.Minute,
					StaleWhileErrorTTL:     1 * time.Hour,
					SessionIdleTimeout:     15 * time.Minute,
					SessionSweepInterval:   60 * time.Second,
					ApiKeyRotationGrace:    24 * time.Hour,
				},
			},
		},
		{
			name: "custom jwks url overrides the issuer-derived default",
			envVars: map[string]string{
				"TT_DATABASE_NAME":   "defaultdb",
				"TT_DATABASE_USER":   "defaultuser",
				"TT_JWT_ISSUER":      "https://auth.tunetrail.test",
				"TT_JWT_JWKS_URL":    "https://keys.tunetrail.test/jwks.json",
				"TT_ENGINE_ENDPOINT": "https://engine.tunetrail.test",
			},
			wantJWKSURL: "https://keys.tunetrail.test/jwks.json",
		},
		{
			name: "missing required database name fails",
			envVars: map[string]string{
				"TT_DATABASE_USER":   "defaultuser",
				"TT_JWT_ISSUER":      "https://auth.tunetrail.test",
				"TT_ENGINE_ENDPOINT": "https://engine.tunetrail.test",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			got, err := Load("TT")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				assert.Equal(t, tt.want, got)
			}
			if tt.wantJWKSURL != "" {
				assert.Equal(t, tt.wantJWKSURL, got.JWT.JWKSURL)
			}
		})
	}
}

func TestLoad_DerivesJWKSURLFromIssuer(t *testing.T) {
	t.Setenv("TT_DATABASE_NAME", "db")
	t.Setenv("TT_DATABASE_USER", "user")
	t.Setenv("TT_JWT_ISSUER", "https://auth.tunetrail.test")
	t.Setenv("TT_ENGINE_ENDPOINT", "https://engine.tunetrail.test")

	got, err := Load("TT")
	require.NoError(t, err)
	assert.Equal(t, "https://auth.tunetrail.test/.well-known/jwks.json", got.JWT.JWKSURL)
}

func TestConfig_Validate(t *testing.T) {
	baseline := func() *Config {
		return &Config{
			Environment: "development",
			Edition:     "self-hosted",
			Server:      ServerConfig{Port: 8080},
			Database:    DatabaseConfig{Port: 5432},
			Logging:     LoggingConfig{Level: "info", Format: "json"},
			Engine:      EngineConfig{Endpoint: "https://engine.tunetrail.test"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "invalid server port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "invalid database port", mutate: func(c *Config) { c.Database.Port = -1 }, wantErr: true},
		{name: "invalid environment", mutate: func(c *Config) { c.Environment = "sandbox" }, wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "invalid log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "invalid edition", mutate: func(c *Config) { c.Edition = "trial" }, wantErr: true},
		{name: "missing engine endpoint", mutate: func(c *Config) { c.Engine.Endpoint = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseline()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_EnvironmentHelpers(t *testing.T) {
	for _, env := range []string{"local", "development", "staging", "production"} {
		cfg := &Config{Environment: env}
		assert.Equal(t, env == "development", cfg.IsDevelopment())
		assert.Equal(t, env == "production", cfg.IsProduction())
		assert.Equal(t, env == "staging", cfg.IsStaging())
		assert.Equal(t, env == "local", cfg.IsLocal())
	}

	assert.True(t, (&Config{Edition: "self-hosted"}).IsSelfHosted())
	assert.False(t, (&Config{Edition: "hosted"}).IsSelfHosted())
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "tunetrail",
		Password: "secret",
		Name:     "tunetrail",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=tunetrail password=secret dbname=tunetrail sslmode=disable"
	assert.Equal(t, want, db.GetDSN())
}
