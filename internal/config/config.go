package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/weathermate/server/pkg/config"
)

const (
	defaultAccessSecret  = "change-this-access-secret-in-prod"
	defaultRefreshSecret = "change-this-refresh-secret-in-prod"
)

// Config holds all configuration for the server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"weathermate"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"weathermate_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"weathermate"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis cache
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka; empty disables the mailer and domain events degrade to logs.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Token signing. Access and refresh tokens use independent secrets so
	// one kind can never pass verification as the other.
	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET" envDefault:"change-this-access-secret-in-prod"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET" envDefault:"change-this-refresh-secret-in-prod"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// Cookie TTLs
	CSRFCookieTTL       time.Duration `env:"CSRF_COOKIE_TTL" envDefault:"12h"`
	OAuthStateCookieTTL time.Duration `env:"OAUTH_STATE_COOKIE_TTL" envDefault:"10m"`

	// Google OAuth; all three must be set for the google routes to work.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID" envDefault:""`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET" envDefault:""`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:""`

	// Frontend
	FrontendURL  string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	PostLoginURL string `env:"POST_LOGIN_URL" envDefault:"http://localhost:3000/dashboard"`

	// Open-Meteo endpoint overrides, mainly for tests.
	GeoBaseURL      string `env:"OPEN_METEO_GEO_URL" envDefault:""`
	ForecastBaseURL string `env:"OPEN_METEO_FORECAST_URL" envDefault:""`

	// Rate limits (per IP, steady rps + burst)
	GlobalRateRPS float64 `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"50"`
	GlobalBurst   int     `env:"RATE_LIMIT_GLOBAL_BURST" envDefault:"100"`
	AuthRateRPS   float64 `env:"RATE_LIMIT_AUTH_RPS" envDefault:"1"`
	AuthBurst     int     `env:"RATE_LIMIT_AUTH_BURST" envDefault:"20"`
	EmailRateRPS  float64 `env:"RATE_LIMIT_EMAIL_RPS" envDefault:"0.05"`
	EmailBurst    int     `env:"RATE_LIMIT_EMAIL_BURST" envDefault:"3"`

	// Session sweep
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	// Outside development both signing secrets must be explicitly set,
	// strong, and distinct from each other.
	if cfg.Environment != "development" {
		if cfg.JWTAccessSecret == defaultAccessSecret || cfg.JWTRefreshSecret == defaultRefreshSecret {
			return nil, fmt.Errorf("JWT secrets must be explicitly set via environment variables in %q mode", cfg.Environment)
		}
		if len(cfg.JWTAccessSecret) < 32 {
			return nil, fmt.Errorf("JWT_ACCESS_SECRET must be at least 32 characters long, got %d", len(cfg.JWTAccessSecret))
		}
		if len(cfg.JWTRefreshSecret) < 32 {
			return nil, fmt.Errorf("JWT_REFRESH_SECRET must be at least 32 characters long, got %d", len(cfg.JWTRefreshSecret))
		}
		if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
			return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
		}
	}

	return cfg, nil
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GoogleConfigured reports whether all Google OAuth settings are present.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
