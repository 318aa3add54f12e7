package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/weathermate/server/internal/auth"
	"github.com/weathermate/server/internal/config"
	"github.com/weathermate/server/internal/event"
	handler "github.com/weathermate/server/internal/handler/http"
	"github.com/weathermate/server/internal/mailer"
	"github.com/weathermate/server/internal/oauth"
	"github.com/weathermate/server/internal/repository"
	"github.com/weathermate/server/internal/repository/postgres"
	"github.com/weathermate/server/internal/service"
	"github.com/weathermate/server/internal/weather"
	"github.com/weathermate/server/migrations"
	"github.com/weathermate/server/pkg/database"
	"github.com/weathermate/server/pkg/health"
	"github.com/weathermate/server/pkg/httpclient"
	pkgkafka "github.com/weathermate/server/pkg/kafka"
	pkgmiddleware "github.com/weathermate/server/pkg/middleware"
)

// App wires together all dependencies and runs the server.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	cache      *redis.Client
	producer   *pkgkafka.Producer
	mail       *mailer.KafkaMailer
	sessions   repository.SessionRepository
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "server")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Redis is an optional read-through cache for upstream weather data.
	// A missing Redis means every request hits Open-Meteo, not an outage.
	redisCfg := database.DefaultRedisConfig()
	if host, port, splitErr := net.SplitHostPort(cfg.RedisAddr); splitErr == nil {
		redisCfg.Host = host
		if p, convErr := strconv.Atoi(port); convErr == nil {
			redisCfg.Port = p
		}
	}
	redisCfg.Password = cfg.RedisPassword
	redisCfg.DB = cfg.RedisDB
	cache, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		logger.Warn("redis unavailable, weather caching disabled",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
		cache = nil
	} else {
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
	}

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	tokens := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	google := oauth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	mail := mailer.NewKafkaMailer(cfg.KafkaBrokers, cfg.FrontendURL, logger)

	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	snapshotRepo := postgres.NewSnapshotRepository(pool)
	eventProducer := event.NewProducer(producer, logger)

	authService := service.NewAuthService(userRepo, sessionRepo, tokens, google, mail, eventProducer, logger)

	upstream := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("open-meteo"),
		logger,
	)
	meteo := weather.NewClient(upstream)
	if cfg.GeoBaseURL != "" {
		meteo.GeoBaseURL = cfg.GeoBaseURL
	}
	if cfg.ForecastBaseURL != "" {
		meteo.ForecastBaseURL = cfg.ForecastBaseURL
	}
	weatherService := service.NewWeatherService(meteo, snapshotRepo, cache, logger)
	historyService := service.NewHistoryService(weatherService, snapshotRepo, logger)

	// Health checks. Postgres is load-bearing; kafka and redis degrade.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	if cache != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		})
	}

	cookies := handler.Cookies{
		Secure:     cfg.IsProduction(),
		RefreshTTL: cfg.RefreshTokenTTL,
		CSRFTTL:    cfg.CSRFCookieTTL,
		StateTTL:   cfg.OAuthStateCookieTTL,
	}

	authHandler := handler.NewAuthHandler(authService, tokens, cookies, cfg.PostLoginURL, logger)
	weatherHandler := handler.NewWeatherHandler(weatherService, historyService, logger)
	adminHandler := handler.NewAdminHandler(authService, logger)

	limits := handler.RateLimits{
		Global: pkgmiddleware.NewRateLimiter(pkgmiddleware.RateLimitConfig{
			RequestsPerSecond: cfg.GlobalRateRPS,
			Burst:             cfg.GlobalBurst,
		}),
		Auth: pkgmiddleware.NewRateLimiter(pkgmiddleware.RateLimitConfig{
			RequestsPerSecond: cfg.AuthRateRPS,
			Burst:             cfg.AuthBurst,
		}),
		Email: pkgmiddleware.NewRateLimiter(pkgmiddleware.RateLimitConfig{
			RequestsPerSecond: cfg.EmailRateRPS,
			Burst:             cfg.EmailBurst,
		}),
	}

	router := handler.NewRouter(
		authHandler,
		weatherHandler,
		adminHandler,
		authService,
		tokens,
		healthHandler,
		limits,
		logger,
		handler.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		cache:      cache,
		producer:   producer,
		mail:       mail,
		sessions:   sessionRepo,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and the session sweeper and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go a.sweepExpiredSessions(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// sweepExpiredSessions periodically deletes session rows whose expiry has
// passed. Expired sessions are already unusable; this only reclaims storage.
func (a *App) sweepExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			deleted, err := a.sessions.DeleteExpired(sweepCtx, time.Now().UTC())
			cancel()
			if err != nil {
				a.logger.Error("session sweep failed", slog.String("error", err.Error()))
				continue
			}
			if deleted > 0 {
				a.logger.Info("session sweep completed", slog.Int64("deleted", deleted))
			}
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Kafka producers (event bus, then mailer)
// 3. Redis client
// 4. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Close Kafka producers.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.mail.Close(); err != nil {
		a.logger.Error("mailer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 3. Close Redis client.
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
