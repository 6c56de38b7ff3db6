package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tmanjupriya-lang/inventory-management/internal/alert"
	"github.com/tmanjupriya-lang/inventory-management/internal/auth"
	"github.com/tmanjupriya-lang/inventory-management/internal/config"
	"github.com/tmanjupriya-lang/inventory-management/internal/event"
	handler "github.com/tmanjupriya-lang/inventory-management/internal/handler/http"
	"github.com/tmanjupriya-lang/inventory-management/internal/repository/postgres"
	"github.com/tmanjupriya-lang/inventory-management/internal/service"
	"github.com/tmanjupriya-lang/inventory-management/migrations"
	"github.com/tmanjupriya-lang/inventory-management/pkg/database"
	"github.com/tmanjupriya-lang/inventory-management/pkg/health"
	"github.com/tmanjupriya-lang/inventory-management/pkg/httpclient"
	pkgkafka "github.com/tmanjupriya-lang/inventory-management/pkg/kafka"
	"github.com/tmanjupriya-lang/inventory-management/pkg/middleware"
	"github.com/tmanjupriya-lang/inventory-management/pkg/tracing"
)

const serviceName = "inventory"

// App wires together all dependencies and runs the inventory service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	alertConsumer  *pkgkafka.Consumer
	dispatcher     *alert.Dispatcher
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Kafka is optional at startup; alerts are dropped with a log line while
	// brokers are unreachable.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := producer.Ping(ctx); err != nil {
		logger.Warn("kafka unreachable, continuing in degraded mode", slog.String("error", err.Error()))
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(producer, logger)
	dispatcher := alert.NewDispatcher(eventProducer, cfg.LowStockThreshold, cfg.AlertPublishTimeout, logger)

	// Repositories and services.
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewRefreshTokenRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)

	authService := service.NewAuthService(userRepo, tokenRepo, jwtManager, hasher, logger)
	adminService := service.NewAdminService(userRepo, logger)
	productService := service.NewProductService(productRepo, dispatcher, logger)
	ledgerService := service.NewLedgerService(ledgerRepo, dispatcher, eventProducer, logger)

	if err := service.EnsureAdmin(ctx, userRepo, hasher, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	a := &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		dispatcher:     dispatcher,
		tracerShutdown: tracerShutdown,
	}

	if cfg.AlertConsumerEnabled {
		if err := a.initAlertConsumer(ctx, healthHandler); err != nil {
			pool.Close()
			return nil, err
		}
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(handler.Services{
		Auth:          authService,
		Admin:         adminService,
		Products:      productService,
		Ledger:        ledgerService,
		ValidateToken: authService.ValidateAccess,
	}, healthHandler, handler.RouterConfig{
		ServiceName:       serviceName,
		CORS:              cors,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// initAlertConsumer connects Redis and builds the consumer that turns
// low-stock events into webhook notifications.
func (a *App) initAlertConsumer(ctx context.Context, healthHandler *health.Handler) error {
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rdb
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	webhookClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("alert-webhook"),
		a.logger,
	)
	notifier := alert.NewWebhookNotifier(a.cfg.AlertWebhookURL, webhookClient, a.logger)
	lowStock := event.NewLowStockHandler(notifier, rdb, a.cfg.AlertCooldown, a.logger)

	store := pkgkafka.NewRedisIdempotencyStore(rdb, "inventory:alert:seen:", 24*time.Hour)
	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
	a.alertConsumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		GroupID:      event.ConsumerGroupAlerts,
		Topic:        event.TopicStockLow,
		MaxRetries:   a.cfg.AlertConsumerMaxRetry,
		RetryBackoff: time.Second,
	}, pkgkafka.IdempotentHandler(store, lowStock.Handle, a.logger), a.dlq, a.logger)

	a.logger.Info("low-stock alert consumer configured",
		slog.String("topic", event.TopicStockLow),
		slog.Bool("webhook", a.cfg.AlertWebhookURL != ""),
	)
	return nil
}

// Run starts the HTTP server and the alert consumer, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.alertConsumer != nil {
		go func() {
			if err := a.alertConsumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("low-stock consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown stops components in dependency order: HTTP first so no new
// stock changes arrive, then pending alerts, consumers, tracing, Kafka,
// Redis and finally PostgreSQL.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error
	record := func(what string, err error) {
		if err != nil {
			a.logger.Error(what+" shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	record("http server", a.httpServer.Shutdown(httpCtx))

	alertCtx, alertCancel := context.WithTimeout(context.Background(), a.cfg.AlertPublishTimeout)
	defer alertCancel()
	record("alert dispatcher", a.dispatcher.Close(alertCtx))

	if a.alertConsumer != nil {
		record("low-stock consumer", a.alertConsumer.Close())
		record("dead-letter producer", a.dlq.Close())
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		record("tracer", a.tracerShutdown(tracerCtx))
	}

	record("kafka producer", a.producer.Close())

	if a.redis != nil {
		record("redis", a.redis.Close())
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
