// Package app wires together all dependencies and runs the enrollment
// platform.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Emperor1p/nclexkeysinternational/internal/auth"
	"github.com/Emperor1p/nclexkeysinternational/internal/config"
	"github.com/Emperor1p/nclexkeysinternational/internal/event"
	"github.com/Emperor1p/nclexkeysinternational/internal/gateway"
	gatewaymock "github.com/Emperor1p/nclexkeysinternational/internal/gateway/mock"
	"github.com/Emperor1p/nclexkeysinternational/internal/gateway/paystack"
	handler "github.com/Emperor1p/nclexkeysinternational/internal/handler/http"
	"github.com/Emperor1p/nclexkeysinternational/internal/notification"
	"github.com/Emperor1p/nclexkeysinternational/internal/repository/postgres"
	redisrepo "github.com/Emperor1p/nclexkeysinternational/internal/repository/redis"
	"github.com/Emperor1p/nclexkeysinternational/internal/service"
	"github.com/Emperor1p/nclexkeysinternational/internal/storage/local"
	"github.com/Emperor1p/nclexkeysinternational/migrations"
	"github.com/Emperor1p/nclexkeysinternational/pkg/database"
	"github.com/Emperor1p/nclexkeysinternational/pkg/health"
	pkgkafka "github.com/Emperor1p/nclexkeysinternational/pkg/kafka"
	"github.com/Emperor1p/nclexkeysinternational/pkg/middleware"
	"github.com/Emperor1p/nclexkeysinternational/pkg/tracing"
)

// App holds the long-lived resources of a running instance.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	consumers      []*pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "nclexkeys",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pgCfg := database.PostgresConfig{
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
	database.RegisterPoolMetrics(pool, "nclex")

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)

	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	accessExpiry, err := time.ParseDuration(cfg.JWTAccessExpiry)
	if err != nil {
		return nil, fmt.Errorf("parse JWT access expiry %q: %w", cfg.JWTAccessExpiry, err)
	}
	refreshExpiry, err := time.ParseDuration(cfg.JWTRefreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("parse JWT refresh expiry %q: %w", cfg.JWTRefreshExpiry, err)
	}

	contentStorage, err := local.New(cfg.StorageRoot, cfg.StorageBaseURL)
	if err != nil {
		return nil, fmt.Errorf("init content storage: %w", err)
	}

	gw, verifier := buildGateway(cfg, logger)

	// Dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, accessExpiry, refreshExpiry)
	userRepo := postgres.NewUserRepository(pool)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(pool)
	emailTokenRepo := postgres.NewEmailTokenRepository(pool)
	intentRepo := postgres.NewPaymentIntentRepository(pool)
	codeRepo := postgres.NewCodeRepository(pool)
	courseRepo := postgres.NewCourseRepository(pool)
	flowRepo := redisrepo.NewFlowRepository(redisClient, cfg.FlowTTL())
	eventProducer := event.NewProducer(producer, logger)

	paymentService := service.NewPaymentService(intentRepo, gw, eventProducer, logger)
	userService := service.NewUserService(userRepo, refreshTokenRepo, emailTokenRepo,
		intentRepo, codeRepo, jwtManager, eventProducer, logger)
	enrollmentService := service.NewEnrollmentService(flowRepo, paymentService, userService, eventProducer, logger)
	codeService := service.NewCodeService(codeRepo, logger)
	courseService := service.NewCourseService(courseRepo, contentStorage, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterConfig{
		Users:           userService,
		Payments:        paymentService,
		Enrollments:     enrollmentService,
		Codes:           codeService,
		Courses:         courseService,
		JWTManager:      jwtManager,
		WebhookVerifier: verifier,
		Health:          healthHandler,
		CORS:            corsCfg,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitPerSecond,
			Burst:             cfg.RateLimitBurst,
			TTL:               3 * time.Minute,
		},
		PprofCIDRs: cfg.PprofAllowedCIDRs,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Notification consumer group: one consumer per subscribed topic, all
	// sharing the mailer and the dedup store, failures dead-lettered.
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	notifier := notification.New(
		notification.NewLogMailer(logger),
		pkgkafka.NewMemoryIdempotencyStore(24*time.Hour),
		logger,
	)
	var consumers []*pkgkafka.Consumer
	for _, topic := range notification.Topics() {
		consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: "nclex-notification",
			Topic:   topic,
		}, notifier.Handle, logger).WithDLQ(dlq)
		consumers = append(consumers, consumer)
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		consumers:      consumers,
		dlq:            dlq,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// buildGateway selects the configured payment gateway. The mock gateway has
// no webhook signatures, so its verifier is nil and the webhook endpoint
// rejects everything.
func buildGateway(cfg *config.Config, logger *slog.Logger) (gateway.Gateway, handler.WebhookVerifier) {
	if cfg.PaymentGateway == "mock" {
		logger.Warn("using mock payment gateway; charges auto-complete")
		return gatewaymock.New(), nil
	}

	client := paystack.New(paystack.Config{
		SecretKey:   cfg.PaystackSecretKey,
		PublicKey:   cfg.PaystackPublicKey,
		BaseURL:     cfg.PaystackBaseURL,
		CallbackURL: cfg.PaystackCallbackURL,
	}, logger)
	return client, client
}

// Run starts the HTTP server and the notification consumers and blocks
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	defer stopConsumers()
	for _, consumer := range a.consumers {
		go func(c *pkgkafka.Consumer) {
			if err := c.Start(consumerCtx); err != nil {
				a.logger.Error("notification consumer stopped", slog.String("error", err.Error()))
			}
		}(consumer)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("environment", a.cfg.Environment),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown stops components in dependency order: drain HTTP first, then
// flush spans, then close the producer and the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d error(s): %w", len(errs), errors.Join(errs...))
	}

	a.logger.Info("shutdown complete")
	return nil
}
