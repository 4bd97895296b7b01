package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/infra/config"
	"github.com/arklim/skills-audit/internal/infra/database"
	"github.com/arklim/skills-audit/internal/infra/identity"
	kafkainfra "github.com/arklim/skills-audit/internal/infra/kafka"
	"github.com/arklim/skills-audit/internal/infra/logger"
	redisinfra "github.com/arklim/skills-audit/internal/infra/redis"
	"github.com/arklim/skills-audit/internal/infra/scheduler"
	"github.com/arklim/skills-audit/internal/infra/security"
	"github.com/arklim/skills-audit/internal/infra/telemetry"
	"github.com/arklim/skills-audit/internal/repository/memory"
	postgresrepo "github.com/arklim/skills-audit/internal/repository/postgres"
	redisrepo "github.com/arklim/skills-audit/internal/repository/redis"
	"github.com/arklim/skills-audit/internal/transport/http/handlers"
	"github.com/arklim/skills-audit/internal/transport/http/middleware"
	"github.com/arklim/skills-audit/internal/transport/http/routes"
	"github.com/arklim/skills-audit/internal/usecase"
)

type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	producer  *kafkainfra.Producer
	tracer    *telemetry.TracerProvider
	scheduler *scheduler.Scheduler
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.release(context.Background())
		}
	}()

	if cfg.Telemetry.TracingEnabled {
		a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	store, err := a.documentStore(ctx)
	if err != nil {
		return nil, err
	}

	attempts, err := a.rateLimitStore(ctx)
	if err != nil {
		return nil, err
	}

	events := a.eventPublisher(metrics)

	keys, err := security.NewKeyProvider(cfg.App.Env, cfg.Identity.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	tokens := security.NewTokenManager(keys, cfg.Identity.Issuer, cfg.Identity.TokenTTL)

	degradation := domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.RateLimit.DegradationMode))
	provider, err := a.identityProvider(store, attempts, tokens, degradation)
	if err != nil {
		return nil, err
	}

	policy := security.PasswordPolicyWithStrength(cfg.Password.MinStrengthScore)
	services := routes.ServiceSet{
		Auth:          usecase.NewAuthSessionService(provider, store, events, policy, metrics, log),
		Users:         usecase.NewUserService(store, events, cfg.App.Departments, log),
		Skills:        usecase.NewSkillService(store, events, log),
		Trainings:     usecase.NewTrainingService(store, log),
		Notifications: usecase.NewNotificationService(store),
	}

	var jobs handlers.JobRunner
	if cfg.Reminders.Enabled {
		reminders := usecase.NewReminderService(store, events, metrics, cfg.Reminders.Lookahead, log)
		a.scheduler = scheduler.New(log)
		err := a.scheduler.Add(routes.ReminderJobName, cfg.Reminders.Schedule, func(ctx context.Context) error {
			_, err := reminders.Run(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("schedule reminders: %w", err)
		}
		jobs = a.scheduler
	}

	deps := routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		RateLimiter:    middleware.NewRateLimiter(attempts, degradation, log),
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Services:       services,
		PasswordPolicy: policy,
		TokenManager:   tokens,
		Jobs:           jobs,
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	ok = true
	return a, nil
}

func (a *Application) documentStore(ctx context.Context) (port.DocumentStore, error) {
	if a.cfg.Storage.Backend == config.StorageBackendMemory {
		a.logger.Warn("using in-memory document store, data is lost on restart")
		return memory.NewDocumentStore(), nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool
	if err := postgresrepo.EnsureSchema(ctx, pool); err != nil {
		return nil, err
	}
	return postgresrepo.NewDocumentStore(pool), nil
}

func (a *Application) rateLimitStore(ctx context.Context) (port.RateLimitStore, error) {
	if !a.cfg.Redis.Enabled {
		a.logger.Info("redis disabled, rate limits are kept in process")
		return memory.NewRateLimitStore(), nil
	}

	client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = client
	return redisrepo.NewRateLimitRepository(client.Client(), a.cfg.Redis.RateLimitPrefix), nil
}

func (a *Application) eventPublisher(metrics *telemetry.Metrics) port.EventPublisher {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	producer.OnError(metrics.ObserveEventFailure)
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) identityProvider(store port.DocumentStore, attempts port.RateLimitStore, tokens *security.TokenManager, degradation domain.DegradationPolicy) (port.IdentityProvider, error) {
	if a.cfg.Identity.Provider == config.IdentityProviderREST {
		provider, err := identity.NewRESTProvider(a.cfg.Identity, nil, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init identity provider: %w", err)
		}
		return provider, nil
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      a.cfg.Argon2.Memory,
		Iterations:  a.cfg.Argon2.Iterations,
		Parallelism: a.cfg.Argon2.Parallelism,
		SaltLength:  a.cfg.Argon2.SaltLength,
		KeyLength:   a.cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	return identity.NewLocalProvider(store, hasher, tokens, attempts, identity.LocalOptions{
		MaxFailedAttempts: a.cfg.RateLimit.FailedLoginMaxAttempts,
		FailedWindow:      a.cfg.RateLimit.FailedLoginWindow,
		Degradation:       degradation,
	}, a.logger), nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer a.release(shutdownCtx)

	if a.scheduler != nil {
		a.scheduler.Start()
		a.logger.Info("reminder job scheduled", zap.String("schedule", a.cfg.Reminders.Schedule))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting skills audit API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("storage", a.cfg.Storage.Backend),
		zap.String("identity_provider", a.cfg.Identity.Provider),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// release stops background work and closes connections in reverse start order.
func (a *Application) release(ctx context.Context) {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Warn("scheduler stop", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown", zap.Error(err))
		}
	}
}
