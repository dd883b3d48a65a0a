package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-sla/internal/api/http"
	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/evidence"
	"github.com/spec-kit/helpdesk-sla/internal/guard"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/repository/memory"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	"github.com/spec-kit/helpdesk-sla/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	readiness := map[string]handlers.Pinger{}
	var (
		store  repository.Store
		agents repository.AgentRepository
		enroll auth.EnrollFunc
	)
	if pg.Enabled() {
		agents = repository.NewCachedAgentDirectory(
			repository.NewAgentRepository(pg.Pool),
			redis.Client,
			cfg.Redis.NameCacheTTL,
			observability.WithComponent(logger, "agent_cache"),
		)
		store = repository.NewPostgresStore(pg.Pool, agents)
		readiness["postgres"] = pg
	} else {
		// tokens identify callers; first sight enrolls them so assignment resolves
		mem := memory.NewSeeded()
		store = mem
		enroll = mem.EnrollAgent
	}

	var publisher service.Publisher
	if redis.Enabled() {
		publisher = redis.Client
		readiness["redis"] = redis
	}

	var evidenceStore evidence.Store = evidence.NewMemoryStore()
	if cfg.Evidence.Enabled() {
		minioStore, err := evidence.NewMinioStore(cfg.Evidence, observability.WithComponent(logger, "evidence"))
		if err != nil {
			logger.Fatal("failed to init evidence storage", zap.Error(err))
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			logger.Warn("evidence bucket unavailable", zap.Error(err))
		}
		evidenceStore = minioStore
		readiness["evidence"] = minioStore
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, publisher, cfg.Redis.ChangesChannel,
		observability.WithComponent(logger, "notifications"), metrics)
	worker.StartNotificationWorker(notifications)

	deps := service.Dependencies{
		Store:      store,
		Guard:      guard.New(store.Tickets(), observability.WithComponent(logger, "guard"), metrics),
		Clock:      sla.RealClock(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     observability.WithComponent(logger, "tickets"),
		SLA:        cfg.SLA,
	}
	lifecycle := service.NewLifecycleService(deps, evidenceStore)
	slaService := service.NewSLAService(deps)
	timelineService := service.NewTimelineService(deps)

	go worker.RunBreachSweeper(ctx, slaService, cfg.SLA.BreachSweepInterval, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)

	app := httptransport.NewApp(cfg.App.Name, int(cfg.Evidence.MaxBytes)+1<<20)
	httptransport.RegisterMiddlewares(app, logger, metrics, time.Duration(cfg.App.RequestTimeoutSeconds)*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Tickets:        handlers.NewTicketsHandler(lifecycle, slaService, timelineService, cfg.Evidence.MaxBytes),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, agents).WithEnrollment(enroll),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
