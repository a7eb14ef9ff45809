package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-sla-engine/internal/api/http"
	"github.com/spec-kit/ticket-sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sla-engine/internal/auth"
	"github.com/spec-kit/ticket-sla-engine/internal/config"
	"github.com/spec-kit/ticket-sla-engine/internal/events"
	"github.com/spec-kit/ticket-sla-engine/internal/observability"
	"github.com/spec-kit/ticket-sla-engine/internal/persistence"
	"github.com/spec-kit/ticket-sla-engine/internal/remote"
	"github.com/spec-kit/ticket-sla-engine/internal/repository"
	"github.com/spec-kit/ticket-sla-engine/internal/service"
	"github.com/spec-kit/ticket-sla-engine/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	metrics.Serve(cfg.App.MetricsAddr, logger)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	slaRepo := repository.NewSLARepository(pool)
	stateRepo := repository.NewSyncStateRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger, metrics,
		service.NewLogSink(logger),
		service.NewRedisSink(redis, cfg.Redis.NotifyChannel),
	)
	notifications.RegisterHandlers()

	ingest := service.NewIngestService(service.IngestDependencies{
		TicketRepo: ticketRepo,
		SLARepo:    slaRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
		Source:     cfg.Remote.Source,
	})

	remoteClient := remote.NewClient(cfg.Remote, nil)
	sync := service.NewSyncService(service.SyncDependencies{
		Source:     remoteClient,
		RemoteCfg:  cfg.Remote,
		SyncCfg:    cfg.Sync,
		Ingest:     ingest,
		StateRepo:  stateRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})

	sla := service.NewSLAService(slaRepo, notifications, cfg.SLA, logger, metrics)

	// Gate startup on an initial health check, then run the one-time bulk
	// import before incremental polling takes over.
	if err := sync.HealthCheck(ctx); err != nil {
		logger.Warn("initial health check failed; polling stays gated until a later check passes", zap.Error(err))
	} else if _, err := sync.BulkImport(ctx, false); err != nil {
		logger.Error("bulk import failed", zap.Error(err))
	}

	scheduler := worker.NewScheduler(logger,
		worker.Task{
			Name:     "sync_poll",
			Interval: cfg.Sync.PollInterval(),
			Run: func(ctx context.Context) error {
				_, err := sync.PollOnce(ctx)
				return err
			},
		},
		worker.Task{
			Name:     "sla_evaluation",
			Interval: cfg.SLA.EvalInterval(),
			Run: func(ctx context.Context) error {
				_, err := sla.EvaluateOnce(ctx)
				return err
			},
		},
		worker.Task{
			Name:     "health_check",
			Interval: cfg.Sync.HealthCheckInterval(),
			Run:      sync.HealthCheck,
		},
	)
	scheduler.Start(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, 60)
	authMiddleware := auth.NewMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Sync:           handlers.NewSyncHandler(sync),
		Tickets:        handlers.NewTicketsHandler(ticketRepo),
		SLA:            handlers.NewSLAHandler(slaRepo, sla),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metrics.Shutdown(shutdownCtx)
	scheduler.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
