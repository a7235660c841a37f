package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/api"
	"github.com/notifyhub/lotdispatch/internal/api/handler"
	"github.com/notifyhub/lotdispatch/internal/config"
	"github.com/notifyhub/lotdispatch/internal/db"
	"github.com/notifyhub/lotdispatch/internal/dispatch"
	"github.com/notifyhub/lotdispatch/internal/logging"
	"github.com/notifyhub/lotdispatch/internal/metrics"
	"github.com/notifyhub/lotdispatch/internal/provider"
	"github.com/notifyhub/lotdispatch/internal/queue"
	"github.com/notifyhub/lotdispatch/internal/ratelimiter"
	"github.com/notifyhub/lotdispatch/internal/repository"
	"github.com/notifyhub/lotdispatch/internal/service"
	"github.com/notifyhub/lotdispatch/internal/worker"
)

func main() {
	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := repository.NewPgQueueRepository(pool)
	contacts := repository.NewPgContactRepository(pool)
	triggers := queue.New(cfg.TriggerQueueSize)
	client := provider.NewHTTPClient(logger, m.ProviderHook())

	opts := []dispatch.Option{
		dispatch.WithLimiter(ratelimiter.New(cfg.ProviderRateLimit)),
		dispatch.WithHooks(m.DispatchHooks()),
	}
	if cfg.DispatchGroupLock {
		opts = append(opts, dispatch.WithLeaser(repository.NewPgLeaser(pool)))
	}
	dispatcher := dispatch.NewDispatcher(store, contacts, client, logger, opts...)
	runner := worker.NewRunner(dispatcher)
	svc := service.NewQueueService(store, contacts, triggers, logger)

	// ---- background workers ----
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	workers := worker.NewPool(
		worker.NewSweepWorker(runner, cfg.DispatchInterval, logger),
		worker.NewTriggerWorker(runner, triggers, logger),
	)
	workers.Start(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Service:  svc,
		Runner:   runner,
		Triggers: triggers,
		Metrics:  m,
		Gatherer: reg,
		Health:   handler.NewHealthHandler(pool.Ping),
		Logger:   logger,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancelWorkers()
	workers.Wait()

	logger.Info("server stopped cleanly")
}
