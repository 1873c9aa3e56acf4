package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/brickworks-erp/brickworks/internal/app"
	jobmetrics "github.com/brickworks-erp/brickworks/internal/jobs"
	"github.com/brickworks-erp/brickworks/internal/payroll"
	"github.com/brickworks-erp/brickworks/internal/platform/cache"
	"github.com/brickworks-erp/brickworks/internal/platform/db"
	"github.com/brickworks-erp/brickworks/internal/safe"
	"github.com/brickworks-erp/brickworks/internal/shared"
	"github.com/brickworks-erp/brickworks/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	keyStore := shared.NewIdempotencyStore(pool)
	safeRepo := safe.NewRepository(pool)
	safeCache := safe.NewCache(redisClient, cfg.SafeCacheTTL)
	safeService := safe.NewService(safeRepo, safeCache, auditLogger)

	payrollRepo := payroll.NewRepository(pool)
	payrollService := payroll.NewService(payrollRepo, safeService)

	enqueuer, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := enqueuer.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	reconcileJob := jobs.NewSafeReconcileJob(safeService, payrollRepo, logger, metrics)
	integrityJob := jobs.NewSafeIntegrityJob(safeService, logger, metrics)
	dueScanJob := jobs.NewDuePaymentsScanJob(payrollService, enqueuer, cfg.NotifyEmail, logger, metrics)
	keyCleanupJob := jobs.NewKeyCleanupJob(keyStore, logger, metrics)

	reconcileTask, err := jobs.NewSafeReconcileTask(cfg.ReconcileGrace)
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewSafeIntegrityTask()
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	dueScanTask, err := jobs.NewDuePaymentsScanTask()
	if err != nil {
		logger.Error("build due scan task", slog.Any("error", err))
		os.Exit(1)
	}
	keyCleanupTask, err := jobs.NewKeyCleanupTask(cfg.KeyRetention)
	if err != nil {
		logger.Error("build key cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSafeReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskSafeIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskDuePaymentsScan, Handler: dueScanJob.Handle},
			{Type: jobs.TaskKeyCleanup, Handler: keyCleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 7 25 * *", Task: dueScanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: keyCleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
