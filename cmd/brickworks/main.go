package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/brickworks-erp/brickworks/internal/app"
	"github.com/brickworks-erp/brickworks/internal/auth"
	"github.com/brickworks-erp/brickworks/internal/expenses"
	"github.com/brickworks-erp/brickworks/internal/invoices"
	"github.com/brickworks-erp/brickworks/internal/observability"
	"github.com/brickworks-erp/brickworks/internal/payroll"
	"github.com/brickworks-erp/brickworks/internal/platform/cache"
	"github.com/brickworks-erp/brickworks/internal/platform/db"
	"github.com/brickworks-erp/brickworks/internal/projects"
	"github.com/brickworks-erp/brickworks/internal/safe"
	"github.com/brickworks-erp/brickworks/internal/shared"
	"github.com/brickworks-erp/brickworks/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	tokens := shared.NewTokenManager(redisClient, cfg.TokenSecret, cfg.TokenTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, tokens)

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
	scheduleReconcile := func(ctx context.Context) error {
		_, err := enqueuer.EnqueueSafeReconcile(ctx, cfg.ReconcileGrace)
		return err
	}

	safeRepo := safe.NewRepository(dbpool)
	safeCache := safe.NewCache(redisClient, cfg.SafeCacheTTL)
	safeService := safe.NewService(safeRepo, safeCache, auditLogger)
	safeHandler := safe.NewHandler(logger, safeService, idempotencyStore, metrics, scheduleReconcile)

	projectsRepo := projects.NewRepository(dbpool)
	projectsService := projects.NewService(projectsRepo, auditLogger)
	projectsHandler := projects.NewHandler(logger, projectsService)

	payrollRepo := payroll.NewRepository(dbpool)
	payrollService := payroll.NewService(payrollRepo, safeService)
	payrollHandler := payroll.NewHandler(logger, payrollService, projectsService)

	invoicesRepo := invoices.NewRepository(dbpool)
	invoicesService := invoices.NewService(invoicesRepo, projectsService, safeService)
	invoicesHandler := invoices.NewHandler(logger, invoicesService)

	expensesRepo := expenses.NewRepository(dbpool)
	expensesService := expenses.NewService(expensesRepo, safeService)
	expensesHandler := expenses.NewHandler(logger, expensesService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Tokens:          tokens,
		AuthHandler:     authHandler,
		SafeHandler:     safeHandler,
		PayrollHandler:  payrollHandler,
		ProjectsHandler: projectsHandler,
		InvoicesHandler: invoicesHandler,
		ExpensesHandler: expensesHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
