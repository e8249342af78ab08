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

	"github.com/tahseel-hq/tahseel/internal/app"
	"github.com/tahseel-hq/tahseel/internal/calendar"
	"github.com/tahseel-hq/tahseel/internal/customers"
	"github.com/tahseel-hq/tahseel/internal/gateway"
	"github.com/tahseel-hq/tahseel/internal/invoices"
	"github.com/tahseel-hq/tahseel/internal/observability"
	"github.com/tahseel-hq/tahseel/internal/platform/cache"
	"github.com/tahseel-hq/tahseel/internal/platform/db"
	"github.com/tahseel-hq/tahseel/internal/shared"
	"github.com/tahseel-hq/tahseel/internal/workflow"
	"github.com/tahseel-hq/tahseel/jobs"
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

	redisClient, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, PingTimeout: cfg.RedisPingTimeout})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	workflowMetrics := observability.NewWorkflowMetrics(metrics.Registerer())

	apiKeys := shared.NewAPIKeyStore(dbpool)
	idempotency := shared.NewIdempotencyStore(dbpool)
	auditLogger := shared.NewAuditLogger(dbpool)

	calendars := workflow.StaticCalendars{Default: calendar.UAEDefault()}

	workflowRepo := workflow.NewRepository(dbpool)
	engine := workflow.NewService(workflowRepo, auditLogger, calendars, logger, workflowMetrics, workflow.ServiceConfig{
		MaxBatchSize: cfg.MaxBatchSize,
	})
	workflowHandler := workflow.NewHandler(logger, engine, idempotency)

	customersRepo := customers.NewRepository(dbpool)
	customersService := customers.NewService(logger, customersRepo)
	customersHandler := customers.NewHandler(logger, customersService)

	invoicesRepo := invoices.NewRepository(dbpool)
	invoicesService := invoices.NewService(logger, invoicesRepo, engine)
	invoicesHandler := invoices.NewHandler(logger, invoicesService)

	replays := gateway.NewReplayCache(redisClient)
	gatewayHandler := gateway.NewHandler(logger, cfg.WebhookSecret, replays, engine, workflowMetrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		KeyResolver:      apiKeys,
		WorkflowHandler:  workflowHandler,
		CustomersHandler: customersHandler,
		InvoicesHandler:  invoicesHandler,
		GatewayHandler:   gatewayHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
