package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tahseel-hq/tahseel/internal/app"
	"github.com/tahseel-hq/tahseel/internal/calendar"
	"github.com/tahseel-hq/tahseel/internal/observability"
	"github.com/tahseel-hq/tahseel/internal/platform/db"
	"github.com/tahseel-hq/tahseel/internal/reminders"
	"github.com/tahseel-hq/tahseel/internal/shared"
	"github.com/tahseel-hq/tahseel/internal/workflow"
	"github.com/tahseel-hq/tahseel/jobs"
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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	workflowMetrics := observability.NewWorkflowMetrics(observability.NewMetrics().Registerer())
	auditLogger := shared.NewAuditLogger(pool)
	calendars := workflow.StaticCalendars{Default: calendar.UAEDefault()}

	workflowRepo := workflow.NewRepository(pool)
	engine := workflow.NewService(workflowRepo, auditLogger, calendars, logger, workflowMetrics, workflow.ServiceConfig{
		MaxBatchSize: cfg.MaxBatchSize,
	})

	queueClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	remindersRepo := reminders.NewRepository(pool)
	remindersService := reminders.NewService(logger, remindersRepo, queueClient, calendars)

	sender := jobs.LogSender{Logger: logger}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypePaymentBatch, Handler: jobs.HandlePaymentBatch(engine, logger)},
			{Type: jobs.TaskTypeOverdueSweep, Handler: jobs.HandleOverdueSweep(workflowRepo, engine, logger)},
			{Type: jobs.TaskTypeReminderDispatch, Handler: jobs.HandleReminderDispatch(remindersService, cfg.ReminderBatchSize, logger)},
			{Type: jobs.TaskTypeSendReminder, Handler: jobs.HandleSendReminder(sender, logger)},
		},
		Cron: []jobs.CronRegistration{
			// Hourly overdue sweep keeps stored statuses honest; reminder
			// dispatch runs daily at 05:30 UTC, 09:30 in Dubai.
			{Spec: "0 * * * *", Task: jobs.NewOverdueSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 5 * * *", Task: jobs.NewReminderDispatchTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
