package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/invoicedesk/invoicedesk/internal/app"
	jobmetrics "github.com/invoicedesk/invoicedesk/internal/jobs"
	"github.com/invoicedesk/invoicedesk/jobs"
)

func newWorkerCommand(rt *env) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process background jobs and run the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.InTestMode() {
				rt.logger.Info("test mode detected, skipping worker startup")
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, rt.cfg, rt.logger, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091", "address serving worker /metrics; empty disables")
	return cmd
}

func runWorker(ctx context.Context, cfg *app.Config, logger *slog.Logger, metricsAddr string) error {
	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close(logger)

	metrics := jobmetrics.NewMetrics(svc.metrics.Registerer())
	sendJob := &jobs.InvoiceSendJob{Documents: svc.documents, Renderer: svc.renderer, Mailer: svc.mailer, Logger: logger, Metrics: metrics}
	mailJob := &jobs.SendEmailJob{Mailer: svc.mailer, Logger: logger, Metrics: metrics}
	reminderJob := &jobs.DueReminderJob{
		Invoices:   svc.invoices,
		Businesses: svc.businessRepo,
		Templates:  svc.templates,
		Mailer:     svc.mailer,
		Logger:     logger,
		Metrics:    metrics,
	}
	cleanupJob := &jobs.IdempotencyCleanupJob{Store: svc.idempotency, Logger: logger, Metrics: metrics}

	reminderTask, err := jobs.NewDueReminderTask(jobs.DueReminderPayload{})
	if err != nil {
		return err
	}
	reminderCron := cfg.ReminderCron
	if reminderCron == "" {
		reminderCron = jobs.DefaultReminderCron
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts(cfg),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceSend, Handler: sendJob.Handle},
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
			{Type: jobs.TaskInvoiceDueReminder, Handler: reminderJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: reminderCron, Task: reminderTask},
			{Spec: jobs.DefaultCleanupCron, Task: jobs.NewIdempotencyCleanupTask()},
		},
	})
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", svc.metrics.Handler())
		metricsServer := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
