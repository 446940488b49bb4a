package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/invoicedesk/invoicedesk/internal/app"
	"github.com/invoicedesk/invoicedesk/internal/auth"
	"github.com/invoicedesk/invoicedesk/internal/businesses"
	"github.com/invoicedesk/invoicedesk/internal/customers"
	"github.com/invoicedesk/invoicedesk/internal/dashboard"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/invoices/export"
	"github.com/invoicedesk/invoicedesk/internal/shared"
	"github.com/invoicedesk/invoicedesk/jobs"
	"github.com/invoicedesk/invoicedesk/report"
)

func newServeCommand(rt *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.InTestMode() {
				rt.logger.Info("test mode detected, skipping runtime startup")
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt.cfg, rt.logger)
		},
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close(logger)

	if err := svc.dashCache.ListenForInvalidation(ctx, dashboard.BumpChannel); err != nil {
		logger.Warn("dashboard invalidation listener", slog.Any("error", err))
	}

	sessionManager := shared.NewSessionManager(svc.redis, "invoicedesk_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	guard := auth.Middleware{Ownership: svc.businesses, Logger: logger}

	authService := auth.NewService(auth.NewRepository(svc.pool), svc.businesses)
	jobClient := jobs.NewClient(redisOpts(cfg))
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts(cfg))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthGuard:        guard,
		AuthHandler:      auth.NewHandler(logger, authService, sessionManager, csrfManager, guard),
		BusinessHandler:  businesses.NewHandler(logger, svc.businesses),
		CustomerHandler:  customers.NewHandler(logger, svc.customers),
		InvoiceHandler:   invoices.NewHandler(logger, svc.invoices, jobClient),
		ExportHandler:    export.NewHandler(logger, svc.documents, svc.renderer),
		DashboardHandler: dashboard.NewHandler(logger, dashboard.NewService(svc.invoices, svc.customers, svc.dashCache, logger)),
		ReportHandler:    report.NewHandler(svc.gotenberg, logger),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          svc.metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
