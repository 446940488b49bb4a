package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/invoicedesk/invoicedesk/internal/app"
	"github.com/invoicedesk/invoicedesk/internal/businesses"
	"github.com/invoicedesk/invoicedesk/internal/customers"
	"github.com/invoicedesk/invoicedesk/internal/dashboard"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/invoices/export"
	"github.com/invoicedesk/invoicedesk/internal/mail"
	"github.com/invoicedesk/invoicedesk/internal/observability"
	"github.com/invoicedesk/invoicedesk/internal/platform/cache"
	"github.com/invoicedesk/invoicedesk/internal/platform/db"
	"github.com/invoicedesk/invoicedesk/internal/shared"
	"github.com/invoicedesk/invoicedesk/internal/view"
	"github.com/invoicedesk/invoicedesk/report"
)

// services holds everything both the server and the worker need.
type services struct {
	pool         *pgxpool.Pool
	redis        *redis.Client
	metrics      *observability.Metrics
	templates    *view.Engine
	gotenberg    *report.Client
	dashCache    *dashboard.Cache
	idempotency  *shared.IdempotencyStore
	businessRepo businesses.Repository
	businesses   *businesses.Service
	customers    *customers.Service
	invoices     *invoices.Service
	documents    export.Builder
	renderer     *export.Renderer
	mailer       *mail.SMTPMailer
}

func (s *services) Close(logger *slog.Logger) {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func redisOpts(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

func buildServices(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*services, error) {
	s := &services{}
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: time.Hour})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s.pool = pool

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		s.Close(logger)
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	s.redis = redisClient

	money, err := view.NewMoneyFormatter(cfg.InvoiceLocale, cfg.InvoiceCurrency)
	if err != nil {
		s.Close(logger)
		return nil, err
	}
	s.templates, err = view.NewEngine(money)
	if err != nil {
		s.Close(logger)
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.mailer, err = mail.NewSMTPMailer(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		s.Close(logger)
		return nil, err
	}

	s.metrics = observability.NewMetrics()
	s.gotenberg = report.NewClient(cfg.GotenbergURL, &http.Client{Timeout: 30 * time.Second})
	s.dashCache = dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	s.idempotency = shared.NewIdempotencyStore(pool)

	s.businessRepo = businesses.NewRepository(pool)
	s.businesses = businesses.NewService(s.businessRepo, s.dashCache, logger)
	s.customers = customers.NewService(customers.NewRepository(pool), s.dashCache, logger)
	s.invoices = invoices.NewService(invoices.Deps{
		Repo:        invoices.NewRepository(pool),
		Customers:   s.customers,
		Idempotency: s.idempotency,
		Audit:       shared.NewAuditLogger(pool),
		Cache:       s.dashCache,
		Events:      s.metrics,
		Logger:      logger,
		TaxName:     cfg.TaxName,
	})
	s.documents = export.Builder{Invoices: s.invoices, Businesses: s.businessRepo, Customers: s.customers}
	s.renderer = export.NewRenderer(s.templates, s.gotenberg, logger)
	return s, nil
}
