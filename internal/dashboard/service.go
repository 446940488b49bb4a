// Package dashboard summarises a business's invoices for the landing view.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
)

// RecentLimit is the number of invoices listed on the dashboard.
const RecentLimit = 5

// InvoiceSource lists every invoice of a business, newest first.
type InvoiceSource interface {
	All(ctx context.Context, businessID uuid.UUID) ([]invoices.Invoice, error)
}

// CustomerCounter counts a business's customers.
type CustomerCounter interface {
	Count(ctx context.Context, businessID uuid.UUID) (int, error)
}

// Summary is the dashboard payload.
type Summary struct {
	Totals         billing.Summary `json:"totals"`
	InvoiceCount   int             `json:"invoice_count"`
	CustomerCount  int             `json:"customer_count"`
	RecentInvoices []RecentInvoice `json:"recent_invoices"`
}

// RecentInvoice is a row of the recent invoices list.
type RecentInvoice struct {
	ID           uuid.UUID       `json:"id"`
	Number       string          `json:"number"`
	CustomerName string          `json:"customer_name"`
	Status       billing.Status  `json:"status"`
	Total        decimal.Decimal `json:"total"`
	DueDate      invoices.Date   `json:"due_date"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Service builds and caches dashboard summaries.
type Service struct {
	invoices  InvoiceSource
	customers CustomerCounter
	cache     *Cache
	logger    *slog.Logger
	group     singleflight.Group
}

// NewService wires the summary sources. cache may be nil.
func NewService(invoiceSource InvoiceSource, customers CustomerCounter, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoices: invoiceSource, customers: customers, cache: cache, logger: logger}
}

// Summary returns the cached summary of the business, computing it on a miss.
// Concurrent misses for the same version share one computation.
func (s *Service) Summary(ctx context.Context, businessID uuid.UUID) (Summary, error) {
	key, err := s.cache.SummaryKey(ctx, businessID)
	if err != nil {
		s.logger.Warn("dashboard cache version unavailable", slog.Any("error", err))
		return s.compute(ctx, businessID)
	}
	res := s.group.DoChan(key, func() (interface{}, error) {
		var out Summary
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
			return s.compute(ctx, businessID)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case r := <-res:
		if r.Err != nil {
			return Summary{}, r.Err
		}
		return r.Val.(Summary), nil
	}
}

func (s *Service) compute(ctx context.Context, businessID uuid.UUID) (Summary, error) {
	var (
		all           []invoices.Invoice
		customerCount int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.invoices.All(gctx, businessID)
		if err != nil {
			return fmt.Errorf("list invoices: %w", err)
		}
		all = list
		return nil
	})
	g.Go(func() error {
		n, err := s.customers.Count(gctx, businessID)
		if err != nil {
			return fmt.Errorf("count customers: %w", err)
		}
		customerCount = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Totals:         billing.Aggregate(all),
		InvoiceCount:   len(all),
		CustomerCount:  customerCount,
		RecentInvoices: make([]RecentInvoice, 0, RecentLimit),
	}
	for i := 0; i < len(all) && i < RecentLimit; i++ {
		inv := all[i]
		summary.RecentInvoices = append(summary.RecentInvoices, RecentInvoice{
			ID:           inv.ID,
			Number:       inv.Number,
			CustomerName: inv.CustomerName,
			Status:       inv.Status,
			Total:        inv.Totals.Total,
			DueDate:      inv.DueDate,
			CreatedAt:    inv.CreatedAt,
		})
	}
	return summary, nil
}
