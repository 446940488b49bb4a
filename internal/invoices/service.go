package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/customers"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

const idempotencyModule = "invoices.create"

// CustomerLookup resolves customers of a business.
type CustomerLookup interface {
	Get(ctx context.Context, businessID, id uuid.UUID) (*customers.Customer, error)
}

// IdempotencyStore records processed request keys.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// AuditRecorder writes audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached dashboard data for a business.
type CacheInvalidator interface {
	Bump(ctx context.Context, businessID uuid.UUID) error
}

// EventRecorder counts invoice mutations.
type EventRecorder interface {
	InvoiceEvent(event, status string)
}

// Deps groups Service collaborators. Only Repo and Customers are required.
type Deps struct {
	Repo        Repository
	Customers   CustomerLookup
	Idempotency IdempotencyStore
	Audit       AuditRecorder
	Cache       CacheInvalidator
	Events      EventRecorder
	Logger      *slog.Logger
	TaxName     string
	Now         func() time.Time
}

// Service implements invoice rules.
type Service struct {
	repo        Repository
	customers   CustomerLookup
	idempotency IdempotencyStore
	audit       AuditRecorder
	cache       CacheInvalidator
	events      EventRecorder
	logger      *slog.Logger
	taxName     string
	now         func() time.Time
	validate    *validator.Validate
}

// NewService constructs a Service.
func NewService(deps Deps) *Service {
	s := &Service{
		repo:        deps.Repo,
		customers:   deps.Customers,
		idempotency: deps.Idempotency,
		audit:       deps.Audit,
		cache:       deps.Cache,
		events:      deps.Events,
		logger:      deps.Logger,
		taxName:     deps.TaxName,
		now:         deps.Now,
		validate:    shared.NewValidator(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.taxName == "" {
		s.taxName = billing.DefaultTaxName
	}
	return s
}

// Create validates and stores a new invoice. A non-empty idempotencyKey that
// was already used yields shared.ErrIdempotencyConflict.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateInvoiceRequest, idempotencyKey string) (*Invoice, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	items := buildItems(req.Items)
	if err := checkDescriptions(items); err != nil {
		return nil, err
	}
	dueDate, err := ParseDate(req.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: due_date: %v", httpx.ErrValidation, err)
	}
	customer, err := s.lookupCustomer(ctx, actor.BusinessID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	status := billing.DefaultStatus
	if req.Status != "" {
		status, _ = billing.ParseStatus(req.Status)
	}
	number := strings.TrimSpace(req.Number)
	if number == "" {
		number = DefaultNumber(now)
	}
	inv := Invoice{
		ID:           uuid.New(),
		BusinessID:   actor.BusinessID,
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		Number:       number,
		Items:        items,
		Tax:          buildTax(req.Tax, s.taxName),
		Status:       status,
		DueDate:      dueDate,
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	inv.Recalculate()

	if err := s.repo.Create(ctx, inv); err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, idempotencyKey, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.afterWrite(ctx, actor, "invoice.create", "created", inv, map[string]any{
		"number": inv.Number,
		"total":  inv.Totals.Total.String(),
	})
	return &inv, nil
}

// Get returns an invoice of the business.
func (s *Service) Get(ctx context.Context, businessID, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, businessID, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// List returns one page of invoices, newest first. status may be empty.
func (s *Service) List(ctx context.Context, businessID uuid.UUID, search, status string, page shared.PageRequest) ([]Invoice, shared.Pagination, error) {
	req := ListInvoicesRequest{
		BusinessID: businessID,
		Search:     strings.TrimSpace(search),
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	}
	if status != "" {
		parsed, ok := billing.ParseStatus(status)
		if !ok {
			return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, status)
		}
		req.Status = parsed
	}
	list, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list invoices: %w", err)
	}
	if list == nil {
		list = []Invoice{}
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// All returns every invoice of the business.
func (s *Service) All(ctx context.Context, businessID uuid.UUID) ([]Invoice, error) {
	return s.repo.ListAll(ctx, businessID)
}

// PastDue lists sent invoices whose due date is before asOf, across all
// businesses.
func (s *Service) PastDue(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	return s.repo.ListPastDue(ctx, asOf)
}

// Update applies a partial update. Totals are rederived when items or tax change.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id uuid.UUID, req UpdateInvoiceRequest) (*Invoice, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	var updated Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		existing, err := repo.Get(ctx, actor.BusinessID, id)
		if err != nil {
			return err
		}
		inv := *existing
		recalc := false
		if req.CustomerID != nil {
			customer, err := s.lookupCustomer(ctx, actor.BusinessID, *req.CustomerID)
			if err != nil {
				return err
			}
			inv.CustomerID = customer.ID
			inv.CustomerName = customer.Name
		}
		if req.Number != nil {
			inv.Number = strings.TrimSpace(*req.Number)
		}
		if req.Items != nil {
			inv.Items = buildItems(*req.Items)
			if err := checkDescriptions(inv.Items); err != nil {
				return err
			}
			recalc = true
		}
		if req.Tax != nil {
			inv.Tax = buildTax(req.Tax, s.taxName)
			recalc = true
		}
		if req.Status != nil {
			next, _ := billing.ParseStatus(*req.Status)
			if !billing.CanTransition(inv.Status, next) {
				return fmt.Errorf("%w: cannot move from %s to %s", httpx.ErrValidation, inv.Status, next)
			}
			inv.Status = next
		}
		if req.DueDate != nil {
			due, err := ParseDate(*req.DueDate)
			if err != nil {
				return fmt.Errorf("%w: due_date: %v", httpx.ErrValidation, err)
			}
			inv.DueDate = due
		}
		if req.Notes != nil {
			inv.Notes = *req.Notes
		}
		if recalc {
			inv.Recalculate()
		}
		if err := repo.Update(ctx, inv); err != nil {
			return err
		}
		inv.UpdatedAt = s.now().UTC()
		updated = inv
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	s.afterWrite(ctx, actor, "invoice.update", "updated", updated, map[string]any{
		"total": updated.Totals.Total.String(),
	})
	return &updated, nil
}

// SetStatus moves an invoice to status. Every valid status is reachable from
// every other.
func (s *Service) SetStatus(ctx context.Context, actor shared.Actor, id uuid.UUID, status string) (*Invoice, error) {
	next, ok := billing.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, status)
	}
	inv, err := s.repo.Get(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, fmt.Errorf("set invoice status: %w", err)
	}
	from := inv.Status
	if !billing.CanTransition(from, next) {
		return nil, fmt.Errorf("%w: cannot move from %s to %s", httpx.ErrValidation, from, next)
	}
	if err := s.repo.UpdateStatus(ctx, actor.BusinessID, id, next); err != nil {
		return nil, fmt.Errorf("set invoice status: %w", err)
	}
	inv.Status = next
	inv.UpdatedAt = s.now().UTC()
	s.afterWrite(ctx, actor, "invoice.status", "status_changed", *inv, map[string]any{
		"from": string(from),
		"to":   string(next),
	})
	return inv, nil
}

// Delete removes an invoice.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	inv, err := s.repo.Get(ctx, actor.BusinessID, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if err := s.repo.Delete(ctx, actor.BusinessID, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	s.afterWrite(ctx, actor, "invoice.delete", "deleted", *inv, map[string]any{"number": inv.Number})
	return nil
}

func (s *Service) lookupCustomer(ctx context.Context, businessID uuid.UUID, raw string) (*customers.Customer, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: customer_id must be a uuid", httpx.ErrValidation)
	}
	customer, err := s.customers.Get(ctx, businessID, id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer not found", httpx.ErrValidation)
		}
		return nil, err
	}
	return customer, nil
}

func checkDescriptions(items []billing.LineItem) error {
	for i, item := range items {
		if item.Description == "" {
			return fmt.Errorf("%w: items[%d].description is required", httpx.ErrValidation, i)
		}
	}
	return nil
}

// afterWrite runs the side effects shared by every mutation. Failures are
// logged and never undo the write.
func (s *Service) afterWrite(ctx context.Context, actor shared.Actor, action, event string, inv Invoice, meta map[string]any) {
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:    actor.UserID,
			BusinessID: inv.BusinessID,
			Action:     action,
			Entity:     "invoice",
			EntityID:   inv.ID.String(),
			Meta:       meta,
		})
		if err != nil {
			s.logger.Warn("audit invoice", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.events != nil {
		s.events.InvoiceEvent(event, string(inv.Status))
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx, inv.BusinessID); err != nil {
			s.logger.Warn("dashboard cache bump failed", slog.String("business_id", inv.BusinessID.String()), slog.Any("error", err))
		}
	}
}
