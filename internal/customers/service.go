package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// CacheInvalidator drops cached dashboard data for a business.
type CacheInvalidator interface {
	Bump(ctx context.Context, businessID uuid.UUID) error
}

// Service implements customer rules.
type Service struct {
	repo     Repository
	validate *validator.Validate
	cache    CacheInvalidator
	logger   *slog.Logger
}

// NewService constructs a Service. cache may be nil.
func NewService(repo Repository, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validate: shared.NewValidator(), cache: cache, logger: logger}
}

// Create adds a customer to the business.
func (s *Service) Create(ctx context.Context, businessID uuid.UUID, req CreateCustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	now := time.Now().UTC()
	customer := Customer{
		ID:         uuid.New(),
		BusinessID: businessID,
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Company:    strings.TrimSpace(req.Company),
		Phone:      req.Phone,
		Address:    req.Address,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.bump(ctx, businessID)
	return &customer, nil
}

// Get returns a customer of the business.
func (s *Service) Get(ctx context.Context, businessID, id uuid.UUID) (*Customer, error) {
	customer, err := s.repo.Get(ctx, businessID, id)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return customer, nil
}

// List returns one page of customers, newest first.
func (s *Service) List(ctx context.Context, businessID uuid.UUID, search string, page shared.PageRequest) ([]Customer, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, ListCustomersRequest{
		BusinessID: businessID,
		Search:     strings.TrimSpace(search),
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	})
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list customers: %w", err)
	}
	if list == nil {
		list = []Customer{}
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Count returns how many customers the business has.
func (s *Service) Count(ctx context.Context, businessID uuid.UUID) (int, error) {
	return s.repo.Count(ctx, businessID)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, businessID, id uuid.UUID, req UpdateCustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	var updated *Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if updates := req.updates(); len(updates) > 0 {
			if err := repo.Update(ctx, businessID, id, updates); err != nil {
				return err
			}
		}
		var err error
		updated, err = repo.Get(ctx, businessID, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	s.bump(ctx, businessID)
	return updated, nil
}

// Delete removes a customer that no invoice references.
func (s *Service) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, businessID, id); err != nil {
		if errors.Is(err, httpx.ErrConflict) {
			return fmt.Errorf("delete customer: %w: customer has invoices", httpx.ErrConflict)
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	s.bump(ctx, businessID)
	return nil
}

func (s *Service) bump(ctx context.Context, businessID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, businessID); err != nil {
		s.logger.Warn("dashboard cache bump failed", slog.String("business_id", businessID.String()), slog.Any("error", err))
	}
}
