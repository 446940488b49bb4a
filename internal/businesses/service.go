package businesses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// Service implements business profile rules.
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

// Validate checks a create request without persisting it.
func (s *Service) Validate(req CreateBusinessRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	return nil
}

// Build turns a validated request into a Business owned by ownerID.
func Build(ownerID uuid.UUID, req CreateBusinessRequest) Business {
	now := time.Now().UTC()
	return Business{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Website:   req.Website,
		Logo:      req.Logo,
		TaxID:     req.TaxID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// List returns the owner's businesses, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]Business, error) {
	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	return list, nil
}

// Create stores a new business for ownerID.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreateBusinessRequest) (*Business, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	business := Build(ownerID, req)
	if err := s.repo.Create(ctx, business); err != nil {
		return nil, fmt.Errorf("create business: %w", err)
	}
	return &business, nil
}

// Get returns a business only when ownerID owns it.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Business, error) {
	business, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get business: %w", err)
	}
	if business.OwnerID != ownerID {
		return nil, fmt.Errorf("get business: %w", httpx.ErrNotFound)
	}
	return business, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, req UpdateBusinessRequest) (*Business, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	var updated *Business
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		existing, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if existing.OwnerID != ownerID {
			return httpx.ErrNotFound
		}
		updates := req.updates()
		if len(updates) > 0 {
			if err := repo.Update(ctx, id, updates); err != nil {
				return err
			}
		}
		updated, err = repo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update business: %w", err)
	}
	s.bump(ctx, id)
	return updated, nil
}

// Delete removes a business with no customers or invoices.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, httpx.ErrConflict) {
			return fmt.Errorf("delete business: %w: remove its customers and invoices first", httpx.ErrConflict)
		}
		return fmt.Errorf("delete business: %w", err)
	}
	s.bump(ctx, id)
	return nil
}

// Activate confirms ownership before the caller switches the session to id.
func (s *Service) Activate(ctx context.Context, ownerID, id uuid.UUID) (*Business, error) {
	business, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	s.bump(ctx, id)
	return business, nil
}

// OwnedBy reports whether ownerID owns the business.
func (s *Service) OwnedBy(ctx context.Context, ownerID, id uuid.UUID) (bool, error) {
	_, err := s.Get(ctx, ownerID, id)
	if errors.Is(err, httpx.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Latest returns the most recently created business of ownerID, or ErrNotFound.
func (s *Service) Latest(ctx context.Context, ownerID uuid.UUID) (*Business, error) {
	list, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, httpx.ErrNotFound
	}
	return &list[0], nil
}

func (s *Service) bump(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, id); err != nil {
		s.logger.Warn("dashboard cache bump failed", slog.String("business_id", id.String()), slog.Any("error", err))
	}
}
