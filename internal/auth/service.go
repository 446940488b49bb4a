package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/invoicedesk/invoicedesk/internal/businesses"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// BusinessDirectory answers ownership questions for the session layer.
type BusinessDirectory interface {
	Latest(ctx context.Context, ownerID uuid.UUID) (*businesses.Business, error)
	OwnedBy(ctx context.Context, ownerID, businessID uuid.UUID) (bool, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	directory BusinessDirectory
	validate  *validator.Validate
	cost      int
}

// NewService constructs a new Service.
func NewService(repo Repository, directory BusinessDirectory) *Service {
	return &Service{repo: repo, directory: directory, validate: shared.NewValidator(), cost: bcrypt.DefaultCost}
}

// Register creates the account and its first business.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, *businesses.Business, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	business := businesses.Build(user.ID, in.Business)
	if err := s.repo.CreateWithBusiness(ctx, user, business); err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			return nil, nil, fmt.Errorf("register: %w: email already registered", httpx.ErrDuplicate)
		}
		return nil, nil, fmt.Errorf("register: %w", err)
	}
	return &user, &business, nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// User loads the account behind a session.
func (s *Service) User(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// DefaultBusiness returns the user's most recent business, or uuid.Nil when
// they have none.
func (s *Service) DefaultBusiness(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	if s.directory == nil {
		return uuid.Nil, nil
	}
	b, err := s.directory.Latest(ctx, userID)
	if errors.Is(err, httpx.ErrNotFound) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return b.ID, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
