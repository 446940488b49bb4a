package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/businesses"
)

// User represents an authenticated user account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterInput creates an account together with its first business.
type RegisterInput struct {
	Name     string                           `json:"name" validate:"required,max=200"`
	Email    string                           `json:"email" validate:"required,email"`
	Password string                           `json:"password" validate:"required,min=8,max=72"`
	Business businesses.CreateBusinessRequest `json:"business" validate:"required"`
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
