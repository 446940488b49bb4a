// Package businesses manages the invoicing businesses a user owns.
package businesses

import (
	"time"

	"github.com/google/uuid"
)

// Business is the issuing party printed on invoices.
type Business struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Website   string    `json:"website"`
	Logo      string    `json:"logo"`
	TaxID     string    `json:"tax_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
