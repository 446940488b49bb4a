// Package export turns stored invoices into printable HTML and PDF documents.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/businesses"
	"github.com/invoicedesk/invoicedesk/internal/customers"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
)

// FallbackBusinessName is printed when the business has no name.
const FallbackBusinessName = "Your Business Name"

// Party is one side of the invoice. Empty optional fields are not printed.
type Party struct {
	Name    string
	Company string
	Email   string
	Phone   string
	Address string
	Website string
	TaxID   string
	Logo    string
}

// Document is everything the print view needs.
type Document struct {
	Number   string
	Status   string
	IssuedAt time.Time
	DueDate  time.Time
	Business Party
	Customer Party
	Items    []billing.LineItem
	TaxLabel string
	Totals   billing.Totals
	Notes    string
}

// NewDocument assembles a Document. business and customer may be nil.
func NewDocument(inv invoices.Invoice, business *businesses.Business, customer *customers.Customer) Document {
	doc := Document{
		Number:   inv.Number,
		Status:   string(inv.Status),
		IssuedAt: inv.CreatedAt,
		DueDate:  inv.DueDate.Time,
		Items:    inv.Items,
		TaxLabel: inv.Tax.Label(),
		Totals:   inv.Totals,
		Notes:    strings.TrimSpace(inv.Notes),
		Customer: Party{Name: inv.CustomerName},
	}
	if business != nil {
		doc.Business = Party{
			Name:    strings.TrimSpace(business.Name),
			Email:   business.Email,
			Phone:   business.Phone,
			Address: business.Address,
			Website: strings.TrimSpace(business.Website),
			TaxID:   strings.TrimSpace(business.TaxID),
			Logo:    strings.TrimSpace(business.Logo),
		}
	}
	if doc.Business.Name == "" {
		doc.Business.Name = FallbackBusinessName
	}
	if customer != nil {
		doc.Customer = Party{
			Name:    customer.Name,
			Company: customer.Company,
			Email:   customer.Email,
			Phone:   customer.Phone,
			Address: customer.Address,
		}
	}
	return doc
}

// InvoiceSource loads an invoice of a business.
type InvoiceSource interface {
	Get(ctx context.Context, businessID, id uuid.UUID) (*invoices.Invoice, error)
}

// BusinessSource loads a business by id.
type BusinessSource interface {
	Get(ctx context.Context, id uuid.UUID) (*businesses.Business, error)
}

// CustomerSource loads a customer of a business.
type CustomerSource interface {
	Get(ctx context.Context, businessID, id uuid.UUID) (*customers.Customer, error)
}

// Builder loads the parts of a Document.
type Builder struct {
	Invoices   InvoiceSource
	Businesses BusinessSource
	Customers  CustomerSource
}

// Source is the loaded document together with the records behind it.
type Source struct {
	Document Document
	Invoice  invoices.Invoice
	Business *businesses.Business
	Customer *customers.Customer
}

// Build loads the invoice and its parties. A missing business or customer
// falls back to placeholders rather than failing.
func (b Builder) Build(ctx context.Context, businessID, invoiceID uuid.UUID) (Source, error) {
	inv, err := b.Invoices.Get(ctx, businessID, invoiceID)
	if err != nil {
		return Source{}, fmt.Errorf("load invoice: %w", err)
	}
	business, err := b.Businesses.Get(ctx, businessID)
	if err != nil && !errors.Is(err, httpx.ErrNotFound) {
		return Source{}, fmt.Errorf("load business: %w", err)
	}
	customer, err := b.Customers.Get(ctx, businessID, inv.CustomerID)
	if err != nil && !errors.Is(err, httpx.ErrNotFound) {
		return Source{}, fmt.Errorf("load customer: %w", err)
	}
	return Source{
		Document: NewDocument(*inv, business, customer),
		Invoice:  *inv,
		Business: business,
		Customer: customer,
	}, nil
}
