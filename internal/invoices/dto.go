package invoices

import (
	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/billing"
)

// LineItemInput is one row as submitted. Quantity and rate are coerced, never
// rejected.
type LineItemInput struct {
	Description string         `json:"description" validate:"required,max=500"`
	Quantity    billing.Number `json:"quantity"`
	Rate        billing.Number `json:"rate"`
}

// TaxInput is the submitted tax setting.
type TaxInput struct {
	Mode string         `json:"mode"`
	Rate billing.Number `json:"rate"`
	Name string         `json:"name" validate:"max=50"`
}

// CreateInvoiceRequest creates an invoice. Client supplied totals are not
// part of the contract and are dropped by the decoder.
type CreateInvoiceRequest struct {
	CustomerID string          `json:"customer_id" validate:"required,uuid"`
	Number     string          `json:"number" validate:"max=50"`
	Items      []LineItemInput `json:"items" validate:"required,min=1,dive"`
	Tax        *TaxInput       `json:"tax"`
	Status     string          `json:"status" validate:"omitempty,oneof=draft sent paid overdue"`
	DueDate    string          `json:"due_date" validate:"required,datetime=2006-01-02"`
	Notes      string          `json:"notes" validate:"max=5000"`
}

// UpdateInvoiceRequest is a partial update.
type UpdateInvoiceRequest struct {
	CustomerID *string          `json:"customer_id" validate:"omitnil,uuid"`
	Number     *string          `json:"number" validate:"omitnil,min=1,max=50"`
	Items      *[]LineItemInput `json:"items" validate:"omitnil,min=1,dive"`
	Tax        *TaxInput        `json:"tax"`
	Status     *string          `json:"status" validate:"omitnil,oneof=draft sent paid overdue"`
	DueDate    *string          `json:"due_date" validate:"omitnil,datetime=2006-01-02"`
	Notes      *string          `json:"notes" validate:"omitnil,max=5000"`
}

// StatusRequest changes only the status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft sent paid overdue"`
}

// ListInvoicesRequest filters a business's invoices.
type ListInvoicesRequest struct {
	BusinessID uuid.UUID
	Search     string
	Status     billing.Status
	Limit      int
	Offset     int
}

func buildItems(in []LineItemInput) []billing.LineItem {
	items := make([]billing.LineItem, 0, len(in))
	for _, row := range in {
		items = append(items, billing.NewLineItem(row.Description, row.Quantity.String(), row.Rate.String()))
	}
	return items
}

func buildTax(in *TaxInput, defaultName string) billing.TaxConfig {
	if in == nil {
		return billing.NewTaxConfig("", "", "", defaultName)
	}
	return billing.NewTaxConfig(in.Mode, in.Rate.String(), in.Name, defaultName)
}
