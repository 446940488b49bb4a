// Package invoices stores invoices and applies the billing rules to them.
package invoices

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/billing"
)

// DateLayout is the wire format of due dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar date.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads a YYYY-MM-DD value.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON emits YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON reads YYYY-MM-DD.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Invoice is a bill issued by a business to one of its customers. Totals is a
// snapshot kept in step with Items and Tax on every write.
type Invoice struct {
	ID           uuid.UUID          `json:"id"`
	BusinessID   uuid.UUID          `json:"business_id"`
	CustomerID   uuid.UUID          `json:"customer_id"`
	CustomerName string             `json:"customer_name,omitempty"`
	Number       string             `json:"number"`
	Items        []billing.LineItem `json:"items"`
	Tax          billing.TaxConfig  `json:"tax"`
	Totals       billing.Totals     `json:"totals"`
	Status       billing.Status     `json:"status"`
	DueDate      Date               `json:"due_date"`
	Notes        string             `json:"notes"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// BillingStatus implements billing.Billable.
func (i Invoice) BillingStatus() billing.Status { return i.Status }

// BillingTotal implements billing.Billable.
func (i Invoice) BillingTotal() decimal.Decimal { return i.Totals.Total }

// Recalculate rederives item amounts and the totals snapshot.
func (i *Invoice) Recalculate() {
	i.Items = billing.Recompute(i.Items)
	i.Totals = billing.ComputeTotals(i.Items, i.Tax)
}

// PastDue reports whether a sent invoice's due date is before asOf. It never
// changes the status.
func (i Invoice) PastDue(asOf time.Time) bool {
	return i.Status == billing.StatusSent && i.DueDate.Before(NewDate(asOf).Time)
}

// DefaultNumber derives an invoice number from the last six digits of the
// Unix millisecond clock.
func DefaultNumber(now time.Time) string {
	return fmt.Sprintf("INV-%06d", now.UnixMilli()%1_000_000)
}
