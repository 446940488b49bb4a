// Package billing holds the invoice arithmetic and status rules. Everything
// here is pure: no I/O and no shared state.
package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TaxMode selects how TaxConfig.Rate is applied.
type TaxMode string

const (
	TaxPercentage TaxMode = "percentage"
	TaxFixed      TaxMode = "fixed"
)

// DefaultTaxName labels the tax line when none is configured.
const DefaultTaxName = "GST"

// ParseTaxMode falls back to percentage for anything unrecognised.
func ParseTaxMode(s string) TaxMode {
	if TaxMode(strings.ToLower(strings.TrimSpace(s))) == TaxFixed {
		return TaxFixed
	}
	return TaxPercentage
}

// TaxConfig is the tax rule applied to an invoice subtotal. In percentage mode
// Rate is a percentage of the subtotal and is not clamped; in fixed mode it is
// an absolute amount.
type TaxConfig struct {
	Mode TaxMode         `json:"mode"`
	Rate decimal.Decimal `json:"rate"`
	Name string          `json:"name"`
}

// NewTaxConfig coerces raw tax settings. An empty name falls back to
// defaultName, then to DefaultTaxName.
func NewTaxConfig(mode, rate, name, defaultName string) TaxConfig {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(defaultName)
	}
	if name == "" {
		name = DefaultTaxName
	}
	return TaxConfig{Mode: ParseTaxMode(mode), Rate: CoerceTaxRate(rate), Name: name}
}

// Label returns the display name, e.g. "GST (18%)" or "GST".
func (t TaxConfig) Label() string {
	name := t.Name
	if name == "" {
		name = DefaultTaxName
	}
	if ParseTaxMode(string(t.Mode)) == TaxFixed {
		return name
	}
	return name + " (" + t.Rate.String() + "%)"
}

// LineItem is one billable row. Amount is derived from Quantity and Rate.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

// Totals is the snapshot stored on an invoice.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// ComputeLineAmount returns quantity × rate.
func ComputeLineAmount(quantity int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(quantity).Mul(rate)
}

// NewLineItem coerces raw form values and derives the amount.
func NewLineItem(description, quantity, rate string) LineItem {
	q := CoerceQuantity(quantity)
	r := CoerceRate(rate)
	return LineItem{
		Description: strings.TrimSpace(description),
		Quantity:    q,
		Rate:        r,
		Amount:      ComputeLineAmount(q, r),
	}
}

// Recompute returns a copy of items with every Amount rederived.
func Recompute(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		item.Amount = ComputeLineAmount(item.Quantity, item.Rate)
		out[i] = item
	}
	return out
}

// ComputeTotals derives subtotal, tax and total. Stored item amounts are
// ignored in favour of quantity × rate. No rounding is applied.
func ComputeTotals(items []LineItem, tax TaxConfig) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(ComputeLineAmount(item.Quantity, item.Rate))
	}

	var taxAmount decimal.Decimal
	switch ParseTaxMode(string(tax.Mode)) {
	case TaxFixed:
		taxAmount = tax.Rate
	default:
		taxAmount = subtotal.Mul(tax.Rate).Div(hundred)
	}

	return Totals{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     subtotal.Add(taxAmount),
	}
}
