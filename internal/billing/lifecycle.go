package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Status classifies an invoice. It is a user-assigned tag: nothing moves an
// invoice between statuses automatically.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// DefaultStatus is assigned on creation unless overridden.
const DefaultStatus = StatusDraft

var allStatuses = []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue}

// Statuses lists every valid status in display order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// ParseStatus normalises s and reports whether it is known.
func ParseStatus(s string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	return status, status.Valid()
}

// CanTransition permits every move between valid statuses, paid → draft
// included.
func CanTransition(from, to Status) bool {
	return from.Valid() && to.Valid()
}

// Billable is anything that can be aggregated.
type Billable interface {
	BillingStatus() Status
	BillingTotal() decimal.Decimal
}

// Summary buckets invoice totals by status.
type Summary struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
	Counts        map[Status]int  `json:"counts"`
}

// Aggregate sums paid invoices into revenue, sent into pending and overdue
// into overdue. Drafts only contribute to Counts.
func Aggregate[T Billable](invoices []T) Summary {
	summary := Summary{
		TotalRevenue:  decimal.Zero,
		PendingAmount: decimal.Zero,
		OverdueAmount: decimal.Zero,
		Counts:        make(map[Status]int, len(allStatuses)),
	}
	for _, inv := range invoices {
		status := inv.BillingStatus()
		switch status {
		case StatusPaid:
			summary.TotalRevenue = summary.TotalRevenue.Add(inv.BillingTotal())
		case StatusSent:
			summary.PendingAmount = summary.PendingAmount.Add(inv.BillingTotal())
		case StatusOverdue:
			summary.OverdueAmount = summary.OverdueAmount.Add(inv.BillingTotal())
		}
		if status.Valid() {
			summary.Counts[status]++
		}
	}
	return summary
}
