package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/businesses"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
	jobmetrics "github.com/invoicedesk/invoicedesk/internal/jobs"
	"github.com/invoicedesk/invoicedesk/internal/mail"
)

const reminderTemplate = "invoices/reminder.html"

// PastDueLister lists sent invoices whose due date is before asOf.
type PastDueLister interface {
	PastDue(ctx context.Context, asOf time.Time) ([]invoices.Invoice, error)
}

// BusinessLoader loads a business by id.
type BusinessLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*businesses.Business, error)
}

// TemplateExecutor renders a named template.
type TemplateExecutor interface {
	Execute(w io.Writer, name string, data any) error
}

// DueReminderJob reports sent invoices that are past due to their business.
// It only notifies; statuses stay as they are.
type DueReminderJob struct {
	Invoices   PastDueLister
	Businesses BusinessLoader
	Templates  TemplateExecutor
	Mailer     mail.Sender
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Clock      func() time.Time
}

type reminderRow struct {
	Number       string
	CustomerName string
	DueDate      time.Time
	Total        decimal.Decimal
}

type reminderView struct {
	BusinessName string
	AsOf         time.Time
	Rows         []reminderRow
	Outstanding  decimal.Decimal
}

// Handle processes due reminder scans.
func (j *DueReminderJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Invoices == nil {
		return errors.New("due reminder: handler not configured")
	}
	var payload DueReminderPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("due reminder: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := j.now()
	if payload.AsOf != "" {
		d, err := invoices.ParseDate(payload.AsOf)
		if err != nil {
			return fmt.Errorf("due reminder: %v: %w", err, asynq.SkipRetry)
		}
		asOf = d.Time
	}

	tracker := j.Metrics.Track(TaskInvoiceDueReminder)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := loggerOr(j.Logger).With(slog.String("as_of", invoices.NewDate(asOf).String()))
	due, err := j.Invoices.PastDue(ctx, asOf)
	if err != nil {
		logger.Error("list past due invoices", slog.Any("error", err))
		return err
	}
	j.Metrics.AddDue(len(due))
	if len(due) == 0 {
		logger.Info("no past due invoices")
		return nil
	}

	order := make([]uuid.UUID, 0)
	grouped := make(map[uuid.UUID][]invoices.Invoice)
	for _, inv := range due {
		if _, seen := grouped[inv.BusinessID]; !seen {
			order = append(order, inv.BusinessID)
		}
		grouped[inv.BusinessID] = append(grouped[inv.BusinessID], inv)
	}

	var failed int
	for _, businessID := range order {
		list := grouped[businessID]
		blog := logger.With(slog.String("business_id", businessID.String()), slog.Int("count", len(list)))
		if err := j.notify(ctx, businessID, asOf, list); err != nil {
			failed++
			blog.Error("send due reminder", slog.Any("error", err))
			continue
		}
		blog.Info("past due invoices reported")
	}
	// A retry would resend every reminder already delivered, so failures end
	// in the log and the next scheduled scan tries again.
	if failed > 0 {
		logger.Warn("due reminder incomplete", slog.Int("failed", failed), slog.Int("businesses", len(order)))
	}
	return nil
}

func (j *DueReminderJob) notify(ctx context.Context, businessID uuid.UUID, asOf time.Time, list []invoices.Invoice) error {
	if j.Mailer == nil || j.Businesses == nil || j.Templates == nil {
		return nil
	}
	business, err := j.Businesses.Get(ctx, businessID)
	if err != nil {
		return fmt.Errorf("load business: %w", err)
	}
	view := reminderView{BusinessName: business.Name, AsOf: asOf, Outstanding: decimal.Zero}
	for _, inv := range list {
		view.Rows = append(view.Rows, reminderRow{
			Number:       inv.Number,
			CustomerName: inv.CustomerName,
			DueDate:      inv.DueDate.Time,
			Total:        inv.Totals.Total,
		})
		view.Outstanding = view.Outstanding.Add(inv.Totals.Total)
	}
	var buf bytes.Buffer
	if err := j.Templates.Execute(&buf, reminderTemplate, view); err != nil {
		return fmt.Errorf("render reminder: %w", err)
	}
	return j.Mailer.Send(ctx, mail.Message{
		To:      business.Email,
		Subject: fmt.Sprintf("%d invoice(s) past due", len(list)),
		HTML:    buf.String(),
	})
}

func (j *DueReminderJob) now() time.Time {
	if j.Clock != nil {
		return j.Clock()
	}
	return time.Now().UTC()
}
