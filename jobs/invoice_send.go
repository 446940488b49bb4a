package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/invoicedesk/invoicedesk/internal/invoices/export"
	jobmetrics "github.com/invoicedesk/invoicedesk/internal/jobs"
	"github.com/invoicedesk/invoicedesk/internal/mail"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
)

// DocumentBuilder loads the printable view of an invoice.
type DocumentBuilder interface {
	Build(ctx context.Context, businessID, invoiceID uuid.UUID) (export.Source, error)
}

// HTMLRenderer renders a document as HTML.
type HTMLRenderer interface {
	HTMLString(doc export.Document) (string, error)
}

// InvoiceSendJob emails the print view of an invoice to its customer. It
// never changes the invoice status.
type InvoiceSendJob struct {
	Documents DocumentBuilder
	Renderer  HTMLRenderer
	Mailer    mail.Sender
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes invoice send tasks.
func (j *InvoiceSendJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Documents == nil || j.Renderer == nil || j.Mailer == nil {
		return errors.New("invoice send: handler not configured")
	}
	var payload InvoiceSendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invoice send: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskInvoiceSend)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := loggerOr(j.Logger).With(slog.String("invoice_id", payload.InvoiceID.String()))
	src, err := j.Documents.Build(ctx, payload.BusinessID, payload.InvoiceID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			logger.Warn("invoice vanished before send")
			return fmt.Errorf("invoice send: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	if src.Customer == nil || strings.TrimSpace(src.Customer.Email) == "" {
		logger.Warn("invoice customer has no email")
		return fmt.Errorf("invoice send: no customer email: %w", asynq.SkipRetry)
	}

	body, err := j.Renderer.HTMLString(src.Document)
	if err != nil {
		return fmt.Errorf("invoice send: render: %w", err)
	}
	msg := mail.Message{
		To:      src.Customer.Email,
		Subject: fmt.Sprintf("Invoice %s from %s", src.Document.Number, src.Document.Business.Name),
		HTML:    body,
	}
	if src.Business != nil {
		msg.ReplyTo = src.Business.Email
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("invoice send: %w", err)
	}
	logger.Info("invoice emailed", slog.String("number", src.Document.Number))
	return nil
}

// SendEmailJob delivers generic mail:send tasks.
type SendEmailJob struct {
	Mailer  mail.Sender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskTypeSendEmail tasks.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Mailer == nil {
		return errors.New("send email: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("send email: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskTypeSendEmail)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	err := j.Mailer.Send(ctx, mail.Message{To: payload.To, ReplyTo: payload.ReplyTo, Subject: payload.Subject, HTML: payload.Body})
	if errors.Is(err, mail.ErrNoRecipient) {
		return fmt.Errorf("send email: %v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	loggerOr(j.Logger).Info("email sent", slog.String("subject", payload.Subject))
	return nil
}

func loggerOr(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
