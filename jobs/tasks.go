package jobs

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskInvoiceSend emails an invoice to its customer.
	TaskInvoiceSend = "invoice:send"
	// TaskInvoiceDueReminder scans for sent invoices past their due date.
	TaskInvoiceDueReminder = "invoice:due_reminder"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

const (
	// DefaultReminderCron runs the due reminder scan every morning, UTC.
	DefaultReminderCron = "0 8 * * *"
	// DefaultCleanupCron purges idempotency keys nightly, UTC.
	DefaultCleanupCron = "30 3 * * *"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// InvoiceSendPayload identifies the invoice to email.
type InvoiceSendPayload struct {
	BusinessID uuid.UUID `json:"business_id"`
	InvoiceID  uuid.UUID `json:"invoice_id"`
}

// NewInvoiceSendTask constructs an invoice send task.
func NewInvoiceSendTask(payload InvoiceSendPayload) (*asynq.Task, error) {
	if payload.BusinessID == uuid.Nil || payload.InvoiceID == uuid.Nil {
		return nil, fmt.Errorf("jobs: invoice send requires business and invoice ids")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceSend, data, asynq.MaxRetry(5)), nil
}

// DueReminderPayload optionally pins the scan date, formatted YYYY-MM-DD.
type DueReminderPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewDueReminderTask constructs a due reminder scan task.
func NewDueReminderTask(payload DueReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceDueReminder, data, asynq.MaxRetry(3)), nil
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.MaxRetry(1))
}

// triggerable lists the tasks that can be enqueued without arguments.
var triggerable = map[string]func() (*asynq.Task, error){
	TaskInvoiceDueReminder: func() (*asynq.Task, error) { return NewDueReminderTask(DueReminderPayload{}) },
	TaskIdempotencyCleanup: func() (*asynq.Task, error) { return NewIdempotencyCleanupTask(), nil },
}

// TriggerableTasks returns the task names accepted by Client.Trigger.
func TriggerableTasks() []string {
	names := make([]string, 0, len(triggerable))
	for name := range triggerable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
