package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/businesses"
	"github.com/invoicedesk/invoicedesk/internal/customers"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/invoices/export"
	jobmetrics "github.com/invoicedesk/invoicedesk/internal/jobs"
	"github.com/invoicedesk/invoicedesk/internal/mail"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/view"
)

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// bouncingMailer rejects mail for the listed recipients.
type bouncingMailer struct {
	recordingMailer
	bounce map[string]bool
}

func (m *bouncingMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.bounce[msg.To] {
		return errors.New("mailbox unavailable")
	}
	return m.recordingMailer.Send(ctx, msg)
}

type stubBuilder struct {
	src export.Source
	err error
}

func (s stubBuilder) Build(ctx context.Context, businessID, invoiceID uuid.UUID) (export.Source, error) {
	return s.src, s.err
}

type stubRenderer struct{}

func (stubRenderer) HTMLString(doc export.Document) (string, error) {
	return "<h1>" + doc.Number + "</h1>", nil
}

type stubPastDue struct {
	list []invoices.Invoice
	asOf time.Time
}

func (s *stubPastDue) PastDue(ctx context.Context, asOf time.Time) ([]invoices.Invoice, error) {
	s.asOf = asOf
	return s.list, nil
}

type stubBusinesses map[uuid.UUID]businesses.Business

func (s stubBusinesses) Get(ctx context.Context, id uuid.UUID) (*businesses.Business, error) {
	b, ok := s[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &b, nil
}

func sendTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewInvoiceSendTask(InvoiceSendPayload{BusinessID: uuid.New(), InvoiceID: uuid.New()})
	require.NoError(t, err)
	return task
}

func sourceFixture() export.Source {
	biz := businesses.Business{ID: uuid.New(), Name: "Acme Studio", Email: "owner@acme.test"}
	cust := customers.Customer{ID: uuid.New(), BusinessID: biz.ID, Name: "Jane", Email: "jane@client.test"}
	inv := invoices.Invoice{ID: uuid.New(), BusinessID: biz.ID, CustomerID: cust.ID, Number: "INV-000042", Status: billing.StatusDraft}
	return export.Source{
		Document: export.NewDocument(inv, &biz, &cust),
		Invoice:  inv,
		Business: &biz,
		Customer: &cust,
	}
}

func TestNewInvoiceSendTaskRequiresIDs(t *testing.T) {
	_, err := NewInvoiceSendTask(InvoiceSendPayload{InvoiceID: uuid.New()})
	require.Error(t, err)
	task := sendTask(t)
	assert.Equal(t, TaskInvoiceSend, task.Type())
}

func TestInvoiceSendJobEmailsCustomer(t *testing.T) {
	mailer := &recordingMailer{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	src := sourceFixture()
	job := &InvoiceSendJob{Documents: stubBuilder{src: src}, Renderer: stubRenderer{}, Mailer: mailer, Metrics: metrics}

	require.NoError(t, job.Handle(context.Background(), sendTask(t)))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "jane@client.test", msg.To)
	assert.Equal(t, "owner@acme.test", msg.ReplyTo)
	assert.Equal(t, "Invoice INV-000042 from Acme Studio", msg.Subject)
	assert.Equal(t, "<h1>INV-000042</h1>", msg.HTML)
	assert.Equal(t, "draft", src.Document.Status)
}

func TestInvoiceSendJobSkipsRetryWhenUndeliverable(t *testing.T) {
	src := sourceFixture()
	src.Customer = nil
	job := &InvoiceSendJob{Documents: stubBuilder{src: src}, Renderer: stubRenderer{}, Mailer: &recordingMailer{}}
	err := job.Handle(context.Background(), sendTask(t))
	require.ErrorIs(t, err, asynq.SkipRetry)

	job.Documents = stubBuilder{err: httpx.ErrNotFound}
	err = job.Handle(context.Background(), sendTask(t))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskInvoiceSend, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestInvoiceSendJobRetriesMailFailures(t *testing.T) {
	boom := errors.New("smtp down")
	job := &InvoiceSendJob{Documents: stubBuilder{src: sourceFixture()}, Renderer: stubRenderer{}, Mailer: &recordingMailer{err: boom}}
	err := job.Handle(context.Background(), sendTask(t))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSendEmailJob(t *testing.T) {
	mailer := &recordingMailer{}
	job := &SendEmailJob{Mailer: mailer}
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@b.test", Subject: "Hi", Body: "<p>x</p>"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Hi", mailer.sent[0].Subject)

	job.Mailer = &recordingMailer{err: mail.ErrNoRecipient}
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestDueReminderJobNotifiesPerBusiness(t *testing.T) {
	money, err := view.NewMoneyFormatter("en-IN", "INR")
	require.NoError(t, err)
	engine, err := view.NewEngine(money)
	require.NoError(t, err)

	bizA := businesses.Business{ID: uuid.New(), Name: "Acme", Email: "a@acme.test"}
	bizB := businesses.Business{ID: uuid.New(), Name: "Beta", Email: "b@beta.test"}
	due := invoices.NewDate(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	mk := func(biz uuid.UUID, number, total string) invoices.Invoice {
		return invoices.Invoice{
			ID: uuid.New(), BusinessID: biz, Number: number, CustomerName: "Jane",
			Status: billing.StatusSent, DueDate: due,
			Totals: billing.Totals{Total: decimal.RequireFromString(total)},
		}
	}
	lister := &stubPastDue{list: []invoices.Invoice{
		mk(bizA.ID, "INV-1", "100"),
		mk(bizB.ID, "INV-2", "50"),
		mk(bizA.ID, "INV-3", "25.5"),
	}}
	mailer := &recordingMailer{}
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := &DueReminderJob{
		Invoices:   lister,
		Businesses: stubBusinesses{bizA.ID: bizA, bizB.ID: bizB},
		Templates:  engine,
		Mailer:     mailer,
		Metrics:    metrics,
		Clock:      func() time.Time { return time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC) },
	}

	task, err := NewDueReminderTask(DueReminderPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "a@acme.test", mailer.sent[0].To)
	assert.Equal(t, "2 invoice(s) past due", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "INV-3")
	assert.Contains(t, mailer.sent[0].HTML, "INR 125.50")
	assert.Equal(t, "b@beta.test", mailer.sent[1].To)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DueCounter()))

	for _, inv := range lister.list {
		assert.Equal(t, billing.StatusSent, inv.Status)
	}
}

func TestDueReminderJobDoesNotRetryPartialDelivery(t *testing.T) {
	money, err := view.NewMoneyFormatter("en-IN", "INR")
	require.NoError(t, err)
	engine, err := view.NewEngine(money)
	require.NoError(t, err)

	bizA := businesses.Business{ID: uuid.New(), Name: "Acme", Email: "a@acme.test"}
	bizB := businesses.Business{ID: uuid.New(), Name: "Beta", Email: "b@beta.test"}
	due := invoices.NewDate(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	lister := &stubPastDue{list: []invoices.Invoice{
		{ID: uuid.New(), BusinessID: bizA.ID, Number: "INV-1", Status: billing.StatusSent, DueDate: due},
		{ID: uuid.New(), BusinessID: bizB.ID, Number: "INV-2", Status: billing.StatusSent, DueDate: due},
	}}
	mailer := &bouncingMailer{bounce: map[string]bool{"b@beta.test": true}}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := &DueReminderJob{
		Invoices:   lister,
		Businesses: stubBusinesses{bizA.ID: bizA, bizB.ID: bizB},
		Templates:  engine,
		Mailer:     mailer,
		Metrics:    metrics,
		Clock:      func() time.Time { return time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC) },
	}

	task, err := NewDueReminderTask(DueReminderPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "a@acme.test", mailer.sent[0].To)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DueCounter()))
}

func TestDueReminderJobHonoursAsOf(t *testing.T) {
	lister := &stubPastDue{}
	job := &DueReminderJob{Invoices: lister}
	task, err := NewDueReminderTask(DueReminderPayload{AsOf: "2026-09-30"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, "2026-09-30", lister.asOf.Format(invoices.DateLayout))

	bad, err := NewDueReminderTask(DueReminderPayload{AsOf: "30/09/2026"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

func TestTriggerableTasks(t *testing.T) {
	assert.Equal(t, []string{TaskIdempotencyCleanup, TaskInvoiceDueReminder}, TriggerableTasks())

	client := NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()
	_, err := client.Trigger(context.Background(), "gl:rebuild")
	require.Error(t, err)
}

type stubPurger struct {
	olderThan time.Duration
}

func (s *stubPurger) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return 4, nil
}

func TestIdempotencyCleanupJob(t *testing.T) {
	purger := &stubPurger{}
	job := &IdempotencyCleanupJob{Store: purger}
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	assert.Equal(t, DefaultIdempotencyRetention, purger.olderThan)

	job.Retention = time.Hour
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	assert.Equal(t, time.Hour, purger.olderThan)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHandlerHealth(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rr
	}

	rr := serve(NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1}}, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body QueueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, QueueHealth{Queue: "default", Pending: 3, Retry: 1}, body)

	rr = serve(NewHandler(nil, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(NewHandler(stubInspector{err: errors.New("redis down")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
