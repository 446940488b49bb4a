package export

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/businesses"
	"github.com/invoicedesk/invoicedesk/internal/customers"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
	"github.com/invoicedesk/invoicedesk/internal/view"
	"github.com/invoicedesk/invoicedesk/report"
)

type stubInvoices map[uuid.UUID]invoices.Invoice

func (s stubInvoices) Get(ctx context.Context, businessID, id uuid.UUID) (*invoices.Invoice, error) {
	inv, ok := s[id]
	if !ok || inv.BusinessID != businessID {
		return nil, httpx.ErrNotFound
	}
	return &inv, nil
}

type stubBusinesses map[uuid.UUID]businesses.Business

func (s stubBusinesses) Get(ctx context.Context, id uuid.UUID) (*businesses.Business, error) {
	b, ok := s[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &b, nil
}

type stubCustomers map[uuid.UUID]customers.Customer

func (s stubCustomers) Get(ctx context.Context, businessID, id uuid.UUID) (*customers.Customer, error) {
	c, ok := s[id]
	if !ok || c.BusinessID != businessID {
		return nil, httpx.ErrNotFound
	}
	return &c, nil
}

type fixture struct {
	business businesses.Business
	customer customers.Customer
	invoice  invoices.Invoice
	builder  Builder
	engine   *view.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	money, err := view.NewMoneyFormatter("en-IN", "INR")
	require.NoError(t, err)
	engine, err := view.NewEngine(money)
	require.NoError(t, err)

	biz := businesses.Business{ID: uuid.New(), Name: "Acme Studio", Email: "billing@acme.test", Phone: "555-0100", Address: "1 Main St", TaxID: "GSTIN-42"}
	cust := customers.Customer{ID: uuid.New(), BusinessID: biz.ID, Name: "Jane Client", Company: "Client Co", Email: "jane@client.test"}
	inv := invoices.Invoice{
		ID:           uuid.New(),
		BusinessID:   biz.ID,
		CustomerID:   cust.ID,
		CustomerName: cust.Name,
		Number:       "INV-000042",
		Items: []billing.LineItem{
			billing.NewLineItem("Design", "2", "100"),
			billing.NewLineItem("Hosting", "1", "50"),
		},
		Tax:       billing.TaxConfig{Mode: billing.TaxPercentage, Rate: decimal.NewFromInt(10), Name: "GST"},
		Status:    billing.StatusSent,
		DueDate:   invoices.NewDate(time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)),
		Notes:     "Net 30",
		CreatedAt: time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC),
	}
	inv.Recalculate()

	return &fixture{
		business: biz,
		customer: cust,
		invoice:  inv,
		engine:   engine,
		builder: Builder{
			Invoices:   stubInvoices{inv.ID: inv},
			Businesses: stubBusinesses{biz.ID: biz},
			Customers:  stubCustomers{cust.ID: cust},
		},
	}
}

func TestNewDocumentFallbacks(t *testing.T) {
	f := newFixture(t)
	doc := NewDocument(f.invoice, nil, nil)
	assert.Equal(t, FallbackBusinessName, doc.Business.Name)
	assert.Equal(t, "Jane Client", doc.Customer.Name)
	assert.Equal(t, "GST (10%)", doc.TaxLabel)
	assert.Equal(t, "sent", doc.Status)
	assert.True(t, doc.Totals.Total.Equal(decimal.NewFromInt(275)))
	assert.Equal(t, f.invoice.CreatedAt, doc.IssuedAt)
}

func TestBuilderToleratesMissingCustomer(t *testing.T) {
	f := newFixture(t)
	f.builder.Customers = stubCustomers{}
	src, err := f.builder.Build(context.Background(), f.business.ID, f.invoice.ID)
	require.NoError(t, err)
	assert.Nil(t, src.Customer)
	assert.Equal(t, "Jane Client", src.Document.Customer.Name)
	assert.Equal(t, "Acme Studio", src.Document.Business.Name)
}

func TestBuilderScopesInvoiceToBusiness(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder.Build(context.Background(), uuid.New(), f.invoice.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRendererHTML(t *testing.T) {
	f := newFixture(t)
	renderer := NewRenderer(f.engine, nil, nil)
	html, err := renderer.HTMLString(NewDocument(f.invoice, &f.business, &f.customer))
	require.NoError(t, err)

	assert.Contains(t, html, "INV-000042")
	assert.Contains(t, html, "Acme Studio")
	assert.Contains(t, html, "Client Co")
	assert.Contains(t, html, "GST (10%)")
	assert.Contains(t, html, "INR 275.00")
	assert.Contains(t, html, "status-sent")
	assert.Contains(t, html, "01 Nov 2026")
	assert.Contains(t, html, "Thank you for your business!")
}

func TestRendererPDFUsesGotenberg(t *testing.T) {
	f := newFixture(t)
	var gotHTML string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/chromium/convert/html" {
			http.NotFound(w, r)
			return
		}
		file, _, err := r.FormFile("files")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(file)
		gotHTML = string(body)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-gotenberg"))
	}))
	defer srv.Close()

	renderer := NewRenderer(f.engine, report.NewClient(srv.URL, srv.Client()), nil)
	pdf, err := renderer.PDF(context.Background(), NewDocument(f.invoice, &f.business, &f.customer))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-gotenberg", string(pdf))
	assert.Contains(t, gotHTML, "INV-000042")
}

func TestRendererPDFFallsBackLocally(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	for name, client := range map[string]*report.Client{
		"failing":        report.NewClient(srv.URL, srv.Client()),
		"not configured": report.NewClient("", nil),
		"absent":         nil,
	} {
		t.Run(name, func(t *testing.T) {
			renderer := NewRenderer(f.engine, client, nil)
			pdf, err := renderer.PDF(context.Background(), NewDocument(f.invoice, &f.business, &f.customer))
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "invoice-INV-000042.pdf", Filename("INV-000042"))
	assert.Equal(t, "invoice-A-B-C.pdf", Filename("A/B C"))
	assert.Equal(t, "invoice-invoice.pdf", Filename(""))
}

func newRouter(f *fixture, actor shared.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	r.Route("/api/invoices", NewHandler(nil, f.builder, NewRenderer(f.engine, nil, nil)).MountRoutes)
	return r
}

func TestHandlerPrintAndPDF(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, shared.Actor{UserID: uuid.New(), BusinessID: f.business.ID})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/invoices/"+f.invoice.ID.String()+"/print", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rr.Body.String(), "INV-000042")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/invoices/"+f.invoice.ID.String()+"/pdf", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "invoice-INV-000042.pdf")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t)

	router := newRouter(f, shared.Actor{UserID: uuid.New(), BusinessID: f.business.ID})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/invoices/"+uuid.NewString()+"/print", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/invoices/not-a-uuid/pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	noBusiness := newRouter(f, shared.Actor{UserID: uuid.New()})
	rr = httptest.NewRecorder()
	noBusiness.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/invoices/"+f.invoice.ID.String()+"/print", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
