package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/invoicedesk/invoicedesk/internal/view"
	"github.com/invoicedesk/invoicedesk/report"
)

const printTemplate = "invoices/print.html"

// Renderer produces HTML through the template engine and PDF through
// Gotenberg, falling back to a locally drawn PDF.
type Renderer struct {
	engine    *view.Engine
	gotenberg *report.Client
	logger    *slog.Logger
}

// NewRenderer constructs a Renderer. gotenberg may be nil.
func NewRenderer(engine *view.Engine, gotenberg *report.Client, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{engine: engine, gotenberg: gotenberg, logger: logger}
}

// HTML writes the print view.
func (r *Renderer) HTML(w io.Writer, doc Document) error {
	return r.engine.Execute(w, printTemplate, doc)
}

// HTMLString renders the print view into memory.
func (r *Renderer) HTMLString(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := r.HTML(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PDF renders doc as PDF bytes.
func (r *Renderer) PDF(ctx context.Context, doc Document) ([]byte, error) {
	if r.gotenberg != nil {
		html, err := r.HTMLString(doc)
		if err != nil {
			return nil, fmt.Errorf("render invoice html: %w", err)
		}
		pdf, err := r.gotenberg.RenderHTML(ctx, html, report.A4)
		if err == nil {
			return pdf, nil
		}
		if !errors.Is(err, report.ErrNotConfigured) {
			r.logger.Warn("gotenberg render failed, using local pdf", slog.String("invoice", doc.Number), slog.Any("error", err))
		}
	}
	return r.fallbackPDF(doc)
}

func (r *Renderer) fallbackPDF(doc Document) ([]byte, error) {
	money := r.engine.Money()
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(110, 9, tr(doc.Business.Name), "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 9, "INVOICE", "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	left := []string{doc.Business.Email, doc.Business.Phone, doc.Business.Address}
	if doc.Business.Website != "" {
		left = append(left, doc.Business.Website)
	}
	if doc.Business.TaxID != "" {
		left = append(left, "Tax ID: "+doc.Business.TaxID)
	}
	right := []string{
		"Invoice #: " + doc.Number,
		"Date: " + formatDate(doc.IssuedAt.IsZero(), doc.IssuedAt.Format("02 Jan 2006")),
		"Due Date: " + formatDate(doc.DueDate.IsZero(), doc.DueDate.Format("02 Jan 2006")),
		"Status: " + doc.Status,
	}
	for i := 0; i < len(left) || i < len(right); i++ {
		l, rt := "", ""
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			rt = right[i]
		}
		pdf.CellFormat(110, 5, tr(l), "", 0, "L", false, 0, "")
		pdf.CellFormat(70, 5, tr(rt), "", 1, "R", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(180, 6, "BILL TO:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{doc.Customer.Name, doc.Customer.Company, doc.Customer.Email, doc.Customer.Phone, doc.Customer.Address} {
		if line != "" {
			pdf.CellFormat(180, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(243, 244, 246)
	pdf.CellFormat(90, 7, "Description", "B", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "B", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Rate", "B", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Amount", "B", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, item := range doc.Items {
		pdf.CellFormat(90, 7, tr(item.Description), "B", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, strconv.FormatInt(item.Quantity, 10), "B", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, money.Format(item.Rate), "B", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, money.Format(item.Amount), "B", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	totals := [][2]string{
		{"Subtotal:", money.Format(doc.Totals.Subtotal)},
		{doc.TaxLabel + ":", money.Format(doc.Totals.TaxAmount)},
		{"Total:", money.Format(doc.Totals.Total)},
	}
	for i, row := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 11)
		}
		pdf.CellFormat(145, 6, tr(row[0]), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, row[1], "", 1, "R", false, 0, "")
	}

	if doc.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(180, 6, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(180, 5, tr(doc.Notes), "", "L", false)
	}

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(180, 6, "Thank you for your business!", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("draw invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(zero bool, formatted string) string {
	if zero {
		return ""
	}
	return formatted
}
