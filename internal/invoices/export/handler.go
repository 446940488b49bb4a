package export

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Handler serves the print and PDF views of an invoice.
type Handler struct {
	logger   *slog.Logger
	builder  Builder
	renderer *Renderer
}

// NewHandler constructs the export handler.
func NewHandler(logger *slog.Logger, builder Builder, renderer *Renderer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, builder: builder, renderer: renderer}
}

// MountRoutes registers export routes next to the invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/print", h.print)
	r.Get("/{id}/pdf", h.pdf)
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	src, ok := h.load(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.renderer.HTML(&buf, src.Document); err != nil {
		h.logger.Error("render invoice html failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	src, ok := h.load(w, r)
	if !ok {
		return
	}
	data, err := h.renderer.PDF(r.Context(), src.Document)
	if err != nil {
		h.logger.Error("render invoice pdf failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", Filename(src.Document.Number)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Source, bool) {
	actor, ok := invoices.CurrentActor(w, r)
	if !ok {
		return Source{}, false
	}
	id, ok := invoices.ParseID(w, r)
	if !ok {
		return Source{}, false
	}
	src, err := h.builder.Build(r.Context(), actor.BusinessID, id)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			h.logger.Error("load invoice document failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return Source{}, false
	}
	return src, true
}

// Filename returns the download name for an invoice number.
func Filename(number string) string {
	clean := unsafeFilename.ReplaceAllString(number, "-")
	if clean == "" || clean == "-" {
		clean = "invoice"
	}
	return "invoice-" + clean + ".pdf"
}
