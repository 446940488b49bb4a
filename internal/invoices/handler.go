package invoices

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// IdempotencyHeader carries the client's request key on create.
const IdempotencyHeader = "Idempotency-Key"

// SendEnqueuer schedules the invoice email.
type SendEnqueuer interface {
	EnqueueInvoiceSend(ctx context.Context, businessID, invoiceID uuid.UUID) error
}

// Handler exposes invoice endpoints for the active business.
type Handler struct {
	logger  *slog.Logger
	service *Service
	sender  SendEnqueuer
}

// NewHandler builds a Handler. sender may be nil, in which case the send
// endpoint answers 503.
func NewHandler(logger *slog.Logger, service *Service, sender SendEnqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, sender: sender}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Patch("/{id}/status", h.setStatus)
	r.Post("/{id}/send", h.send)
}

type listResponse struct {
	Data       []Invoice         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	list, page, err := h.service.List(r.Context(), actor.BusinessID, q.Get("search"), q.Get("status"), shared.ParsePageRequest(r))
	if err != nil {
		h.respondError(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: list, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentActor(w, r)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Create(r.Context(), actor, req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.respondError(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentActor(w, r)
	if !ok {
		return
	}
	id, ok := ParseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), actor.BusinessID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentActor(w, r)
	if !ok {
		return
	}
	id, ok := ParseID(w, r)
	if !ok {
		return
	}
	var req UpdateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.respondError(w, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentActor(w, r)
	if !ok {
		return
	}
	id, ok := ParseID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.SetStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		h.respondError(w, "set invoice status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentActor(w, r)
	if !ok {
		return
	}
	id, ok := ParseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendResponse struct {
	Queued bool `json:"queued"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentActor(w, r)
	if !ok {
		return
	}
	id, ok := ParseID(w, r)
	if !ok {
		return
	}
	if h.sender == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "email delivery is not configured")
		return
	}
	if _, err := h.service.Get(r.Context(), actor.BusinessID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.sender.EnqueueInvoiceSend(r.Context(), actor.BusinessID, id); err != nil {
		h.respondError(w, "enqueue invoice send", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, sendResponse{Queued: true})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrConflict) {
		h.logger.Debug(op+" rejected", slog.Any("error", err))
	} else {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// CurrentActor returns the actor with an active business, or writes a 400.
func CurrentActor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || actor.BusinessID == uuid.Nil {
		httpx.Problem(w, http.StatusBadRequest, "No Active Business", "select or create a business first")
		return shared.Actor{}, false
	}
	return actor, true
}

// ParseID reads the {id} route parameter, or writes a 400.
func ParseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return uuid.Nil, false
	}
	return id, true
}
