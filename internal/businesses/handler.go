package businesses

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// Handler exposes business endpoints. Routes expect an authenticated actor.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers business routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/activate", h.activate)
}

type listResponse struct {
	Data     []Business `json:"data"`
	ActiveID string     `json:"active_id,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.service.List(r.Context(), actor.UserID)
	if err != nil {
		h.fail(w, "list businesses", err)
		return
	}
	if list == nil {
		list = []Business{}
	}
	resp := listResponse{Data: list}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		resp.ActiveID = sess.Business()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateBusinessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	business, err := h.service.Create(r.Context(), actor.UserID, req)
	if err != nil {
		h.fail(w, "create business", err)
		return
	}
	// A user's first business becomes the active one.
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.Business() == "" {
		sess.SetBusiness(business.ID.String())
	}
	httpx.JSON(w, http.StatusCreated, business)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req UpdateBusinessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	business, err := h.service.Update(r.Context(), actor.UserID, id, req)
	if err != nil {
		h.fail(w, "update business", err)
		return
	}
	httpx.JSON(w, http.StatusOK, business)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor.UserID, id); err != nil {
		h.fail(w, "delete business", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.Business() == id.String() {
		sess.ClearBusiness()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	business, err := h.service.Activate(r.Context(), actor.UserID, id)
	if err != nil {
		h.fail(w, "activate business", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetBusiness(business.ID.String())
	}
	httpx.JSON(w, http.StatusOK, business)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || actor.UserID == uuid.Nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return shared.Actor{}, false
	}
	return actor, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid business id")
		return uuid.Nil, false
	}
	return id, true
}
