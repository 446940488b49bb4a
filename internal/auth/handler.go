package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/businesses"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	guard          Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, guard Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		guard:          guard,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.csrfToken)
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.With(h.guard.RequireUser).Get("/me", h.me)
}

type csrfResponse struct {
	Token string `json:"csrf_token"`
}

type sessionResponse struct {
	User       *User                `json:"user"`
	BusinessID string               `json:"business_id,omitempty"`
	Business   *businesses.Business `json:"business,omitempty"`
	CSRFToken  string               `json:"csrf_token,omitempty"`
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, csrfResponse{Token: token})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, business, err := h.service.Register(r.Context(), in)
	if err != nil {
		h.logger.Warn("register failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	token, ok := h.signIn(w, r, sess, user, business.ID)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusCreated, sessionResponse{
		User:       user,
		BusinessID: business.ID.String(),
		Business:   business,
		CSRFToken:  token,
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	businessID := uuid.Nil
	if sess != nil && sess.User() == user.ID.String() {
		businessID, _ = uuid.Parse(sess.Business())
	}
	if businessID == uuid.Nil {
		businessID, err = h.service.DefaultBusiness(r.Context(), user.ID)
		if err != nil {
			h.logger.Warn("resolve default business", slog.Any("error", err))
		}
	}
	token, ok := h.signIn(w, r, sess, user, businessID)
	if !ok {
		return
	}
	resp := sessionResponse{User: user, CSRFToken: token}
	if businessID != uuid.Nil {
		resp.BusinessID = businessID.String()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// signIn renews the session id, binds the user and issues a fresh CSRF token.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, sess *shared.Session, user *User, businessID uuid.UUID) (string, bool) {
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("session missing"))
		return "", false
	}
	h.sessionManager.Renew(sess)
	sess.SetUser(user.ID.String())
	if businessID != uuid.Nil {
		sess.SetBusiness(businessID.String())
	} else {
		sess.ClearBusiness()
	}
	token, err := h.csrfManager.Rotate(sess)
	if err != nil {
		h.logger.Error("rotate csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return "", false
	}
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	return token, true
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	user, err := h.service.User(r.Context(), actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := sessionResponse{User: user}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		resp.BusinessID = sess.Business()
	}
	httpx.JSON(w, http.StatusOK, resp)
}
