package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// Ownership reports whether a user owns a business.
type Ownership interface {
	OwnedBy(ctx context.Context, ownerID, businessID uuid.UUID) (bool, error)
}

// Middleware guards routes by session state.
type Middleware struct {
	Ownership Ownership
	Logger    *slog.Logger
}

// RequireUser rejects requests without a signed-in user and stores the actor.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUserID(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
			return
		}
		actor, _ := shared.ActorFromContext(r.Context())
		actor.UserID = userID
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireBusiness needs an active business the user owns. It implies RequireUser.
func (m Middleware) RequireBusiness(next http.Handler) http.Handler {
	return m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := shared.ActorFromContext(r.Context())
		sess := shared.SessionFromContext(r.Context())
		businessID, err := uuid.Parse(sess.Business())
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "No Active Business", "select or create a business first")
			return
		}
		owned, err := m.Ownership.OwnedBy(r.Context(), actor.UserID, businessID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("auth require business", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		if !owned {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "business not owned by user")
			return
		}
		actor.BusinessID = businessID
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	}))
}

func currentUserID(r *http.Request) (uuid.UUID, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(sess.User())
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
