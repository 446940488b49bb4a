package businesses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/shared"
)

type handlerFixture struct {
	router  chi.Router
	service *Service
	session *shared.Session
	owner   uuid.UUID
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	manager := shared.NewSessionManager(client, "test_session", time.Hour, false)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	f := &handlerFixture{service: NewService(newMemoryRepo(), nil, nil), session: sess, owner: uuid.New()}
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithSession(r.Context(), f.session)
			ctx = shared.ContextWithActor(ctx, shared.Actor{UserID: f.owner})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Route("/api/businesses", NewHandler(nil, f.service).MountRoutes)
	f.router = router
	return f
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerCreateSetsFirstBusinessActive(t *testing.T) {
	f := newHandlerFixture(t)
	rr := f.do(http.MethodPost, "/api/businesses",
		`{"name":"Acme","email":"a@acme.test","phone":"123","address":"Main St"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created Business
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, f.owner, created.OwnerID)
	assert.Equal(t, created.ID.String(), f.session.Business())
}

func TestHandlerCreateReportsFields(t *testing.T) {
	f := newHandlerFixture(t)
	rr := f.do(http.MethodPost, "/api/businesses", `{"name":"Acme","email":"nope"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `"email":"email"`)
	assert.Contains(t, rr.Body.String(), `"phone":"required"`)
}

func TestHandlerActivateSwitchesSession(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	first, err := f.service.Create(ctx, f.owner, validRequest())
	require.NoError(t, err)
	second, err := f.service.Create(ctx, f.owner, validRequest())
	require.NoError(t, err)
	f.session.SetBusiness(first.ID.String())

	rr := f.do(http.MethodPost, "/api/businesses/"+second.ID.String()+"/activate", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, second.ID.String(), f.session.Business())

	foreign, err := f.service.Create(ctx, uuid.New(), validRequest())
	require.NoError(t, err)
	rr = f.do(http.MethodPost, "/api/businesses/"+foreign.ID.String()+"/activate", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, second.ID.String(), f.session.Business())
}

func TestHandlerDeleteClearsActiveBusiness(t *testing.T) {
	f := newHandlerFixture(t)
	b, err := f.service.Create(context.Background(), f.owner, validRequest())
	require.NoError(t, err)
	f.session.SetBusiness(b.ID.String())

	rr := f.do(http.MethodDelete, "/api/businesses/"+b.ID.String(), "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, f.session.Business())

	rr = f.do(http.MethodDelete, "/api/businesses/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerListIncludesActiveID(t *testing.T) {
	f := newHandlerFixture(t)
	rr := f.do(http.MethodGet, "/api/businesses", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[]}`, rr.Body.String())
}
