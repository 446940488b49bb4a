package report

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTMLPostsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "index.html", header.Filename)

		html, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Contains(t, string(html), "INV-123456")
		assert.Equal(t, "8.27", r.FormValue("paperWidth"))
		assert.Equal(t, "true", r.FormValue("printBackground"))

		_, _ = w.Write([]byte("%PDF-mock"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", srv.Client())
	pdf, err := client.RenderHTML(context.Background(), "<h1>INV-123456</h1>", A4)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-mock", string(pdf))
}

func TestRenderHTMLReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).RenderHTML(context.Background(), "<p>x</p>", PageOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "chromium crashed")
}

func TestUnconfiguredClient(t *testing.T) {
	client := NewClient("", nil)
	_, err := client.RenderHTML(context.Background(), "<p>x</p>", A4)
	require.ErrorIs(t, err, ErrNotConfigured)
	require.ErrorIs(t, client.Ping(context.Background()), ErrNotConfigured)
}

func TestPingHandler(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	router := chi.NewRouter()
	NewHandler(NewClient(healthy.URL, healthy.Client()), slog.New(slog.NewTextHandler(io.Discard, nil))).MountRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"gotenberg":"ok"`)
}
