package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ats/internal/handlers"
	"ats/internal/routes"
	"ats/internal/services"
	"ats/internal/testutils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, pingErr error) (http.Handler, *testutils.Accounts) {
	t.Helper()
	accounts := testutils.NewAccounts()
	reg := prometheus.NewRegistry()
	svc := services.NewPasswordService(testutils.NewTokenStore(), accounts, &testutils.Mailer{}, services.NewMetrics(reg), services.PasswordOptions{})

	router := mux.NewRouter()
	routes.InitRoutes(router,
		handlers.NewPasswordHandler(svc, "https://ats.example.com", nil),
		handlers.NewHealthHandler(fakePinger{err: pingErr}),
		reg,
	)
	return WithCORS(router), accounts
}

func TestPreflight(t *testing.T) {
	h, _ := newTestServer(t, nil)

	for _, path := range []string{"/api/password/forgot", "/api/password/reset"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "https://candidate.example.org")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "content-type")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, rec.Body.String())
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		})
	}
}

func TestPreflight_WithoutCORSHeaders(t *testing.T) {
	h, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/password/reset", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestForgot_CORSAndRequestID(t *testing.T) {
	h, accounts := newTestServer(t, nil)
	accounts.Add("user@example.com", "old-password")

	req := httptest.NewRequest(http.MethodPost, "/api/password/forgot", strings.NewReader(`{"email":"user@example.com"}`))
	req.Header.Set("Origin", "https://candidate.example.org")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestGetNotAllowed(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/password/forgot", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Счётчик появляется после первого запроса сброса.
	post := httptest.NewRequest(http.MethodPost, "/api/password/forgot", strings.NewReader(`{"email":"nobody@example.com"}`))
	h.ServeHTTP(httptest.NewRecorder(), post)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `password_reset_requests_total{outcome="unknown_account"} 1`)
	assert.Contains(t, rec.Body.String(), `http_request_duration_seconds_count{method="POST",route="/api/password/forgot",status="200"} 1`)

	down, _ := newTestServer(t, errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "127.0.0.1")
}
