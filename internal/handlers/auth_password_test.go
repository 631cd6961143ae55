package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ats/internal/services"
	"ats/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteURL = "https://ats.example.com"

type env struct {
	h        *PasswordHandler
	store    *testutils.TokenStore
	accounts *testutils.Accounts
	mailer   *testutils.Mailer
}

func newEnv(t *testing.T, allowed ...string) *env {
	t.Helper()
	e := &env{
		store:    testutils.NewTokenStore(),
		accounts: testutils.NewAccounts(),
		mailer:   &testutils.Mailer{},
	}
	svc := services.NewPasswordService(e.store, e.accounts, e.mailer, nil, services.PasswordOptions{})
	e.h = NewPasswordHandler(svc, siteURL, allowed)
	return e
}

func post(h http.HandlerFunc, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func (e *env) lastLink(t *testing.T) *url.URL {
	t.Helper()
	sent, ok := e.mailer.Last()
	require.True(t, ok)
	i := strings.Index(sent.Content.Text, "http")
	require.GreaterOrEqual(t, i, 0)
	u, err := url.Parse(strings.Fields(sent.Content.Text[i:])[0])
	require.NoError(t, err)
	return u
}

func TestForgot_SameResponseForKnownAndUnknown(t *testing.T) {
	e := newEnv(t)
	e.accounts.Add("user@example.com", "old-password")

	known := post(e.h.Forgot, `{"email":"user@example.com"}`, nil)
	unknown := post(e.h.Forgot, `{"email":"ghost@example.com"}`, nil)

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.JSONEq(t, `{"message":"If an account exists with that email, a reset link has been sent"}`, known.Body.String())
	assert.Equal(t, 1, e.mailer.Count())
}

func TestForgot_EmptyEmail(t *testing.T) {
	e := newEnv(t)
	e.accounts.Add("user@example.com", "old-password")

	for _, body := range []string{`{"email":""}`, `{}`, `{"email":"   "}`} {
		rec := post(e.h.Forgot, body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "email")
	}
	assert.Empty(t, e.store.Tokens())
	assert.Equal(t, 0, e.mailer.Count())
}

func TestForgot_InvalidJSON(t *testing.T) {
	e := newEnv(t)
	rec := post(e.h.Forgot, `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForgot_PersistenceFailureIs500(t *testing.T) {
	e := newEnv(t)
	e.accounts.Add("user@example.com", "old-password")
	e.store.FailCreate = errors.New("FATAL: remaining connection slots are reserved")

	rec := post(e.h.Forgot, `{"email":"user@example.com"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection slots")
}

func TestForgot_EmailFailureStill200(t *testing.T) {
	e := newEnv(t)
	e.accounts.Add("user@example.com", "old-password")
	e.mailer.Err = errors.New("421 service not available")

	rec := post(e.h.Forgot, `{"email":"user@example.com"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "421")
}

func TestForgot_LinkOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{name: "request origin", origin: "https://candidate.example.org", want: "https://candidate.example.org"},
		{name: "no origin", origin: "", want: siteURL},
		{name: "null origin", origin: "null", want: siteURL},
		{name: "not http", origin: "javascript://evil", want: siteURL},
		{name: "allowed", allowed: []string{"http://localhost:5173"}, origin: "http://localhost:5173", want: "http://localhost:5173"},
		{name: "not allowed", allowed: []string{"http://localhost:5173"}, origin: "https://evil.example", want: siteURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, tt.allowed...)
			e.accounts.Add("user@example.com", "old-password")

			rec := post(e.h.Forgot, `{"email":"user@example.com"}`, map[string]string{"Origin": tt.origin})
			require.Equal(t, http.StatusOK, rec.Code)

			u := e.lastLink(t)
			assert.Equal(t, tt.want, u.Scheme+"://"+u.Host)
			assert.Equal(t, "/reset-password", u.Path)
		})
	}
}

func TestReset_RoundTrip(t *testing.T) {
	e := newEnv(t)
	e.accounts.Add("user@example.com", "old-password")

	rec := post(e.h.Forgot, `{"email":"user@example.com"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token := e.lastLink(t).Query().Get("token")

	rec = post(e.h.Reset, `{"token":"`+token+`","newPassword":"Sup3rSecure!"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Password reset successful"}`, rec.Body.String())

	ok, err := e.accounts.CheckCredential(context.Background(), "user@example.com", "Sup3rSecure!")
	require.NoError(t, err)
	assert.True(t, ok)

	rec = post(e.h.Reset, `{"token":"`+token+`","newPassword":"Sup3rSecure!"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid or expired reset token"}`, rec.Body.String())
}

func TestReset_MissingFields(t *testing.T) {
	e := newEnv(t)
	// Любой поход в хранилище на этих запросах — ошибка.
	e.store.FailConsume = errors.New("store must not be touched")

	for _, body := range []string{
		`{"token":"abc","newPassword":""}`,
		`{"token":"","newPassword":"Sup3rSecure!"}`,
		`{"newPassword":"Sup3rSecure!"}`,
		`{}`,
	} {
		rec := post(e.h.Reset, body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotContains(t, rec.Body.String(), "invalid or expired", body)
	}
}

func TestReset_UnknownToken(t *testing.T) {
	e := newEnv(t)
	rec := post(e.h.Reset, `{"token":"abc","newPassword":"Sup3rSecure!"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid or expired reset token"}`, rec.Body.String())
}

func TestReset_CredentialFailureIs500(t *testing.T) {
	e := newEnv(t)
	e.accounts.Add("user@example.com", "old-password")
	post(e.h.Forgot, `{"email":"user@example.com"}`, nil)
	token := e.lastLink(t).Query().Get("token")

	e.accounts.FailReplace = errors.New("admin api: 503")
	rec := post(e.h.Reset, `{"token":"`+token+`","newPassword":"Sup3rSecure!"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "503")

	// Та же ссылка работает после восстановления платформы.
	e.accounts.FailReplace = nil
	rec = post(e.h.Reset, `{"token":"`+token+`","newPassword":"Sup3rSecure!"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "us***@example.com", maskEmail("user@example.com"))
	assert.Equal(t, "a***@example.com", maskEmail("a@example.com"))
	assert.Equal(t, "***", maskEmail("broken"))
}
