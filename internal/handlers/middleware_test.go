package handlers

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathdrill/internal/models"
	"mathdrill/internal/security"
)

func TestRequireAuthRedirects(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(nil, "/practice/config")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = srv.get(&client{session: &http.Cookie{Name: security.SessionCookieName, Value: "stale"}}, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cleared := responseCookie(rec, security.SessionCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestCSRFProtectWithoutSession(t *testing.T) {
	m := NewMiddleware(nil, security.NewCSRFGenerator("secret"), nil)
	called := false
	handler := m.CSRFProtect(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/profile", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
	assert.Empty(t, m.CSRFToken(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestFlashRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	setFlash(rec, httptest.NewRequest(http.MethodPost, "/practice/solve", nil), FlashError, "Incorrect. The correct answer is 3.")

	cookie := responseCookie(rec, FlashCookieName)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/practice/solve", nil)
	req.AddCookie(cookie)
	next := httptest.NewRecorder()

	flash := popFlash(next, req)
	require.NotNil(t, flash)
	assert.Equal(t, FlashError, flash.Level)
	assert.Equal(t, "Incorrect. The correct answer is 3.", flash.Message)

	cleared := responseCookie(next, FlashCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	assert.Nil(t, popFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestLoggingRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := log.Default()
	originalOutput := logger.Writer()
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/practice/history", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "GET /practice/history 418")
}

func TestGetUserFromContext(t *testing.T) {
	assert.Nil(t, GetUserFromContext(context.Background()))

	user := &models.User{ID: 7, Username: "ada"}
	ctx := context.WithValue(context.Background(), UserContextKey, user)
	assert.Same(t, user, GetUserFromContext(ctx))
}
