package handler_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plfanzen/gh-instancer/internal/apperror"
	"github.com/plfanzen/gh-instancer/internal/handler"
	"github.com/plfanzen/gh-instancer/internal/service"
)

const authorizeURL = "https://github.test/login/oauth/authorize?client_id=abc"

type staticURL string

func (s staticURL) AuthURL() string { return string(s) }

// MockLogins records the codes it is asked to complete.
type MockLogins struct {
	Codes     []string
	ReturnRes *service.ProvisionResult
	ReturnErr error
}

func (m *MockLogins) CompleteLogin(_ context.Context, code string) (*service.ProvisionResult, error) {
	m.Codes = append(m.Codes, code)
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnRes, nil
}

func newAuthHandler(logins *MockLogins) *handler.AuthHandler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return handler.NewAuthHandler(staticURL(authorizeURL), logins, logger)
}

func TestAuthHandler_HandleAuthorize(t *testing.T) {
	h := newAuthHandler(&MockLogins{})

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/anything/at/all", nil)
			rr := httptest.NewRecorder()

			h.HandleAuthorize(rr, req)

			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, authorizeURL, rr.Header().Get("Location"))
		})
	}
}

func TestAuthHandler_HandleCallback(t *testing.T) {
	t.Run("redirects to the invitation", func(t *testing.T) {
		logins := &MockLogins{ReturnRes: &service.ProvisionResult{
			Action:        service.ActionCreated,
			Repository:    "org/challenge-repo-octocat",
			InvitationURL: "https://github.test/org/challenge-repo-octocat/invitations",
		}}
		h := newAuthHandler(logins)

		req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc", nil)
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, req)

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "https://github.test/org/challenge-repo-octocat/invitations", rr.Header().Get("Location"))
		assert.Equal(t, []string{"abc"}, logins.Codes)
	})

	t.Run("missing code", func(t *testing.T) {
		logins := &MockLogins{}
		h := newAuthHandler(logins)

		req := httptest.NewRequest(http.MethodGet, "/oauth/callback", nil)
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Missing code parameter", rr.Body.String())
		assert.Empty(t, logins.Codes, "no login should be attempted without a code")
	})

	t.Run("empty code", func(t *testing.T) {
		h := newAuthHandler(&MockLogins{})

		req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=", nil)
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Missing code parameter", rr.Body.String())
	})

	t.Run("already a collaborator", func(t *testing.T) {
		h := newAuthHandler(&MockLogins{
			ReturnErr: apperror.Conflict("User octocat is already a collaborator."),
		})

		req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc", nil)
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "User octocat is already a collaborator.", rr.Body.String())
		assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	})

	t.Run("upstream failure hides details", func(t *testing.T) {
		h := newAuthHandler(&MockLogins{
			ReturnErr: apperror.Upstream("creating repository", errors.New("POST https://api.github.com/secret: 500")),
		})

		req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc", nil)
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, req)

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.NotContains(t, rr.Body.String(), "api.github.com")
	})

	t.Run("unknown error", func(t *testing.T) {
		h := newAuthHandler(&MockLogins{ReturnErr: errors.New("boom")})

		req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc", nil)
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Internal Server Error", rr.Body.String())
	})
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func (brokenWriter) WriteString(string) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestAuthHandler_WriteFailureUsesHandlerLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	h := handler.NewAuthHandler(staticURL(authorizeURL), &MockLogins{}, logger)

	w := brokenWriter{httptest.NewRecorder()}
	h.HandleCallback(w, httptest.NewRequest(http.MethodGet, "/oauth/callback", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, buf.String(), "failed to write response body")
	assert.Contains(t, buf.String(), "connection reset by peer")
}
