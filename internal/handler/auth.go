// Package handler contains the HTTP request handlers.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (here: one query parameter)
//  2. Call the service layer
//  3. Write the HTTP response (a redirect or a short plain-text error)
//
// Handlers hold no business logic. Everything about repositories and
// invitations lives in internal/service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/plfanzen/gh-instancer/internal/apperror"
	"github.com/plfanzen/gh-instancer/internal/service"
)

// AuthURLer builds the OAuth authorize URL. *auth.GitHubProvider satisfies it.
type AuthURLer interface {
	AuthURL() string
}

// LoginCompleter runs the callback flow. *service.AuthService satisfies it.
type LoginCompleter interface {
	CompleteLogin(ctx context.Context, code string) (*service.ProvisionResult, error)
}

// AuthHandler serves the two routes of the OAuth handshake.
//
//   - HandleAuthorize → redirect the browser to GitHub's authorize page
//   - HandleCallback  → take the code, provision, redirect to the invitation
type AuthHandler struct {
	provider AuthURLer
	logins   LoginCompleter
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(provider AuthURLer, logins LoginCompleter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		logins:   logins,
		logger:   logger,
	}
}

// HandleAuthorize redirects the visitor to GitHub's authorization page.
//
// HTTP: any path other than /oauth/callback, any method → 302
func (h *AuthHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.provider.AuthURL(), http.StatusFound)
}

// HandleCallback completes the OAuth handshake and provisions the visitor's
// challenge repository.
//
// HTTP: GET /oauth/callback?code=xxx
//
//	302 → invitation URL (new or existing)
//	400 → "Missing code parameter" or "User <login> is already a collaborator."
//	502 → a GitHub call failed
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.ValidationFailed("code", "Missing code parameter"))
		return
	}

	result, err := h.logins.CompleteLogin(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth callback failed", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("redirecting to invitation",
		slog.String("action", string(result.Action)),
		slog.String("repo", result.Repository),
	)
	http.Redirect(w, r, result.InvitationURL, http.StatusFound)
}
