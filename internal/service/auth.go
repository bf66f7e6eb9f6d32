// OAUTH CALLBACK FLOW:
// AuthService turns an authorization code into a provisioned challenge repo:
//
//	AuthHandler (HTTP) → AuthService → UserAuthenticator (visitor's OAuth token)
//	                                 ↘ Provisioner      (app installation token)
//
// The two credentials never meet: the user token is dead before the
// provisioner asks for its own installation token.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/plfanzen/gh-instancer/internal/apperror"
	"github.com/plfanzen/gh-instancer/internal/model"
)

// UserAuthenticator is the visitor's side of the OAuth flow.
// *auth.GitHubProvider satisfies it.
type UserAuthenticator interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Identity(ctx context.Context, tok *oauth2.Token) (*model.Identity, error)
	Revoke(ctx context.Context, tok *oauth2.Token) error
}

// Provisioner creates or reuses a challenge repo for a login.
// *ProvisionService satisfies it.
type Provisioner interface {
	Provision(ctx context.Context, username string) (*ProvisionResult, error)
}

// AuthService handles the callback business logic.
type AuthService struct {
	users       UserAuthenticator
	provisioner Provisioner
	logger      *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(users UserAuthenticator, provisioner Provisioner, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:       users,
		provisioner: provisioner,
		logger:      logger,
	}
}

// CompleteLogin handles an OAuth callback.
//
// Steps:
//  1. Exchange code for a user access token
//  2. Read the authenticated login with that token
//  3. Revoke the grant, once, whether or not step 2 worked
//  4. Provision with the login
//
// A failed revocation stops the request before provisioning: we don't hand
// out repository access while a live user token is still around.
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (*ProvisionResult, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "Missing code parameter")
	}

	tok, err := s.users.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Upstream("exchanging OAuth code", err)
	}

	identity, identErr := s.users.Identity(ctx, tok)

	if err := s.users.Revoke(ctx, tok); err != nil {
		return nil, apperror.Upstream("revoking user token", errors.Join(err, identErr))
	}
	if identErr != nil {
		return nil, apperror.Upstream("reading authenticated user", identErr)
	}

	s.logger.Info("user authenticated",
		slog.Int64("githubID", identity.ID),
		slog.String("login", identity.Login),
	)

	result, err := s.provisioner.Provision(ctx, identity.Login)
	if err != nil {
		return nil, fmt.Errorf("service/auth: provisioning %s: %w", identity.Login, err)
	}

	return result, nil
}
