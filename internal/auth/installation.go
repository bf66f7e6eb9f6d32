package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v75/github"

	"github.com/plfanzen/gh-instancer/internal/ghclient"
)

// InstallationTokenIssuer mints installation access tokens for one
// organization's installation of the GitHub App.
//
// FLOW (two calls, both authenticated with a fresh app JWT):
//  1. GET  /orgs/{org}/installation              → installation ID
//  2. POST /app/installations/{id}/access_tokens → token, scoped down to
//     contents:read and administration:write
//
// Nothing is cached: every provisioning request gets its own token, which
// expires on GitHub's side after an hour and is simply dropped here.
type InstallationTokenIssuer struct {
	apps   *AppTokenService
	apiURL string
	org    string
	logger *slog.Logger
	perms  github.InstallationPermissions
}

// NewInstallationTokenIssuer creates an issuer for org's installation.
func NewInstallationTokenIssuer(apps *AppTokenService, apiURL, org string, logger *slog.Logger) *InstallationTokenIssuer {
	return &InstallationTokenIssuer{
		apps:   apps,
		apiURL: apiURL,
		org:    org,
		logger: logger,
		perms: github.InstallationPermissions{
			Contents:       github.Ptr("read"),
			Administration: github.Ptr("write"),
		},
	}
}

// Token returns a new installation access token.
func (i *InstallationTokenIssuer) Token(ctx context.Context) (string, error) {
	appJWT, err := i.apps.Generate()
	if err != nil {
		return "", err
	}

	client, err := ghclient.WithToken(i.apiURL, appJWT)
	if err != nil {
		return "", err
	}

	install, _, err := client.Apps.FindOrganizationInstallation(ctx, i.org)
	if err != nil {
		return "", fmt.Errorf("auth: finding installation for org %s: %w", i.org, err)
	}

	perms := i.perms
	tok, _, err := client.Apps.CreateInstallationToken(ctx, install.GetID(), &github.InstallationTokenOptions{
		Permissions: &perms,
	})
	if err != nil {
		return "", fmt.Errorf("auth: creating installation token (installation %d): %w", install.GetID(), err)
	}
	if tok.GetToken() == "" {
		return "", fmt.Errorf("auth: GitHub returned an empty installation token (installation %d)", install.GetID())
	}

	i.logger.Debug("issued installation token",
		slog.String("org", i.org),
		slog.Int64("installationID", install.GetID()),
		slog.Time("expiresAt", tok.GetExpiresAt().Time),
	)

	return tok.GetToken(), nil
}
