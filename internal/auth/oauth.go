package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/plfanzen/gh-instancer/internal/ghclient"
	"github.com/plfanzen/gh-instancer/internal/model"
)

// DefaultWebURL is the host serving GitHub's OAuth authorize and token pages.
const DefaultWebURL = "https://github.com"

// userScope is the only scope we ask visitors for: enough to read who they are.
const userScope = "read:user"

// GitHubProvider wraps golang.org/x/oauth2 for the visitor's side of the flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW, AS USED HERE:
//  1. AuthURL: redirect the browser to GitHub's authorize page with our client
//     ID, the fixed redirect URI and scope read:user.
//  2. GitHub redirects back to /oauth/callback with a short-lived "code".
//  3. Exchange: trade the code for a user access token (server-to-server,
//     authenticated with the client secret).
//  4. Identity: call GET /user once with that token.
//  5. Revoke: delete the grant so the token is dead before we do anything else.
//
// The user token never leaves this process and is never stored.
type GitHubProvider struct {
	config       *oauth2.Config
	apiURL       string
	clientID     string
	clientSecret string
}

// NewGitHubProvider creates a GitHubProvider.
//
// webURL and apiURL point at github.com and api.github.com in production; they
// are parameters so tests (and GitHub Enterprise) can swap them.
func NewGitHubProvider(clientID, clientSecret, redirectURL, webURL, apiURL string) *GitHubProvider {
	endpoint := githuboauth.Endpoint
	if webURL != "" && webURL != DefaultWebURL {
		base := strings.TrimSuffix(webURL, "/")
		endpoint = oauth2.Endpoint{
			AuthURL:   base + "/login/oauth/authorize",
			TokenURL:  base + "/login/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		}
	}

	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{userScope},
			Endpoint:     endpoint,
		},
		apiURL:       apiURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// AuthURL returns the URL to redirect a visitor to for authorization.
//
// No state parameter is sent: the callback carries no session to bind it to,
// and the code is only ever used to look up the visitor's own login.
func (p *GitHubProvider) AuthURL() string {
	return p.config.AuthCodeURL("")
}

// Exchange trades the authorization code for a user access token.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	return tok, nil
}

// Identity reads the authenticated user behind tok.
func (p *GitHubProvider) Identity(ctx context.Context, tok *oauth2.Token) (*model.Identity, error) {
	// oauth2.Config.Client adds "Authorization: Bearer <token>" to every request.
	client, err := ghclient.New(p.config.Client(ctx, tok), p.apiURL)
	if err != nil {
		return nil, err
	}

	// An empty user name means "the authenticated user" (GET /user).
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	if user.GetLogin() == "" {
		return nil, fmt.Errorf("auth: GitHub returned a user without a login")
	}

	return &model.Identity{ID: user.GetID(), Login: user.GetLogin()}, nil
}

// Revoke deletes the app's grant for the token's owner, which invalidates
// tok and every other token issued under the same grant.
//
// DELETE /applications/{client_id}/grant is authenticated with HTTP basic
// auth as the OAuth app itself (client ID + secret), not with the user token.
func (p *GitHubProvider) Revoke(ctx context.Context, tok *oauth2.Token) error {
	basic := &github.BasicAuthTransport{
		Username: p.clientID,
		Password: p.clientSecret,
	}
	client, err := ghclient.New(&http.Client{Transport: basic}, p.apiURL)
	if err != nil {
		return err
	}

	if _, err := client.Authorizations.DeleteGrant(ctx, p.clientID, tok.AccessToken); err != nil {
		return fmt.Errorf("auth: deleting OAuth grant: %w", err)
	}
	return nil
}
