// Package github implements repository.ChallengeRepository on top of
// go-github, authenticated as a GitHub App installation.
//
// IMPORT ALIAS:
// This package is itself called "github", so the go-github client package is
// imported as gogithub.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/plfanzen/gh-instancer/internal/apperror"
	"github.com/plfanzen/gh-instancer/internal/ghclient"
	"github.com/plfanzen/gh-instancer/internal/model"
	"github.com/plfanzen/gh-instancer/internal/repository"
)

// invitationsPerPage is the largest page size GitHub allows.
const invitationsPerPage = 100

// TokenIssuer produces installation access tokens.
// *auth.InstallationTokenIssuer satisfies it.
type TokenIssuer interface {
	Token(ctx context.Context) (string, error)
}

// Config names where challenge repositories live.
type Config struct {
	APIURL       string // REST base URL
	Organization string // owner of the template and of every challenge repo
	TemplateRepo string // template repository name, owned by Organization
}

// Connector issues one installation token per Connect call and returns a
// Repo bound to it.
type Connector struct {
	issuer TokenIssuer
	cfg    Config
	logger *slog.Logger
}

var _ repository.Connector = (*Connector)(nil)

// NewConnector creates a Connector.
func NewConnector(issuer TokenIssuer, cfg Config, logger *slog.Logger) *Connector {
	return &Connector{issuer: issuer, cfg: cfg, logger: logger}
}

// Connect obtains a new installation token and wraps it in a Repo.
func (c *Connector) Connect(ctx context.Context) (repository.ChallengeRepository, error) {
	token, err := c.issuer.Token(ctx)
	if err != nil {
		return nil, apperror.Upstream("obtaining installation token", err)
	}

	client, err := ghclient.WithToken(c.cfg.APIURL, token)
	if err != nil {
		return nil, fmt.Errorf("repository/github: %w", err)
	}

	return New(client, c.cfg.Organization, c.cfg.TemplateRepo, c.logger), nil
}

// Repo is a ChallengeRepository for one organization.
type Repo struct {
	client   *gogithub.Client
	org      string
	template string
	logger   *slog.Logger
}

var _ repository.ChallengeRepository = (*Repo)(nil)

// New wraps an already-authenticated client.
func New(client *gogithub.Client, org, template string, logger *slog.Logger) *Repo {
	return &Repo{client: client, org: org, template: template, logger: logger}
}

// GetRepo fetches org/name.
func (r *Repo) GetRepo(ctx context.Context, name string) (*model.Repo, error) {
	repo, resp, err := r.client.Repositories.Get(ctx, r.org, name)
	if err != nil {
		if isNotFound(resp, err) {
			return nil, apperror.NotFound("repository", r.org+"/"+name)
		}
		return nil, apperror.Upstream("getting repository "+r.org+"/"+name, err)
	}
	return toRepo(repo), nil
}

// CreateFromTemplate creates a private org/name from the template repo.
// GitHub copies the contents asynchronously; the call returns once the
// repository itself exists.
func (r *Repo) CreateFromTemplate(ctx context.Context, name string) (*model.Repo, error) {
	repo, _, err := r.client.Repositories.CreateFromTemplate(ctx, r.org, r.template, &gogithub.TemplateRepoRequest{
		Name:    gogithub.Ptr(name),
		Owner:   gogithub.Ptr(r.org),
		Private: gogithub.Ptr(true),
	})
	if err != nil {
		return nil, apperror.Upstream("creating repository "+r.org+"/"+name+" from template "+r.template, err)
	}

	r.logger.Info("created challenge repository",
		slog.String("repo", repo.GetFullName()),
		slog.String("template", r.org+"/"+r.template),
	)

	return toRepo(repo), nil
}

// ListInvitations returns every pending invitation on org/name, following
// pagination to the last page.
func (r *Repo) ListInvitations(ctx context.Context, name string) ([]model.Invitation, error) {
	opts := &gogithub.ListOptions{PerPage: invitationsPerPage}

	var out []model.Invitation
	for {
		invs, resp, err := r.client.Repositories.ListInvitations(ctx, r.org, name, opts)
		if err != nil {
			return nil, apperror.Upstream("listing invitations on "+r.org+"/"+name, err)
		}

		for _, inv := range invs {
			out = append(out, model.Invitation{
				ID:          inv.GetID(),
				Invitee:     inv.GetInvitee().GetLogin(),
				Permissions: inv.GetPermissions(),
				HTMLURL:     inv.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

// GetPermission returns username's permission on org/name. A 404 (the
// platform's answer for "not a collaborator" on some installs) comes back
// as apperror.ErrNotFound.
func (r *Repo) GetPermission(ctx context.Context, name, username string) (model.Permission, error) {
	level, resp, err := r.client.Repositories.GetPermissionLevel(ctx, r.org, name, username)
	if err != nil {
		if isNotFound(resp, err) {
			return "", apperror.NotFound("collaborator", username)
		}
		return "", apperror.Upstream("getting permission of "+username+" on "+r.org+"/"+name, err)
	}
	return model.Permission(level.GetPermission()), nil
}

// AddCollaborator invites username to org/name with perm.
//
// GitHub answers 201 with an invitation for new collaborators and 204 with
// no body when the user already has access; the latter returns (nil, nil).
func (r *Repo) AddCollaborator(ctx context.Context, name, username string, perm model.Permission) (*model.Invitation, error) {
	inv, resp, err := r.client.Repositories.AddCollaborator(ctx, r.org, name, username, &gogithub.RepositoryAddCollaboratorOptions{
		Permission: string(perm),
	})
	if err != nil {
		return nil, apperror.Upstream("adding "+username+" to "+r.org+"/"+name, err)
	}
	if resp.StatusCode == http.StatusNoContent || inv.GetHTMLURL() == "" {
		return nil, nil
	}

	return &model.Invitation{
		ID:          inv.GetID(),
		Invitee:     inv.GetInvitee().GetLogin(),
		Permissions: inv.GetPermissions(),
		HTMLURL:     inv.GetHTMLURL(),
	}, nil
}

// isNotFound reports whether a go-github call failed with 404.
func isNotFound(resp *gogithub.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *gogithub.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

func toRepo(repo *gogithub.Repository) *model.Repo {
	return &model.Repo{
		ID:       repo.GetID(),
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
		Private:  repo.GetPrivate(),
		HTMLURL:  repo.GetHTMLURL(),
	}
}
