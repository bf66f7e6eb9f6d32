// Package service contains the business logic layer of the application.
//
// THE LAYERS:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → decides what to do with a visitor
//	Repository (Data layer)  → REST calls against the code-hosting platform
//
// The service never sees HTTP and never builds a go-github request. It works
// in terms of model types and repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/plfanzen/gh-instancer/internal/apperror"
	"github.com/plfanzen/gh-instancer/internal/model"
	"github.com/plfanzen/gh-instancer/internal/repository"
)

// Action records which provisioning branch ran. Exactly one runs per call.
type Action string

const (
	// ActionCreated: the repo did not exist, was created from the template,
	// and the user was invited.
	ActionCreated Action = "created"
	// ActionInvited: the repo existed, the user had no invite and no access,
	// and was invited.
	ActionInvited Action = "invited"
	// ActionExistingInvite: the user already had a pending invitation.
	// Nothing was written.
	ActionExistingInvite Action = "existing_invite"
)

// ProvisionResult is what a successful run hands back to the handler: where
// to send the visitor, and why.
type ProvisionResult struct {
	Action        Action
	Repository    string
	InvitationURL string
}

// ProvisionConfig holds the naming and permission rules.
type ProvisionConfig struct {
	// RepoPrefix is prepended to the login to form the operative repo name,
	// e.g. "challenge-repo-" → "challenge-repo-octocat".
	RepoPrefix string
	// LegacyLookup checks existence under "challenge-<login>" while every
	// other call uses the operative name. That lookup can never match a repo
	// this service created, so every visit takes the create branch.
	LegacyLookup bool
	// Permission is granted to every invited user.
	Permission model.Permission
}

// legacyLookupPrefix is the existence-check prefix of the first deployment.
const legacyLookupPrefix = "challenge-"

// ProvisionService decides, per visitor, whether to create a challenge
// repository, send an invitation, point at an existing one, or refuse.
//
// DEPENDENCIES:
//   - repos  repository.Connector → a fresh installation-scoped repository per call
//   - cfg    ProvisionConfig      → naming and permission rules
//   - logger *slog.Logger
type ProvisionService struct {
	repos  repository.Connector
	cfg    ProvisionConfig
	logger *slog.Logger
}

// NewProvisionService creates a ProvisionService.
func NewProvisionService(repos repository.Connector, cfg ProvisionConfig, logger *slog.Logger) *ProvisionService {
	return &ProvisionService{repos: repos, cfg: cfg, logger: logger}
}

// RepoName returns the operative challenge repository name for username.
func (s *ProvisionService) RepoName(username string) string {
	return s.cfg.RepoPrefix + username
}

// lookupName returns the name used for the existence check only.
func (s *ProvisionService) lookupName(username string) string {
	if s.cfg.LegacyLookup {
		return legacyLookupPrefix + username
	}
	return s.RepoName(username)
}

// Provision runs the decision sequence for username.
//
// DECISION TABLE (strict order, each step depends on the previous):
//
//	repo exists? │ invited? │ has access? │ outcome
//	─────────────┼──────────┼─────────────┼──────────────────────────────
//	no           │    -     │      -      │ create from template, invite
//	yes          │ yes      │      -      │ redirect to existing invitation
//	yes          │ no       │ yes         │ 400 "already a collaborator"
//	yes          │ no       │ no          │ invite
//
// A 404 on the existence or permission lookup means "absent". Any other
// failure is returned as-is (apperror.ErrUpstream) rather than being read as
// "absent", so an outage can't route a returning user into the create branch.
func (s *ProvisionService) Provision(ctx context.Context, username string) (*ProvisionResult, error) {
	if !model.ValidLogin(username) {
		return nil, apperror.ValidationFailed("username", fmt.Sprintf("Invalid username %q", username))
	}

	log := s.logger.With(
		slog.String("run", xid.New().String()),
		slog.String("user", username),
	)

	repo, err := s.repos.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/provision: %w", err)
	}

	name := s.RepoName(username)

	exists, err := s.repoExists(ctx, repo, s.lookupName(username))
	if err != nil {
		return nil, fmt.Errorf("service/provision: %w", err)
	}

	action := ActionInvited
	if !exists {
		if _, err := repo.CreateFromTemplate(ctx, name); err != nil {
			return nil, fmt.Errorf("service/provision: %w", err)
		}
		action = ActionCreated
	} else {
		invs, err := repo.ListInvitations(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("service/provision: %w", err)
		}
		for _, inv := range invs {
			if inv.Invitee == username {
				log.Info("provisioned", slog.String("action", string(ActionExistingInvite)), slog.String("repo", name))
				return &ProvisionResult{
					Action:        ActionExistingInvite,
					Repository:    name,
					InvitationURL: inv.HTMLURL,
				}, nil
			}
		}

		perm, err := repo.GetPermission(ctx, name, username)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/provision: %w", err)
		}
		if perm.Grants() {
			log.Info("provisioned", slog.String("action", "already_collaborator"), slog.String("permission", string(perm)))
			return nil, alreadyCollaborator(username)
		}
	}

	inv, err := repo.AddCollaborator(ctx, name, username, s.cfg.Permission)
	if err != nil {
		return nil, fmt.Errorf("service/provision: %w", err)
	}
	if inv == nil {
		// The platform says the user already has access. Only reachable when
		// the permission lookup was skipped (create branch) or raced.
		log.Info("provisioned", slog.String("action", "already_collaborator"))
		return nil, alreadyCollaborator(username)
	}

	log.Info("provisioned", slog.String("action", string(action)), slog.String("repo", name))

	return &ProvisionResult{
		Action:        action,
		Repository:    name,
		InvitationURL: inv.HTMLURL,
	}, nil
}

func (s *ProvisionService) repoExists(ctx context.Context, repo repository.ChallengeRepository, name string) (bool, error) {
	_, err := repo.GetRepo(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperror.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func alreadyCollaborator(username string) *apperror.AppError {
	return apperror.Conflict(fmt.Sprintf("User %s is already a collaborator.", username))
}
