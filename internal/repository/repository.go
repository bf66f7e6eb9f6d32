// Package repository defines the data layer: the challenge repositories,
// invitations and collaborator permissions that live on the code-hosting
// platform.
//
// There is no local storage. "Repository" here is both the layer name and
// the thing it manages: every method is one REST call against the
// organization that hosts the challenge repos.
package repository

import (
	"context"

	"github.com/plfanzen/gh-instancer/internal/model"
)

// ChallengeRepository is the set of platform operations provisioning needs.
// All names are repository names inside the configured organization.
//
// LOOKUP CONTRACT:
// GetRepo and GetPermission return an error wrapping apperror.ErrNotFound
// when the platform answers 404. Every other failure wraps
// apperror.ErrUpstream. Callers must not treat the two the same.
type ChallengeRepository interface {
	GetRepo(ctx context.Context, name string) (*model.Repo, error)
	CreateFromTemplate(ctx context.Context, name string) (*model.Repo, error)
	ListInvitations(ctx context.Context, name string) ([]model.Invitation, error)
	GetPermission(ctx context.Context, name, username string) (model.Permission, error)
	// AddCollaborator returns (nil, nil) when the platform reports the user
	// is already a collaborator and no invitation was created.
	AddCollaborator(ctx context.Context, name, username string, perm model.Permission) (*model.Invitation, error)
}

// Connector hands out a ChallengeRepository bound to a freshly issued
// installation credential. Call Connect once per provisioning request.
type Connector interface {
	Connect(ctx context.Context) (ChallengeRepository, error)
}
