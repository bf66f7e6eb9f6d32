package model

import "fmt"

// Repo is the subset of a platform repository we look at.
type Repo struct {
	ID       int64
	Name     string
	FullName string
	Private  bool
	HTMLURL  string
}

// Invitation is a pending repository collaboration invitation.
//
// HTMLURL is where the invitee accepts it; every successful provisioning run
// ends with a redirect there.
type Invitation struct {
	ID          int64
	Invitee     string // login of the invited user (may be empty for email invites)
	Permissions string
	HTMLURL     string
}

// Permission is a collaborator permission level on a single repository.
type Permission string

const (
	PermissionNone     Permission = "none"
	PermissionRead     Permission = "read"
	PermissionPull     Permission = "pull"
	PermissionTriage   Permission = "triage"
	PermissionWrite    Permission = "write"
	PermissionPush     Permission = "push"
	PermissionMaintain Permission = "maintain"
	PermissionAdmin    Permission = "admin"
)

// ParseInvitePermission validates a permission that can be granted through
// the add-collaborator endpoint. The read/write spellings only appear in
// lookups, so they are rejected here.
func ParseInvitePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionPull, PermissionTriage, PermissionPush, PermissionMaintain, PermissionAdmin:
		return p, nil
	}
	return "", fmt.Errorf("model: unknown collaborator permission %q", s)
}

// Grants reports whether p gives any access at all. An empty value is
// treated like "none".
func (p Permission) Grants() bool {
	return p != "" && p != PermissionNone
}
