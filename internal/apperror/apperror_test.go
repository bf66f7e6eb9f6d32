package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("repository", "challenge-repo-octocat"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("code", "Missing code parameter"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("User octocat is already a collaborator."),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Upstream wraps ErrUpstream",
			err:       Upstream("getting repository", cause),
			target:    ErrUpstream,
			wantMatch: true,
		},
		{
			name:      "Upstream exposes its cause",
			err:       Upstream("getting repository", cause),
			target:    cause,
			wantMatch: true,
		},
		{
			name:      "wrapped NotFound still matches",
			err:       fmt.Errorf("provisioning: %w", NotFound("repository", "x")),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrUpstream",
			err:       NotFound("repository", "x"),
			target:    ErrUpstream,
			wantMatch: false,
		},
		{
			name:      "Upstream does NOT match ErrNotFound",
			err:       Upstream("listing invitations", cause),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("repository", "challenge-repo-octocat"),
			wantMessage: "repository not found with id challenge-repo-octocat",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("code", "Missing code parameter"),
			wantMessage: "Missing code parameter",
		},
		{
			name:        "Conflict uses custom message",
			err:         Conflict("User octocat is already a collaborator."),
			wantMessage: "User octocat is already a collaborator.",
		},
		{
			name:        "Upstream appends the cause",
			err:         Upstream("adding collaborator", errors.New("403 Forbidden")),
			wantMessage: "adding collaborator: 403 Forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("code", "Missing code parameter")

	if err.Field != "code" {
		t.Errorf("Field = %q, want %q", err.Field, "code")
	}
}
