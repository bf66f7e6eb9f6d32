// Package model defines the data structures used throughout the application.
//
// Nothing here is persisted. Every value is read fresh from the code-hosting
// platform on each request and dropped when the request ends.
package model

import (
	"strings"
	"unicode"
)

// Identity is the authenticated visitor, as reported by the platform's
// "get the authenticated user" endpoint after the OAuth code exchange.
//
// We only keep the fields provisioning needs. The numeric ID is logged to
// correlate runs; Login drives every repository name and invitation lookup.
type Identity struct {
	ID    int64
	Login string // GitHub username, e.g. "octocat"
}

// ValidLogin reports whether login is safe to splice into a repository name
// and a URL path.
//
// The login comes from the platform's authenticated-user endpoint, so it is
// not checked against GitHub's naming rules: managed-user logins carry an
// underscore ("mona_octocorp") and some old accounts end in a hyphen. Only
// values that could change which path is addressed are refused.
func ValidLogin(login string) bool {
	if login == "" || strings.Contains(login, "/") || strings.Contains(login, "..") {
		return false
	}
	return !strings.ContainsFunc(login, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}
