// Package ghclient builds go-github clients pointed at a configurable API
// base URL, so the same code talks to api.github.com, a GitHub Enterprise
// host, or an in-process fake during tests.
package ghclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v75/github"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com/"

// New returns a client using httpClient (nil means http.DefaultClient) and
// rooted at baseURL. An empty baseURL keeps go-github's default.
func New(httpClient *http.Client, baseURL string) (*github.Client, error) {
	c := github.NewClient(httpClient)
	if baseURL == "" || baseURL == DefaultAPIURL {
		return c, nil
	}

	// go-github requires a trailing slash on BaseURL.
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ghclient: parsing base URL %q: %w", baseURL, err)
	}
	c.BaseURL = u
	return c, nil
}

// WithToken returns a client that sends token as a bearer credential.
func WithToken(baseURL, token string) (*github.Client, error) {
	c, err := New(nil, baseURL)
	if err != nil {
		return nil, err
	}
	return c.WithAuthToken(token), nil
}
