package ghclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plfanzen/gh-instancer/internal/ghclient"
)

func TestNew_BaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"empty keeps default", "", ghclient.DefaultAPIURL},
		{"default", ghclient.DefaultAPIURL, ghclient.DefaultAPIURL},
		{"enterprise gets trailing slash", "https://ghe.example.com/api/v3", "https://ghe.example.com/api/v3/"},
		{"trailing slash kept", "http://127.0.0.1:9999/", "http://127.0.0.1:9999/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ghclient.New(nil, tt.baseURL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.BaseURL.String())
		})
	}
}

func TestNew_BadURL(t *testing.T) {
	_, err := ghclient.New(nil, "://no-scheme")
	assert.Error(t, err)
}

func TestWithToken_SendsBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"octocat"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := ghclient.WithToken(srv.URL, "ghs_abc")
	require.NoError(t, err)

	user, _, err := c.Users.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "octocat", user.GetLogin())
	assert.Equal(t, "Bearer ghs_abc", got)
}
