// Package config loads the process configuration from the environment.
//
// The whole configuration is parsed once, in main, into a Config value that is
// passed down explicitly. Anything required is checked here so a
// misconfigured deployment fails at startup instead of on the first visitor.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/plfanzen/gh-instancer/internal/model"
)

// Config holds every setting the server needs.
type Config struct {
	Port     int    `env:"PORT"      envDefault:"8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// GitHub App credentials. The app ID and private key mint installation
	// tokens; the client ID and secret drive the user OAuth flow.
	AppID          int64  `env:"GITHUB_APP_ID,required,notEmpty"`
	ClientID       string `env:"GITHUB_CLIENT_ID,required,notEmpty"`
	ClientSecret   string `env:"GITHUB_CLIENT_SECRET,required,notEmpty"`
	PrivateKey     string `env:"GITHUB_APP_PRIVATE_KEY"`
	PrivateKeyFile string `env:"GITHUB_APP_PRIVATE_KEY_FILE"`

	RedirectURL string `env:"OAUTH_REDIRECT_URL" envDefault:"http://gh-instancer.plfanzen.garden/oauth/callback"`

	Organization string `env:"CHALLENGE_ORG"           envDefault:"plfanzen-challenges"`
	TemplateRepo string `env:"CHALLENGE_TEMPLATE_REPO" envDefault:"challenge-template"`
	RepoPrefix   string `env:"CHALLENGE_REPO_PREFIX"   envDefault:"challenge-repo-"`
	Permission   string `env:"CHALLENGE_PERMISSION"    envDefault:"triage"`
	// LegacyLookup checks existence under "challenge-<login>" instead of the
	// operative name, matching the first deployment of this service.
	LegacyLookup bool `env:"CHALLENGE_LEGACY_LOOKUP" envDefault:"false"`

	APIURL string `env:"GITHUB_API_URL" envDefault:"https://api.github.com/"`
	WebURL string `env:"GITHUB_WEB_URL" envDefault:"https://github.com"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
// Used by tests.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field rules that struct tags can't express.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.AppID <= 0 {
		errs = append(errs, fmt.Errorf("GITHUB_APP_ID must be positive, got %d", c.AppID))
	}
	if c.PrivateKey == "" && c.PrivateKeyFile == "" {
		errs = append(errs, errors.New("one of GITHUB_APP_PRIVATE_KEY or GITHUB_APP_PRIVATE_KEY_FILE is required"))
	}
	if _, err := model.ParseInvitePermission(c.Permission); err != nil {
		errs = append(errs, fmt.Errorf("CHALLENGE_PERMISSION: %w", err))
	}
	if c.Organization == "" || c.TemplateRepo == "" || c.RepoPrefix == "" {
		errs = append(errs, errors.New("CHALLENGE_ORG, CHALLENGE_TEMPLATE_REPO and CHALLENGE_REPO_PREFIX must not be empty"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// PrivateKeyPEM returns the app private key. An inline key wins over a key
// file. Literal "\n" sequences are expanded, since most secret stores flatten
// PEM blocks onto one line.
func (c Config) PrivateKeyPEM() ([]byte, error) {
	if c.PrivateKey != "" {
		return []byte(strings.ReplaceAll(c.PrivateKey, `\n`, "\n")), nil
	}
	b, err := os.ReadFile(c.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("config: reading private key file: %w", err)
	}
	return b, nil
}

// InvitePermission returns the validated invite permission.
func (c Config) InvitePermission() model.Permission {
	p, _ := model.ParseInvitePermission(c.Permission)
	return p
}

// SlogLevel maps LOG_LEVEL onto a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
