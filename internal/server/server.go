// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It turns a config.Config into the full
// dependency chain and decides which URL goes to which handler.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → auth.AppTokenService          (app private key → app JWTs)
//	  → auth.InstallationTokenIssuer  (app JWT → installation token)
//	  → ghrepo.Connector              (installation token → ChallengeRepository)
//	  → service.ProvisionService
//	  → auth.GitHubProvider           (visitor's OAuth flow)
//	  → service.AuthService
//	  → handler.AuthHandler
//
// Everything is assembled in New (the composition root), so tests can build
// the real chain against a fake GitHub and drive it through Handler().
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/plfanzen/gh-instancer/internal/auth"
	"github.com/plfanzen/gh-instancer/internal/config"
	"github.com/plfanzen/gh-instancer/internal/handler"
	"github.com/plfanzen/gh-instancer/internal/middleware"
	ghrepo "github.com/plfanzen/gh-instancer/internal/repository/github"
	"github.com/plfanzen/gh-instancer/internal/service"
)

// CallbackPath is where GitHub sends the visitor back after authorization.
const CallbackPath = "/oauth/callback"

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second // provisioning makes up to six GitHub calls
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
}

// New builds the dependency chain described in the package comment and
// registers the routes. It fails if the app private key can't be loaded,
// so a bad key surfaces at startup rather than on the first visitor.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	pemKey, err := cfg.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}
	apps, err := auth.NewAppTokenService(cfg.AppID, pemKey)
	if err != nil {
		return nil, fmt.Errorf("server: loading app key: %w", err)
	}

	// === Provisioning side: app credentials only ===
	issuer := auth.NewInstallationTokenIssuer(apps, cfg.APIURL, cfg.Organization, logger)
	connector := ghrepo.NewConnector(issuer, ghrepo.Config{
		APIURL:       cfg.APIURL,
		Organization: cfg.Organization,
		TemplateRepo: cfg.TemplateRepo,
	}, logger)
	provisioner := service.NewProvisionService(connector, service.ProvisionConfig{
		RepoPrefix:   cfg.RepoPrefix,
		LegacyLookup: cfg.LegacyLookup,
		Permission:   cfg.InvitePermission(),
	}, logger)

	// === Visitor side: OAuth user token ===
	provider := auth.NewGitHubProvider(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL, cfg.WebURL, cfg.APIURL)
	logins := service.NewAuthService(provider, provisioner, logger)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(handler.NewAuthHandler(provider, logins, logger))

	return s, nil
}

// setupRoutes configures middleware and the two routes.
//
// ROUTE STRUCTURE:
//
//	*    /oauth/callback → HandleCallback (provision + redirect)
//	*    everything else → HandleAuthorize (redirect to GitHub)
//
// The catch-all is registered as both NotFound and MethodNotAllowed so that
// no path or method ever gets a 404 or 405.
//
// MIDDLEWARE ORDER:
//  1. RequestID: tags each request, picked up by the logger
//  2. RealIP: client address from proxy headers
//  3. Recoverer: a panic becomes a 500 instead of killing the process
//  4. Logger: one line per request
func (s *Server) setupRoutes(h *handler.AuthHandler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.HandleFunc(CallbackPath, h.HandleCallback)
	s.router.NotFound(h.HandleAuthorize)
	s.router.MethodNotAllowed(h.HandleAuthorize)
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and blocks until SIGINT/SIGTERM,
// then drains in-flight requests before returning.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("org", s.config.Organization),
			slog.String("template", s.config.TemplateRepo),
			slog.String("redirect_url", s.config.RedirectURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
