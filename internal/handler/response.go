package handler

// RESPONSE HELPERS:
// Every response this server sends is either a 302 redirect or a short
// plain-text body. There is no JSON API and no HTML page.
//
// ERROR FORMAT:
// Errors the visitor can act on (bad input, already a collaborator) are sent
// as 400 with the AppError message as the whole body, e.g.
//
//	User octocat is already a collaborator.
//
// Anything else gets a generic body; the details go to the log only.

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/plfanzen/gh-instancer/internal/apperror"
)

// writeText sends body as text/plain with the given status code, with no
// trailing newline.
func writeText(w http.ResponseWriter, logger *slog.Logger, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		logger.Error("failed to write response body", slog.String("error", err.Error()))
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation → 400, message shown
//	apperror.ErrConflict   → 400, message shown
//	apperror.ErrUpstream   → 502, generic message
//	anything else          → 500, generic message
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
			writeText(w, logger, http.StatusBadRequest, appErr.Message)
			return
		case errors.Is(err, apperror.ErrUpstream):
			writeText(w, logger, http.StatusBadGateway, "GitHub request failed")
			return
		}
	}

	// NEVER expose internal error details to the client: upstream errors can
	// carry request URLs and response bodies.
	writeText(w, logger, http.StatusInternalServerError, "Internal Server Error")
}
