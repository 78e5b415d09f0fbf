// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package auth

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/meridian-bio/meridian/internal/bodycache"
	"github.com/meridian-bio/meridian/internal/logging"
	"github.com/meridian-bio/meridian/internal/models"
)

// maxSignedBodyBytes caps how much of a pipeline callback body is
// buffered for signature verification.
const maxSignedBodyBytes = 10 << 20

// Authenticator resolves an HTTP request to an identity.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// ExemptFromAuth reports whether the path is served without
// authentication: health probes and API schema/documentation.
func ExemptFromAuth(path string) bool {
	if path == "/openapi.json" || path == "/api/health" {
		return true
	}
	return strings.HasPrefix(path, "/api/health/") ||
		strings.HasPrefix(path, "/docs") ||
		strings.HasPrefix(path, "/redoc")
}

// RequireHeader authenticates requests via proxy identity headers.
// Exempt paths pass through unauthenticated.
func RequireHeader(h *HeaderAuthenticator) func(http.Handler) http.Handler {
	return requireAuthenticator(h, true)
}

// RequireAPIKey authenticates requests via bearer API keys.
func RequireAPIKey(a *APIKeyAuthenticator) func(http.Handler) http.Handler {
	return requireAuthenticator(a, false)
}

func requireAuthenticator(a Authenticator, allowExempt bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowExempt && ExemptFromAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			id, err := a.Authenticate(r)
			if err != nil {
				handleAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequirePipeline authenticates pipeline callbacks: bearer API key for
// the user identity, then an HMAC signature over the request body. Header
// identity is never accepted on this surface.
//
// The body is buffered for verification and restored for downstream
// handlers.
func RequirePipeline(a *APIKeyAuthenticator, v *PipelineVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r)
			if err != nil {
				handleAuthError(w, r, err)
				return
			}
			id.Mode = ModePipeline

			if !v.Required() {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}
			if !v.Configured() {
				handleAuthError(w, r, ErrServerMisconfigured)
				return
			}

			body, ok := bodycache.FromContext(r.Context())
			if !ok {
				var err error
				body, err = readAndRestoreBody(r)
				if err != nil {
					handleAuthError(w, r, ErrSignatureInvalid)
					return
				}
			}
			signature := r.Header.Get(SignatureHeader)
			timestamp := r.Header.Get(TimestampHeader)
			if timestamp == "" {
				timestamp = "0"
			}
			if !v.VerifySignatureFlexible(signature, timestamp, body) {
				v.seclog.LogSignatureFailure(id.Email, signature != "", r.Header.Get(TimestampHeader) != "")
				handleAuthError(w, r, ErrSignatureInvalid)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxSignedBodyBytes {
		return nil, errors.New("body exceeds signable size")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// handleAuthError maps sentinel errors onto HTTP status codes and writes
// the standard error envelope. Unknown errors are treated as internal.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code, message string

	switch {
	case errors.Is(err, ErrNoCredentials):
		status, code, message = http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"
	case errors.Is(err, ErrInvalidCredentials):
		status, code, message = http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials"
	case errors.Is(err, ErrSignatureInvalid):
		status, code, message = http.StatusUnauthorized, "INVALID_SIGNATURE", "Invalid request signature"
	case errors.Is(err, ErrServerMisconfigured):
		status, code, message = http.StatusInternalServerError, "SERVER_ERROR", "Server configuration error"
	case errors.Is(err, ErrAuthUnavailable):
		status, code, message = http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Authentication temporarily unavailable"
	default:
		status, code, message = http.StatusInternalServerError, "SERVER_ERROR", "Internal server error"
	}

	if status >= http.StatusInternalServerError {
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("authentication error")
	}
	RecordAuthFailure(code)

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
		Error: &models.APIError{Code: code, Message: message},
	}
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		logging.Error().Err(encodeErr).Msg("failed to encode error response")
	}
}
