// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/meridian-bio/meridian/internal/config"
	"github.com/meridian-bio/meridian/internal/logging"
	"github.com/meridian-bio/meridian/internal/store"
)

// HeaderAuthenticator resolves identities from headers injected by a
// trusted authenticating proxy in front of the API.
//
// Resolution order:
//  1. Bypass mode (debug or skip-header-check): a valid header email is
//     used when present, otherwise the configured mock user. Requests in
//     bypass mode always authenticate.
//  2. Shared secret configured: the proxy secret header must match in
//     constant time, then the email header must be present and valid.
//  3. No shared secret: the email header is accepted only when header
//     trust is explicitly enabled; otherwise the deployment is
//     misconfigured and the request fails with a server error.
type HeaderAuthenticator struct {
	cfg    config.SecurityConfig
	users  store.UserStore
	seclog *logging.SecurityLogger
}

// NewHeaderAuthenticator builds a header authenticator over the user store.
func NewHeaderAuthenticator(cfg config.SecurityConfig, users store.UserStore) *HeaderAuthenticator {
	return &HeaderAuthenticator{
		cfg:    cfg,
		users:  users,
		seclog: logging.NewSecurityLogger(),
	}
}

// Authenticate resolves the request to an identity or returns one of the
// sentinel errors for middleware to map onto a status code.
func (h *HeaderAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	ctx := r.Context()

	if h.cfg.Debug || h.cfg.SkipHeaderCheck {
		return h.bypassIdentity(ctx, r)
	}

	if h.cfg.ProxySharedSecret != "" {
		got := r.Header.Get(h.cfg.ProxySecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.ProxySharedSecret)) != 1 {
			h.seclog.LogAuthFailure(ModeHeader, "proxy secret mismatch")
			return nil, fmt.Errorf("%w: invalid proxy authentication", ErrInvalidCredentials)
		}
		return h.identityFromEmailHeader(ctx, r, false)
	}

	if !h.cfg.TrustIdentityHeader {
		h.seclog.LogAuthFailure(ModeHeader, "no proxy secret configured and header trust disabled")
		return nil, ErrServerMisconfigured
	}
	// No shared secret: the identity header is the entire proxy contract,
	// so its absence means the proxy is not injecting it. That is an
	// operator problem, not a client one.
	return h.identityFromEmailHeader(ctx, r, true)
}

func (h *HeaderAuthenticator) bypassIdentity(ctx context.Context, r *http.Request) (*Identity, error) {
	email, ok := EmailFromHeader(r.Header.Get(h.cfg.UserIDHeader))
	if !ok {
		email = NormalizeEmail(h.cfg.MockUserEmail)
	}
	return h.resolve(ctx, email)
}

// identityFromEmailHeader reads and validates the identity header.
// trustedPerimeter marks the no-shared-secret deployment, where a missing
// or malformed header indicates a misconfigured proxy (server error)
// rather than a client that failed to authenticate.
func (h *HeaderAuthenticator) identityFromEmailHeader(ctx context.Context, r *http.Request, trustedPerimeter bool) (*Identity, error) {
	raw := r.Header.Get(h.cfg.UserIDHeader)
	if raw == "" {
		h.seclog.LogAuthFailure(ModeHeader, "missing identity header")
		if trustedPerimeter {
			return nil, fmt.Errorf("%w: proxy did not inject identity header", ErrServerMisconfigured)
		}
		return nil, ErrNoCredentials
	}
	email, ok := EmailFromHeader(raw)
	if !ok {
		h.seclog.LogAuthFailure(ModeHeader, "malformed identity header")
		if trustedPerimeter {
			return nil, fmt.Errorf("%w: proxy injected invalid identity header", ErrServerMisconfigured)
		}
		return nil, fmt.Errorf("%w: invalid user email", ErrInvalidCredentials)
	}
	return h.resolve(ctx, email)
}

func (h *HeaderAuthenticator) resolve(ctx context.Context, email string) (*Identity, error) {
	user, err := h.users.ResolveUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving user: %v", ErrAuthUnavailable, err)
	}
	h.seclog.LogAuthSuccess(email, user.ID, ModeHeader)
	RecordAuthAttempt(ModeHeader, true)
	return &Identity{User: user, Email: email, Mode: ModeHeader}, nil
}
