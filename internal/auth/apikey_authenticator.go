// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/meridian-bio/meridian/internal/logging"
	"github.com/meridian-bio/meridian/internal/models"
	"github.com/meridian-bio/meridian/internal/store"
)

// touchTimeout bounds the async last-used write so a slow store cannot
// accumulate goroutines.
const touchTimeout = 5 * time.Second

// APIKeyAuthenticator verifies bearer API keys against the credential
// store. Verification is a linear scan over all active keys: each key has
// its own salt, so there is no lookup index over the plaintext. The scan
// stops at the first match.
type APIKeyAuthenticator struct {
	store  store.Store
	seclog *logging.SecurityLogger
}

// NewAPIKeyAuthenticator builds an API-key authenticator over the store.
func NewAPIKeyAuthenticator(s store.Store) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{
		store:  s,
		seclog: logging.NewSecurityLogger(),
	}
}

// BearerToken extracts the token from an Authorization: Bearer header.
// Returns "" when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Authenticate resolves a bearer API key to an identity. A matching key
// has its last-used timestamp updated asynchronously so credential
// verification latency is not coupled to the write path.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, ErrNoCredentials
	}
	return a.AuthenticateToken(r.Context(), token)
}

// AuthenticateToken verifies a raw API key token against all active
// credentials and resolves the owning user.
func (a *APIKeyAuthenticator) AuthenticateToken(ctx context.Context, token string) (*Identity, error) {
	keys, err := a.store.ListActiveAPIKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing credentials: %v", ErrAuthUnavailable, err)
	}

	scanStart := time.Now()
	var matched *models.APIKey
	for _, key := range keys {
		if VerifyAPIKey(token, key.KeyHash) {
			matched = key
			break
		}
	}
	ObserveKeyVerifyDuration(time.Since(scanStart).Seconds())
	if matched == nil {
		a.seclog.LogAuthFailure(ModeAPIKey, "no matching api key")
		RecordAuthAttempt(ModeAPIKey, false)
		return nil, fmt.Errorf("%w: invalid api key", ErrInvalidCredentials)
	}

	user, err := a.store.GetUserByID(ctx, matched.UserID)
	if err != nil {
		// An active key pointing at a missing user is a data integrity
		// problem, not a client error.
		return nil, fmt.Errorf("%w: resolving key owner: %v", ErrAuthUnavailable, err)
	}
	if !user.IsActive {
		a.seclog.LogAuthFailure(ModeAPIKey, "key owner deactivated")
		return nil, fmt.Errorf("%w: user inactive", ErrInvalidCredentials)
	}

	a.touchAsync(matched.ID)
	a.seclog.LogAuthSuccess(user.Email, user.ID, ModeAPIKey)
	RecordAuthAttempt(ModeAPIKey, true)
	return &Identity{User: user, Email: user.Email, Mode: ModeAPIKey, APIKeyID: matched.ID}, nil
}

// touchAsync records key usage off the request path. Failures are logged
// and otherwise ignored; last-used is advisory metadata.
func (a *APIKeyAuthenticator) touchAsync(keyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := a.store.TouchLastUsed(ctx, keyID, time.Now().UTC()); err != nil {
			logging.Warn().Err(err).Str("key_id", keyID).Msg("failed to record api key usage")
		}
	}()
}
