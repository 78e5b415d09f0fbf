// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package auth

import (
	"context"
	"regexp"
	"strings"

	"github.com/meridian-bio/meridian/internal/models"
)

// Identity is the authenticated principal attached to a request context
// after one of the authenticators accepts it.
type Identity struct {
	User *models.User
	// Email is the normalized (trimmed, lowercased) address.
	Email string
	// Mode records which authenticator produced this identity:
	// ModeHeader, ModeAPIKey, or ModePipeline.
	Mode string
	// APIKeyID is set when Mode is ModeAPIKey or ModePipeline.
	APIKeyID string
}

type identityCtxKey struct{}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// GetIdentity retrieves the authenticated identity from the context.
// Returns nil, false if the request was not authenticated.
func GetIdentity(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(*Identity)
	return id, ok && id != nil
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the normalized address looks like an email.
// The pattern matches the proxy contract, not the full RFC grammar.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// EmailFromHeader normalizes and validates a header-supplied address.
// Returns the normalized address and whether it is acceptable.
func EmailFromHeader(raw string) (string, bool) {
	email := NormalizeEmail(raw)
	if email == "" || !ValidEmail(email) {
		return "", false
	}
	return email, true
}
