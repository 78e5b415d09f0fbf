// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

// Package models defines the shared data structures used across the
// authentication core and its HTTP surface.
package models

import "time"

// User is the durable identity record attached to authenticated requests.
// Users are resolved-or-created on first sight of a validated email; the
// email is the natural key, the UUID the stable internal id.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIKey is a stored API credential. KeyHash is the hex-encoded
// salt-prefixed PBKDF2 derivation of the raw key; the raw key itself is
// never persisted and is shown to the caller exactly once at creation.
//
// Keys are soft-revoked: IsActive flips to false on deactivation and the
// record is retained for audit purposes.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	CreatedBy  string     `json:"created_by,omitempty"`
}

// CreateAPIKeyRequest is the payload for issuing a new API key.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

// CreateAPIKeyResponse returns the new key record plus the raw key.
// The raw key cannot be recovered after this response.
type CreateAPIKeyResponse struct {
	APIKey APIKey `json:"api_key"`
	Key    string `json:"key"`
}

// MembershipCacheStats reports the state of the group-membership cache.
// ExpiredEntries is computed at call time from entry timestamps.
type MembershipCacheStats struct {
	TotalEntries   int `json:"total_entries"`
	ValidEntries   int `json:"valid_entries"`
	ExpiredEntries int `json:"expired_entries"`
	TTLSeconds     int `json:"cache_ttl_seconds"`
}
