// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

// Package store provides persistence for users and API-key credentials.
// Two implementations exist: a BadgerDB-backed store for production and an
// in-memory store for development and tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/meridian-bio/meridian/internal/models"
)

// Sentinel errors returned by store implementations.
var (
	// ErrUserNotFound indicates no user exists for the given email or id.
	ErrUserNotFound = errors.New("user not found")

	// ErrAPIKeyNotFound indicates no API key exists for the given id.
	ErrAPIKeyNotFound = errors.New("api key not found")

	// ErrNotOwner indicates the key exists but belongs to another user.
	ErrNotOwner = errors.New("api key not owned by user")
)

// UserStore manages user records keyed by email.
type UserStore interface {
	// GetUserByEmail returns the user with the given email.
	// Returns ErrUserNotFound if no such user exists.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns the user with the given id.
	// Returns ErrUserNotFound if no such user exists.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// ResolveUser returns the user with the given email, creating an
	// active user record on first sight.
	ResolveUser(ctx context.Context, email string) (*models.User, error)
}

// CredentialStore manages API-key credential records. Plaintext keys are
// never stored; only the derived hash is persisted.
type CredentialStore interface {
	// CreateAPIKey persists a new API key record.
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	// GetAPIKey returns the key with the given id regardless of state.
	// Returns ErrAPIKeyNotFound if no such key exists.
	GetAPIKey(ctx context.Context, id string) (*models.APIKey, error)

	// ListActiveAPIKeys returns all active keys across all users, for
	// credential verification scans.
	ListActiveAPIKeys(ctx context.Context) ([]*models.APIKey, error)

	// ListAPIKeysForUser returns all keys owned by the given user,
	// active and revoked.
	ListAPIKeysForUser(ctx context.Context, userID string) ([]*models.APIKey, error)

	// DeactivateAPIKey marks the key inactive. Returns ErrNotOwner when
	// the key belongs to a different user.
	DeactivateAPIKey(ctx context.Context, id, userID string) error

	// TouchLastUsed records when the key last authenticated a request.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// Store combines user and credential persistence behind one handle.
type Store interface {
	UserStore
	CredentialStore

	// Close releases underlying resources.
	Close() error
}
