// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-bio/meridian/internal/models"
)

// MemoryStore implements Store with plain maps. Not persistent; intended
// for development and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	usersByEmail map[string]*models.User
	usersByID    map[string]string // id -> email
	apiKeys      map[string]*models.APIKey
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[string]string),
		apiKeys:      make(map[string]*models.APIKey),
	}
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// GetUserByEmail returns the user with the given email.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// GetUserByID returns the user with the given id.
func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.usersByID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *s.usersByEmail[email]
	return &u, nil
}

// ResolveUser returns the user with the given email, creating an active
// record on first sight.
func (s *MemoryStore) ResolveUser(_ context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.usersByEmail[email]; ok {
		u := *user
		return &u, nil
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Username:  email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.usersByEmail[email] = user
	s.usersByID[user.ID] = email

	u := *user
	return &u, nil
}

// CreateAPIKey persists a new API key record.
func (s *MemoryStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := *key
	s.apiKeys[key.ID] = &k
	return nil
}

// GetAPIKey returns the key with the given id regardless of state.
func (s *MemoryStore) GetAPIKey(_ context.Context, id string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return nil, ErrAPIKeyNotFound
	}
	k := *key
	return &k, nil
}

// ListActiveAPIKeys returns all active keys across all users.
func (s *MemoryStore) ListActiveAPIKeys(_ context.Context) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []*models.APIKey
	for _, key := range s.apiKeys {
		if key.IsActive {
			k := *key
			keys = append(keys, &k)
		}
	}
	return keys, nil
}

// ListAPIKeysForUser returns all keys owned by the given user.
func (s *MemoryStore) ListAPIKeysForUser(_ context.Context, userID string) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []*models.APIKey
	for _, key := range s.apiKeys {
		if key.UserID == userID {
			k := *key
			keys = append(keys, &k)
		}
	}
	return keys, nil
}

// DeactivateAPIKey marks the key inactive.
func (s *MemoryStore) DeactivateAPIKey(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return ErrAPIKeyNotFound
	}
	if key.UserID != userID {
		return ErrNotOwner
	}

	key.IsActive = false
	key.UpdatedAt = time.Now().UTC()
	return nil
}

// TouchLastUsed records when the key last authenticated a request.
func (s *MemoryStore) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return ErrAPIKeyNotFound
	}

	key.LastUsedAt = &at
	key.UpdatedAt = at
	return nil
}
