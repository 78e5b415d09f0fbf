// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/meridian-bio/meridian/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	userEmailKeyPrefix  = "user:email:"
	userIDKeyPrefix     = "user:id:"
	apiKeyPrefix        = "apikey:"
	apiKeyUserKeyPrefix = "apikey_user:"
)

// BadgerStore implements Store using BadgerDB for durable storage.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a BadgerDB at the given path and wraps it in a store.
// With inMemory set, path is ignored and nothing is persisted.
func OpenBadger(path string, inMemory bool) (*BadgerStore, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreFromDB wraps an already-open BadgerDB.
func NewBadgerStoreFromDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Close closes the underlying BadgerDB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// RunValueLogGC triggers one round of BadgerDB value-log garbage collection.
// Returns badger.ErrNoRewrite when there was nothing to collect.
func (s *BadgerStore) RunValueLogGC() error {
	if s.db.Opts().InMemory {
		return nil
	}
	return s.db.RunValueLogGC(0.5)
}

// GetUserByEmail returns the user with the given email.
func (s *BadgerStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	var user models.User

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userEmailKeyPrefix + normalizeEmail(email)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByID returns the user with the given id.
func (s *BadgerStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var email string

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userIDKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("get user id mapping: %w", err)
		}

		return item.Value(func(val []byte) error {
			email = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return s.GetUserByEmail(ctx, email)
}

// ResolveUser returns the user with the given email, creating an active
// record on first sight. The email becomes the username until changed.
func (s *BadgerStore) ResolveUser(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)

	user, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	user = &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Username:  email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte(userEmailKeyPrefix + email)

		// Another request may have created the user concurrently.
		if _, getErr := txn.Get(emailKey); getErr == nil {
			return nil
		}

		if setErr := txn.Set(emailKey, data); setErr != nil {
			return fmt.Errorf("set user: %w", setErr)
		}
		return txn.Set([]byte(userIDKeyPrefix+user.ID), []byte(email))
	})
	if err != nil {
		return nil, err
	}

	// Re-read so the concurrent-create case returns the stored record.
	return s.GetUserByEmail(ctx, email)
}

// CreateAPIKey persists a new API key record.
func (s *BadgerStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("marshal api key: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if setErr := txn.Set([]byte(apiKeyPrefix+key.ID), data); setErr != nil {
			return fmt.Errorf("set api key: %w", setErr)
		}

		// User-to-key mapping for per-user listing.
		userKey := []byte(apiKeyUserKeyPrefix + key.UserID + ":" + key.ID)
		return txn.Set(userKey, []byte(key.ID))
	})
}

// GetAPIKey returns the key with the given id regardless of state.
func (s *BadgerStore) GetAPIKey(_ context.Context, id string) (*models.APIKey, error) {
	var key models.APIKey

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(apiKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrAPIKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get api key: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &key)
		})
	})
	if err != nil {
		return nil, err
	}

	return &key, nil
}

// ListActiveAPIKeys returns all active keys across all users.
func (s *BadgerStore) ListActiveAPIKeys(_ context.Context) ([]*models.APIKey, error) {
	var keys []*models.APIKey

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(apiKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var key models.APIKey
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &key)
			})
			if err != nil {
				continue
			}
			if key.IsActive {
				keys = append(keys, &key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan api keys: %w", err)
	}

	return keys, nil
}

// ListAPIKeysForUser returns all keys owned by the given user.
func (s *BadgerStore) ListAPIKeysForUser(_ context.Context, userID string) ([]*models.APIKey, error) {
	var keys []*models.APIKey

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(apiKeyUserKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var keyID string
			err := it.Item().Value(func(val []byte) error {
				keyID = string(val)
				return nil
			})
			if err != nil {
				continue
			}

			item, err := txn.Get([]byte(apiKeyPrefix + keyID))
			if err != nil {
				continue // Key record may have been removed
			}

			var key models.APIKey
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &key)
			})
			if err != nil {
				continue
			}
			keys = append(keys, &key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list user api keys: %w", err)
	}

	return keys, nil
}

// DeactivateAPIKey marks the key inactive.
func (s *BadgerStore) DeactivateAPIKey(_ context.Context, id, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(apiKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrAPIKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get api key: %w", err)
		}

		var key models.APIKey
		if valErr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &key)
		}); valErr != nil {
			return fmt.Errorf("unmarshal api key: %w", valErr)
		}

		if key.UserID != userID {
			return ErrNotOwner
		}

		key.IsActive = false
		key.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(&key)
		if err != nil {
			return fmt.Errorf("marshal api key: %w", err)
		}
		return txn.Set([]byte(apiKeyPrefix+id), data)
	})
}

// TouchLastUsed records when the key last authenticated a request.
func (s *BadgerStore) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(apiKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrAPIKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get api key: %w", err)
		}

		var key models.APIKey
		if valErr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &key)
		}); valErr != nil {
			return fmt.Errorf("unmarshal api key: %w", valErr)
		}

		key.LastUsedAt = &at
		key.UpdatedAt = at

		data, err := json.Marshal(&key)
		if err != nil {
			return fmt.Errorf("marshal api key: %w", err)
		}
		return txn.Set([]byte(apiKeyPrefix+id), data)
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
