// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/meridian-bio/meridian/internal/logging"
)

// GarbageCollector is the store maintenance hook the GC service drives.
type GarbageCollector interface {
	RunValueLogGC() error
}

// StoreGCService periodically reclaims Badger value-log space. Badger
// never rewrites value logs on its own; without this loop the data
// directory grows monotonically.
type StoreGCService struct {
	gc       GarbageCollector
	interval time.Duration
}

// NewStoreGCService builds the GC loop with the given cadence.
func NewStoreGCService(gc GarbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{gc: gc, interval: interval}
}

// Serve implements suture.Service. ErrNoRewrite is Badger's way of saying
// there was nothing to collect; it is not a failure.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := s.gc.RunValueLogGC()
			switch {
			case err == nil:
				logging.Debug().Msg("store value log GC reclaimed space")
			case errors.Is(err, badger.ErrNoRewrite):
			default:
				logging.Warn().Err(err).Msg("store value log GC failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *StoreGCService) String() string {
	return "store-gc"
}
