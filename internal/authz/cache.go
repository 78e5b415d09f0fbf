// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package authz

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/meridian-bio/meridian/internal/models"
)

// membershipCache caches group membership decisions. Expired entries are
// removed only when read; there is no background cleanup goroutine, so an
// idle server does no cache work.
type membershipCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*cacheItem
}

type cacheItem struct {
	member    bool
	expiresAt time.Time
}

// newMembershipCache creates a new cache. A non-positive TTL disables
// caching entirely.
func newMembershipCache(ttl time.Duration) *membershipCache {
	return &membershipCache{
		ttl:   ttl,
		items: make(map[string]*cacheItem),
	}
}

// key generates a cache key. The bypass flag is part of the key because
// membership answers differ when identity verification is bypassed.
func (c *membershipCache) key(email, group string, bypass bool) string {
	return email + "|" + group + "|" + strconv.FormatBool(bypass)
}

// get retrieves a cached decision, evicting the entry if it has expired.
func (c *membershipCache) get(email, group string, bypass bool) (member, ok bool) {
	if c.ttl <= 0 {
		return false, false
	}

	k := c.key(email, group, bypass)

	c.mu.RLock()
	item, found := c.items[k]
	c.mu.RUnlock()

	if !found {
		return false, false
	}

	if time.Now().After(item.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent set may have
		// refreshed the entry.
		if cur, still := c.items[k]; still && time.Now().After(cur.expiresAt) {
			delete(c.items, k)
		}
		c.mu.Unlock()
		return false, false
	}

	return item.member, true
}

// set stores a decision in the cache.
func (c *membershipCache) set(email, group string, bypass, member bool) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[c.key(email, group, bypass)] = &cacheItem{
		member:    member,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// clear removes all cached decisions and returns how many were dropped.
func (c *membershipCache) clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = make(map[string]*cacheItem)
	return n
}

// clearForUser removes all cached decisions for one email and returns how
// many were dropped.
func (c *membershipCache) clearForUser(email string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := email + "|"
	n := 0
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
			n++
		}
	}
	return n
}

// stats counts entries without evicting anything.
func (c *membershipCache) stats() models.MembershipCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	stats := models.MembershipCacheStats{
		TotalEntries: len(c.items),
		TTLSeconds:   int(c.ttl / time.Second),
	}
	for _, item := range c.items {
		if now.After(item.expiresAt) {
			stats.ExpiredEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats
}
