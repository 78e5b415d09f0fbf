// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

// Package authz provides group-based authorization for Meridian.
//
// The Oracle is the single source of truth for group membership. It wraps a
// pluggable MembershipChecker (a static map or Casbin grouping policies)
// with a TTL cache, a circuit breaker, a rate limiter, and a per-check
// timeout, so a slow or failing directory backend cannot take the API down
// with it.
//
// # Architecture
//
//	Request -> Identity Middleware -> Handler
//	                                    |
//	                           Oracle.IsMemberOf
//	                          /        |
//	                     TTL cache   MembershipChecker
//	                                 (static | casbin)
//
// # Caching
//
// Entries are keyed by (email, group, bypass) because the answer changes
// when the server runs with identity verification bypassed. Expired entries
// are evicted lazily when read; there is no background sweeper. Both
// positive and negative results are cached for the same TTL.
//
// # Usage Example
//
//	checker := authz.NewStaticChecker(groups)
//	oracle := authz.NewOracle(checker, authz.OracleConfig{TTL: 5 * time.Minute})
//
//	ok, err := oracle.IsMemberOf(ctx, "alice@example.com", "data-scientists")
//
// GroupsOf enumeration is only available from checkers that can list
// memberships; both built-in checkers can.
//
// # Thread Safety
//
// All components are safe for concurrent use. The cache uses sync.RWMutex;
// the Casbin checker uses a SyncedEnforcer.
package authz
