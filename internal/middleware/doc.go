// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

// Package middleware provides HTTP middleware shared across all router
// prefixes: request IDs, security headers, and Prometheus request
// instrumentation. Authentication middleware lives in internal/auth.
package middleware
