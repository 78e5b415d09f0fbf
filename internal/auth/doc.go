// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

// Package auth provides authentication for the three API surfaces:
//
//   - /api: identity headers injected by the authenticating proxy
//     (X-User-Email, optionally backed by a shared X-Proxy-Secret)
//   - /api-key: bearer API keys for programmatic access
//   - /api-ml: bearer API keys plus an HMAC signature over the request
//     body, for machine-learning pipeline callbacks
//
// The three modes are mutually exclusive per prefix; the dispatcher in
// middleware.go binds each prefix to exactly one authenticator. Health and
// schema endpoints are exempt.
//
// API keys are verified against PBKDF2-HMAC-SHA256 hashes with a per-key
// salt; verification is a linear scan over active credentials because the
// salted hash admits no index. All comparisons that touch secrets are
// constant time.
package auth
