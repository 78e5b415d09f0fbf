// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

// Package api wires the HTTP surface: a chi router with three
// authenticated prefixes and the handlers they share.
//
//	/api      proxy identity headers
//	/api-key  bearer API keys
//	/api-ml   bearer API keys plus HMAC body signatures
//
// The same handler set is mounted under each prefix; only the
// authentication middleware differs. Health probes, the OpenAPI schema,
// and /metrics sit outside all three.
package api
