// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package auth

import "errors"

// Sentinel errors returned by authenticators. Middleware maps these onto
// HTTP status codes in handleAuthError; anything outside this set is
// treated as an internal error.
var (
	// ErrNoCredentials indicates the request carried no credentials at
	// all for the mode in question (missing header, missing bearer
	// token, missing signature).
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were present but did
	// not verify (wrong proxy secret, malformed email, unknown API key).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSignatureInvalid indicates a pipeline HMAC signature was
	// present but failed verification or timestamp validation.
	ErrSignatureInvalid = errors.New("invalid request signature")

	// ErrServerMisconfigured indicates authentication cannot proceed
	// because required server-side configuration is absent, e.g. no
	// proxy shared secret when header trust is disabled, or no pipeline
	// HMAC secret while signatures are required. Maps to 500.
	ErrServerMisconfigured = errors.New("server configuration error")

	// ErrAuthUnavailable indicates a transient backend failure while
	// authenticating (store unreachable). Maps to 503.
	ErrAuthUnavailable = errors.New("authentication temporarily unavailable")
)

// Authentication modes recorded on the resolved identity.
const (
	ModeHeader   = "header"
	ModeAPIKey   = "api_key"
	ModePipeline = "pipeline"
)
