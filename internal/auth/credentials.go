// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations follows the OWASP recommendation for
	// PBKDF2-HMAC-SHA256. Changing this invalidates stored hashes.
	pbkdf2Iterations = 100000

	saltLen = 32
	keyLen  = 32

	// Stored hashes are hex(salt) followed by hex(derived key).
	encodedHashLen = saltLen*2 + keyLen*2

	tokenEntropyBytes = 32
)

// GenerateAPIKey returns a new random API key token. The token is the
// URL-safe base64 encoding of 32 bytes of entropy and is shown to the
// caller exactly once; only its hash is stored.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashAPIKey derives a salted PBKDF2-HMAC-SHA256 hash of the token and
// returns it as hex(salt)‖hex(key), 128 hex characters total.
func HashAPIKey(token string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := pbkdf2.Key([]byte(token), salt, pbkdf2Iterations, keyLen, sha256.New)
	return hex.EncodeToString(salt) + hex.EncodeToString(key), nil
}

// VerifyAPIKey reports whether token matches the stored hash. It is a
// total function: malformed or truncated hashes, empty inputs, and any
// decode failure all return false rather than an error. The final
// comparison is constant time.
func VerifyAPIKey(token, encoded string) bool {
	if token == "" || len(encoded) != encodedHashLen {
		return false
	}
	salt, err := hex.DecodeString(encoded[:saltLen*2])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(encoded[saltLen*2:])
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(token), salt, pbkdf2Iterations, keyLen, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
