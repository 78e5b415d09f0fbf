// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

// Package bodycache buffers request bodies so middleware can verify
// signatures over the exact bytes a handler later parses. JSON decoding
// consumes the body stream; capturing it once up front lets both the
// signature check and the handler see the same bytes.
package bodycache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes caps how much request body is buffered. Larger bodies are
// rejected before any handler runs.
const MaxBodyBytes = 10 << 20

type bodyCtxKey struct{}

// Capture buffers the body of POST, PUT, and PATCH requests, stores the
// bytes in the request context, and replaces the body with a replayable
// reader. Other methods pass through untouched.
func Capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}

		body, err := readCapped(r.Body)
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), bodyCtxKey{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the captured body bytes, or nil, false when the
// capture middleware did not run for this request.
func FromContext(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(bodyCtxKey{}).([]byte)
	return body, ok
}

func readCapped(rc io.ReadCloser) ([]byte, error) {
	if rc == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(rc, MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodyBytes {
		return nil, errors.New("body exceeds capture limit")
	}
	return body, nil
}
