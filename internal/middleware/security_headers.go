// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package middleware

import (
	"net/http"
	"strings"
)

// Default security header values. HSTS is intentionally omitted; TLS
// termination happens at the ingress proxy.
const (
	defaultCSP = "default-src 'self'; frame-ancestors 'none';"

	// Interactive API documentation loads Swagger UI assets from jsdelivr
	// and needs inline styles, so those paths get a relaxed policy.
	docsCSP = "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; " +
		"style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; " +
		"img-src 'self' data:; " +
		"font-src 'self' data:; " +
		"connect-src 'self'; " +
		"frame-ancestors 'none';"
)

// SecurityHeaders sets standard response security headers on every
// response: X-Content-Type-Options, X-Frame-Options, Referrer-Policy,
// and Content-Security-Policy. Headers are set before the handler runs,
// so a handler can override any of them.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		setIfAbsent(h, "X-Content-Type-Options", "nosniff")
		setIfAbsent(h, "X-Frame-Options", "SAMEORIGIN")
		setIfAbsent(h, "Referrer-Policy", "no-referrer")

		if isDocsPath(r.URL.Path) {
			h.Set("Content-Security-Policy", docsCSP)
		} else {
			setIfAbsent(h, "Content-Security-Policy", defaultCSP)
		}

		next.ServeHTTP(w, r)
	})
}

func setIfAbsent(h http.Header, key, value string) {
	if h.Get(key) == "" {
		h.Set(key, value)
	}
}

func isDocsPath(path string) bool {
	return strings.HasPrefix(path, "/docs") ||
		strings.HasPrefix(path, "/redoc") ||
		path == "/openapi.json"
}
