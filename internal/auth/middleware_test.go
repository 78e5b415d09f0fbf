// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/meridian-bio/meridian/internal/models"
	"github.com/meridian-bio/meridian/internal/store"
)

// echoIdentity responds 200 with the authenticated email, or 500 if no
// identity reached the handler.
func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(id.Email))
	})
}

func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decoding error envelope: %v (body %s)", err, body)
	}
	if resp.Error == nil {
		t.Fatalf("error envelope has no error: %s", body)
	}
	return resp.Error.Code
}

func TestExemptFromAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"/api/health", true},
		{"/api/health/live", true},
		{"/api/health/ready", true},
		{"/openapi.json", true},
		{"/docs", true},
		{"/docs/oauth2-redirect", true},
		{"/redoc", true},
		{"/api/datasets", false},
		{"/api/healthz", false},
		{"/api-key/datasets", false},
	}
	for _, tt := range tests {
		if got := ExemptFromAuth(tt.path); got != tt.want {
			t.Errorf("ExemptFromAuth(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRequireHeaderMiddleware(t *testing.T) {
	t.Parallel()

	cfg := baseSecurityConfig()
	cfg.ProxySharedSecret = "proxy-secret"
	mw := RequireHeader(NewHeaderAuthenticator(cfg, store.NewMemoryStore()))

	handler := mw(echoIdentity())
	exempt := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	t.Run("authenticated request passes", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/datasets", nil)
		r.Header.Set("X-Proxy-Secret", "proxy-secret")
		r.Header.Set("X-User-Email", "user@example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body)
		}
		if w.Body.String() != "user@example.com" {
			t.Errorf("body = %q, want identity email", w.Body.String())
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/datasets", nil)
		r.Header.Set("X-Proxy-Secret", "wrong")
		r.Header.Set("X-User-Email", "user@example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if code := decodeErrorCode(t, w.Body.Bytes()); code != "UNAUTHORIZED" {
			t.Errorf("error code = %q, want UNAUTHORIZED", code)
		}
		if w.Header().Get("WWW-Authenticate") == "" {
			t.Error("401 response missing WWW-Authenticate header")
		}
	})

	t.Run("health is exempt", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/health", nil)
		w := httptest.NewRecorder()
		exempt.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}

func TestRequireHeaderMisconfigured(t *testing.T) {
	t.Parallel()

	cfg := baseSecurityConfig()
	cfg.TrustIdentityHeader = false
	mw := RequireHeader(NewHeaderAuthenticator(cfg, store.NewMemoryStore()))
	handler := mw(echoIdentity())

	r := httptest.NewRequest("GET", "/api/datasets", nil)
	r.Header.Set("X-User-Email", "user@example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if code := decodeErrorCode(t, w.Body.Bytes()); code != "SERVER_ERROR" {
		t.Errorf("error code = %q, want SERVER_ERROR", code)
	}
}

func TestRequireAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	token, _ := issueTestKey(t, st, "owner@example.com")
	mw := RequireAPIKey(NewAPIKeyAuthenticator(st))
	handler := mw(echoIdentity())

	t.Run("valid bearer token", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api-key/datasets", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body)
		}
	})

	t.Run("identity headers are not accepted here", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api-key/datasets", nil)
		r.Header.Set("X-User-Email", "user@example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("no exemptions on this surface", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestRequirePipelineMiddleware(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	token, _ := issueTestKey(t, st, "pipeline@example.com")
	keyAuth := NewAPIKeyAuthenticator(st)

	now := time.Now().UTC()
	epoch := strconv.FormatInt(now.Unix(), 10)
	body := `{"run_id":"r-1","status":"complete"}`

	newRequest := func(signature, timestamp string) *httptest.ResponseRecorder {
		verifier := NewPipelineVerifier(testPipelineSecret, 300*time.Second, true)
		handler := RequirePipeline(keyAuth, verifier)(echoIdentity())

		r := httptest.NewRequest("POST", "/api-ml/callbacks", strings.NewReader(body))
		r.Header.Set("Authorization", "Bearer "+token)
		if signature != "" {
			r.Header.Set(SignatureHeader, signature)
		}
		if timestamp != "" {
			r.Header.Set(TimestampHeader, timestamp)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	t.Run("valid key and signature", func(t *testing.T) {
		w := newRequest(SignPayload(testPipelineSecret, epoch, []byte(body)), epoch)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body)
		}
		if w.Body.String() != "pipeline@example.com" {
			t.Errorf("body = %q, want identity email", w.Body.String())
		}
	})

	t.Run("missing signature", func(t *testing.T) {
		w := newRequest("", epoch)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if code := decodeErrorCode(t, w.Body.Bytes()); code != "INVALID_SIGNATURE" {
			t.Errorf("error code = %q, want INVALID_SIGNATURE", code)
		}
	})

	t.Run("wrong signature", func(t *testing.T) {
		w := newRequest(SignPayload("wrong-secret", epoch, []byte(body)), epoch)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("missing timestamp", func(t *testing.T) {
		w := newRequest(SignPayload(testPipelineSecret, epoch, []byte(body)), "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("no api key at all", func(t *testing.T) {
		verifier := NewPipelineVerifier(testPipelineSecret, 300*time.Second, true)
		handler := RequirePipeline(keyAuth, verifier)(echoIdentity())
		r := httptest.NewRequest("POST", "/api-ml/callbacks", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestRequirePipelineNotRequired(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	token, _ := issueTestKey(t, st, "pipeline@example.com")
	verifier := NewPipelineVerifier("", 300*time.Second, false)
	handler := RequirePipeline(NewAPIKeyAuthenticator(st), verifier)(echoIdentity())

	r := httptest.NewRequest("POST", "/api-ml/callbacks", strings.NewReader("{}"))
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body)
	}
}

func TestRequirePipelineSecretMissing(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	token, _ := issueTestKey(t, st, "pipeline@example.com")
	// Required but no secret configured: server error, not client error.
	verifier := NewPipelineVerifier("", 300*time.Second, true)
	handler := RequirePipeline(NewAPIKeyAuthenticator(st), verifier)(echoIdentity())

	r := httptest.NewRequest("POST", "/api-ml/callbacks", strings.NewReader("{}"))
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if code := decodeErrorCode(t, w.Body.Bytes()); code != "SERVER_ERROR" {
		t.Errorf("error code = %q, want SERVER_ERROR", code)
	}
}

func TestRequirePipelineBodyRestored(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	token, _ := issueTestKey(t, st, "pipeline@example.com")
	verifier := NewPipelineVerifier(testPipelineSecret, 300*time.Second, true)

	body := `{"run_id":"r-2"}`
	var downstream string
	handler := RequirePipeline(NewAPIKeyAuthenticator(st), verifier)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("reading body downstream: %v", err)
			}
			downstream = string(b)
		}))

	epoch := strconv.FormatInt(time.Now().Unix(), 10)
	r := httptest.NewRequest("POST", "/api-ml/callbacks", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set(SignatureHeader, SignPayload(testPipelineSecret, epoch, []byte(body)))
	r.Header.Set(TimestampHeader, epoch)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body)
	}
	if downstream != body {
		t.Errorf("downstream body = %q, want %q", downstream, body)
	}
}
