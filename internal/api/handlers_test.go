// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/meridian-bio/meridian/internal/models"
)

func TestAPIKeyLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// Create.
	w := env.apiRequest("POST", "/api/api-keys", "user@example.com", `{"name":"workstation"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, want 201 (body %s)", w.Code, w.Body)
	}
	var created models.CreateAPIKeyResponse
	decodeData(t, w, &created)
	if created.APIKey.Name != "workstation" {
		t.Errorf("name = %q, want workstation", created.APIKey.Name)
	}
	if !created.APIKey.IsActive {
		t.Error("new key not active")
	}

	// The stored hash must never serialize.
	if body := w.Body.String(); len(body) > 0 {
		for _, forbidden := range []string{"key_hash", "KeyHash"} {
			if strings.Contains(body, forbidden) {
				t.Errorf("creation response leaks %s", forbidden)
			}
		}
	}

	// List shows it.
	w = env.apiRequest("GET", "/api/api-keys", "user@example.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d, want 200", w.Code)
	}
	var keys []models.APIKey
	decodeData(t, w, &keys)
	if len(keys) != 1 || keys[0].ID != created.APIKey.ID {
		t.Fatalf("list = %+v, want the created key", keys)
	}

	// Another user cannot see or revoke it.
	w = env.apiRequest("GET", "/api/api-keys", "admin@example.com", "")
	var otherKeys []models.APIKey
	decodeData(t, w, &otherKeys)
	if len(otherKeys) != 0 {
		t.Errorf("other user sees %d keys, want 0", len(otherKeys))
	}
	w = env.apiRequest("DELETE", "/api/api-keys/"+created.APIKey.ID, "admin@example.com", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-user delete = %d, want 404", w.Code)
	}

	// Owner revokes.
	w = env.apiRequest("DELETE", "/api/api-keys/"+created.APIKey.ID, "user@example.com", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204 (body %s)", w.Code, w.Body)
	}

	// Revoking again is a 404.
	w = env.apiRequest("DELETE", "/api/api-keys/"+created.APIKey.ID, "user@example.com", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestAPIKeyCreateValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"empty name", `{"name":""}`},
		{"missing name", `{}`},
		{"unknown field", `{"name":"x","extra":true}`},
	}
	for _, tt := range tests {
		w := env.apiRequest("POST", "/api/api-keys", "user@example.com", tt.body)
		if tt.body == "" {
			// No body at all also fails decoding.
			w = env.apiRequest("POST", "/api/api-keys", "user@example.com", " ")
		}
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400 (body %s)", tt.name, w.Code, w.Body)
		}
	}
}

func TestGroupCheck(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		email  string
		group  string
		member bool
	}{
		{"user@example.com", "project-alpha", true},
		{"user@example.com", testAdminGroup, false},
		{"admin@example.com", testAdminGroup, true},
		{"stranger@example.com", "project-alpha", false},
	}
	for _, tt := range tests {
		w := env.apiRequest("GET", "/api/groups/check?group="+tt.group, tt.email, "")
		if w.Code != http.StatusOK {
			t.Fatalf("check = %d, want 200 (body %s)", w.Code, w.Body)
		}
		var result membershipResponse
		decodeData(t, w, &result)
		if result.Member != tt.member {
			t.Errorf("%s in %s = %v, want %v", tt.email, tt.group, result.Member, tt.member)
		}
	}

	w := env.apiRequest("GET", "/api/groups/check", "user@example.com", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing group param = %d, want 400", w.Code)
	}
}

func TestUserGroups(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.apiRequest("GET", "/api/users/me/groups", "admin@example.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("groups = %d, want 200 (body %s)", w.Code, w.Body)
	}
	var full groupsResponse
	decodeData(t, w, &full)
	if len(full.Groups) != 2 {
		t.Errorf("groups = %v, want both configured groups", full.Groups)
	}

	w = env.apiRequest("GET", "/api/users/me/groups?candidates=project-alpha,unknown-group", "admin@example.com", "")
	var filtered groupsResponse
	decodeData(t, w, &filtered)
	if len(filtered.Groups) != 1 || filtered.Groups[0] != "project-alpha" {
		t.Errorf("filtered groups = %v, want [project-alpha]", filtered.Groups)
	}
}

func TestCacheAdminEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// Non-admin is forbidden.
	w := env.apiRequest("GET", "/api/auth/cache/stats", "user@example.com", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin stats = %d, want 403", w.Code)
	}
	w = env.apiRequest("POST", "/api/auth/cache/clear", "user@example.com", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin clear = %d, want 403", w.Code)
	}

	// Admin reads stats; prior checks populated the cache.
	w = env.apiRequest("GET", "/api/auth/cache/stats", "admin@example.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin stats = %d, want 200 (body %s)", w.Code, w.Body)
	}
	var stats models.MembershipCacheStats
	decodeData(t, w, &stats)
	if stats.TotalEntries == 0 {
		t.Error("cache stats report no entries after membership checks")
	}

	// Clear one user, then everything.
	w = env.apiRequest("POST", "/api/auth/cache/clear/user@example.com", "admin@example.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear user = %d, want 200 (body %s)", w.Code, w.Body)
	}
	var cleared cacheClearResponse
	decodeData(t, w, &cleared)
	if cleared.Cleared == 0 {
		t.Error("clearing a checked user removed no entries")
	}

	w = env.apiRequest("POST", "/api/auth/cache/clear", "admin@example.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear all = %d, want 200", w.Code)
	}
}
