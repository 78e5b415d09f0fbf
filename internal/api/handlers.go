// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-bio/meridian/internal/auth"
	"github.com/meridian-bio/meridian/internal/authz"
	"github.com/meridian-bio/meridian/internal/logging"
	"github.com/meridian-bio/meridian/internal/models"
	"github.com/meridian-bio/meridian/internal/store"
)

// Handler carries the dependencies shared by all endpoints.
type Handler struct {
	store      store.Store
	oracle     *authz.Oracle
	adminGroup string
	seclog     *logging.SecurityLogger
	startedAt  time.Time
}

// NewHandler builds the shared handler set.
func NewHandler(s store.Store, oracle *authz.Oracle, adminGroup string) *Handler {
	return &Handler{
		store:      s,
		oracle:     oracle,
		adminGroup: adminGroup,
		seclog:     logging.NewSecurityLogger(),
		startedAt:  time.Now().UTC(),
	}
}

// identity pulls the authenticated identity or writes a 401. Middleware
// always sets it on authenticated prefixes; a miss means a wiring bug.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id, ok := auth.GetIdentity(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return nil, false
	}
	return id, true
}

// ============================================================
// Health
// ============================================================

type healthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Health reports overall service health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, healthStatus{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

// HealthLive is the liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe. The store is considered the only
// hard dependency; membership checker outages degrade rather than fail.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.ListActiveAPIKeys(r.Context()); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Store not ready", err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// ============================================================
// Identity
// ============================================================

type identityResponse struct {
	User     models.User `json:"user"`
	AuthMode string      `json:"auth_mode"`
}

// UsersMe echoes the authenticated identity.
func (h *Handler) UsersMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, identityResponse{User: *id.User, AuthMode: id.Mode})
}

type groupsResponse struct {
	Groups []string `json:"groups"`
}

// UserGroups lists the caller's groups. When a candidates query parameter
// is supplied, only those groups are probed (and cached individually);
// otherwise the checker's full enumeration is returned.
func (h *Handler) UserGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	candidates := parseCommaSeparated(r.URL.Query().Get("candidates"))
	var groups []string
	var err error
	if len(candidates) > 0 {
		groups, err = h.oracle.GroupsOf(r.Context(), id.Email, candidates)
	} else {
		groups, err = h.oracle.KnownGroupsOf(r.Context(), id.Email)
	}
	if err != nil {
		h.respondOracleError(w, r, err)
		return
	}
	if groups == nil {
		groups = []string{}
	}
	respondJSON(w, r, http.StatusOK, groupsResponse{Groups: groups})
}

type membershipResponse struct {
	Group  string `json:"group"`
	Member bool   `json:"member"`
}

// GroupCheck probes the caller's membership in a single group.
func (h *Handler) GroupCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	group := r.URL.Query().Get("group")
	if group == "" {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "group query parameter is required", nil)
		return
	}

	member, err := h.oracle.IsMemberOf(r.Context(), id.Email, group)
	if err != nil {
		h.respondOracleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, membershipResponse{Group: group, Member: member})
}

func (h *Handler) respondOracleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, authz.ErrCheckerUnavailable) {
		respondError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Membership checks temporarily unavailable", err)
		return
	}
	respondError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "Membership check failed", err)
}

// ============================================================
// API Keys
// ============================================================

// APIKeyCreate issues a new API key for the caller. The raw key appears
// in this response and nowhere else.
func (h *Handler) APIKeyCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req models.CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	rawKey, err := auth.GenerateAPIKey()
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "Failed to generate key", err)
		return
	}
	keyHash, err := auth.HashAPIKey(rawKey)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "Failed to hash key", err)
		return
	}

	key := &models.APIKey{
		ID:        uuid.NewString(),
		UserID:    id.User.ID,
		Name:      req.Name,
		KeyHash:   keyHash,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		CreatedBy: id.Email,
	}
	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		respondError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "Failed to store key", err)
		return
	}

	h.seclog.LogKeyIssued(id.Email, key.ID)
	respondJSON(w, r, http.StatusCreated, models.CreateAPIKeyResponse{
		APIKey: *key,
		Key:    rawKey,
	})
}

// APIKeyList lists the caller's keys. Hashes never serialize.
func (h *Handler) APIKeyList(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	keys, err := h.store.ListAPIKeysForUser(r.Context(), id.User.ID)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "Failed to list keys", err)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	respondJSON(w, r, http.StatusOK, keys)
}

// APIKeyDeactivate revokes one of the caller's keys. Keys owned by other
// users look identical to unknown keys.
func (h *Handler) APIKeyDeactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	keyID := chi.URLParam(r, "id")
	if keyID == "" {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "key id is required", nil)
		return
	}

	err := h.store.DeactivateAPIKey(r.Context(), keyID, id.User.ID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrAPIKeyNotFound), errors.Is(err, store.ErrNotOwner):
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "API key not found", nil)
		return
	default:
		respondError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "Failed to deactivate key", err)
		return
	}

	h.seclog.LogKeyRevoked(id.Email, keyID)
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================
// Membership Cache Administration
// ============================================================

// requireAdmin checks the caller against the admin group. Errors from the
// checker fail closed.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, id *auth.Identity) bool {
	member, err := h.oracle.IsMemberOf(r.Context(), id.Email, h.adminGroup)
	if err != nil {
		h.respondOracleError(w, r, err)
		return false
	}
	if !member {
		respondError(w, r, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
		return false
	}
	return true
}

// CacheStats reports membership cache state. Admin only.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, id) {
		return
	}
	respondJSON(w, r, http.StatusOK, h.oracle.Stats())
}

type cacheClearResponse struct {
	Cleared int `json:"cleared_entries"`
}

// CacheClear drops every membership cache entry. Admin only.
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, id) {
		return
	}
	cleared := h.oracle.ClearAll()
	logging.Info().Int("cleared", cleared).Str("by", logging.SanitizeEmail(id.Email)).Msg("membership cache cleared")
	respondJSON(w, r, http.StatusOK, cacheClearResponse{Cleared: cleared})
}

// CacheClearUser drops cache entries for one user. Admin only.
func (h *Handler) CacheClearUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, id) {
		return
	}
	email := chi.URLParam(r, "email")
	if email == "" {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "email is required", nil)
		return
	}
	respondJSON(w, r, http.StatusOK, cacheClearResponse{Cleared: h.oracle.ClearForUser(email)})
}
