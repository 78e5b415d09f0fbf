// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package authz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
)

// MembershipChecker answers group membership questions for one identity
// source. Implementations must be safe for concurrent use. Deployments
// integrate their directory (LDAP, SSO, IAM) by providing their own
// implementation.
type MembershipChecker interface {
	// IsMember reports whether the user belongs to the group. Inputs are
	// already normalized by the Oracle.
	IsMember(ctx context.Context, email, group string) (bool, error)

	// GroupsFor returns all groups the user belongs to, sorted.
	GroupsFor(ctx context.Context, email string) ([]string, error)
}

// StaticChecker answers membership from a fixed in-memory map of email to
// group list. Suitable for development and small installations.
type StaticChecker struct {
	mu     sync.RWMutex
	groups map[string][]string
}

// NewStaticChecker creates a checker from the given map. Emails are
// normalized to lower case; nil is treated as an empty map.
func NewStaticChecker(groups map[string][]string) *StaticChecker {
	normalized := make(map[string][]string, len(groups))
	for email, gs := range groups {
		normalized[strings.ToLower(strings.TrimSpace(email))] = gs
	}
	return &StaticChecker{groups: normalized}
}

// DevGroups returns the development user-to-group mapping. The mock user's
// groups are merged in so header-bypass mode resolves consistently.
func DevGroups(mockEmail string, mockGroups []string) map[string][]string {
	groups := map[string][]string{
		"admin@example.com":     {"admin", "data-scientists", "project-alpha-group"},
		"scientist@example.com": {"data-scientists", "project-alpha-group"},
		"user@example.com":      {"project-alpha-group"},
	}
	if mockEmail != "" {
		groups[strings.ToLower(mockEmail)] = mockGroups
	}
	return groups
}

// IsMember reports whether the user belongs to the group.
func (c *StaticChecker) IsMember(_ context.Context, email, group string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, g := range c.groups[email] {
		if g == group {
			return true, nil
		}
	}
	return false, nil
}

// GroupsFor returns all groups the user belongs to, sorted.
func (c *StaticChecker) GroupsFor(_ context.Context, email string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	groups := make([]string, len(c.groups[email]))
	copy(groups, c.groups[email])
	sort.Strings(groups)
	return groups, nil
}

// SetGroups replaces the group list for one user.
func (c *StaticChecker) SetGroups(email string, groups []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[strings.ToLower(strings.TrimSpace(email))] = groups
}

// CasbinChecker answers membership from Casbin grouping policies
// (g, user, group). Policies live in files and can be managed with the
// standard Casbin tooling.
type CasbinChecker struct {
	enforcer *casbin.SyncedEnforcer
}

// NewCasbinChecker creates a checker from model and policy files.
func NewCasbinChecker(modelPath, policyPath string) (*CasbinChecker, error) {
	enforcer, err := casbin.NewSyncedEnforcer(modelPath, policyPath)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	return &CasbinChecker{enforcer: enforcer}, nil
}

// NewCasbinCheckerFromEnforcer wraps an existing enforcer.
func NewCasbinCheckerFromEnforcer(enforcer *casbin.SyncedEnforcer) *CasbinChecker {
	return &CasbinChecker{enforcer: enforcer}
}

// IsMember reports whether the user has the group role.
func (c *CasbinChecker) IsMember(_ context.Context, email, group string) (bool, error) {
	ok, err := c.enforcer.HasRoleForUser(email, group)
	if err != nil {
		return false, fmt.Errorf("casbin role lookup: %w", err)
	}
	return ok, nil
}

// GroupsFor returns all group roles assigned to the user, sorted.
func (c *CasbinChecker) GroupsFor(_ context.Context, email string) ([]string, error) {
	groups, err := c.enforcer.GetRolesForUser(email)
	if err != nil {
		return nil, fmt.Errorf("casbin roles lookup: %w", err)
	}
	sort.Strings(groups)
	return groups, nil
}
