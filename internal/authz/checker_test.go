// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStaticChecker(t *testing.T) {
	t.Parallel()

	c := NewStaticChecker(map[string][]string{
		"Alice@Example.com": {"admin", "data-scientists"},
	})
	ctx := context.Background()

	// Keys are normalized at construction.
	member, err := c.IsMember(ctx, "alice@example.com", "admin")
	if err != nil || !member {
		t.Errorf("IsMember = (%v, %v), want (true, nil)", member, err)
	}

	member, err = c.IsMember(ctx, "alice@example.com", "ops")
	if err != nil || member {
		t.Errorf("IsMember = (%v, %v), want (false, nil)", member, err)
	}

	groups, err := c.GroupsFor(ctx, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0] != "admin" || groups[1] != "data-scientists" {
		t.Errorf("GroupsFor = %v, want sorted [admin data-scientists]", groups)
	}

	c.SetGroups("alice@example.com", []string{"ops"})
	member, _ = c.IsMember(ctx, "alice@example.com", "ops")
	if !member {
		t.Error("expected membership after SetGroups")
	}
}

func TestDevGroups(t *testing.T) {
	t.Parallel()

	groups := DevGroups("Mock@Example.com", []string{"mock-group"})

	if len(groups["admin@example.com"]) != 3 {
		t.Errorf("admin groups = %v", groups["admin@example.com"])
	}
	if len(groups["scientist@example.com"]) != 2 {
		t.Errorf("scientist groups = %v", groups["scientist@example.com"])
	}
	if got := groups["mock@example.com"]; len(got) != 1 || got[0] != "mock-group" {
		t.Errorf("mock groups = %v, want [mock-group]", got)
	}
}

const testCasbinModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && r.act == p.act
`

const testCasbinPolicy = `
p, data-scientists, /api/*, read
g, alice@example.com, data-scientists
g, alice@example.com, project-alpha-group
g, bob@example.com, project-alpha-group
`

func TestCasbinChecker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.conf")
	policyPath := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(modelPath, []byte(testCasbinModel), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(policyPath, []byte(testCasbinPolicy), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := NewCasbinChecker(modelPath, policyPath)
	if err != nil {
		t.Fatalf("NewCasbinChecker failed: %v", err)
	}
	ctx := context.Background()

	member, err := c.IsMember(ctx, "alice@example.com", "data-scientists")
	if err != nil || !member {
		t.Errorf("IsMember = (%v, %v), want (true, nil)", member, err)
	}

	member, err = c.IsMember(ctx, "bob@example.com", "data-scientists")
	if err != nil || member {
		t.Errorf("IsMember = (%v, %v), want (false, nil)", member, err)
	}

	groups, err := c.GroupsFor(ctx, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0] != "data-scientists" {
		t.Errorf("GroupsFor = %v, want sorted [data-scientists project-alpha-group]", groups)
	}
}
