// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Environment != "development" {
		t.Errorf("Server.Environment = %q, want development", cfg.Server.Environment)
	}

	if cfg.Security.UserIDHeader != "X-User-Email" {
		t.Errorf("Security.UserIDHeader = %q, want X-User-Email", cfg.Security.UserIDHeader)
	}
	if cfg.Security.ProxySecretHeader != "X-Proxy-Secret" {
		t.Errorf("Security.ProxySecretHeader = %q, want X-Proxy-Secret", cfg.Security.ProxySecretHeader)
	}
	if cfg.Security.SkipHeaderCheck {
		t.Error("Security.SkipHeaderCheck should be false by default")
	}
	if cfg.Security.MembershipCacheTTLSeconds != 300 {
		t.Errorf("MembershipCacheTTLSeconds = %d, want 300", cfg.Security.MembershipCacheTTLSeconds)
	}
	if cfg.Security.PipelineTimestampSkewSeconds != 300 {
		t.Errorf("PipelineTimestampSkewSeconds = %d, want 300", cfg.Security.PipelineTimestampSkewSeconds)
	}
	if !cfg.Security.PipelineRequireHMAC {
		t.Error("PipelineRequireHMAC should be true by default")
	}
	if cfg.Security.MembershipBackend != "static" {
		t.Errorf("MembershipBackend = %q, want static", cfg.Security.MembershipBackend)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	s := SecurityConfig{
		MembershipCacheTTLSeconds:    300,
		PipelineTimestampSkewSeconds: 60,
	}
	if s.MembershipCacheTTL() != 5*time.Minute {
		t.Errorf("MembershipCacheTTL = %v, want 5m", s.MembershipCacheTTL())
	}
	if s.PipelineTimestampSkew() != time.Minute {
		t.Errorf("PipelineTimestampSkew = %v, want 1m", s.PipelineTimestampSkew())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9001")
	t.Setenv("PROXY_SHARED_SECRET", "topsecret")
	t.Setenv("X_USER_ID_HEADER", "X-Forwarded-Email")
	t.Setenv("ML_HMAC_TIMESTAMP_SKEW_SECONDS", "120")
	t.Setenv("MOCK_USER_GROUPS", "admin, data-scientists")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.Security.ProxySharedSecret != "topsecret" {
		t.Errorf("ProxySharedSecret = %q, want topsecret", cfg.Security.ProxySharedSecret)
	}
	if cfg.Security.UserIDHeader != "X-Forwarded-Email" {
		t.Errorf("UserIDHeader = %q, want X-Forwarded-Email", cfg.Security.UserIDHeader)
	}
	if cfg.Security.PipelineTimestampSkewSeconds != 120 {
		t.Errorf("PipelineTimestampSkewSeconds = %d, want 120", cfg.Security.PipelineTimestampSkewSeconds)
	}
	want := []string{"admin", "data-scientists"}
	if len(cfg.Security.MockUserGroups) != len(want) {
		t.Fatalf("MockUserGroups = %v, want %v", cfg.Security.MockUserGroups, want)
	}
	for i, g := range want {
		if cfg.Security.MockUserGroups[i] != g {
			t.Errorf("MockUserGroups[%d] = %q, want %q", i, cfg.Security.MockUserGroups[i], g)
		}
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
security:
  admin_group: platform-admins
  static_groups:
    admin@example.com:
      - admin
      - data-scientists
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Security.AdminGroup != "platform-admins" {
		t.Errorf("AdminGroup = %q, want platform-admins", cfg.Security.AdminGroup)
	}
	groups := cfg.Security.StaticGroups["admin@example.com"]
	if len(groups) != 2 || groups[0] != "admin" {
		t.Errorf("StaticGroups[admin@example.com] = %v", groups)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090 (env should override file)", cfg.Server.Port)
	}
}

func TestEnvTransformFuncDropsUnknown(t *testing.T) {
	t.Parallel()

	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("envTransformFunc(PATH) = %q, want empty", got)
	}
	if got := envTransformFunc("PROXY_SHARED_SECRET"); got != "security.proxy_shared_secret" {
		t.Errorf("envTransformFunc(PROXY_SHARED_SECRET) = %q", got)
	}
	if got := envTransformFunc("ml_callback_hmac_secret"); got != "security.pipeline_hmac_secret" {
		t.Errorf("envTransformFunc(ml_callback_hmac_secret) = %q", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "bad environment",
			mutate:  func(c *Config) { c.Server.Environment = "staging" },
			wantErr: "ENVIRONMENT",
		},
		{
			name:    "bad membership backend",
			mutate:  func(c *Config) { c.Security.MembershipBackend = "ldap" },
			wantErr: "MEMBERSHIP_BACKEND",
		},
		{
			name: "casbin without paths",
			mutate: func(c *Config) {
				c.Security.MembershipBackend = "casbin"
			},
			wantErr: "CASBIN_MODEL_PATH",
		},
		{
			name:    "negative skew",
			mutate:  func(c *Config) { c.Security.PipelineTimestampSkewSeconds = -1 },
			wantErr: "ML_HMAC_TIMESTAMP_SKEW_SECONDS",
		},
		{
			name:    "negative cache ttl",
			mutate:  func(c *Config) { c.Security.MembershipCacheTTLSeconds = -5 },
			wantErr: "MEMBERSHIP_CACHE_TTL_SECONDS",
		},
		{
			name:    "empty identity header",
			mutate:  func(c *Config) { c.Security.UserIDHeader = "" },
			wantErr: "X_USER_ID_HEADER",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateProductionHardening(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Server.Environment = "production"
	cfg.Security.SkipHeaderCheck = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for SKIP_HEADER_CHECK in production")
	}

	cfg = defaultConfig()
	cfg.Server.Environment = "production"
	cfg.Security.Debug = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for DEBUG in production")
	}

	cfg = defaultConfig()
	cfg.Server.Environment = "production"
	cfg.Security.PipelineRequireHMAC = true
	cfg.Security.PipelineHMACSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing pipeline secret in production")
	}

	cfg = defaultConfig()
	cfg.Server.Environment = "production"
	cfg.Security.PipelineHMACSecret = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("hardened production config should validate, got: %v", err)
	}
}
