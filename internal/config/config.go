// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package config

import (
	"time"
)

// Config is the root configuration for the Meridian API server.
// Values are loaded in layers: built-in defaults, then an optional YAML
// file, then environment variables (highest priority).
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development or production
}

// DatabaseConfig holds credential/user store settings.
type DatabaseConfig struct {
	Path       string        `koanf:"path"`        // Badger data directory
	InMemory   bool          `koanf:"in_memory"`   // Run Badger without persistence (tests, dev)
	GCInterval time.Duration `koanf:"gc_interval"` // Value-log GC cadence
}

// APIConfig holds pagination defaults for list endpoints.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication and authorization settings.
type SecurityConfig struct {
	// Debug enables development conveniences such as the static dev
	// group map. Never enable in production.
	Debug bool `koanf:"debug"`

	// SkipHeaderCheck bypasses identity header verification entirely and
	// resolves every request to MockUserEmail. Local development only.
	SkipHeaderCheck bool     `koanf:"skip_header_check"`
	MockUserEmail   string   `koanf:"mock_user_email"`
	MockUserGroups  []string `koanf:"mock_user_groups"`

	// ProxySharedSecret is the value the authenticating proxy must send
	// in ProxySecretHeader. Empty means no secret is configured.
	ProxySharedSecret string `koanf:"proxy_shared_secret"`
	UserIDHeader      string `koanf:"user_id_header"`
	ProxySecretHeader string `koanf:"proxy_secret_header"`

	// TrustIdentityHeader permits identity-header auth when no shared
	// secret is configured, for deployments where the proxy boundary is
	// the only ingress. When false, a missing secret is a server error.
	TrustIdentityHeader bool `koanf:"trust_identity_header"`

	// AdminGroup gates the cache administration endpoints.
	AdminGroup string `koanf:"admin_group"`

	// MembershipBackend selects the group membership source: "static"
	// (from StaticGroups / the dev map) or "casbin".
	MembershipBackend string              `koanf:"membership_backend"`
	StaticGroups      map[string][]string `koanf:"static_groups"`
	Casbin            CasbinConfig        `koanf:"casbin"`

	// Membership oracle tuning.
	MembershipCacheTTLSeconds int           `koanf:"membership_cache_ttl_seconds"`
	MembershipCheckTimeout    time.Duration `koanf:"membership_check_timeout"`
	MembershipRateLimit       float64       `koanf:"membership_rate_limit"` // Checker calls per second, 0 = unlimited
	MembershipBreakerEnabled  bool          `koanf:"membership_breaker_enabled"`

	// Pipeline callback HMAC verification.
	PipelineHMACSecret           string `koanf:"pipeline_hmac_secret"`
	PipelineRequireHMAC          bool   `koanf:"pipeline_require_hmac"`
	PipelineTimestampSkewSeconds int    `koanf:"pipeline_timestamp_skew_seconds"`

	// HTTP perimeter settings.
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// CasbinConfig configures the Casbin-backed membership checker.
type CasbinConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// MembershipCacheTTL returns the cache TTL as a duration.
func (s *SecurityConfig) MembershipCacheTTL() time.Duration {
	return time.Duration(s.MembershipCacheTTLSeconds) * time.Second
}

// PipelineTimestampSkew returns the allowed HMAC timestamp skew as a duration.
func (s *SecurityConfig) PipelineTimestampSkew() time.Duration {
	return time.Duration(s.PipelineTimestampSkewSeconds) * time.Second
}
