// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateAPI(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be 'development' or 'production', got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("BADGER_PATH is required unless DATABASE_IN_MEMORY=true")
	}
	if c.Database.GCInterval <= 0 {
		return fmt.Errorf("DATABASE_GC_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be at least 1")
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("API_MAX_PAGE_SIZE must be >= API_DEFAULT_PAGE_SIZE")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := &c.Security

	if s.UserIDHeader == "" {
		return fmt.Errorf("X_USER_ID_HEADER must not be empty")
	}
	if s.ProxySecretHeader == "" {
		return fmt.Errorf("X_PROXY_SECRET_HEADER must not be empty")
	}

	switch s.MembershipBackend {
	case "static", "casbin":
	default:
		return fmt.Errorf("MEMBERSHIP_BACKEND must be 'static' or 'casbin', got %q", s.MembershipBackend)
	}
	if s.MembershipBackend == "casbin" {
		if s.Casbin.ModelPath == "" || s.Casbin.PolicyPath == "" {
			return fmt.Errorf("CASBIN_MODEL_PATH and CASBIN_POLICY_PATH are required when MEMBERSHIP_BACKEND=casbin")
		}
	}

	if s.MembershipCacheTTLSeconds < 0 {
		return fmt.Errorf("MEMBERSHIP_CACHE_TTL_SECONDS must not be negative")
	}
	if s.MembershipCheckTimeout <= 0 {
		return fmt.Errorf("MEMBERSHIP_CHECK_TIMEOUT must be positive")
	}
	if s.MembershipRateLimit < 0 {
		return fmt.Errorf("MEMBERSHIP_RATE_LIMIT must not be negative")
	}

	if s.PipelineTimestampSkewSeconds < 0 {
		return fmt.Errorf("ML_HMAC_TIMESTAMP_SKEW_SECONDS must not be negative")
	}

	if !s.RateLimitDisabled {
		if s.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if s.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}

	// Production hardening: refuse dev bypasses and unkeyed pipelines.
	if c.IsProduction() {
		if s.SkipHeaderCheck {
			return fmt.Errorf("SKIP_HEADER_CHECK must not be enabled in production")
		}
		if s.Debug {
			return fmt.Errorf("DEBUG must not be enabled in production")
		}
		if s.PipelineRequireHMAC && s.PipelineHMACSecret == "" {
			return fmt.Errorf("ML_CALLBACK_HMAC_SECRET is required in production when ML_PIPELINE_REQUIRE_HMAC=true")
		}
	}

	return nil
}

func (c *Config) validateLogging() error {
	validLevels := []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled"}
	level := strings.ToLower(c.Logging.Level)
	for _, v := range validLevels {
		if level == v {
			return c.validateLogFormat()
		}
	}
	return fmt.Errorf("LOG_LEVEL must be one of %v, got %q", validLevels, c.Logging.Level)
}

func (c *Config) validateLogFormat() error {
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}
}
