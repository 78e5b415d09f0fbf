// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

/*
Package config provides centralized configuration management for Meridian.

Configuration is loaded in layers with koanf: built-in defaults, then an
optional YAML config file, then environment variables. Environment
variables always win.

# Configuration Structure

  - ServerConfig: HTTP server settings (host, port, timeout, environment)
  - DatabaseConfig: Badger credential/user store settings
  - APIConfig: pagination defaults
  - SecurityConfig: identity headers, membership oracle, pipeline HMAC,
    CORS and rate limiting
  - LoggingConfig: level, format, caller reporting

# Environment Variables

Identity resolution:
  - SKIP_HEADER_CHECK: bypass identity verification (development only)
  - MOCK_USER_EMAIL / MOCK_USER_GROUPS: identity used when bypassed
  - PROXY_SHARED_SECRET: shared secret expected from the auth proxy
  - X_USER_ID_HEADER: identity header name (default: X-User-Email)
  - X_PROXY_SECRET_HEADER: secret header name (default: X-Proxy-Secret)

Membership oracle:
  - MEMBERSHIP_BACKEND: "static" or "casbin"
  - MEMBERSHIP_CACHE_TTL_SECONDS: positive-result cache TTL (default: 300)
  - MEMBERSHIP_CHECK_TIMEOUT / MEMBERSHIP_RATE_LIMIT / MEMBERSHIP_BREAKER_ENABLED

Pipeline callbacks:
  - ML_CALLBACK_HMAC_SECRET: HMAC key for pipeline callback signatures
  - ML_PIPELINE_REQUIRE_HMAC: reject unsigned callbacks (default: true)
  - ML_HMAC_TIMESTAMP_SKEW_SECONDS: allowed clock skew (default: 300)

Production mode (ENVIRONMENT=production) refuses SKIP_HEADER_CHECK, DEBUG,
and a required-but-missing pipeline HMAC secret at startup.
*/
package config
