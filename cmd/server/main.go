// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

// Package main is the entry point for the Meridian API server.
//
// Meridian manages scientific image data for multiple tenant projects.
// The server exposes three API surfaces with distinct authentication
// requirements:
//
//   - /api: browser-facing endpoints authenticated by the identity
//     headers an authenticating reverse proxy injects
//   - /api-key: programmatic endpoints authenticated by bearer API keys
//   - /api-ml: pipeline callback endpoints requiring both an API key and
//     an HMAC signature over the request body
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and an
//     optional YAML file (Koanf v2)
//  2. Store: Open the Badger-backed user and credential store
//  3. Membership: Select the group membership checker (static map or
//     Casbin) and wrap it in the caching oracle
//  4. Authentication: Build the header, API key, and pipeline
//     authenticators
//  5. HTTP Server: Chi router with the three prefixes, metrics, and docs
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables (MERIDIAN_ prefix), config file
// (config.yaml), built-in defaults.
//
// For proxy-header authentication:
//   - MERIDIAN_SECURITY_PROXY_SHARED_SECRET: secret the proxy must echo
//   - MERIDIAN_SECURITY_USER_ID_HEADER: identity header name
//
// For pipeline callbacks:
//   - MERIDIAN_SECURITY_PIPELINE_HMAC_SECRET: shared signing secret
//   - MERIDIAN_SECURITY_PIPELINE_REQUIRE_HMAC: enforce signatures
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, waits for in-flight requests to complete
// (10s timeout), then closes the store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-bio/meridian/internal/api"
	"github.com/meridian-bio/meridian/internal/auth"
	"github.com/meridian-bio/meridian/internal/authz"
	"github.com/meridian-bio/meridian/internal/config"
	"github.com/meridian-bio/meridian/internal/logging"
	"github.com/meridian-bio/meridian/internal/store"
	"github.com/meridian-bio/meridian/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Config not yet available, use the default logger
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Meridian API server")
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("in_memory", cfg.Database.InMemory).
		Str("membership_backend", cfg.Security.MembershipBackend).
		Str("environment", cfg.Server.Environment).
		Msg("Configuration loaded")

	if cfg.Security.Debug || cfg.Security.SkipHeaderCheck {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Identity verification is BYPASSED")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  Every request resolves to the mock user without checking")
		logging.Warn().Msg("  identity headers or the proxy shared secret.")
		logging.Warn().Msg("  This mode should ONLY be used for local development.")
		logging.Warn().Msg("============================================================")
	}

	st, err := store.OpenBadger(cfg.Database.Path, cfg.Database.InMemory)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Msg("Store opened")

	checker, err := buildChecker(&cfg.Security)
	if err != nil {
		if closeErr := st.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing store")
		}
		logging.Fatal().Err(err).Msg("Failed to build membership checker")
	}

	oracle := authz.NewOracle(checker, oracleConfig(&cfg.Security))
	logging.Info().
		Dur("cache_ttl", cfg.Security.MembershipCacheTTL()).
		Bool("bypass", cfg.Security.Debug || cfg.Security.SkipHeaderCheck).
		Msg("Membership oracle initialized")

	headerAuth := auth.NewHeaderAuthenticator(cfg.Security, st)
	keyAuth := auth.NewAPIKeyAuthenticator(st)
	verifier := auth.NewPipelineVerifier(
		cfg.Security.PipelineHMACSecret,
		cfg.Security.PipelineTimestampSkew(),
		cfg.Security.PipelineRequireHMAC,
	)
	if verifier.Required() && !verifier.Configured() {
		logging.Warn().Msg("Pipeline HMAC is required but no secret is configured; /api-ml requests will fail")
	}

	handler := api.NewHandler(st, oracle, cfg.Security.AdminGroup)
	router := api.NewRouter(cfg, handler, headerAuth, keyAuth, verifier)

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED; use only in test environments")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(supervisor.NewStoreGCService(st, cfg.Database.GCInterval))
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// buildChecker selects the membership source from configuration. Debug
// mode always uses the static development map so a developer never needs
// a policy file to get going.
func buildChecker(sec *config.SecurityConfig) (authz.MembershipChecker, error) {
	if sec.Debug || sec.SkipHeaderCheck {
		logging.Info().
			Str("mock_user", sec.MockUserEmail).
			Strs("mock_groups", sec.MockUserGroups).
			Msg("Using development group map")
		return authz.NewStaticChecker(authz.DevGroups(sec.MockUserEmail, sec.MockUserGroups)), nil
	}

	switch sec.MembershipBackend {
	case "casbin":
		checker, err := authz.NewCasbinChecker(sec.Casbin.ModelPath, sec.Casbin.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("casbin checker: %w", err)
		}
		logging.Info().
			Str("model", sec.Casbin.ModelPath).
			Str("policy", sec.Casbin.PolicyPath).
			Msg("Casbin membership checker initialized")
		return checker, nil
	case "static", "":
		logging.Info().Int("users", len(sec.StaticGroups)).Msg("Static membership checker initialized")
		return authz.NewStaticChecker(sec.StaticGroups), nil
	default:
		return nil, fmt.Errorf("unknown membership backend %q", sec.MembershipBackend)
	}
}

// oracleConfig maps security settings onto oracle tuning, falling back to
// the defaults for unset values.
func oracleConfig(sec *config.SecurityConfig) authz.OracleConfig {
	oc := authz.DefaultOracleConfig()
	if ttl := sec.MembershipCacheTTL(); ttl > 0 {
		oc.TTL = ttl
	}
	if sec.MembershipCheckTimeout > 0 {
		oc.CheckTimeout = sec.MembershipCheckTimeout
	}
	oc.RateLimit = sec.MembershipRateLimit
	oc.BreakerEnabled = sec.MembershipBreakerEnabled
	oc.Bypass = sec.Debug || sec.SkipHeaderCheck
	return oc
}
