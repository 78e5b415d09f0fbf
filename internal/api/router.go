// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/meridian-bio/meridian/internal/auth"
	"github.com/meridian-bio/meridian/internal/bodycache"
	"github.com/meridian-bio/meridian/internal/config"
	"github.com/meridian-bio/meridian/internal/middleware"
)

// Router assembles the HTTP surface from its middleware and handlers.
type Router struct {
	cfg        *config.Config
	handler    *Handler
	headerAuth *auth.HeaderAuthenticator
	keyAuth    *auth.APIKeyAuthenticator
	verifier   *auth.PipelineVerifier
}

// NewRouter builds a router over the given dependencies.
func NewRouter(cfg *config.Config, handler *Handler, headerAuth *auth.HeaderAuthenticator,
	keyAuth *auth.APIKeyAuthenticator, verifier *auth.PipelineVerifier) *Router {
	return &Router{
		cfg:        cfg,
		handler:    handler,
		headerAuth: headerAuth,
		keyAuth:    keyAuth,
		verifier:   verifier,
	}
}

// Setup configures all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-ML-Signature", "X-ML-Timestamp"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Proxy-header surface. Health probes live under this prefix but are
	// exempted by the authenticator, so monitors need no credentials.
	r.Route("/api", func(r chi.Router) {
		router.useRateLimit(r)
		r.Use(auth.RequireHeader(router.headerAuth))

		r.Route("/health", func(r chi.Router) {
			r.Get("/", router.handler.Health)
			r.Get("/live", router.handler.HealthLive)
			r.Get("/ready", router.handler.HealthReady)
		})

		router.mountResources(r)
	})

	// API-key surface for programmatic access.
	r.Route("/api-key", func(r chi.Router) {
		router.useRateLimit(r)
		r.Use(auth.RequireAPIKey(router.keyAuth))
		router.mountResources(r)
	})

	// Pipeline surface: API key plus HMAC body signatures.
	r.Route("/api-ml", func(r chi.Router) {
		router.useRateLimit(r)
		r.Use(bodycache.Capture)
		r.Use(auth.RequirePipeline(router.keyAuth, router.verifier))
		router.mountResources(r)
	})

	// Observability and schema. Swagger UI renders the hand-maintained
	// schema served at /openapi.json.
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.json", router.serveOpenAPI)
	r.Get("/docs", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/docs/index.html", http.StatusMovedPermanently)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/openapi.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))
	r.Get("/redoc", router.serveRedoc)

	return r
}

// mountResources registers the shared handler set on a prefix.
func (router *Router) mountResources(r chi.Router) {
	// Key issuance gets a stricter limit than reads.
	r.With(httprate.LimitByIP(10, router.cfg.Security.RateLimitWindow)).
		Post("/api-keys", router.handler.APIKeyCreate)
	r.Get("/api-keys", router.handler.APIKeyList)
	r.Delete("/api-keys/{id}", router.handler.APIKeyDeactivate)

	r.Get("/users/me", router.handler.UsersMe)
	r.Get("/users/me/groups", router.handler.UserGroups)
	r.Get("/groups/check", router.handler.GroupCheck)

	r.Route("/auth/cache", func(r chi.Router) {
		r.Get("/stats", router.handler.CacheStats)
		r.Post("/clear", router.handler.CacheClear)
		r.Post("/clear/{email}", router.handler.CacheClearUser)
	})
}

func (router *Router) useRateLimit(r chi.Router) {
	if router.cfg.Security.RateLimitDisabled {
		return
	}
	r.Use(httprate.LimitByIP(router.cfg.Security.RateLimitReqs, router.cfg.Security.RateLimitWindow))
}
