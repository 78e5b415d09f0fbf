// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package api

import (
	"net/http"

	"github.com/meridian-bio/meridian/internal/logging"
)

// openAPIDocument is the served API schema. Hand-maintained; the surface
// is small enough that generation would cost more than it saves.
const openAPIDocument = `{
  "openapi": "3.0.3",
  "info": {
    "title": "Meridian API",
    "description": "Scientific image data management. Authentication: /api uses proxy identity headers, /api-key uses bearer API keys, /api-ml uses bearer API keys plus HMAC body signatures.",
    "version": "1.0.0"
  },
  "paths": {
    "/api/health": {"get": {"summary": "Service health", "responses": {"200": {"description": "Healthy"}}}},
    "/api/health/live": {"get": {"summary": "Liveness probe", "responses": {"200": {"description": "Alive"}}}},
    "/api/health/ready": {"get": {"summary": "Readiness probe", "responses": {"200": {"description": "Ready"}, "503": {"description": "Store not ready"}}}},
    "/api/users/me": {"get": {"summary": "Authenticated identity", "responses": {"200": {"description": "User record and auth mode"}}}},
    "/api/users/me/groups": {"get": {"summary": "Caller group memberships", "responses": {"200": {"description": "Group list"}}}},
    "/api/groups/check": {"get": {"summary": "Probe one group membership", "parameters": [{"name": "group", "in": "query", "required": true, "schema": {"type": "string"}}], "responses": {"200": {"description": "Membership result"}}}},
    "/api/api-keys": {
      "get": {"summary": "List caller API keys", "responses": {"200": {"description": "Keys, hashes omitted"}}},
      "post": {"summary": "Issue an API key", "responses": {"201": {"description": "Key record plus raw key, shown once"}}}
    },
    "/api/api-keys/{id}": {"delete": {"summary": "Deactivate an API key", "responses": {"204": {"description": "Deactivated"}, "404": {"description": "Unknown or not owned"}}}},
    "/api/auth/cache/stats": {"get": {"summary": "Membership cache stats (admin)", "responses": {"200": {"description": "Cache statistics"}}}},
    "/api/auth/cache/clear": {"post": {"summary": "Clear membership cache (admin)", "responses": {"200": {"description": "Entries cleared"}}}},
    "/api/auth/cache/clear/{email}": {"post": {"summary": "Clear cache for one user (admin)", "responses": {"200": {"description": "Entries cleared"}}}}
  }
}`

// redocPage is the alternative reference renderer; Swagger UI at /docs
// is the primary one.
const redocPage = `<!DOCTYPE html>
<html>
<head>
  <title>Meridian API</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
</head>
<body>
  <redoc spec-url="/openapi.json"></redoc>
  <script src="https://cdn.jsdelivr.net/npm/redoc@latest/bundles/redoc.standalone.js"></script>
</body>
</html>`

func (router *Router) serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(openAPIDocument)); err != nil {
		logging.Error().Err(err).Msg("failed to write openapi document")
	}
}

func (router *Router) serveRedoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(redocPage)); err != nil {
		logging.Error().Err(err).Msg("failed to write redoc page")
	}
}
