// Package api implements the HTTP API server.
//
// Admin routes live under /api/v1. Authentication endpoints (login,
// refresh, register) are rate limited; everything else requires a bearer
// token. Tenant-scoped resource routes additionally require a resolved
// tenant and a matching token scope. A small embedded-client surface
// lives under /client/v1, gated by a strict app-key check instead of
// bearer auth.
//
// Handlers translate service errors into the externally observable
// status surface: 422 for validation, 401 for credential and token
// failures, 403 for inactive accounts and missing scopes, 404 for
// absent or foreign-tenant entities, 429 when throttled.
package api
