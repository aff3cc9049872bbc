// Package auth implements authentication and authorization for the Parley
// admin API.
//
// # Overview
//
// This package covers the full credential lifecycle for admin users: password
// verification, permission checks, OAuth-style scope checks, token issuance
// and rotation. Admin users carry a stored permission list; issued tokens
// carry a frozen scope snapshot derived from those permissions at issuance
// time.
//
// # Permissions vs scopes
//
// Permissions are coarse, dot-segmented capability strings stored on the
// user, checked by HasPermission:
//
//	personas.read      - exact capability
//	personas.*         - every capability under personas
//	*                  - everything (super admin)
//
// Scopes are colon-segmented capability strings embedded in issued tokens,
// checked by HasAnyScope / HasAllScopes:
//
//	personas:read, personas:write, personas:delete
//	read, write, delete   - resource-independent capabilities
//	admin, super-admin    - override scopes
//
// ScopesForPermissions maps a permission list onto the fixed scope table once
// per token issuance. Scopes are never re-derived on a live request; a
// permission change takes effect at the next login or refresh.
//
// # Tokens
//
// Access tokens are opaque random strings (parley_ + base64url of 32 random
// bytes) stored as SHA256 hashes. Refresh tokens are separate records with
// their own expiry. Refresh rotates the pair: the old access and refresh
// tokens are revoked before a new pair is issued, so a replayed refresh token
// fails immediately.
//
// # Service
//
//	svc := auth.NewService(users, tokens)
//	bundle, user, err := svc.Login(ctx, auth.LoginRequest{...}, tenantID)
//
// Service methods return typed errors (ErrInvalidCredentials,
// ErrAccountInactive, ...) that the API layer maps onto HTTP status codes.
package auth
