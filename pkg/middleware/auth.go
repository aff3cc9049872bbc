package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/contextkeys"
	"github.com/parleyhq/parley/pkg/httputil"
)

// Authenticator validates a bearer token and loads its owner. Satisfied by
// *auth.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.AuthContext, error)
}

// AuthMiddleware provides bearer-token authentication middleware
type AuthMiddleware struct {
	authn    Authenticator
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authn Authenticator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		authn:    authn,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		authCtx, err := m.authn.Authenticate(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, authCtx.User.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	ctx := r.Context().Value(contextkeys.AuthKey)
	if ctx == nil {
		return nil
	}
	authCtx, ok := ctx.(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

type scopeErrorResponse struct {
	Error         string   `json:"error"`
	MissingScopes []string `json:"missing_scopes,omitempty"`
}

// RequireAnyScope creates middleware that passes when the token carries at
// least one of the given scopes (admin and super-admin override apply).
func RequireAnyScope(scopes ...auth.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteForbidden(w, "authentication required")
				return
			}

			if !auth.HasAnyScope(authCtx.Scopes, scopes) {
				missing := auth.MissingScopes(authCtx.Scopes, scopes)
				httputil.WriteJSON(w, http.StatusForbidden, scopeErrorResponse{
					Error:         "insufficient scope",
					MissingScopes: auth.ScopeStrings(missing),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAllScopes creates middleware that passes only when the token
// carries every given scope (super-admin override applies).
func RequireAllScopes(scopes ...auth.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteForbidden(w, "authentication required")
				return
			}

			if !auth.HasAllScopes(authCtx.Scopes, scopes) {
				missing := auth.MissingScopes(authCtx.Scopes, scopes)
				httputil.WriteJSON(w, http.StatusForbidden, scopeErrorResponse{
					Error:         "insufficient scope",
					MissingScopes: auth.ScopeStrings(missing),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission creates middleware that checks the authenticated user's
// stored permission strings, including wildcard entries.
func RequirePermission(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				httputil.WriteForbidden(w, "authentication required")
				return
			}

			if !auth.HasPermission(authCtx.User.Permissions, required) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
