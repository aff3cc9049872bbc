package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/pkg/contextkeys"
	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/observability"
	"github.com/parleyhq/parley/pkg/tenant"
)

// TenantResolver resolves the active tenant for a request. Satisfied by
// *tenant.Resolver.
type TenantResolver interface {
	Resolve(ctx context.Context, req *http.Request) (*tenant.Tenant, error)
}

// ResolveTenant attaches the resolved tenant to the request context. A
// request that resolves no tenant proceeds with no tenant in context;
// handlers that need one enforce that with RequireTenant. A nil metrics
// skips outcome counting.
func ResolveTenant(resolver TenantResolver, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				httputil.WriteInternalError(w, errors.New("internal server error"))
				return
			}
			outcome := "unresolved"
			if t != nil {
				outcome = "resolved"
				ctx := contextkeys.WithTenant(r.Context(), t)
				ctx = contextkeys.WithTenantID(ctx, t.ID)
				r = r.WithContext(ctx)
			}
			if metrics != nil {
				metrics.TenantResolutionsTotal.WithLabelValues(outcome).Inc()
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenant rejects requests that resolved no tenant.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetTenant(r) == nil {
			httputil.WriteNotFoundError(w, "No tenant found for current domain")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAppKey is the strict variant for API clients that must identify
// their tenant explicitly. Unlike ResolveTenant it does not fall through on
// a bad key: a missing or unknown key is a 401, and a key that matches a
// deactivated tenant gets a distinct 401 so the client knows to renew their
// account rather than fix their key.
func RequireAppKey(store tenant.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(tenant.HeaderAppKey))
			if key == "" {
				key = strings.TrimSpace(r.Header.Get(tenant.HeaderTenantKey))
			}
			if key == "" {
				httputil.WriteUnauthorized(w, "Missing or invalid app key")
				return
			}

			t, err := store.LookupByAppKey(r.Context(), key)
			if err != nil {
				if errors.Is(err, tenant.ErrNotFound) {
					httputil.WriteUnauthorized(w, "Missing or invalid app key")
					return
				}
				httputil.WriteInternalError(w, errors.New("internal server error"))
				return
			}
			if !t.IsActive {
				httputil.WriteUnauthorized(w, "Tenant account is not active")
				return
			}

			ctx := contextkeys.WithTenant(r.Context(), t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenant extracts the resolved tenant from the request, or nil.
func GetTenant(r *http.Request) *tenant.Tenant {
	v := r.Context().Value(contextkeys.TenantKey)
	if v == nil {
		return nil
	}
	t, ok := v.(*tenant.Tenant)
	if !ok {
		return nil
	}
	return t
}
