package tenant

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/pkg/auth"
)

// Header names recognized by the Resolver.
const (
	HeaderAppKey       = "X-App-Key"
	HeaderTenantKey    = "X-Tenant-Key"
	HeaderTenantDomain = "X-Tenant-Domain"
)

// Authenticator validates a bearer token and loads its owner. Satisfied by
// *auth.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.AuthContext, error)
}

// Resolver determines the active tenant for an inbound request by trying an
// ordered list of strategies and stopping at the first hit. See the package
// documentation for the strategy order.
type Resolver struct {
	store Store
	authn Authenticator
}

// NewResolver builds a Resolver. authn may be nil, in which case the
// bearer-token strategy is skipped.
func NewResolver(store Store, authn Authenticator) *Resolver {
	return &Resolver{store: store, authn: authn}
}

// Resolve walks the strategy chain for the given request. It returns
// (nil, nil) when no strategy matched an active tenant; a non-nil error
// indicates an infrastructure failure, not a resolution miss.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Tenant, error) {
	// 1+2: explicit app-key headers, primary then compatibility alias.
	for _, header := range []string{HeaderAppKey, HeaderTenantKey} {
		key := strings.TrimSpace(req.Header.Get(header))
		if key == "" {
			continue
		}
		t, err := r.byAppKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	// 3: the authenticated bearer token's owning user.
	if t, err := r.byBearerToken(ctx, req); err != nil {
		return nil, err
	} else if t != nil {
		return t, nil
	}

	// 4: request host, exact then wildcard.
	host := requestHost(req)
	if t, err := r.byDomain(ctx, host); err != nil {
		return nil, err
	} else if t != nil {
		return t, nil
	}

	// 5: Origin header host, same matching rule.
	if origin := HostFromOrigin(req.Header.Get("Origin")); origin != "" {
		t, err := r.byDomain(ctx, origin)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	// 6: explicit domain override header, lowest priority.
	if override := strings.TrimSpace(req.Header.Get(HeaderTenantDomain)); override != "" {
		t, err := r.byDomain(ctx, override)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	return nil, nil
}

func (r *Resolver) byAppKey(ctx context.Context, key string) (*Tenant, error) {
	t, err := r.store.FindByAppKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return t, err
}

func (r *Resolver) byBearerToken(ctx context.Context, req *http.Request) (*Tenant, error) {
	if r.authn == nil {
		return nil, nil
	}
	token := bearerToken(req)
	if token == "" {
		return nil, nil
	}
	ac, err := r.authn.Authenticate(ctx, token)
	if err != nil {
		// An invalid or expired token simply fails this strategy; the
		// auth middleware decides whether the request dies later.
		return nil, nil
	}
	t, err := r.store.FindFirstForUser(ctx, ac.User.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return t, err
}

func (r *Resolver) byDomain(ctx context.Context, domain string) (*Tenant, error) {
	if domain == "" {
		return nil, nil
	}
	t, err := r.store.FindByDomain(ctx, domain)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return t, err
}

func requestHost(req *http.Request) string {
	host := req.Host
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
