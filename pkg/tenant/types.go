package tenant

import (
	"strings"
	"time"
)

// Tenant is an isolated customer context. Every tenant-scoped entity carries
// its ID as a foreign key.
type Tenant struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Domain    string         `json:"domain,omitempty"`
	AppKey    string         `json:"app_key"`
	IsActive  bool           `json:"is_active"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// WildcardDomain returns the single-level wildcard pattern that would match
// host, e.g. "shop.example.com" -> "*.example.com". Hosts without a parent
// domain return "".
func WildcardDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	return "*." + strings.Join(parts[1:], ".")
}

// HostFromOrigin extracts the host from an Origin header value such as
// "https://shop.example.com:8443". Returns "" when the value has no host.
func HostFromOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}
	if i := strings.Index(origin, "://"); i >= 0 {
		origin = origin[i+3:]
	}
	if i := strings.IndexAny(origin, "/?#"); i >= 0 {
		origin = origin[:i]
	}
	if i := strings.LastIndex(origin, ":"); i >= 0 {
		// Strip a port but keep IPv6 literals intact.
		if !strings.Contains(origin[i:], "]") {
			origin = origin[:i]
		}
	}
	return origin
}
