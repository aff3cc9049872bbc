package auth

import (
	"sort"
	"strings"
)

// Scope represents an OAuth-style token capability.
type Scope string

const (
	ScopeRead   Scope = "read"
	ScopeWrite  Scope = "write"
	ScopeDelete Scope = "delete"

	ScopeAdmin      Scope = "admin"
	ScopeSuperAdmin Scope = "super-admin"
)

// scopeResources is the closed set of resources with per-resource scopes.
// Adding a resource here extends the full scope set issued to wildcard admins.
var scopeResources = []string{"users", "personas", "chat", "knowledge", "snippets", "tenants"}

// AllScopes returns the full fixed scope set: every resource:action pair plus
// the global and administrative scopes. The result is a fresh slice, sorted.
func AllScopes() []Scope {
	out := []Scope{ScopeRead, ScopeWrite, ScopeDelete, ScopeAdmin, ScopeSuperAdmin}
	for _, res := range scopeResources {
		out = append(out,
			Scope(res+":read"),
			Scope(res+":write"),
			Scope(res+":delete"),
		)
	}
	sortScopes(out)
	return out
}

// HasAnyScope reports whether the token scopes satisfy at least one required
// scope (OR semantics). An empty requirement always passes. super-admin
// passes everything; admin passes everything except a super-admin
// requirement.
func HasAnyScope(tokenScopes []Scope, required []Scope) bool {
	if len(required) == 0 {
		return true
	}
	if containsScope(tokenScopes, ScopeSuperAdmin) {
		return true
	}
	if containsScope(tokenScopes, ScopeAdmin) && !containsScope(required, ScopeSuperAdmin) {
		return true
	}
	for _, s := range required {
		if containsScope(tokenScopes, s) {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether the token scopes satisfy every required scope
// (AND semantics). An empty requirement always passes; super-admin passes
// everything.
func HasAllScopes(tokenScopes []Scope, required []Scope) bool {
	if len(required) == 0 {
		return true
	}
	if containsScope(tokenScopes, ScopeSuperAdmin) {
		return true
	}
	for _, s := range required {
		if !containsScope(tokenScopes, s) {
			return false
		}
	}
	return true
}

// MissingScopes returns required − tokenScopes, preserving required order.
// Used for diagnostic response bodies on 403s.
func MissingScopes(tokenScopes []Scope, required []Scope) []Scope {
	missing := make([]Scope, 0, len(required))
	for _, s := range required {
		if !containsScope(tokenScopes, s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// ScopesForPermissions derives the scope list to embed in an issued token
// from a user's stored permissions. The mapping is fixed: it is applied once
// per issuance (login and refresh) and the token carries the result as a
// frozen snapshot.
func ScopesForPermissions(permissions []string) []Scope {
	if len(permissions) == 0 {
		return []Scope{ScopeRead}
	}

	for _, p := range permissions {
		if p == PermissionAll || p == PermissionAdminAll {
			return AllScopes()
		}
	}

	set := map[Scope]struct{}{ScopeRead: {}}
	for _, p := range permissions {
		if p == "admin" || p == "admin.read" {
			set[ScopeAdmin] = struct{}{}
			continue
		}

		res, action, wildcard := splitPermission(p)
		if !knownResource(res) {
			continue
		}
		if wildcard {
			set[Scope(res+":read")] = struct{}{}
			set[Scope(res+":write")] = struct{}{}
			set[Scope(res+":delete")] = struct{}{}
			set[ScopeWrite] = struct{}{}
			set[ScopeDelete] = struct{}{}
			continue
		}
		switch action {
		case "read":
			set[Scope(res+":read")] = struct{}{}
		case "create", "update", "write":
			set[Scope(res+":write")] = struct{}{}
			set[ScopeWrite] = struct{}{}
		case "delete":
			set[Scope(res+":delete")] = struct{}{}
			set[ScopeDelete] = struct{}{}
		}
	}

	out := make([]Scope, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sortScopes(out)
	return out
}

func splitPermission(p string) (resource, action string, wildcard bool) {
	res, rest, found := strings.Cut(p, ".")
	if !found {
		return p, "", false
	}
	if rest == "*" {
		return res, "", true
	}
	return res, rest, false
}

func knownResource(res string) bool {
	for _, r := range scopeResources {
		if r == res {
			return true
		}
	}
	return false
}

func containsScope(scopes []Scope, s Scope) bool {
	for _, v := range scopes {
		if v == s {
			return true
		}
	}
	return false
}

func sortScopes(scopes []Scope) {
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
}

// ScopeStrings converts a scope list to plain strings for storage and JSON.
func ScopeStrings(scopes []Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}

// ScopesFromStrings converts stored strings back into scopes.
func ScopesFromStrings(values []string) []Scope {
	out := make([]Scope, len(values))
	for i, v := range values {
		out[i] = Scope(v)
	}
	return out
}
