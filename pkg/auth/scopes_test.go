package auth

import (
	"testing"
)

func scopesOf(values ...string) []Scope {
	return ScopesFromStrings(values)
}

func TestHasAnyScope(t *testing.T) {
	tests := []struct {
		name     string
		token    []Scope
		required []Scope
		want     bool
	}{
		{"empty requirement passes", scopesOf("read"), nil, true},
		{"super-admin passes anything", scopesOf("super-admin"), scopesOf("tenants:delete"), true},
		{"admin passes normal requirements", scopesOf("admin"), scopesOf("users:write"), true},
		{"admin does not satisfy super-admin requirement", scopesOf("admin"), scopesOf("super-admin"), false},
		{"intersection passes", scopesOf("read", "personas:read"), scopesOf("personas:read", "personas:write"), true},
		{"no intersection fails", scopesOf("read"), scopesOf("personas:write"), false},
		{"empty token scopes fail", nil, scopesOf("read"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAnyScope(tt.token, tt.required); got != tt.want {
				t.Errorf("HasAnyScope(%v, %v) = %v, want %v", tt.token, tt.required, got, tt.want)
			}
		})
	}
}

func TestHasAllScopes(t *testing.T) {
	tests := []struct {
		name     string
		token    []Scope
		required []Scope
		want     bool
	}{
		{"empty requirement passes", nil, nil, true},
		{"super-admin overrides everything", scopesOf("super-admin"), scopesOf("users:read", "users:write"), true},
		{"all present passes", scopesOf("users:read", "users:write", "read"), scopesOf("users:read", "users:write"), true},
		{"one missing fails", scopesOf("users:read"), scopesOf("users:read", "users:write"), false},
		{"admin alone is not enough for all-semantics", scopesOf("admin"), scopesOf("users:read"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAllScopes(tt.token, tt.required); got != tt.want {
				t.Errorf("HasAllScopes(%v, %v) = %v, want %v", tt.token, tt.required, got, tt.want)
			}
		})
	}
}

func TestMissingScopes(t *testing.T) {
	missing := MissingScopes(scopesOf("users:read"), scopesOf("users:read", "users:write", "delete"))
	if len(missing) != 2 || missing[0] != "users:write" || missing[1] != "delete" {
		t.Errorf("MissingScopes = %v, want [users:write delete]", missing)
	}
}

func TestAllScopes_ClosedEnumeration(t *testing.T) {
	all := AllScopes()

	// 6 resources x read/write/delete + read, write, delete, admin, super-admin
	if len(all) != 23 {
		t.Fatalf("AllScopes() has %d entries, want 23", len(all))
	}

	for _, want := range []Scope{"read", "write", "delete", "admin", "super-admin", "personas:read", "tenants:delete", "chat:write"} {
		if !containsScope(all, want) {
			t.Errorf("AllScopes() missing %q", want)
		}
	}
}

func TestScopesForPermissions(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		want        []Scope
		wantLen     int
	}{
		{
			name:        "empty input yields read only",
			permissions: nil,
			want:        scopesOf("read"),
		},
		{
			name:        "empty slice yields read only",
			permissions: []string{},
			want:        scopesOf("read"),
		},
		{
			name:        "global wildcard yields the full set",
			permissions: []string{"*"},
			wantLen:     23,
		},
		{
			name:        "admin wildcard yields the full set",
			permissions: []string{"admin.*"},
			wantLen:     23,
		},
		{
			name:        "read permission maps to resource read",
			permissions: []string{"users.read"},
			want:        scopesOf("read", "users:read"),
		},
		{
			name:        "create maps to resource write plus global write",
			permissions: []string{"personas.create"},
			want:        scopesOf("personas:write", "read", "write"),
		},
		{
			name:        "update maps to resource write plus global write",
			permissions: []string{"personas.update"},
			want:        scopesOf("personas:write", "read", "write"),
		},
		{
			name:        "delete maps to resource delete plus global delete",
			permissions: []string{"snippets.delete"},
			want:        scopesOf("delete", "read", "snippets:delete"),
		},
		{
			name:        "resource wildcard expands to all three actions",
			permissions: []string{"personas.*"},
			want:        scopesOf("delete", "personas:delete", "personas:read", "personas:write", "read", "write"),
		},
		{
			name:        "bare admin permission adds admin scope",
			permissions: []string{"admin"},
			want:        scopesOf("admin", "read"),
		},
		{
			name:        "admin.read adds admin scope",
			permissions: []string{"admin.read"},
			want:        scopesOf("admin", "read"),
		},
		{
			name:        "unknown resource is ignored",
			permissions: []string{"widgets.read"},
			want:        scopesOf("read"),
		},
		{
			name:        "duplicates collapse",
			permissions: []string{"users.read", "users.read", "users.create", "users.update"},
			want:        scopesOf("read", "users:read", "users:write", "write"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScopesForPermissions(tt.permissions)
			if tt.wantLen > 0 {
				if len(got) != tt.wantLen {
					t.Fatalf("got %d scopes, want %d: %v", len(got), tt.wantLen, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestScopesForPermissions_PersonaWildcardExcludesOtherResources(t *testing.T) {
	got := ScopesForPermissions([]string{"personas.*"})

	for _, s := range []Scope{"personas:read", "personas:write", "personas:delete", "read"} {
		if !containsScope(got, s) {
			t.Errorf("scopes missing %q: %v", s, got)
		}
	}
	if containsScope(got, "knowledge:read") {
		t.Errorf("personas.* must not grant knowledge:read: %v", got)
	}
}
