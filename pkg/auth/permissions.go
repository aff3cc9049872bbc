package auth

import "strings"

// Wildcard permissions that grant everything.
const (
	PermissionAll      = "*"
	PermissionAdminAll = "admin.*"
)

// HasPermission reports whether a stored permission list grants the required
// permission. Permissions are dot-segmented (resource.action); a trailing
// ".*" matches every action under the resource, and "*" or "admin.*" match
// everything.
func HasPermission(stored []string, required string) bool {
	if len(stored) == 0 {
		return false
	}

	for _, p := range stored {
		if p == PermissionAll || p == PermissionAdminAll {
			return true
		}
		if p == required {
			return true
		}
	}

	for _, p := range stored {
		if prefix, ok := strings.CutSuffix(p, ".*"); ok {
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}

	return false
}
