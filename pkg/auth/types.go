package auth

import "time"

// AdminUser represents an administrative account. A user may administer
// multiple tenants; membership lives in the admin_user_tenants join table.
type AdminUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"` // Never expose hash
	FullName     string         `json:"full_name"`
	Permissions  []string       `json:"permissions"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IsActive     bool           `json:"is_active"`
	LastLogin    *time.Time     `json:"last_login,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Token represents an issued access token record.
type Token struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	Scopes    []Scope   `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshToken is paired with one access token and independently revocable.
type RefreshToken struct {
	ID            string    `json:"id"`
	AccessTokenID string    `json:"access_token_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	Revoked       bool      `json:"revoked"`
}

// TokenBundle is what a successful login or refresh returns to the client.
// RefreshTokenID may be empty when the token backend issues no refresh token.
type TokenBundle struct {
	AccessToken    string `json:"access_token"`
	RefreshTokenID string `json:"refresh_token,omitempty"`
	TokenType      string `json:"token_type"`
	ExpiresIn      int    `json:"expires_in"`
}

// AuthContext holds the authenticated caller for one request.
type AuthContext struct {
	User   *AdminUser
	Token  *Token
	Scopes []Scope
}

// HasScope reports whether the request's token carries the given scope,
// honoring the admin/super-admin overrides.
func (ac *AuthContext) HasScope(scope Scope) bool {
	return HasAnyScope(ac.Scopes, []Scope{scope})
}

// HasPermission reports whether the authenticated user's stored permissions
// grant the given permission.
func (ac *AuthContext) HasPermission(permission string) bool {
	if ac.User == nil {
		return false
	}
	return HasPermission(ac.User.Permissions, permission)
}
