package auth

import (
	"context"
	"time"
)

// UserStore is the credential store consumed by Service. Implementations
// return ErrNotFound when no row matches.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*AdminUser, error)
	FindByID(ctx context.Context, id string) (*AdminUser, error)
	Create(ctx context.Context, user *AdminUser) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// MemberOfTenant reports whether the user administers the given tenant.
	MemberOfTenant(ctx context.Context, userID, tenantID string) (bool, error)
	// AttachTenant adds the user to a tenant's admin set. Idempotent.
	AttachTenant(ctx context.Context, userID, tenantID string) error
}

// TokenStore persists access and refresh tokens. Revocation writes must be
// visible to the very next lookup; there is no grace window.
type TokenStore interface {
	CreateAccessToken(ctx context.Context, token *Token) error
	CreateRefreshToken(ctx context.Context, token *RefreshToken) error

	FindAccessTokenByHash(ctx context.Context, hash string) (*Token, error)
	FindAccessTokenByID(ctx context.Context, id string) (*Token, error)
	FindRefreshToken(ctx context.Context, id string) (*RefreshToken, error)

	RevokeAccessToken(ctx context.Context, id string) error
	RevokeRefreshToken(ctx context.Context, id string) error
	// RevokeAllForUser revokes every access and refresh token owned by the
	// user. Revoking zero tokens is not an error.
	RevokeAllForUser(ctx context.Context, userID string) error
}
