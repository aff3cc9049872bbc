package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/pkg/auth"
)

// TokenStore implements auth.TokenStore over the access_tokens and
// refresh_tokens tables. Revocation is a plain UPDATE so it is visible to
// the very next lookup; tokens are never cached.
type TokenStore struct {
	db *sql.DB
}

// CreateAccessToken persists an issued access token.
func (s *TokenStore) CreateAccessToken(ctx context.Context, token *auth.Token) error {
	scopes, err := json.Marshal(auth.ScopeStrings(token.Scopes))
	if err != nil {
		return fmt.Errorf("failed to encode scopes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO access_tokens (id, user_id, token_hash, scopes, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, token.ID, token.UserID, token.TokenHash, scopes, token.ExpiresAt, token.Revoked, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token paired with an access token.
func (s *TokenStore) CreateRefreshToken(ctx context.Context, token *auth.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, access_token_id, expires_at, revoked)
		VALUES ($1, $2, $3, $4)
	`, token.ID, token.AccessTokenID, token.ExpiresAt, token.Revoked)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

const accessTokenColumns = `id, user_id, token_hash, scopes, expires_at, revoked, created_at`

func scanAccessToken(row interface{ Scan(...any) error }) (*auth.Token, error) {
	var (
		token  auth.Token
		scopes []byte
	)
	err := row.Scan(&token.ID, &token.UserID, &token.TokenHash, &scopes,
		&token.ExpiresAt, &token.Revoked, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan access token: %w", err)
	}
	var raw []string
	if err := json.Unmarshal(scopes, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode scopes: %w", err)
	}
	token.Scopes = auth.ScopesFromStrings(raw)
	return &token, nil
}

// FindAccessTokenByHash loads an access token by its sha256 hash.
func (s *TokenStore) FindAccessTokenByHash(ctx context.Context, hash string) (*auth.Token, error) {
	query := `SELECT ` + accessTokenColumns + ` FROM access_tokens WHERE token_hash = $1`
	return scanAccessToken(s.db.QueryRowContext(ctx, query, hash))
}

// FindAccessTokenByID loads an access token by id.
func (s *TokenStore) FindAccessTokenByID(ctx context.Context, id string) (*auth.Token, error) {
	query := `SELECT ` + accessTokenColumns + ` FROM access_tokens WHERE id = $1`
	return scanAccessToken(s.db.QueryRowContext(ctx, query, id))
}

// FindRefreshToken loads a refresh token by id.
func (s *TokenStore) FindRefreshToken(ctx context.Context, id string) (*auth.RefreshToken, error) {
	var token auth.RefreshToken
	err := s.db.QueryRowContext(ctx,
		`SELECT id, access_token_id, expires_at, revoked FROM refresh_tokens WHERE id = $1`, id,
	).Scan(&token.ID, &token.AccessTokenID, &token.ExpiresAt, &token.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan refresh token: %w", err)
	}
	return &token, nil
}

// RevokeAccessToken marks an access token revoked.
func (s *TokenStore) RevokeAccessToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE access_tokens SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	return nil
}

// RevokeRefreshToken marks a refresh token revoked.
func (s *TokenStore) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every token the user owns, refresh tokens
// included. Used by logout.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE access_token_id IN (SELECT id FROM access_tokens WHERE user_id = $1)
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE access_tokens SET revoked = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke access tokens: %w", err)
	}
	return nil
}

// DeleteExpired prunes tokens whose expiry passed more than the grace period
// ago. Called from the maintenance path, not the request path.
func (s *TokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE expires_at < NOW() - INTERVAL '30 days'`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tokens: %w", err)
	}
	return result.RowsAffected()
}
