package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/parleyhq/parley/pkg/auth"
)

// UserStore implements auth.UserStore plus the admin-management operations
// the API exposes on top of it.
type UserStore struct {
	db *sql.DB
}

const userColumns = `id, email, password_hash, full_name, permissions, metadata, is_active, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.AdminUser, error) {
	var (
		user        auth.AdminUser
		permissions []byte
		metadata    []byte
		lastLogin   sql.NullTime
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName,
		&permissions, &metadata, &user.IsActive, &lastLogin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan admin user: %w", err)
	}
	if err := json.Unmarshal(permissions, &user.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &user.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return &user, nil
}

// FindByEmail loads a user by normalized email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*auth.AdminUser, error) {
	query := `SELECT ` + userColumns + ` FROM admin_users WHERE email = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

// FindByID loads a user by id.
func (s *UserStore) FindByID(ctx context.Context, id string) (*auth.AdminUser, error) {
	query := `SELECT ` + userColumns + ` FROM admin_users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// Create persists a new admin user.
func (s *UserStore) Create(ctx context.Context, user *auth.AdminUser) error {
	permissions, err := json.Marshal(user.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}
	metadata, err := json.Marshal(user.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if user.Metadata == nil {
		metadata = []byte("{}")
	}

	query := `
		INSERT INTO admin_users (id, email, password_hash, full_name, permissions, metadata, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FullName,
		permissions, metadata, user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the user's last successful login.
func (s *UserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE admin_users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// MemberOfTenant reports whether the user administers the given tenant.
func (s *UserStore) MemberOfTenant(ctx context.Context, userID, tenantID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM admin_user_tenant WHERE admin_user_id = $1 AND tenant_id = $2)`,
		userID, tenantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant membership: %w", err)
	}
	return exists, nil
}

// AttachTenant links the user to a tenant. Attaching twice is a no-op.
func (s *UserStore) AttachTenant(ctx context.Context, userID, tenantID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_user_tenant (admin_user_id, tenant_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to attach tenant: %w", err)
	}
	return nil
}

// DetachTenant removes the user's link to a tenant.
func (s *UserStore) DetachTenant(ctx context.Context, userID, tenantID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM admin_user_tenant WHERE admin_user_id = $1 AND tenant_id = $2`,
		userID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to detach tenant: %w", err)
	}
	return nil
}

// CountTenants returns how many tenants the user administers.
func (s *UserStore) CountTenants(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admin_user_tenant WHERE admin_user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tenants: %w", err)
	}
	return count, nil
}

// ListForTenant returns all admin users attached to a tenant.
func (s *UserStore) ListForTenant(ctx context.Context, tenantID string) ([]*auth.AdminUser, error) {
	query := `
		SELECT ` + userColumns + ` FROM admin_users
		WHERE id IN (SELECT admin_user_id FROM admin_user_tenant WHERE tenant_id = $1)
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}
	defer rows.Close()

	var users []*auth.AdminUser
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Delete removes the user entirely. Tokens and tenant links cascade.
func (s *UserStore) Delete(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM admin_users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete admin user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}
