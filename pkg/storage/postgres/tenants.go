package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/pkg/tenant"
)

// TenantStore implements tenant.Store.
type TenantStore struct {
	db *sql.DB
}

const tenantColumns = `id, name, COALESCE(domain, ''), app_key, is_active, settings, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (*tenant.Tenant, error) {
	var (
		t        tenant.Tenant
		settings []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.AppKey, &t.IsActive,
		&settings, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	}
	return &t, nil
}

// FindByAppKey returns the active tenant with the given app key.
func (s *TenantStore) FindByAppKey(ctx context.Context, appKey string) (*tenant.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE app_key = $1 AND is_active = TRUE`
	return scanTenant(s.db.QueryRowContext(ctx, query, appKey))
}

// LookupByAppKey returns the tenant with the given app key, active or not.
func (s *TenantStore) LookupByAppKey(ctx context.Context, appKey string) (*tenant.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE app_key = $1`
	return scanTenant(s.db.QueryRowContext(ctx, query, appKey))
}

// FindByDomain matches an exact domain or the single-level wildcard covering
// the host. Exact matches win over wildcard matches.
func (s *TenantStore) FindByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + ` FROM tenants
		WHERE (domain = $1 OR domain = $2) AND is_active = TRUE
		ORDER BY CASE WHEN domain = $1 THEN 0 ELSE 1 END
		LIMIT 1
	`
	return scanTenant(s.db.QueryRowContext(ctx, query, domain, tenant.WildcardDomain(domain)))
}

// FindFirstForUser returns the first active tenant the user administers,
// oldest membership first.
func (s *TenantStore) FindFirstForUser(ctx context.Context, userID string) (*tenant.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + ` FROM tenants t
		JOIN admin_user_tenant aut ON aut.tenant_id = t.id
		WHERE aut.admin_user_id = $1 AND t.is_active = TRUE
		ORDER BY aut.created_at
		LIMIT 1
	`
	return scanTenant(s.db.QueryRowContext(ctx, query, userID))
}

// FindByID returns the tenant with the given id, active or not.
func (s *TenantStore) FindByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(s.db.QueryRowContext(ctx, query, id))
}

// Create persists a new tenant.
func (s *TenantStore) Create(ctx context.Context, t *tenant.Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if t.Settings == nil {
		settings = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, domain, app_key, is_active, settings, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
	`, t.ID, t.Name, t.Domain, t.AppKey, t.IsActive, settings, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// Update persists mutable tenant fields. The app key column is deliberately
// absent from the statement.
func (s *TenantStore) Update(ctx context.Context, t *tenant.Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if t.Settings == nil {
		settings = []byte("{}")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE tenants
		SET name = $2, domain = NULLIF($3, ''), is_active = $4, settings = $5, updated_at = $6
		WHERE id = $1
	`, t.ID, t.Name, t.Domain, t.IsActive, settings, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return tenant.ErrNotFound
	}
	return nil
}
