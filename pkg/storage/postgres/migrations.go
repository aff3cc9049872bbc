package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					domain VARCHAR(255),
					app_key UUID NOT NULL UNIQUE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					settings JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_tenants_app_key ON tenants(app_key);
				CREATE INDEX IF NOT EXISTS idx_tenants_domain ON tenants(domain);
			`,
		},
		{
			Version:     2,
			Description: "Create admin_users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS admin_users (
					id UUID PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					full_name VARCHAR(255) NOT NULL,
					permissions JSONB NOT NULL DEFAULT '[]',
					metadata JSONB NOT NULL DEFAULT '{}',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					last_login TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_admin_users_email ON admin_users(email);
			`,
		},
		{
			Version:     3,
			Description: "Create admin_user_tenant join table",
			SQL: `
				CREATE TABLE IF NOT EXISTS admin_user_tenant (
					admin_user_id UUID NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (admin_user_id, tenant_id)
				);

				CREATE INDEX IF NOT EXISTS idx_admin_user_tenant_tenant ON admin_user_tenant(tenant_id);
			`,
		},
		{
			Version:     4,
			Description: "Create access and refresh token tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS access_tokens (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					scopes JSONB NOT NULL DEFAULT '[]',
					expires_at TIMESTAMPTZ NOT NULL,
					revoked BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_access_tokens_hash ON access_tokens(token_hash);
				CREATE INDEX IF NOT EXISTS idx_access_tokens_user ON access_tokens(user_id);

				CREATE TABLE IF NOT EXISTS refresh_tokens (
					id UUID PRIMARY KEY,
					access_token_id UUID NOT NULL REFERENCES access_tokens(id) ON DELETE CASCADE,
					expires_at TIMESTAMPTZ NOT NULL,
					revoked BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_refresh_tokens_access ON refresh_tokens(access_token_id);
			`,
		},
		{
			Version:     5,
			Description: "Create personas table",
			SQL: `
				CREATE TABLE IF NOT EXISTS personas (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					title VARCHAR(255),
					profile_picture_url VARCHAR(255),
					expertise_description TEXT,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_personas_tenant ON personas(tenant_id);
			`,
		},
		{
			Version:     6,
			Description: "Create knowledge_base table",
			SQL: `
				CREATE TABLE IF NOT EXISTS knowledge_base (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					content TEXT NOT NULL,
					embedding JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_knowledge_base_tenant ON knowledge_base(tenant_id);
			`,
		},
		{
			Version:     7,
			Description: "Create chat_sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS chat_sessions (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					metadata JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_chat_sessions_tenant ON chat_sessions(tenant_id);
			`,
		},
		{
			Version:     8,
			Description: "Create snippets table",
			SQL: `
				CREATE TABLE IF NOT EXISTS snippets (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					identifier VARCHAR(255) NOT NULL,
					collapsed_html TEXT,
					expanded_html TEXT,
					explanation TEXT,
					assigned_persona_id UUID REFERENCES personas(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, identifier)
				);

				CREATE INDEX IF NOT EXISTS idx_snippets_tenant ON snippets(tenant_id);
			`,
		},
	}
}

// RunMigrations applies pending migrations in version order.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range GetMigrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
