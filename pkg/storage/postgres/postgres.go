// Package postgres provides the PostgreSQL persistence layer: admin users,
// tenants, tokens and the tenant-scoped resource tables.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/parleyhq/parley/pkg/storage"
)

// Storage bundles all PostgreSQL-backed stores over one connection pool.
type Storage struct {
	db     *sql.DB
	config storage.Config

	Users     *UserStore
	Tokens    *TokenStore
	Tenants   *TenantStore
	Resources *ResourceStore
}

// NewStorage connects to PostgreSQL and runs pending migrations.
func NewStorage(config storage.Config) (*Storage, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.PostgresMaxConns)
	db.SetMaxIdleConns(config.PostgresMinConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), config.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return newStorage(db, config), nil
}

// NewStorageWithDB wraps an existing connection, skipping pool setup and
// migrations. Used by tests with sqlmock.
func NewStorageWithDB(db *sql.DB) *Storage {
	return newStorage(db, storage.Config{})
}

func newStorage(db *sql.DB, config storage.Config) *Storage {
	return &Storage{
		db:        db,
		config:    config,
		Users:     &UserStore{db: db},
		Tokens:    &TokenStore{db: db},
		Tenants:   &TenantStore{db: db},
		Resources: &ResourceStore{db: db},
	}
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// GetDB exposes the underlying pool for components that need raw access.
func (s *Storage) GetDB() *sql.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.db.Close()
}
