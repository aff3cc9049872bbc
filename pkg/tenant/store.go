package tenant

import (
	"context"
	"errors"
)

// ErrNotFound is returned by store lookups that match no tenant.
var ErrNotFound = errors.New("tenant: not found")

// Store is the persistence contract for tenants.
//
// FindByAppKey and FindByDomain only return active tenants; for matching
// purposes an inactive tenant is indistinguishable from a missing one.
// LookupByAppKey returns inactive rows too so callers can distinguish
// "no such key" from "tenant account is not active".
type Store interface {
	// FindByAppKey returns the active tenant with the given app key.
	FindByAppKey(ctx context.Context, appKey string) (*Tenant, error)

	// LookupByAppKey returns the tenant with the given app key regardless
	// of its active flag.
	LookupByAppKey(ctx context.Context, appKey string) (*Tenant, error)

	// FindByDomain returns the active tenant whose domain matches exactly,
	// or whose stored domain is the single-level wildcard covering the
	// given host. Exact matches win over wildcard matches.
	FindByDomain(ctx context.Context, domain string) (*Tenant, error)

	// FindFirstForUser returns the first active tenant the given admin
	// user administers, or ErrNotFound when they administer none.
	FindFirstForUser(ctx context.Context, userID string) (*Tenant, error)

	// FindByID returns the tenant with the given id, active or not.
	FindByID(ctx context.Context, id string) (*Tenant, error)

	// Create persists a new tenant.
	Create(ctx context.Context, t *Tenant) error

	// Update persists changes to name, domain, active flag and settings.
	// The app key is never updated.
	Update(ctx context.Context, t *Tenant) error
}
