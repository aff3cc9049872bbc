package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service handles tenant lifecycle operations.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a Service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Register creates a new active tenant. An app key is generated when the
// caller does not supply one; once assigned it never changes.
func (s *Service) Register(ctx context.Context, name, domain, appKey string, settings map[string]any) (*Tenant, error) {
	if appKey == "" {
		appKey = uuid.NewString()
	}
	now := s.now()
	t := &Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		Domain:    domain,
		AppKey:    appKey,
		IsActive:  true,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Deactivate flips the tenant's active flag off. Tenants are never deleted;
// deactivation makes them unresolvable while preserving their data.
func (s *Service) Deactivate(ctx context.Context, id string) (*Tenant, error) {
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.IsActive = false
	t.UpdatedAt = s.now()
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
