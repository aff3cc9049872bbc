package api

import (
	"context"
	"time"
)

// Persona is a tenant-scoped AI persona definition.
type Persona struct {
	ID                   string    `json:"id"`
	TenantID             string    `json:"tenant_id"`
	Name                 string    `json:"name"`
	Title                string    `json:"title,omitempty"`
	ProfilePictureURL    string    `json:"profile_picture_url,omitempty"`
	ExpertiseDescription string    `json:"expertise_description,omitempty"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// KnowledgeEntry is a tenant-scoped knowledge base document.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatSession is a tenant-scoped conversation container.
type ChatSession struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Snippet is a tenant-scoped reusable content block, optionally assigned to
// a persona.
type Snippet struct {
	ID                string    `json:"id"`
	TenantID          string    `json:"tenant_id"`
	Identifier        string    `json:"identifier"`
	CollapsedHTML     string    `json:"collapsed_html,omitempty"`
	ExpandedHTML      string    `json:"expanded_html,omitempty"`
	Explanation       string    `json:"explanation,omitempty"`
	AssignedPersonaID string    `json:"assigned_persona_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Storage defines the tenant-scoped persistence operations the API serves.
// Every lookup takes the tenant id; an entity belonging to another tenant is
// indistinguishable from a missing one.
type Storage interface {
	// Persona operations
	CreatePersona(ctx context.Context, p *Persona) error
	GetPersona(ctx context.Context, tenantID, id string) (*Persona, error)
	ListPersonas(ctx context.Context, tenantID string) ([]*Persona, error)
	UpdatePersona(ctx context.Context, p *Persona) error
	DeletePersona(ctx context.Context, tenantID, id string) error

	// Knowledge base operations
	CreateKnowledgeEntry(ctx context.Context, e *KnowledgeEntry) error
	GetKnowledgeEntry(ctx context.Context, tenantID, id string) (*KnowledgeEntry, error)
	ListKnowledgeEntries(ctx context.Context, tenantID string) ([]*KnowledgeEntry, error)
	UpdateKnowledgeEntry(ctx context.Context, e *KnowledgeEntry) error
	DeleteKnowledgeEntry(ctx context.Context, tenantID, id string) error

	// Chat session operations
	CreateChatSession(ctx context.Context, s *ChatSession) error
	GetChatSession(ctx context.Context, tenantID, id string) (*ChatSession, error)
	ListChatSessions(ctx context.Context, tenantID string) ([]*ChatSession, error)
	DeleteChatSession(ctx context.Context, tenantID, id string) error

	// Snippet operations
	CreateSnippet(ctx context.Context, s *Snippet) error
	GetSnippet(ctx context.Context, tenantID, id string) (*Snippet, error)
	ListSnippets(ctx context.Context, tenantID string) ([]*Snippet, error)
	UpdateSnippet(ctx context.Context, s *Snippet) error
	DeleteSnippet(ctx context.Context, tenantID, id string) error
}

// NotFoundError is returned by Storage lookups for entities that do not
// exist or belong to a different tenant.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}
