package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/pkg/api"
)

// ResourceStore implements api.Storage for the tenant-scoped resource
// tables. Every statement filters on tenant_id; a row owned by another
// tenant scans as not found.
type ResourceStore struct {
	db *sql.DB
}

func notFound(resource string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &api.NotFoundError{Resource: resource}
	}
	return err
}

// Persona operations

func (s *ResourceStore) CreatePersona(ctx context.Context, p *api.Persona) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personas (id, tenant_id, name, title, profile_picture_url, expertise_description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
	`, p.ID, p.TenantID, p.Name, p.Title, p.ProfilePictureURL, p.ExpertiseDescription,
		p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create persona: %w", err)
	}
	return nil
}

const personaColumns = `id, tenant_id, name, COALESCE(title, ''), COALESCE(profile_picture_url, ''), COALESCE(expertise_description, ''), is_active, created_at, updated_at`

func scanPersona(row interface{ Scan(...any) error }) (*api.Persona, error) {
	var p api.Persona
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Title, &p.ProfilePictureURL,
		&p.ExpertiseDescription, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound("persona", err)
	}
	return &p, nil
}

func (s *ResourceStore) GetPersona(ctx context.Context, tenantID, id string) (*api.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM personas WHERE tenant_id = $1 AND id = $2`
	return scanPersona(s.db.QueryRowContext(ctx, query, tenantID, id))
}

func (s *ResourceStore) ListPersonas(ctx context.Context, tenantID string) ([]*api.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM personas WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	defer rows.Close()

	var personas []*api.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

func (s *ResourceStore) UpdatePersona(ctx context.Context, p *api.Persona) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE personas
		SET name = $3, title = NULLIF($4, ''), profile_picture_url = NULLIF($5, ''),
		    expertise_description = NULLIF($6, ''), is_active = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2
	`, p.TenantID, p.ID, p.Name, p.Title, p.ProfilePictureURL,
		p.ExpertiseDescription, p.IsActive, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update persona: %w", err)
	}
	return requireAffected(result, "persona")
}

func (s *ResourceStore) DeletePersona(ctx context.Context, tenantID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM personas WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete persona: %w", err)
	}
	return requireAffected(result, "persona")
}

// Knowledge base operations

func (s *ResourceStore) CreateKnowledgeEntry(ctx context.Context, e *api.KnowledgeEntry) error {
	embedding, err := marshalEmbedding(e.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_base (id, tenant_id, content, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.TenantID, e.Content, embedding, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create knowledge entry: %w", err)
	}
	return nil
}

func scanKnowledgeEntry(row interface{ Scan(...any) error }) (*api.KnowledgeEntry, error) {
	var (
		e         api.KnowledgeEntry
		embedding []byte
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.Content, &embedding, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound("knowledge entry", err)
	}
	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &e.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding: %w", err)
		}
	}
	return &e, nil
}

func (s *ResourceStore) GetKnowledgeEntry(ctx context.Context, tenantID, id string) (*api.KnowledgeEntry, error) {
	query := `SELECT id, tenant_id, content, embedding, created_at, updated_at FROM knowledge_base WHERE tenant_id = $1 AND id = $2`
	return scanKnowledgeEntry(s.db.QueryRowContext(ctx, query, tenantID, id))
}

func (s *ResourceStore) ListKnowledgeEntries(ctx context.Context, tenantID string) ([]*api.KnowledgeEntry, error) {
	query := `SELECT id, tenant_id, content, embedding, created_at, updated_at FROM knowledge_base WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []*api.KnowledgeEntry
	for rows.Next() {
		e, err := scanKnowledgeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *ResourceStore) UpdateKnowledgeEntry(ctx context.Context, e *api.KnowledgeEntry) error {
	embedding, err := marshalEmbedding(e.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_base SET content = $3, embedding = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2
	`, e.TenantID, e.ID, e.Content, embedding, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update knowledge entry: %w", err)
	}
	return requireAffected(result, "knowledge entry")
}

func (s *ResourceStore) DeleteKnowledgeEntry(ctx context.Context, tenantID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM knowledge_base WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge entry: %w", err)
	}
	return requireAffected(result, "knowledge entry")
}

// Chat session operations

func (s *ResourceStore) CreateChatSession(ctx context.Context, cs *api.ChatSession) error {
	metadata, err := json.Marshal(cs.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if cs.Metadata == nil {
		metadata = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, tenant_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, cs.ID, cs.TenantID, metadata, cs.CreatedAt, cs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

func scanChatSession(row interface{ Scan(...any) error }) (*api.ChatSession, error) {
	var (
		cs       api.ChatSession
		metadata []byte
	)
	err := row.Scan(&cs.ID, &cs.TenantID, &metadata, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		return nil, notFound("chat session", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &cs.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &cs, nil
}

func (s *ResourceStore) GetChatSession(ctx context.Context, tenantID, id string) (*api.ChatSession, error) {
	query := `SELECT id, tenant_id, metadata, created_at, updated_at FROM chat_sessions WHERE tenant_id = $1 AND id = $2`
	return scanChatSession(s.db.QueryRowContext(ctx, query, tenantID, id))
}

func (s *ResourceStore) ListChatSessions(ctx context.Context, tenantID string) ([]*api.ChatSession, error) {
	query := `SELECT id, tenant_id, metadata, created_at, updated_at FROM chat_sessions WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*api.ChatSession
	for rows.Next() {
		cs, err := scanChatSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, cs)
	}
	return sessions, rows.Err()
}

func (s *ResourceStore) DeleteChatSession(ctx context.Context, tenantID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat session: %w", err)
	}
	return requireAffected(result, "chat session")
}

// Snippet operations

func (s *ResourceStore) CreateSnippet(ctx context.Context, sn *api.Snippet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snippets (id, tenant_id, identifier, collapsed_html, expanded_html, explanation, assigned_persona_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, '')::uuid, $8, $9)
	`, sn.ID, sn.TenantID, sn.Identifier, sn.CollapsedHTML, sn.ExpandedHTML,
		sn.Explanation, sn.AssignedPersonaID, sn.CreatedAt, sn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create snippet: %w", err)
	}
	return nil
}

const snippetColumns = `id, tenant_id, identifier, COALESCE(collapsed_html, ''), COALESCE(expanded_html, ''), COALESCE(explanation, ''), COALESCE(assigned_persona_id::text, ''), created_at, updated_at`

func scanSnippet(row interface{ Scan(...any) error }) (*api.Snippet, error) {
	var sn api.Snippet
	err := row.Scan(&sn.ID, &sn.TenantID, &sn.Identifier, &sn.CollapsedHTML,
		&sn.ExpandedHTML, &sn.Explanation, &sn.AssignedPersonaID, &sn.CreatedAt, &sn.UpdatedAt)
	if err != nil {
		return nil, notFound("snippet", err)
	}
	return &sn, nil
}

func (s *ResourceStore) GetSnippet(ctx context.Context, tenantID, id string) (*api.Snippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM snippets WHERE tenant_id = $1 AND id = $2`
	return scanSnippet(s.db.QueryRowContext(ctx, query, tenantID, id))
}

func (s *ResourceStore) ListSnippets(ctx context.Context, tenantID string) ([]*api.Snippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM snippets WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []*api.Snippet
	for rows.Next() {
		sn, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, sn)
	}
	return snippets, rows.Err()
}

func (s *ResourceStore) UpdateSnippet(ctx context.Context, sn *api.Snippet) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE snippets
		SET identifier = $3, collapsed_html = NULLIF($4, ''), expanded_html = NULLIF($5, ''),
		    explanation = NULLIF($6, ''), assigned_persona_id = NULLIF($7, '')::uuid, updated_at = $8
		WHERE tenant_id = $1 AND id = $2
	`, sn.TenantID, sn.ID, sn.Identifier, sn.CollapsedHTML, sn.ExpandedHTML,
		sn.Explanation, sn.AssignedPersonaID, sn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update snippet: %w", err)
	}
	return requireAffected(result, "snippet")
}

func (s *ResourceStore) DeleteSnippet(ctx context.Context, tenantID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM snippets WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete snippet: %w", err)
	}
	return requireAffected(result, "snippet")
}

func requireAffected(result sql.Result, resource string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &api.NotFoundError{Resource: resource}
	}
	return nil
}

func marshalEmbedding(v []float64) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
