package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/middleware"
)

// writeStorageError maps storage failures onto HTTP responses. Entities
// owned by another tenant surface as 404, same as missing ones.
func (s *Server) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		httputil.WriteNotFoundError(w, nf.Error())
		return
	}
	s.internalError(w, r, err)
}

// Personas

func (s *Server) listPersonas(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	personas, err := s.storage.ListPersonas(r.Context(), t.ID)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	params := parseListParams(r)
	filtered := make([]*Persona, 0, len(personas))
	for _, p := range personas {
		if params.matches(p.Name, p.Title, p.ExpertiseDescription) {
			filtered = append(filtered, p)
		}
	}
	httputil.WriteSuccess(w, map[string]any{
		"personas": pageOf(filtered, params),
		"total":    len(filtered),
	})
}

// listActivePersonas is the client-surface variant: only active personas,
// same search and pagination parameters.
func (s *Server) listActivePersonas(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	personas, err := s.storage.ListPersonas(r.Context(), t.ID)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	params := parseListParams(r)
	filtered := make([]*Persona, 0, len(personas))
	for _, p := range personas {
		if p.IsActive && params.matches(p.Name, p.Title, p.ExpertiseDescription) {
			filtered = append(filtered, p)
		}
	}
	httputil.WriteSuccess(w, map[string]any{
		"personas": pageOf(filtered, params),
		"total":    len(filtered),
	})
}

func (s *Server) createPersona(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	var p Persona
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		httputil.WriteUnprocessableEntity(w, "The given data was invalid", map[string]string{
			"name": "is required",
		})
		return
	}

	now := time.Now()
	p.ID = uuid.NewString()
	p.TenantID = t.ID
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.storage.CreatePersona(r.Context(), &p); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteCreated(w, &p)
}

func (s *Server) getPersona(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	p, err := s.storage.GetPersona(r.Context(), t.ID, id)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

func (s *Server) updatePersona(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var p Persona
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		httputil.WriteUnprocessableEntity(w, "The given data was invalid", map[string]string{
			"name": "is required",
		})
		return
	}

	p.ID = id
	p.TenantID = t.ID
	p.UpdatedAt = time.Now()

	if err := s.storage.UpdatePersona(r.Context(), &p); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, &p)
}

func (s *Server) deletePersona(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.storage.DeletePersona(r.Context(), t.ID, id); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Persona deleted", nil)
}

// Knowledge base

func (s *Server) listKnowledgeEntries(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	entries, err := s.storage.ListKnowledgeEntries(r.Context(), t.ID)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	params := parseListParams(r)
	filtered := make([]*KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		if params.matches(e.Content) {
			filtered = append(filtered, e)
		}
	}
	httputil.WriteSuccess(w, map[string]any{
		"entries": pageOf(filtered, params),
		"total":   len(filtered),
	})
}

func (s *Server) createKnowledgeEntry(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	var e KnowledgeEntry
	if !httputil.ParseJSONOrError(w, r, &e) {
		return
	}
	if strings.TrimSpace(e.Content) == "" {
		httputil.WriteUnprocessableEntity(w, "The given data was invalid", map[string]string{
			"content": "is required",
		})
		return
	}

	now := time.Now()
	e.ID = uuid.NewString()
	e.TenantID = t.ID
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := s.storage.CreateKnowledgeEntry(r.Context(), &e); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteCreated(w, &e)
}

func (s *Server) getKnowledgeEntry(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	e, err := s.storage.GetKnowledgeEntry(r.Context(), t.ID, id)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, e)
}

func (s *Server) updateKnowledgeEntry(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var e KnowledgeEntry
	if !httputil.ParseJSONOrError(w, r, &e) {
		return
	}
	if strings.TrimSpace(e.Content) == "" {
		httputil.WriteUnprocessableEntity(w, "The given data was invalid", map[string]string{
			"content": "is required",
		})
		return
	}

	e.ID = id
	e.TenantID = t.ID
	e.UpdatedAt = time.Now()

	if err := s.storage.UpdateKnowledgeEntry(r.Context(), &e); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, &e)
}

func (s *Server) deleteKnowledgeEntry(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.storage.DeleteKnowledgeEntry(r.Context(), t.ID, id); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Knowledge entry deleted", nil)
}

// Chat sessions

func (s *Server) listChatSessions(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	sessions, err := s.storage.ListChatSessions(r.Context(), t.ID)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	// Sessions have no searchable text; pagination only.
	params := parseListParams(r)
	httputil.WriteSuccess(w, map[string]any{
		"sessions": pageOf(sessions, params),
		"total":    len(sessions),
	})
}

func (s *Server) createChatSession(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	var sess ChatSession
	if !httputil.ParseJSONOrError(w, r, &sess) {
		return
	}

	now := time.Now()
	sess.ID = uuid.NewString()
	sess.TenantID = t.ID
	sess.CreatedAt = now
	sess.UpdatedAt = now

	if err := s.storage.CreateChatSession(r.Context(), &sess); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteCreated(w, &sess)
}

func (s *Server) getChatSession(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	sess, err := s.storage.GetChatSession(r.Context(), t.ID, id)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sess)
}

func (s *Server) deleteChatSession(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.storage.DeleteChatSession(r.Context(), t.ID, id); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Chat session deleted", nil)
}

// Snippets

func (s *Server) listSnippets(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	snippets, err := s.storage.ListSnippets(r.Context(), t.ID)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	params := parseListParams(r)
	filtered := make([]*Snippet, 0, len(snippets))
	for _, sn := range snippets {
		if params.matches(sn.Identifier, sn.Explanation) {
			filtered = append(filtered, sn)
		}
	}
	httputil.WriteSuccess(w, map[string]any{
		"snippets": pageOf(filtered, params),
		"total":    len(filtered),
	})
}

func (s *Server) createSnippet(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	var sn Snippet
	if !httputil.ParseJSONOrError(w, r, &sn) {
		return
	}
	if strings.TrimSpace(sn.Identifier) == "" {
		httputil.WriteUnprocessableEntity(w, "The given data was invalid", map[string]string{
			"identifier": "is required",
		})
		return
	}

	now := time.Now()
	sn.ID = uuid.NewString()
	sn.TenantID = t.ID
	sn.CreatedAt = now
	sn.UpdatedAt = now

	if err := s.storage.CreateSnippet(r.Context(), &sn); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteCreated(w, &sn)
}

func (s *Server) getSnippet(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	sn, err := s.storage.GetSnippet(r.Context(), t.ID, id)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sn)
}

func (s *Server) updateSnippet(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var sn Snippet
	if !httputil.ParseJSONOrError(w, r, &sn) {
		return
	}
	if strings.TrimSpace(sn.Identifier) == "" {
		httputil.WriteUnprocessableEntity(w, "The given data was invalid", map[string]string{
			"identifier": "is required",
		})
		return
	}

	sn.ID = id
	sn.TenantID = t.ID
	sn.UpdatedAt = time.Now()

	if err := s.storage.UpdateSnippet(r.Context(), &sn); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, &sn)
}

func (s *Server) deleteSnippet(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.storage.DeleteSnippet(r.Context(), t.ID, id); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Snippet deleted", nil)
}
