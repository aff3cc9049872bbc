package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/observability"
	"github.com/parleyhq/parley/pkg/tenant"
)

// In-memory stores backing the handler tests. The real auth and tenant
// services run on top of these, so every test exercises the full stack
// below the HTTP layer.

type memUserStore struct {
	mu          sync.Mutex
	users       map[string]*auth.AdminUser
	byEmail     map[string]string
	userTenants map[string][]string
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:       make(map[string]*auth.AdminUser),
		byEmail:     make(map[string]string),
		userTenants: make(map[string][]string),
	}
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*auth.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *memUserStore) FindByID(_ context.Context, id string) (*auth.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) Create(_ context.Context, user *auth.AdminUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return auth.ErrEmailTaken
	}
	cp := *user
	s.users[user.ID] = &cp
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *memUserStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		t := at
		u.LastLogin = &t
	}
	return nil
}

func (s *memUserStore) MemberOfTenant(_ context.Context, userID, tenantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.userTenants[userID] {
		if id == tenantID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) AttachTenant(_ context.Context, userID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.userTenants[userID] {
		if id == tenantID {
			return nil
		}
	}
	s.userTenants[userID] = append(s.userTenants[userID], tenantID)
	return nil
}

func (s *memUserStore) DetachTenant(_ context.Context, userID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.userTenants[userID]
	for i, id := range ids {
		if id == tenantID {
			s.userTenants[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memUserStore) CountTenants(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.userTenants[userID]), nil
}

func (s *memUserStore) ListForTenant(_ context.Context, tenantID string) ([]*auth.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.AdminUser
	for userID, tenants := range s.userTenants {
		for _, id := range tenants {
			if id == tenantID {
				cp := *s.users[userID]
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (s *memUserStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.users, userID)
	delete(s.userTenants, userID)
	return nil
}

type memTokenStore struct {
	mu      sync.Mutex
	access  map[string]*auth.Token
	byHash  map[string]string
	refresh map[string]*auth.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{
		access:  make(map[string]*auth.Token),
		byHash:  make(map[string]string),
		refresh: make(map[string]*auth.RefreshToken),
	}
}

func (s *memTokenStore) CreateAccessToken(_ context.Context, token *auth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.access[token.ID] = &cp
	s.byHash[token.TokenHash] = token.ID
	return nil
}

func (s *memTokenStore) CreateRefreshToken(_ context.Context, token *auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.refresh[token.ID] = &cp
	return nil
}

func (s *memTokenStore) FindAccessTokenByHash(_ context.Context, hash string) (*auth.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *s.access[id]
	return &cp, nil
}

func (s *memTokenStore) FindAccessTokenByID(_ context.Context, id string) (*auth.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.access[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTokenStore) FindRefreshToken(_ context.Context, id string) (*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTokenStore) RevokeAccessToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.access[id]; ok {
		t.Revoked = true
	}
	return nil
}

func (s *memTokenStore) RevokeRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.refresh[id]; ok {
		t.Revoked = true
	}
	return nil
}

func (s *memTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := make(map[string]bool)
	for _, t := range s.access {
		if t.UserID == userID {
			t.Revoked = true
			owned[t.ID] = true
		}
	}
	for _, rt := range s.refresh {
		if owned[rt.AccessTokenID] {
			rt.Revoked = true
		}
	}
	return nil
}

type memTenantStore struct {
	mu      sync.Mutex
	tenants map[string]*tenant.Tenant
	users   *memUserStore
}

func newMemTenantStore(users *memUserStore) *memTenantStore {
	return &memTenantStore{tenants: make(map[string]*tenant.Tenant), users: users}
}

func (s *memTenantStore) FindByAppKey(_ context.Context, appKey string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.AppKey == appKey && t.IsActive {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (s *memTenantStore) LookupByAppKey(_ context.Context, appKey string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.AppKey == appKey {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (s *memTenantStore) FindByDomain(_ context.Context, domain string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wildcard := tenant.WildcardDomain(domain)
	var wildcardMatch *tenant.Tenant
	for _, t := range s.tenants {
		if !t.IsActive {
			continue
		}
		if t.Domain == domain {
			cp := *t
			return &cp, nil
		}
		if wildcard != "" && t.Domain == wildcard {
			wildcardMatch = t
		}
	}
	if wildcardMatch != nil {
		cp := *wildcardMatch
		return &cp, nil
	}
	return nil, tenant.ErrNotFound
}

func (s *memTenantStore) FindFirstForUser(ctx context.Context, userID string) (*tenant.Tenant, error) {
	s.users.mu.Lock()
	ids := append([]string(nil), s.users.userTenants[userID]...)
	s.users.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if t, ok := s.tenants[id]; ok && t.IsActive {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (s *memTenantStore) FindByID(_ context.Context, id string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTenantStore) Create(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *memTenantStore) Update(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tenants[t.ID]
	if !ok {
		return tenant.ErrNotFound
	}
	cp := *t
	cp.AppKey = existing.AppKey
	s.tenants[t.ID] = &cp
	return nil
}

// memStorage is an in-memory api.Storage.
type memStorage struct {
	mu        sync.Mutex
	personas  map[string]*Persona
	knowledge map[string]*KnowledgeEntry
	sessions  map[string]*ChatSession
	snippets  map[string]*Snippet
}

func newMemStorage() *memStorage {
	return &memStorage{
		personas:  make(map[string]*Persona),
		knowledge: make(map[string]*KnowledgeEntry),
		sessions:  make(map[string]*ChatSession),
		snippets:  make(map[string]*Snippet),
	}
}

func (s *memStorage) CreatePersona(_ context.Context, p *Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.personas[p.ID] = &cp
	return nil
}

func (s *memStorage) GetPersona(_ context.Context, tenantID, id string) (*Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personas[id]
	if !ok || p.TenantID != tenantID {
		return nil, &NotFoundError{Resource: "persona"}
	}
	cp := *p
	return &cp, nil
}

func (s *memStorage) ListPersonas(_ context.Context, tenantID string) ([]*Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*Persona{}
	for _, p := range s.personas {
		if p.TenantID == tenantID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStorage) UpdatePersona(_ context.Context, p *Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.personas[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return &NotFoundError{Resource: "persona"}
	}
	cp := *p
	cp.CreatedAt = existing.CreatedAt
	s.personas[p.ID] = &cp
	return nil
}

func (s *memStorage) DeletePersona(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personas[id]
	if !ok || p.TenantID != tenantID {
		return &NotFoundError{Resource: "persona"}
	}
	delete(s.personas, id)
	return nil
}

func (s *memStorage) CreateKnowledgeEntry(_ context.Context, e *KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.knowledge[e.ID] = &cp
	return nil
}

func (s *memStorage) GetKnowledgeEntry(_ context.Context, tenantID, id string) (*KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.knowledge[id]
	if !ok || e.TenantID != tenantID {
		return nil, &NotFoundError{Resource: "knowledge entry"}
	}
	cp := *e
	return &cp, nil
}

func (s *memStorage) ListKnowledgeEntries(_ context.Context, tenantID string) ([]*KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*KnowledgeEntry{}
	for _, e := range s.knowledge {
		if e.TenantID == tenantID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStorage) UpdateKnowledgeEntry(_ context.Context, e *KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.knowledge[e.ID]
	if !ok || existing.TenantID != e.TenantID {
		return &NotFoundError{Resource: "knowledge entry"}
	}
	cp := *e
	cp.CreatedAt = existing.CreatedAt
	s.knowledge[e.ID] = &cp
	return nil
}

func (s *memStorage) DeleteKnowledgeEntry(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.knowledge[id]
	if !ok || e.TenantID != tenantID {
		return &NotFoundError{Resource: "knowledge entry"}
	}
	delete(s.knowledge, id)
	return nil
}

func (s *memStorage) CreateChatSession(_ context.Context, sess *ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *memStorage) GetChatSession(_ context.Context, tenantID, id string) (*ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.TenantID != tenantID {
		return nil, &NotFoundError{Resource: "chat session"}
	}
	cp := *sess
	return &cp, nil
}

func (s *memStorage) ListChatSessions(_ context.Context, tenantID string) ([]*ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*ChatSession{}
	for _, sess := range s.sessions {
		if sess.TenantID == tenantID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStorage) DeleteChatSession(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.TenantID != tenantID {
		return &NotFoundError{Resource: "chat session"}
	}
	delete(s.sessions, id)
	return nil
}

func (s *memStorage) CreateSnippet(_ context.Context, sn *Snippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sn
	s.snippets[sn.ID] = &cp
	return nil
}

func (s *memStorage) GetSnippet(_ context.Context, tenantID, id string) (*Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, ok := s.snippets[id]
	if !ok || sn.TenantID != tenantID {
		return nil, &NotFoundError{Resource: "snippet"}
	}
	cp := *sn
	return &cp, nil
}

func (s *memStorage) ListSnippets(_ context.Context, tenantID string) ([]*Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*Snippet{}
	for _, sn := range s.snippets {
		if sn.TenantID == tenantID {
			cp := *sn
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStorage) UpdateSnippet(_ context.Context, sn *Snippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.snippets[sn.ID]
	if !ok || existing.TenantID != sn.TenantID {
		return &NotFoundError{Resource: "snippet"}
	}
	cp := *sn
	cp.CreatedAt = existing.CreatedAt
	s.snippets[sn.ID] = &cp
	return nil
}

func (s *memStorage) DeleteSnippet(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, ok := s.snippets[id]
	if !ok || sn.TenantID != tenantID {
		return &NotFoundError{Resource: "snippet"}
	}
	delete(s.snippets, id)
	return nil
}

// testEnv bundles a fully wired server over the in-memory stores.
type testEnv struct {
	server      *Server
	users       *memUserStore
	tokens      *memTokenStore
	tenantStore *memTenantStore
	storage     *memStorage
	authSvc     *auth.Service

	tenantA *tenant.Tenant
	tenantB *tenant.Tenant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUserStore()
	tokens := newMemTokenStore()
	tenants := newMemTenantStore(users)
	storage := newMemStorage()

	authSvc := auth.NewService(users, tokens)
	tenantSvc := tenant.NewService(tenants)
	resolver := tenant.NewResolver(tenants, authSvc)

	now := time.Now()
	tenantA := &tenant.Tenant{
		ID: "tenant-a", Name: "Alpha", Domain: "alpha.test", AppKey: "key-a",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	tenantB := &tenant.Tenant{
		ID: "tenant-b", Name: "Beta", Domain: "beta.test", AppKey: "key-b",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	tenants.Create(context.Background(), tenantA)
	tenants.Create(context.Background(), tenantB)

	server := NewServer(ServerConfig{
		Storage:     storage,
		Auth:        authSvc,
		Tenants:     tenantSvc,
		Users:       users,
		Resolver:    resolver,
		TenantStore: tenants,
		Logger:      observability.NewLogger(observability.ErrorLevel, io.Discard),
	})

	return &testEnv{
		server:      server,
		users:       users,
		tokens:      tokens,
		tenantStore: tenants,
		storage:     storage,
		authSvc:     authSvc,
		tenantA:     tenantA,
		tenantB:     tenantB,
	}
}

// addUser creates an active admin user with the given permissions, attached
// to the listed tenants. Password is always "secret-password".
func (e *testEnv) addUser(t *testing.T, email string, permissions []string, tenantIDs ...string) *auth.AdminUser {
	t.Helper()
	hash, err := auth.HashPassword("secret-password")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	user := &auth.AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     "Test User",
		Permissions:  permissions,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatal(err)
	}
	for _, id := range tenantIDs {
		if err := e.users.AttachTenant(context.Background(), user.ID, id); err != nil {
			t.Fatal(err)
		}
	}
	return user
}

// loginAs performs a real login through the service and returns the bearer
// token for the user.
func (e *testEnv) loginAs(t *testing.T, email, tenantID string) string {
	t.Helper()
	bundle, _, err := e.authSvc.Login(context.Background(), auth.LoginRequest{
		Email:    email,
		Password: "secret-password",
	}, tenantID)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return bundle.AccessToken
}

// do executes a request against the server and returns the recorder.
func (e *testEnv) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, "http://api.test"+path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func authed(token string, extra map[string]string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + token}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rr.Code, want, rr.Body.String())
	}
}
