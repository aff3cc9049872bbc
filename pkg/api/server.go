package api

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/middleware"
	"github.com/parleyhq/parley/pkg/observability"
	"github.com/parleyhq/parley/pkg/tenant"
)

// UserDirectory is the admin-user administration surface the API needs
// beyond what auth.Service exposes. Implemented by postgres.UserStore.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*auth.AdminUser, error)
	ListForTenant(ctx context.Context, tenantID string) ([]*auth.AdminUser, error)
	MemberOfTenant(ctx context.Context, userID, tenantID string) (bool, error)
	DetachTenant(ctx context.Context, userID, tenantID string) error
	CountTenants(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID string) error
}

// ServerConfig wires a Server's collaborators. Storage, Auth, Tenants and
// Users are required; the rest default to sensible no-ops when nil.
type ServerConfig struct {
	Storage Storage
	Auth    *auth.Service
	Tenants *tenant.Service
	Users   UserDirectory

	// Resolver attaches the request tenant; nil disables resolution (every
	// request proceeds tenant-less).
	Resolver middleware.TenantResolver

	// TenantStore backs the strict app-key gate on /client/v1 routes; nil
	// disables that surface.
	TenantStore tenant.Store

	// Limiter throttles the auth endpoints; nil disables throttling.
	Limiter  *middleware.AttemptLimiter
	Throttle *middleware.ThrottleConfig

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// AllowedOrigins configures CORS for browser clients. Empty means the
	// wildcard: the embedded client is served cross-origin from tenant
	// sites, so open CORS is the normal deployment.
	AllowedOrigins []string

	// Debug includes real error text in 500 bodies.
	Debug bool
}

// maxRequestBody caps request bodies; knowledge entries are the largest
// legitimate payload and stay well under this.
const maxRequestBody = 1 << 20

// Server is the HTTP API server.
type Server struct {
	router  *mux.Router
	handler http.Handler
	storage Storage
	auth    *auth.Service
	tenants *tenant.Service
	users   UserDirectory
	logger  *observability.Logger
	metrics *observability.Metrics
	debug   bool
}

// NewServer creates an API server and mounts all routes.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}

	s := &Server{
		router:  mux.NewRouter(),
		storage: cfg.Storage,
		auth:    cfg.Auth,
		tenants: cfg.Tenants,
		users:   cfg.Users,
		logger:  logger,
		metrics: cfg.Metrics,
		debug:   cfg.Debug,
	}
	s.setupRoutes(cfg)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// CORS sits outside the router so preflights are answered even for
	// routes the method matcher would otherwise reject.
	s.handler = httputil.Chain(
		httputil.CORSMiddleware(origins),
		httputil.MaxBytesMiddleware(maxRequestBody),
	)(s.router)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router for embedding in a larger mux.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes(cfg ServerConfig) {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestLogger(s.logger))
	if cfg.Resolver != nil {
		s.router.Use(middleware.ResolveTenant(cfg.Resolver, cfg.Metrics))
	}

	// Embedded-client surface: identified by app key alone, no bearer
	// token. Unlike the admin API, a bad or inactive key is a hard 401.
	if cfg.TenantStore != nil {
		client := s.router.PathPrefix("/client/v1").Subrouter()
		client.Use(middleware.RequireAppKey(cfg.TenantStore))
		client.HandleFunc("/chat-sessions", s.createChatSession).Methods("POST")
		client.HandleFunc("/snippets", s.listSnippets).Methods("GET")
		client.HandleFunc("/personas", s.listActivePersonas).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	authn := middleware.NewAuthMiddleware(s.auth, false)
	requireAuth := authn.Handler

	throttled := func(h http.Handler) http.Handler { return h }
	if cfg.Limiter != nil {
		throttled = middleware.ThrottleAttempts(cfg.Limiter, cfg.Throttle, cfg.Metrics)
	}

	// Authentication. Login, refresh and register share the attempt
	// limiter; a 2xx response clears the caller's counter.
	api.Handle("/auth/login", throttled(http.HandlerFunc(s.login))).Methods("POST")
	api.Handle("/auth/refresh", throttled(http.HandlerFunc(s.refresh))).Methods("POST")
	api.Handle("/auth/register", throttled(http.HandlerFunc(s.register))).Methods("POST")
	api.Handle("/auth/logout", requireAuth(http.HandlerFunc(s.logout))).Methods("POST")
	api.Handle("/user", requireAuth(http.HandlerFunc(s.currentUser))).Methods("GET")

	// Tenants.
	api.Handle("/tenants", requireAuth(
		middleware.RequireAnyScope("tenants:write")(http.HandlerFunc(s.registerTenant)),
	)).Methods("POST")
	api.Handle("/tenants/{id}", requireAuth(
		middleware.RequireAnyScope("tenants:delete")(http.HandlerFunc(s.deactivateTenant)),
	)).Methods("DELETE")
	api.Handle("/tenant/current", http.HandlerFunc(s.currentTenant)).Methods("GET")

	// Admin users within the current tenant.
	api.Handle("/users", s.tenantScoped(requireAuth, "users:read", s.listUsers)).Methods("GET")
	api.Handle("/users/{id}", s.tenantScoped(requireAuth, "users:delete", s.deleteUser)).Methods("DELETE")

	// Tenant-scoped resources.
	resources := []struct {
		prefix string
		scope  string
		h      resourceHandlers
	}{
		{"/personas", "personas", resourceHandlers{
			list: s.listPersonas, create: s.createPersona, get: s.getPersona,
			update: s.updatePersona, delete: s.deletePersona,
		}},
		{"/knowledge", "knowledge", resourceHandlers{
			list: s.listKnowledgeEntries, create: s.createKnowledgeEntry, get: s.getKnowledgeEntry,
			update: s.updateKnowledgeEntry, delete: s.deleteKnowledgeEntry,
		}},
		{"/chat-sessions", "chat", resourceHandlers{
			list: s.listChatSessions, create: s.createChatSession, get: s.getChatSession,
			delete: s.deleteChatSession,
		}},
		{"/snippets", "snippets", resourceHandlers{
			list: s.listSnippets, create: s.createSnippet, get: s.getSnippet,
			update: s.updateSnippet, delete: s.deleteSnippet,
		}},
	}
	for _, res := range resources {
		api.Handle(res.prefix, s.tenantScoped(requireAuth, res.scope+":read", res.h.list)).Methods("GET")
		api.Handle(res.prefix, s.tenantScoped(requireAuth, res.scope+":write", res.h.create)).Methods("POST")
		api.Handle(res.prefix+"/{id}", s.tenantScoped(requireAuth, res.scope+":read", res.h.get)).Methods("GET")
		if res.h.update != nil {
			api.Handle(res.prefix+"/{id}", s.tenantScoped(requireAuth, res.scope+":write", res.h.update)).Methods("PUT")
		}
		api.Handle(res.prefix+"/{id}", s.tenantScoped(requireAuth, res.scope+":delete", res.h.delete)).Methods("DELETE")
	}
}

// resourceHandlers groups the CRUD handlers for one resource prefix. update
// is nil for resources without an update operation.
type resourceHandlers struct {
	list   http.HandlerFunc
	create http.HandlerFunc
	get    http.HandlerFunc
	update http.HandlerFunc
	delete http.HandlerFunc
}

// tenantScoped builds the standard chain for tenant-bound handlers:
// authentication, tenant requirement, then scope check.
func (s *Server) tenantScoped(requireAuth func(http.Handler) http.Handler, scope string, h http.HandlerFunc) http.Handler {
	return requireAuth(middleware.RequireTenant(
		middleware.RequireAnyScope(auth.Scope(scope))(h),
	))
}
