package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/middleware"
	"github.com/parleyhq/parley/pkg/tenant"
)

type registerTenantRequest struct {
	Name     string         `json:"name"`
	Domain   string         `json:"domain"`
	AppKey   string         `json:"app_key"`
	Settings map[string]any `json:"settings"`
}

// registerTenant handles POST /api/v1/tenants
func (s *Server) registerTenant(w http.ResponseWriter, r *http.Request) {
	var req registerTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	fields := make(map[string]string)
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "is required"
	}
	if len(fields) > 0 {
		httputil.WriteUnprocessableEntity(w, "The given data was invalid", fields)
		return
	}

	t, err := s.tenants.Register(r.Context(), req.Name, req.Domain, req.AppKey, req.Settings)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	httputil.WriteCreated(w, t)
}

// deactivateTenant handles DELETE /api/v1/tenants/{id}. Tenants are never
// deleted; deactivation makes them unresolvable while their data survives.
func (s *Server) deactivateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	t, err := s.tenants.Deactivate(r.Context(), id)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			httputil.WriteNotFoundError(w, "Tenant not found")
			return
		}
		s.internalError(w, r, err)
		return
	}

	httputil.WriteSuccessMessage(w, "Tenant deactivated", t)
}

// currentTenant handles GET /api/v1/tenant/current. Reflects what the
// resolver found for this request.
func (s *Server) currentTenant(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	if t == nil {
		httputil.WriteNotFoundError(w, "No tenant found for current domain")
		return
	}
	httputil.WriteSuccess(w, t)
}

// listUsers handles GET /api/v1/users, scoped to the current tenant.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)

	users, err := s.users.ListForTenant(r.Context(), t.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]any{"users": users})
}

// deleteUser handles DELETE /api/v1/users/{id}. A user belonging to other
// tenants as well is only detached from the current one; a user whose only
// tenant is the current one is deleted outright. A user that is not a member
// of the current tenant looks like a missing user.
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	member, err := s.users.MemberOfTenant(r.Context(), id, t.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !member {
		httputil.WriteNotFoundError(w, "User not found")
		return
	}

	count, err := s.users.CountTenants(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	if count > 1 {
		if err := s.users.DetachTenant(r.Context(), id, t.ID); err != nil {
			s.internalError(w, r, err)
			return
		}
		httputil.WriteSuccessMessage(w, "User removed from tenant", nil)
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		s.internalError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "User deleted", nil)
}
