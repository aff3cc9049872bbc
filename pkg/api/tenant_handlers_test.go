package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parleyhq/parley/pkg/tenant"
)

func TestRegisterTenant(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "root@example.com", []string{"tenants.*"}, env.tenantA.ID)
	token := env.loginAs(t, "root@example.com", "")

	rr := env.do("POST", "/api/v1/tenants", map[string]any{
		"name":   "Gamma",
		"domain": "gamma.test",
	}, authed(token, nil))

	wantStatus(t, rr, http.StatusCreated)
	body := decodeBody(t, rr)
	if body["name"] != "Gamma" {
		t.Errorf("name = %v", body["name"])
	}
	if body["app_key"] == nil || body["app_key"] == "" {
		t.Error("app key was not generated")
	}
	if body["is_active"] != true {
		t.Error("new tenant should be active")
	}
}

func TestRegisterTenant_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "root@example.com", []string{"tenants.*"}, env.tenantA.ID)
	token := env.loginAs(t, "root@example.com", "")

	rr := env.do("POST", "/api/v1/tenants", map[string]any{
		"domain": "gamma.test",
	}, authed(token, nil))

	wantStatus(t, rr, http.StatusUnprocessableEntity)
}

func TestRegisterTenant_RequiresScope(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "viewer@example.com", []string{"users.read"}, env.tenantA.ID)
	token := env.loginAs(t, "viewer@example.com", "")

	rr := env.do("POST", "/api/v1/tenants", map[string]any{
		"name": "Gamma",
	}, authed(token, nil))

	wantStatus(t, rr, http.StatusForbidden)
}

func TestDeactivateTenant(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "root@example.com", []string{"tenants.*"}, env.tenantA.ID)
	token := env.loginAs(t, "root@example.com", "")

	rr := env.do("DELETE", "/api/v1/tenants/"+env.tenantB.ID, nil, authed(token, nil))

	wantStatus(t, rr, http.StatusOK)

	got, err := env.tenantStore.FindByID(context.Background(), env.tenantB.ID)
	if err != nil {
		t.Fatalf("tenant disappeared from store: %v", err)
	}
	if got.IsActive {
		t.Error("tenant still active after deactivation")
	}

	// Its app key no longer resolves a tenant.
	rr = env.do("GET", "/api/v1/tenant/current", nil, map[string]string{
		tenant.HeaderAppKey: "key-b",
	})
	wantStatus(t, rr, http.StatusNotFound)
}

func TestDeactivateTenant_Unknown(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "root@example.com", []string{"tenants.*"}, env.tenantA.ID)
	token := env.loginAs(t, "root@example.com", "")

	rr := env.do("DELETE", "/api/v1/tenants/no-such-tenant", nil, authed(token, nil))

	wantStatus(t, rr, http.StatusNotFound)
}

func TestDeactivateTenant_RequiresScope(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "viewer@example.com", []string{"tenants.read"}, env.tenantA.ID)
	token := env.loginAs(t, "viewer@example.com", "")

	rr := env.do("DELETE", "/api/v1/tenants/"+env.tenantB.ID, nil, authed(token, nil))

	wantStatus(t, rr, http.StatusForbidden)
}

func TestCurrentTenant(t *testing.T) {
	env := newTestEnv(t)

	t.Run("resolved via app key", func(t *testing.T) {
		rr := env.do("GET", "/api/v1/tenant/current", nil, map[string]string{
			tenant.HeaderAppKey: "key-a",
		})
		wantStatus(t, rr, http.StatusOK)
		body := decodeBody(t, rr)
		if body["id"] != env.tenantA.ID {
			t.Errorf("id = %v, want %v", body["id"], env.tenantA.ID)
		}
	})

	t.Run("resolved via host domain", func(t *testing.T) {
		req := httptest.NewRequest("GET", "http://alpha.test/api/v1/tenant/current", nil)
		rr := httptest.NewRecorder()
		env.server.ServeHTTP(rr, req)

		wantStatus(t, rr, http.StatusOK)
		body := decodeBody(t, rr)
		if body["id"] != env.tenantA.ID {
			t.Errorf("id = %v, want %v", body["id"], env.tenantA.ID)
		}
	})

	t.Run("resolved via override header", func(t *testing.T) {
		rr := env.do("GET", "/api/v1/tenant/current", nil, map[string]string{
			tenant.HeaderTenantDomain: "alpha.test",
		})
		wantStatus(t, rr, http.StatusOK)
	})

	t.Run("unresolved", func(t *testing.T) {
		rr := env.do("GET", "/api/v1/tenant/current", nil, nil)
		wantStatus(t, rr, http.StatusNotFound)
		body := decodeBody(t, rr)
		if body["error"] != "No tenant found for current domain" {
			t.Errorf("error = %v", body["error"])
		}
	})

	t.Run("inactive tenant is not resolved", func(t *testing.T) {
		env.tenantStore.tenants[env.tenantB.ID].IsActive = false
		defer func() { env.tenantStore.tenants[env.tenantB.ID].IsActive = true }()

		rr := env.do("GET", "/api/v1/tenant/current", nil, map[string]string{
			tenant.HeaderAppKey: "key-b",
		})
		wantStatus(t, rr, http.StatusNotFound)
	})
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", []string{"users.*"}, env.tenantA.ID)
	env.addUser(t, "other@example.com", nil, env.tenantA.ID)
	env.addUser(t, "elsewhere@example.com", nil, env.tenantB.ID)
	token := env.loginAs(t, "admin@example.com", env.tenantA.ID)

	rr := env.do("GET", "/api/v1/users", nil, authed(token, map[string]string{
		tenant.HeaderAppKey: "key-a",
	}))

	wantStatus(t, rr, http.StatusOK)
	users := decodeBody(t, rr)["users"].([]any)
	if len(users) != 2 {
		t.Errorf("got %d users, want 2 (tenant-scoped)", len(users))
	}
}

func TestListUsers_RequiresTenant(t *testing.T) {
	env := newTestEnv(t)
	// No tenant memberships, so the bearer-token resolver strategy misses too.
	env.addUser(t, "admin@example.com", []string{"users.*"})
	token := env.loginAs(t, "admin@example.com", "")

	rr := env.do("GET", "/api/v1/users", nil, authed(token, nil))
	wantStatus(t, rr, http.StatusNotFound)
}

func TestDeleteUser_DetachWhenMultiTenant(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", []string{"users.*"}, env.tenantA.ID)
	victim := env.addUser(t, "shared@example.com", nil, env.tenantA.ID, env.tenantB.ID)
	token := env.loginAs(t, "admin@example.com", env.tenantA.ID)

	rr := env.do("DELETE", "/api/v1/users/"+victim.ID, nil, authed(token, map[string]string{
		tenant.HeaderAppKey: "key-a",
	}))

	wantStatus(t, rr, http.StatusOK)

	// Detached from tenant A but the account survives.
	if _, err := env.users.FindByID(context.Background(), victim.ID); err != nil {
		t.Fatalf("user was deleted outright: %v", err)
	}
	member, _ := env.users.MemberOfTenant(context.Background(), victim.ID, env.tenantA.ID)
	if member {
		t.Error("user still attached to tenant A")
	}
	member, _ = env.users.MemberOfTenant(context.Background(), victim.ID, env.tenantB.ID)
	if !member {
		t.Error("user lost tenant B membership")
	}
}

func TestDeleteUser_DeleteWhenLastTenant(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", []string{"users.*"}, env.tenantA.ID)
	victim := env.addUser(t, "lonely@example.com", nil, env.tenantA.ID)
	token := env.loginAs(t, "admin@example.com", env.tenantA.ID)

	rr := env.do("DELETE", "/api/v1/users/"+victim.ID, nil, authed(token, map[string]string{
		tenant.HeaderAppKey: "key-a",
	}))

	wantStatus(t, rr, http.StatusOK)
	if _, err := env.users.FindByID(context.Background(), victim.ID); err == nil {
		t.Error("user should have been deleted")
	}
}

func TestDeleteUser_NotInTenant(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", []string{"users.*"}, env.tenantA.ID)
	outsider := env.addUser(t, "outsider@example.com", nil, env.tenantB.ID)
	token := env.loginAs(t, "admin@example.com", env.tenantA.ID)

	rr := env.do("DELETE", "/api/v1/users/"+outsider.ID, nil, authed(token, map[string]string{
		tenant.HeaderAppKey: "key-a",
	}))

	wantStatus(t, rr, http.StatusNotFound)

	// Untouched.
	member, _ := env.users.MemberOfTenant(context.Background(), outsider.ID, env.tenantB.ID)
	if !member {
		t.Error("outsider lost their own tenant membership")
	}
}

func TestDeleteUser_RequiresScope(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "viewer@example.com", []string{"users.read"}, env.tenantA.ID)
	victim := env.addUser(t, "victim@example.com", nil, env.tenantA.ID)
	token := env.loginAs(t, "viewer@example.com", env.tenantA.ID)

	rr := env.do("DELETE", "/api/v1/users/"+victim.ID, nil, authed(token, map[string]string{
		tenant.HeaderAppKey: "key-a",
	}))

	wantStatus(t, rr, http.StatusForbidden)
}
