package staff

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/specsflow-next/internal/authz"
	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
)

func newAuthzRouter(h *Handler, actor service.Actor) *gin.Engine {
	r := newStaffRouter(h, actor)
	r.GET("/authz/roles", h.ListAuthzRoles)
	r.DELETE("/authz/roles/:role", h.DeleteAuthzRole)
	r.GET("/authz/roles/:role/policies", h.GetAuthzRolePolicies)
	r.POST("/authz/roles/:role/policies", h.GrantAuthzPolicy)
	r.DELETE("/authz/roles/:role/policies", h.RevokeAuthzPolicy)
	r.POST("/authz/reload", h.ReloadAuthzPolicy)
	return r
}

func TestAuthzPolicyHandlers(t *testing.T) {
	h := setupStaffHandlerTest(t)
	svc, err := authz.NewService(models.DB)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	h.AuthzService = svc
	admin := newAuthzRouter(h, service.Actor{ID: 1, Role: constants.RoleAdmin})

	grant := `{"object": "/staff/orders", "action": "get"}`
	if env := doStaffRequest(t, admin, http.MethodPost, "/authz/roles/optician/policies", grant); env.StatusCode != 0 {
		t.Fatalf("grant policy failed: %+v", env)
	}
	env := doStaffRequest(t, admin, http.MethodGet, "/authz/roles/optician/policies", "")
	if env.StatusCode != 0 {
		t.Fatalf("get policies failed: %+v", env)
	}
	var policies []authz.Policy
	if err := json.Unmarshal(env.Data, &policies); err != nil {
		t.Fatalf("decode policies failed: %v", err)
	}
	if len(policies) != 1 || policies[0].Object != "/staff/orders" || policies[0].Action != "GET" {
		t.Fatalf("unexpected policies: %+v", policies)
	}

	env = doStaffRequest(t, admin, http.MethodGet, "/authz/roles", "")
	var roles []string
	if err := json.Unmarshal(env.Data, &roles); err != nil {
		t.Fatalf("decode roles failed: %v", err)
	}
	found := false
	for _, role := range roles {
		if role == "role:optician" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected optician in roles, got %v", roles)
	}

	if env := doStaffRequest(t, admin, http.MethodDelete, "/authz/roles/optician/policies", grant); env.StatusCode != 0 {
		t.Fatalf("revoke policy failed: %+v", env)
	}
	allow, err := svc.EnforceRole("optician", "/api/v1/staff/orders", "GET")
	if err != nil || allow {
		t.Fatalf("expected revoked policy to deny, allow=%v err=%v", allow, err)
	}

	if env := doStaffRequest(t, admin, http.MethodDelete, "/authz/roles/store", ""); env.StatusCode != 400 {
		t.Fatalf("expected builtin role delete 400, got %+v", env)
	}
	if env := doStaffRequest(t, admin, http.MethodDelete, "/authz/roles/optician", ""); env.StatusCode != 0 {
		t.Fatalf("delete custom role failed: %+v", env)
	}
	if env := doStaffRequest(t, admin, http.MethodPost, "/authz/roles/optician/policies", `{"object": "/staff/orders"}`); env.StatusCode != 400 {
		t.Fatalf("expected missing action 400, got %+v", env)
	}
	if env := doStaffRequest(t, admin, http.MethodPost, "/authz/reload", ""); env.StatusCode != 0 {
		t.Fatalf("reload policy failed: %+v", env)
	}
}
