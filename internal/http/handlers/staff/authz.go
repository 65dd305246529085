package staff

import (
	"net/url"
	"strings"

	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/logger"

	"github.com/gin-gonic/gin"
)

type authzPolicyPayload struct {
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// ListAuthzRoles 角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "role fetch failed", err)
		return
	}
	response.Success(c, roles)
}

// GetAuthzRolePolicies 角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role, ok := roleParam(c)
	if !ok {
		return
	}
	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzPolicy 为角色授予策略，角色不存在时自动创建
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	role, ok := roleParam(c)
	if !ok {
		return
	}
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if err := h.AuthzService.GrantRolePolicy(role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	logger.Infow("staff_authz_policy_granted",
		"actor_id", actor.ID,
		"role", role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// RevokeAuthzPolicy 撤销角色策略
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	role, ok := roleParam(c)
	if !ok {
		return
	}
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if err := h.AuthzService.RevokeRolePolicy(role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	logger.Infow("staff_authz_policy_revoked",
		"actor_id", actor.ID,
		"role", role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// DeleteAuthzRole 删除自定义角色，预置角色不可删除
func (h *Handler) DeleteAuthzRole(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	role, ok := roleParam(c)
	if !ok {
		return
	}
	if err := h.AuthzService.DeleteRole(role); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	logger.Infow("staff_authz_role_deleted",
		"actor_id", actor.ID,
		"role", role,
	)
	response.Success(c, nil)
}

// ReloadAuthzPolicy 从数据库重新加载策略，多实例部署下同步其他节点的变更
func (h *Handler) ReloadAuthzPolicy(c *gin.Context) {
	if err := h.AuthzService.ReloadPolicy(); err != nil {
		respondError(c, response.CodeInternal, "policy reload failed", err)
		return
	}
	response.Success(c, nil)
}

func roleParam(c *gin.Context) (string, bool) {
	raw := c.Param("role")
	role, err := url.PathUnescape(raw)
	if err != nil {
		role = raw
	}
	role = strings.TrimSpace(role)
	if role == "" {
		respondError(c, response.CodeBadRequest, "bad request", nil)
		return "", false
	}
	return role, true
}
