package authz

import "fmt"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
// 对象路径不含 /api/v1 前缀，动作 * 表示全部方法。
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "staff",
			Policies: []Policy{
				{Object: "/staff/notifications", Action: "GET"},
				{Object: "/staff/notifications/:id/read", Action: "PATCH"},
			},
		},
		{
			Role:     "doctor",
			Inherits: []string{"staff"},
			Policies: []Policy{
				{Object: "/staff/prescriptions", Action: "*"},
				{Object: "/staff/prescriptions/:id", Action: "GET"},
			},
		},
		{
			Role:     "store",
			Inherits: []string{"staff"},
			Policies: []Policy{
				{Object: "/staff/prescriptions", Action: "GET"},
				{Object: "/staff/prescriptions/:id", Action: "GET"},
				{Object: "/staff/inventory/frames/:frame_ref", Action: "GET"},
				{Object: "/staff/orders", Action: "*"},
				{Object: "/staff/orders/:id", Action: "GET"},
				{Object: "/staff/orders/:id/confirm", Action: "POST"},
				{Object: "/staff/orders/:id/cancel", Action: "POST"},
				{Object: "/staff/orders/:id/tasks", Action: "POST"},
				{Object: "/staff/orders/:id/workflow", Action: "GET"},
				{Object: "/staff/tasks", Action: "GET"},
				{Object: "/staff/tasks/:id", Action: "GET"},
				{Object: "/staff/tasks/:id/qc", Action: "POST"},
				{Object: "/staff/tasks/:id/payout", Action: "POST"},
				{Object: "/staff/tasks/:id/rework", Action: "POST"},
				{Object: "/staff/tasks/:id/send-to-store", Action: "POST"},
				{Object: "/staff/deliveries", Action: "GET"},
				{Object: "/staff/deliveries/:id", Action: "GET"},
				{Object: "/staff/deliveries/:id/*", Action: "POST"},
				{Object: "/staff/dashboard", Action: "GET"},
			},
		},
		{
			Role:     "fitter",
			Inherits: []string{"staff"},
			Policies: []Policy{
				{Object: "/staff/tasks", Action: "GET"},
				{Object: "/staff/tasks/:id", Action: "GET"},
				{Object: "/staff/tasks/:id/progress", Action: "PATCH"},
				{Object: "/staff/tasks/:id/send-to-store", Action: "POST"},
			},
		},
		{
			Role:     "courier",
			Inherits: []string{"staff"},
			Policies: []Policy{
				{Object: "/staff/deliveries", Action: "GET"},
				{Object: "/staff/deliveries/:id", Action: "GET"},
				{Object: "/staff/deliveries/:id/ship", Action: "POST"},
				{Object: "/staff/deliveries/:id/delivered", Action: "POST"},
				{Object: "/staff/deliveries/:id/failed", Action: "POST"},
			},
		},
		{
			Role: "admin",
			Policies: []Policy{
				{Object: "/staff/*", Action: "*"},
			},
		},
		{
			Role: "patient",
			Policies: []Policy{
				{Object: "/public/orders/:order_no/workflow", Action: "GET"},
				{Object: "/public/orders/:order_no/pickup-qr", Action: "POST"},
				{Object: "/public/notifications", Action: "GET"},
				{Object: "/public/notifications/:id/read", Action: "PATCH"},
			},
		},
	}
}

// IsBuiltinRole 判断是否为预置角色
func IsBuiltinRole(role string) bool {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return false
	}
	for _, seed := range BuiltinRoleSeeds() {
		if rolePrefix+seed.Role == normalized {
			return true
		}
	}
	return false
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	changed := false
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}

		exists, err := s.enforcer.HasNamedGroupingPolicy("g", role, roleAnchor)
		if err != nil {
			return fmt.Errorf("check builtin role failed: %w", err)
		}
		if !exists {
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, roleAnchor)
			if err != nil {
				return fmt.Errorf("create builtin role failed: %w", err)
			}
			if added {
				changed = true
			}
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole)
			if err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
			if added {
				changed = true
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			added, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action)
			if err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
			if added {
				changed = true
			}
		}
	}

	if changed {
		return s.saveAndReload()
	}
	return nil
}
