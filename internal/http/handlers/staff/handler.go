package staff

import (
	"github.com/specsflow-next/internal/provider"
)

// Handler 员工侧接口处理器入口
// 说明：医生、门店、加工师、配送员与管理员共用，权限由路由层 RBAC 控制。
type Handler struct {
	*provider.Container
}

// New 创建员工侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
