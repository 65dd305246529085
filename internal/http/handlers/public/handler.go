package public

import "github.com/specsflow-next/internal/provider"

// Handler 患者侧接口处理器入口
// 说明：该处理器仅用于患者查询进度、取件码与通知。
type Handler struct {
	*provider.Container
}

// New 创建患者侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
