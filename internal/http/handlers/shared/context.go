package shared

import (
	"strconv"

	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ActorContextKey 中间件写入的操作人键名
const ActorContextKey = "actor"

// GetActor 从上下文读取操作人并统一处理错误响应。
func GetActor(c *gin.Context) (service.Actor, bool) {
	value, exists := c.Get(ActorContextKey)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return service.Actor{}, false
	}
	actor, ok := value.(service.Actor)
	if !ok || !actor.Valid() {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return service.Actor{}, false
	}
	return actor, true
}

// ParseUintParam 解析路径中的 uint 参数，非法时返回 400。
func ParseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		RespondError(c, response.CodeBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return uint(value), true
}

// QueryUint 读取 uint 查询参数，缺省或非法时返回 0。
func QueryUint(c *gin.Context, name string) uint {
	value, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(value)
}
