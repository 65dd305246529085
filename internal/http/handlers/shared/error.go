package shared

import (
	"errors"

	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/logger"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if id := response.RequestID(c); id != "" {
		return logger.SW(response.RequestIDKey, id)
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// errorKindRule 业务错误类别到响应码的映射
type errorKindRule struct {
	kind error
	code int
}

var errorKindRules = []errorKindRule{
	{kind: service.ErrNotFound, code: response.CodeNotFound},
	{kind: service.ErrIllegalTransition, code: response.CodeConflict},
	{kind: service.ErrValidation, code: response.CodeBadRequest},
	{kind: service.ErrToken, code: response.CodeBadRequest},
	{kind: service.ErrConflict, code: response.CodeConflict},
}

// CodeForServiceError 按错误类别返回响应码，未知错误返回 false。
func CodeForServiceError(err error) (int, bool) {
	for _, rule := range errorKindRules {
		if errors.Is(err, rule.kind) {
			return rule.code, true
		}
	}
	return 0, false
}

// RespondServiceError 按业务错误类别返回响应，未知错误记录日志并返回通用 500。
func RespondServiceError(c *gin.Context, err error, fallbackMsg string) {
	if code, ok := CodeForServiceError(err); ok {
		response.Error(c, code, err.Error())
		return
	}
	RespondError(c, response.CodeInternal, fallbackMsg, err)
}
