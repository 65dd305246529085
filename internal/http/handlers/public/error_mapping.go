package public

import (
	"errors"

	handlershared "github.com/specsflow-next/internal/http/handlers/shared"
	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			handlershared.RespondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	handlershared.RespondServiceError(c, err, fallbackMsg)
}

var patientPickupErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "order not found"},
	{target: service.ErrDeliveryNotFound, code: response.CodeConflict, msg: "order is not ready for pickup yet"},
	{target: service.ErrPickupNotAllowed, code: response.CodeConflict, msg: "order is not ready for pickup yet"},
	{target: service.ErrPickupAlreadyDelivered, code: response.CodeConflict, msg: "order already picked up"},
	{target: service.ErrDeliveryConflict, code: response.CodeConflict, msg: "please retry"},
}

func respondPatientPickupError(c *gin.Context, err error) {
	respondWithMappedError(c, err, patientPickupErrorRules, "pickup code failed")
}

func respondPatientWorkflowError(c *gin.Context, err error) {
	respondWithMappedError(c, err, []mappedHandlerError{
		{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "order not found"},
	}, "workflow fetch failed")
}
