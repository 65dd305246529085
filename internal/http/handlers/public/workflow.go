package public

import (
	"strings"

	"github.com/specsflow-next/internal/constants"
	handlershared "github.com/specsflow-next/internal/http/handlers/shared"
	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetOrderWorkflow 患者按订单号查询工作流进度
func (h *Handler) GetOrderWorkflow(c *gin.Context) {
	actor, ok := handlershared.GetActor(c)
	if !ok {
		return
	}
	orderNo := strings.TrimSpace(c.Param("order_no"))
	status, err := h.WorkflowService.GetWorkflowStatusByOrderNo(c.Request.Context(), actor, orderNo)
	if err != nil {
		respondPatientWorkflowError(c, err)
		return
	}
	response.Success(c, status)
}

// IssuePickupQR 患者领取取件二维码，重新领取会使旧码失效
func (h *Handler) IssuePickupQR(c *gin.Context) {
	actor, ok := handlershared.GetActor(c)
	if !ok {
		return
	}
	orderNo := strings.TrimSpace(c.Param("order_no"))
	status, err := h.WorkflowService.GetWorkflowStatusByOrderNo(c.Request.Context(), actor, orderNo)
	if err != nil {
		respondPatientPickupError(c, err)
		return
	}
	if status.Delivery == nil {
		respondPatientPickupError(c, service.ErrDeliveryNotFound)
		return
	}
	if status.Delivery.Status == constants.DeliveryStatusDelivered {
		respondPatientPickupError(c, service.ErrPickupAlreadyDelivered)
		return
	}
	token, err := h.DeliveryService.GeneratePickupToken(c.Request.Context(), actor, status.Delivery.ID, 0)
	if err != nil {
		respondPatientPickupError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order_no":   orderNo,
		"expires_at": token.ExpiresAt,
		"qr_payload": token.QRPayload,
		"qr_image":   token.QRImage,
	})
}

// ListNotifications 患者通知列表
func (h *Handler) ListNotifications(c *gin.Context) {
	handlershared.ListNotifications(c, h.NotificationService)
}

// MarkNotificationRead 患者标记通知已读
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	handlershared.MarkNotificationRead(c, h.NotificationService)
}
