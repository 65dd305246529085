package staff

import (
	"strings"

	handlershared "github.com/specsflow-next/internal/http/handlers/shared"
	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
)

// SendNotificationRequest 手工发送通知请求
type SendNotificationRequest struct {
	Type          string `json:"type" binding:"required"`
	RecipientType string `json:"recipient_type" binding:"required"`
	RecipientID   *uint  `json:"recipient_id"`
	Contact       string `json:"contact"`
	Subject       string `json:"subject" binding:"required"`
	Message       string `json:"message"`
	SpecsOrderID  *uint  `json:"specs_order_id"`
	TaskID        *uint  `json:"task_id"`
	DeliveryID    *uint  `json:"delivery_id"`
}

// ListNotifications 通知列表
func (h *Handler) ListNotifications(c *gin.Context) {
	handlershared.ListNotifications(c, h.NotificationService)
}

// MarkNotificationRead 标记通知已读
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	handlershared.MarkNotificationRead(c, h.NotificationService)
}

// SendNotification 手工发送通知（管理员）
func (h *Handler) SendNotification(c *gin.Context) {
	if _, ok := getActor(c); !ok {
		return
	}
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	row, err := h.NotificationService.Send(c.Request.Context(), service.NotificationEvent{
		Type:          strings.TrimSpace(req.Type),
		RecipientType: strings.TrimSpace(req.RecipientType),
		RecipientID:   req.RecipientID,
		Contact:       req.Contact,
		Subject:       req.Subject,
		Message:       req.Message,
		SpecsOrderID:  req.SpecsOrderID,
		TaskID:        req.TaskID,
		DeliveryID:    req.DeliveryID,
	})
	if err != nil {
		respondServiceError(c, err, "notification send failed")
		return
	}
	response.Success(c, row)
}
