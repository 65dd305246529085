package shared

import (
	"strings"

	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/repository"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListNotifications 按当前操作人列出通知，员工与患者接口共用
func ListNotifications(c *gin.Context, notifications *service.NotificationService) {
	actor, ok := GetActor(c)
	if !ok {
		return
	}
	page, pageSize := ParsePagination(c)
	rows, total, err := notifications.List(actor, repository.NotificationListFilter{
		Page:          page,
		PageSize:      pageSize,
		RecipientType: strings.TrimSpace(c.Query("recipient_type")),
		RecipientID:   QueryUint(c, "recipient_id"),
		SpecsOrderID:  QueryUint(c, "specs_order_id"),
		Status:        strings.TrimSpace(c.Query("status")),
		UnreadOnly:    c.Query("unread") == "true",
	})
	if err != nil {
		RespondServiceError(c, err, "notification fetch failed")
		return
	}
	response.SuccessWithPage(c, rows, BuildPagination(page, pageSize, total))
}

// MarkNotificationRead 标记当前操作人的通知已读
func MarkNotificationRead(c *gin.Context, notifications *service.NotificationService) {
	actor, ok := GetActor(c)
	if !ok {
		return
	}
	id, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	row, err := notifications.MarkRead(actor, id)
	if err != nil {
		RespondServiceError(c, err, "notification update failed")
		return
	}
	response.Success(c, row)
}
