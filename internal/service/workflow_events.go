package service

import (
	"context"
	"fmt"

	"github.com/specsflow-next/internal/cache"
	"github.com/specsflow-next/internal/logger"
	"github.com/specsflow-next/internal/models"
)

func orderEvent(order *models.SpecsOrder, eventType, recipientType string, recipientID uint, subject, message string) NotificationEvent {
	return NotificationEvent{
		Type:          eventType,
		RecipientType: recipientType,
		RecipientID:   uintPtr(recipientID),
		Subject:       subject,
		Message:       message,
		SpecsOrderID:  uintPtr(order.ID),
	}
}

func taskEvent(order *models.SpecsOrder, task *models.LensCuttingTask, eventType, recipientType string, recipientID uint, subject, message string) NotificationEvent {
	event := orderEvent(order, eventType, recipientType, recipientID, subject, message)
	event.TaskID = uintPtr(task.ID)
	return event
}

func deliveryEvent(order *models.SpecsOrder, delivery *models.Delivery, eventType, recipientType string, recipientID uint, subject, message string) NotificationEvent {
	event := orderEvent(order, eventType, recipientType, recipientID, subject, message)
	event.TaskID = uintPtr(delivery.TaskID)
	event.DeliveryID = uintPtr(delivery.ID)
	return event
}

func orderSubject(order *models.SpecsOrder, text string) string {
	return fmt.Sprintf("[%s] %s", order.OrderNo, text)
}

// invalidateWorkflowCache 状态变更后清理订单进度与看板缓存
func invalidateWorkflowCache(ctx context.Context, order *models.SpecsOrder) {
	if order == nil || !cache.Enabled() {
		return
	}
	keys := []string{cache.WorkflowStatusKey(order.ID), cache.DashboardStatsKey(0)}
	if order.StoreID != 0 {
		keys = append(keys, cache.DashboardStatsKey(order.StoreID))
	}
	if err := cache.Del(ctx, keys...); err != nil {
		logger.Warnw("workflow_cache_invalidate_failed",
			"order_id", order.ID,
			"error", err,
		)
	}
}
