package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/specsflow-next/internal/logger"
	"github.com/specsflow-next/internal/provider"
	"github.com/specsflow-next/internal/queue"
	"github.com/specsflow-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskNotificationDispatch, c.handleNotificationDispatch)
}

func (c *Consumer) handleNotificationDispatch(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_notification_dispatch_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseNotificationDispatchPayload(task.Payload())
	if err != nil {
		logger.Warnw("worker_notification_dispatch_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if c.Container == nil || c.NotificationService == nil {
		logger.Warnw("worker_notification_dispatch_skip_service_nil", "notification_id", payload.NotificationID)
		return nil
	}
	return classifyDispatchError(payload.NotificationID, c.NotificationService.Dispatch(ctx, payload.NotificationID))
}

// classifyDispatchError 将投递结果映射为队列重试语义
func classifyDispatchError(id uint, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, service.ErrNotificationNotFound):
		logger.Debugw("worker_notification_dispatch_skip_not_found", "notification_id", id)
		return nil
	case errors.Is(err, service.ErrNotificationDeadLettered):
		logger.Warnw("worker_notification_dispatch_dead_lettered", "notification_id", id, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		logger.Warnw("worker_notification_dispatch_failed", "notification_id", id, "error", err)
		return err
	}
}
