package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TaskNotificationDispatch 工作流通知投递任务
	TaskNotificationDispatch = "workflow:notification_dispatch"
)

// NotificationDispatchPayload 通知投递任务载荷
type NotificationDispatchPayload struct {
	NotificationID uint `json:"notification_id"`
}

// NewNotificationDispatchTask 创建通知投递任务
func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	if payload.NotificationID == 0 {
		return nil, fmt.Errorf("notification id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDispatch, body), nil
}

// ParseNotificationDispatchPayload 解析通知投递任务载荷
func ParseNotificationDispatchPayload(body []byte) (NotificationDispatchPayload, error) {
	var payload NotificationDispatchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, err
	}
	if payload.NotificationID == 0 {
		return payload, fmt.Errorf("notification id is required")
	}
	return payload, nil
}
