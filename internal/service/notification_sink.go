package service

import (
	"context"

	"github.com/specsflow-next/internal/logger"
)

// SinkMessage 投递给外部通道的通知内容
type SinkMessage struct {
	NotificationID uint
	Type           string
	RecipientType  string
	RecipientID    *uint
	Contact        string
	Subject        string
	Message        string
}

// SinkResult 通道投递结果
type SinkResult struct {
	EmailSent bool
	SMSSent   bool
}

// NotificationSink 通知外部通道
type NotificationSink interface {
	Dispatch(ctx context.Context, msg SinkMessage) (SinkResult, error)
}

// LogSink 仅写日志的通道，邮件未启用时使用
type LogSink struct{}

// Dispatch 记录通知内容
func (LogSink) Dispatch(ctx context.Context, msg SinkMessage) (SinkResult, error) {
	logger.Infow("workflow_notification_logged",
		"notification_id", msg.NotificationID,
		"type", msg.Type,
		"recipient_type", msg.RecipientType,
		"recipient_id", msg.RecipientID,
		"contact", msg.Contact,
		"subject", msg.Subject,
	)
	return SinkResult{}, nil
}
