package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/logger"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/queue"
	"github.com/specsflow-next/internal/repository"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const notificationSweepBatch = 100

// NotificationEvent 工作流通知事件
type NotificationEvent struct {
	Type          string
	RecipientType string
	RecipientID   *uint
	Contact       string
	Subject       string
	Message       string
	SpecsOrderID  *uint
	TaskID        *uint
	DeliveryID    *uint
}

// NotificationService 工作流通知分发
// 状态流转事务内写入 pending 记录，提交后入队投递；队列未启用时同步投递。
type NotificationService struct {
	repo        repository.NotificationRepository
	contactRepo repository.ContactRepository
	sink        NotificationSink
	queueClient *queue.Client
	cfg         config.WorkflowConfig
	now         func() time.Time
}

// NewNotificationService 创建通知服务
func NewNotificationService(repo repository.NotificationRepository, contactRepo repository.ContactRepository, sink NotificationSink, queueClient *queue.Client, cfg config.WorkflowConfig) *NotificationService {
	if sink == nil {
		sink = LogSink{}
	}
	return &NotificationService{
		repo:        repo,
		contactRepo: contactRepo,
		sink:        sink,
		queueClient: queueClient,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Record 在给定事务内写入待投递通知，返回记录 ID
func (s *NotificationService) Record(tx *gorm.DB, events ...NotificationEvent) ([]uint, error) {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	ids := make([]uint, 0, len(events))
	for _, event := range events {
		row, err := buildNotificationRow(event)
		if err != nil {
			return nil, err
		}
		if err := repo.Create(row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// Send 单独发送一条通知（不依附于状态流转）
func (s *NotificationService) Send(ctx context.Context, event NotificationEvent) (*models.WorkflowNotification, error) {
	ids, err := s.Record(nil, event)
	if err != nil {
		return nil, err
	}
	s.Publish(ctx, ids)
	return s.repo.GetByID(ids[0])
}

// Publish 事务提交后投递通知；失败只记录日志，不影响触发方
func (s *NotificationService) Publish(ctx context.Context, ids []uint) {
	for _, id := range ids {
		if s.queueClient.Enabled() {
			if err := s.enqueue(id); err != nil {
				logger.Warnw("workflow_notification_enqueue_failed",
					"notification_id", id,
					"error", err,
				)
			}
			continue
		}
		if err := s.Dispatch(ctx, id); err != nil {
			logger.Warnw("workflow_notification_dispatch_failed",
				"notification_id", id,
				"error", err,
			)
		}
	}
}

func (s *NotificationService) enqueue(id uint) error {
	return s.queueClient.EnqueueNotificationDispatch(
		queue.NotificationDispatchPayload{NotificationID: id},
		asynq.MaxRetry(s.cfg.MaxRetry()),
	)
}

// Dispatch 投递单条通知并回写状态
// 重试次数耗尽后记录进入 failed 终态，返回 ErrNotificationDeadLettered。
func (s *NotificationService) Dispatch(ctx context.Context, id uint) error {
	row, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if row == nil {
		return ErrNotificationNotFound
	}
	if row.Status != constants.NotificationStatusPending {
		return nil
	}

	contact, err := s.resolveContact(row)
	if err != nil {
		return err
	}
	result, sendErr := s.sink.Dispatch(ctx, SinkMessage{
		NotificationID: row.ID,
		Type:           row.Type,
		RecipientType:  row.RecipientType,
		RecipientID:    row.RecipientID,
		Contact:        contact,
		Subject:        row.Subject,
		Message:        row.Message,
	})
	if sendErr == nil {
		return s.repo.MarkSent(row.ID, contact, result.EmailSent, result.SMSSent, s.now())
	}

	final := row.Attempts+1 > s.cfg.MaxRetry() || errors.Is(sendErr, ErrValidation)
	if err := s.repo.MarkAttemptFailed(row.ID, truncateError(sendErr), final); err != nil {
		return err
	}
	if final {
		logger.Warnw("workflow_notification_dead_lettered",
			"notification_id", row.ID,
			"attempts", row.Attempts+1,
			"error", sendErr,
		)
		return fmt.Errorf("%w: %v", ErrNotificationDeadLettered, sendErr)
	}
	return sendErr
}

func (s *NotificationService) resolveContact(row *models.WorkflowNotification) (string, error) {
	if contact := strings.TrimSpace(row.RecipientContact); contact != "" {
		return contact, nil
	}
	if row.RecipientID != nil && s.contactRepo != nil {
		contact, err := s.contactRepo.Get(row.RecipientType, *row.RecipientID)
		if err != nil {
			return "", err
		}
		if contact != nil && strings.TrimSpace(contact.Email) != "" {
			return strings.TrimSpace(contact.Email), nil
		}
	}
	switch row.RecipientType {
	case constants.RecipientStore:
		return strings.TrimSpace(s.cfg.StoreEmail), nil
	case constants.RecipientAdmin:
		return strings.TrimSpace(s.cfg.AdminEmail), nil
	}
	return "", nil
}

// SweepPending 重新投递长时间停留在 pending 的通知，返回处理条数
func (s *NotificationService) SweepPending(ctx context.Context) (int, error) {
	rows, err := s.repo.ListPendingBefore(s.now().Add(-s.cfg.StaleAfter()), notificationSweepBatch)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if s.queueClient.Enabled() {
			if err := s.enqueue(row.ID); err != nil {
				logger.Warnw("workflow_notification_sweep_enqueue_failed",
					"notification_id", row.ID,
					"error", err,
				)
			}
			continue
		}
		if err := s.Dispatch(ctx, row.ID); err != nil {
			logger.Warnw("workflow_notification_sweep_dispatch_failed",
				"notification_id", row.ID,
				"error", err,
			)
		}
	}
	return len(rows), nil
}

// MarkRead 标记通知已读，仅接收方本人或管理员可操作
func (s *NotificationService) MarkRead(actor Actor, id uint) (*models.WorkflowNotification, error) {
	row, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotificationNotFound
	}
	if !actor.Is(constants.RoleAdmin) {
		if row.RecipientType != actor.Role || row.RecipientID == nil || *row.RecipientID != actor.ID {
			return nil, ErrNotificationNotFound
		}
	}
	if _, err := s.repo.MarkRead(id, s.now()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(id)
}

// List 查询通知，非管理员只能看到自己的通知
func (s *NotificationService) List(actor Actor, filter repository.NotificationListFilter) ([]models.WorkflowNotification, int64, error) {
	if !actor.Is(constants.RoleAdmin) {
		filter.RecipientType = actor.Role
		filter.RecipientID = actor.ID
	}
	return s.repo.List(filter)
}

func buildNotificationRow(event NotificationEvent) (*models.WorkflowNotification, error) {
	eventType := strings.TrimSpace(event.Type)
	recipientType := strings.TrimSpace(event.RecipientType)
	subject := strings.TrimSpace(event.Subject)
	if eventType == "" || recipientType == "" || subject == "" {
		return nil, ErrInvalidNotification
	}
	message := strings.TrimSpace(event.Message)
	if message == "" {
		message = subject
	}
	return &models.WorkflowNotification{
		Type:             eventType,
		RecipientType:    recipientType,
		RecipientID:      event.RecipientID,
		RecipientContact: strings.TrimSpace(event.Contact),
		SpecsOrderID:     event.SpecsOrderID,
		TaskID:           event.TaskID,
		DeliveryID:       event.DeliveryID,
		Subject:          subject,
		Message:          message,
		Status:           constants.NotificationStatusPending,
	}, nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	message := err.Error()
	if len(message) > 1000 {
		return message[:1000]
	}
	return message
}

func uintPtr(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}
