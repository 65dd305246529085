package repository

import (
	"errors"
	"time"

	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository 工作流通知数据访问接口
type NotificationRepository interface {
	Create(notification *models.WorkflowNotification) error
	GetByID(id uint) (*models.WorkflowNotification, error)
	List(filter NotificationListFilter) ([]models.WorkflowNotification, int64, error)
	ListPendingBefore(before time.Time, limit int) ([]models.WorkflowNotification, error)
	MarkSent(id uint, contact string, emailSent, smsSent bool, sentAt time.Time) error
	MarkAttemptFailed(id uint, lastError string, final bool) error
	MarkRead(id uint, readAt time.Time) (bool, error)
	CountByOrderID(orderID uint) (int64, error)
	WithTx(tx *gorm.DB) *GormNotificationRepository
}

// GormNotificationRepository GORM 实现
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓库
func NewNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormNotificationRepository) WithTx(tx *gorm.DB) *GormNotificationRepository {
	if tx == nil {
		return r
	}
	return &GormNotificationRepository{db: tx}
}

// Create 写入通知
func (r *GormNotificationRepository) Create(notification *models.WorkflowNotification) error {
	return r.db.Create(notification).Error
}

// GetByID 根据 ID 获取通知
func (r *GormNotificationRepository) GetByID(id uint) (*models.WorkflowNotification, error) {
	var notification models.WorkflowNotification
	if err := r.db.First(&notification, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

// List 通知列表
func (r *GormNotificationRepository) List(filter NotificationListFilter) ([]models.WorkflowNotification, int64, error) {
	query := r.db.Model(&models.WorkflowNotification{})
	if filter.RecipientType != "" {
		query = query.Where("recipient_type = ?", filter.RecipientType)
	}
	if filter.RecipientID != 0 {
		query = query.Where("recipient_id = ?", filter.RecipientID)
	}
	if filter.SpecsOrderID != 0 {
		query = query.Where("specs_order_id = ?", filter.SpecsOrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.WorkflowNotification
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListPendingBefore 领取创建时间早于 before 的待投递通知
func (r *GormNotificationRepository) ListPendingBefore(before time.Time, limit int) ([]models.WorkflowNotification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.Model(&models.WorkflowNotification{}).
		Where("status = ? AND created_at < ?", constants.NotificationStatusPending, before).
		Order("id asc").
		Limit(limit)
	var rows []models.WorkflowNotification
	if err := withSkipLocked(query).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkSent 标记投递成功
func (r *GormNotificationRepository) MarkSent(id uint, contact string, emailSent, smsSent bool, sentAt time.Time) error {
	return r.db.Model(&models.WorkflowNotification{}).
		Where("id = ? AND status = ?", id, constants.NotificationStatusPending).
		Updates(map[string]interface{}{
			"status":            constants.NotificationStatusSent,
			"recipient_contact": contact,
			"email_sent":        emailSent,
			"sms_sent":          smsSent,
			"sent_at":           sentAt,
			"attempts":          gorm.Expr("attempts + 1"),
			"last_error":        "",
		}).Error
}

// MarkAttemptFailed 记录一次失败投递，final 为 true 时进入失败终态
func (r *GormNotificationRepository) MarkAttemptFailed(id uint, lastError string, final bool) error {
	updates := map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": lastError,
	}
	if final {
		updates["status"] = constants.NotificationStatusFailed
	}
	return r.db.Model(&models.WorkflowNotification{}).
		Where("id = ? AND status = ?", id, constants.NotificationStatusPending).
		Updates(updates).Error
}

// MarkRead 标记已读（重复调用不覆盖首次已读时间）
func (r *GormNotificationRepository) MarkRead(id uint, readAt time.Time) (bool, error) {
	result := r.db.Model(&models.WorkflowNotification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", readAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountByOrderID 统计订单相关通知数
func (r *GormNotificationRepository) CountByOrderID(orderID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.WorkflowNotification{}).Where("specs_order_id = ?", orderID).Count(&count).Error
	return count, err
}
