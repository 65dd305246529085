package repository

import (
	"errors"
	"time"

	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"

	"gorm.io/gorm"
)

// pickupOpenStatuses 可签发/核销取件码的交付状态
var pickupOpenStatuses = []string{constants.DeliveryStatusReady, constants.DeliveryStatusOutForDelivery}

// pickupIssueStatuses 可（重新）签发取件码的交付状态，已交付的记录允许补发但不可再次核销
var pickupIssueStatuses = []string{constants.DeliveryStatusReady, constants.DeliveryStatusOutForDelivery, constants.DeliveryStatusDelivered}

// DeliveryRepository 交付数据访问接口
type DeliveryRepository interface {
	Create(delivery *models.Delivery) error
	GetByID(id uint) (*models.Delivery, error)
	GetByOrderID(orderID uint) (*models.Delivery, error)
	List(filter DeliveryListFilter) ([]models.Delivery, int64, error)
	UpdateWhereStatus(id uint, fromStatuses []string, updates map[string]interface{}) (bool, error)
	IssuePickupToken(id uint, tokenHash string, issuedAt, expiresAt time.Time) (bool, error)
	ConsumePickupToken(id uint, tokenHash string, usedAt time.Time, recipientName string) (bool, error)
	WithTx(tx *gorm.DB) *GormDeliveryRepository
}

// GormDeliveryRepository GORM 实现
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository 创建交付仓库
func NewDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDeliveryRepository) WithTx(tx *gorm.DB) *GormDeliveryRepository {
	if tx == nil {
		return r
	}
	return &GormDeliveryRepository{db: tx}
}

// Create 创建交付记录
func (r *GormDeliveryRepository) Create(delivery *models.Delivery) error {
	return r.db.Create(delivery).Error
}

// GetByID 根据 ID 获取交付记录
func (r *GormDeliveryRepository) GetByID(id uint) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.First(&delivery, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// GetByOrderID 根据订单获取交付记录
func (r *GormDeliveryRepository) GetByOrderID(orderID uint) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.Where("specs_order_id = ?", orderID).First(&delivery).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// List 交付列表
func (r *GormDeliveryRepository) List(filter DeliveryListFilter) ([]models.Delivery, int64, error) {
	query := r.db.Model(&models.Delivery{})
	if filter.StoreID != 0 {
		query = query.Where("specs_order_id IN (?)",
			r.db.Model(&models.SpecsOrder{}).Select("id").Where("store_id = ?", filter.StoreID))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", filter.Method)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var deliveries []models.Delivery
	if err := query.Order("id desc").Find(&deliveries).Error; err != nil {
		return nil, 0, err
	}
	return deliveries, total, nil
}

// UpdateWhereStatus 以当前状态为条件更新交付记录，返回是否命中
func (r *GormDeliveryRepository) UpdateWhereStatus(id uint, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	query := r.db.Model(&models.Delivery{}).Where("id = ?", id)
	if len(fromStatuses) > 0 {
		query = query.Where("status IN ?", fromStatuses)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IssuePickupToken 写入新取件令牌并清空使用时间，旧令牌随之失效
func (r *GormDeliveryRepository) IssuePickupToken(id uint, tokenHash string, issuedAt, expiresAt time.Time) (bool, error) {
	result := r.db.Model(&models.Delivery{}).
		Where("id = ? AND status IN ?", id, pickupIssueStatuses).
		Updates(map[string]interface{}{
			"qr_token_hash":       tokenHash,
			"qr_token_issued_at":  issuedAt,
			"qr_token_expires_at": expiresAt,
			"qr_token_used_at":    nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ConsumePickupToken 原子核销取件令牌：仅当令牌仍为当前令牌且未使用时命中
func (r *GormDeliveryRepository) ConsumePickupToken(id uint, tokenHash string, usedAt time.Time, recipientName string) (bool, error) {
	updates := map[string]interface{}{
		"qr_token_used_at": usedAt,
		"status":           constants.DeliveryStatusDelivered,
		"delivered_at":     usedAt,
	}
	if recipientName != "" {
		updates["recipient_name"] = recipientName
	}
	result := r.db.Model(&models.Delivery{}).
		Where("id = ? AND qr_token_hash = ? AND qr_token_used_at IS NULL AND status IN ?", id, tokenHash, pickupOpenStatuses).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
