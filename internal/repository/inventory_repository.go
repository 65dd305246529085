package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/specsflow-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository 镜架库存数据访问接口
type InventoryRepository interface {
	GetStock(frameRef string) (*models.FrameStock, error)
	UpsertStock(stock *models.FrameStock) error
	GetReservation(orderID uint, frameRef string) (*models.InventoryReservation, error)
	Reserve(orderID uint, frameRef string, quantity int) (bool, error)
	ReleaseByOrderID(orderID uint, releasedAt time.Time) error
	WithTx(tx *gorm.DB) *GormInventoryRepository
}

// GormInventoryRepository GORM 实现
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository 创建库存仓库
func NewInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormInventoryRepository) WithTx(tx *gorm.DB) *GormInventoryRepository {
	if tx == nil {
		return r
	}
	return &GormInventoryRepository{db: tx}
}

// GetStock 查询镜架库存
func (r *GormInventoryRepository) GetStock(frameRef string) (*models.FrameStock, error) {
	var stock models.FrameStock
	if err := r.db.Where("frame_ref = ?", strings.TrimSpace(frameRef)).First(&stock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stock, nil
}

// UpsertStock 按镜架编号写入库存
func (r *GormInventoryRepository) UpsertStock(stock *models.FrameStock) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "frame_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "quantity", "updated_at"}),
	}).Create(stock).Error
}

// GetReservation 查询订单的镜架扣减记录
func (r *GormInventoryRepository) GetReservation(orderID uint, frameRef string) (*models.InventoryReservation, error) {
	var reservation models.InventoryReservation
	err := r.db.Where("specs_order_id = ? AND frame_ref = ?", orderID, frameRef).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

// Reserve 条件扣减库存并写入扣减记录；库存不足时返回 false
func (r *GormInventoryRepository) Reserve(orderID uint, frameRef string, quantity int) (bool, error) {
	result := r.db.Model(&models.FrameStock{}).
		Where("frame_ref = ? AND quantity >= ?", frameRef, quantity).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity - ?", quantity),
			"reserved": gorm.Expr("reserved + ?", quantity),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	reservation := models.InventoryReservation{
		SpecsOrderID: orderID,
		FrameRef:     frameRef,
		Quantity:     quantity,
	}
	if err := r.db.Create(&reservation).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseByOrderID 释放订单占用的镜架库存（仅释放一次）
func (r *GormInventoryRepository) ReleaseByOrderID(orderID uint, releasedAt time.Time) error {
	var reservations []models.InventoryReservation
	if err := r.db.Where("specs_order_id = ? AND released_at IS NULL", orderID).Find(&reservations).Error; err != nil {
		return err
	}
	for _, reservation := range reservations {
		result := r.db.Model(&models.InventoryReservation{}).
			Where("id = ? AND released_at IS NULL", reservation.ID).
			Update("released_at", releasedAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		if err := r.db.Model(&models.FrameStock{}).
			Where("frame_ref = ?", reservation.FrameRef).
			Updates(map[string]interface{}{
				"quantity": gorm.Expr("quantity + ?", reservation.Quantity),
				"reserved": gorm.Expr("reserved - ?", reservation.Quantity),
			}).Error; err != nil {
			return err
		}
	}
	return nil
}
