package repository

import (
	"errors"
	"strings"

	"github.com/specsflow-next/internal/models"

	"gorm.io/gorm"
)

// SpecsOrderRepository 配镜订单数据访问接口
type SpecsOrderRepository interface {
	Create(order *models.SpecsOrder) error
	GetByID(id uint) (*models.SpecsOrder, error)
	GetByOrderNo(orderNo string) (*models.SpecsOrder, error)
	List(filter SpecsOrderListFilter) ([]models.SpecsOrder, int64, error)
	TransitionStatus(id uint, fromStatuses []string, status string, updates map[string]interface{}) (bool, error)
	WithTx(tx *gorm.DB) *GormSpecsOrderRepository
}

// GormSpecsOrderRepository GORM 实现
type GormSpecsOrderRepository struct {
	db *gorm.DB
}

// NewSpecsOrderRepository 创建配镜订单仓库
func NewSpecsOrderRepository(db *gorm.DB) *GormSpecsOrderRepository {
	return &GormSpecsOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSpecsOrderRepository) WithTx(tx *gorm.DB) *GormSpecsOrderRepository {
	if tx == nil {
		return r
	}
	return &GormSpecsOrderRepository{db: tx}
}

// Create 创建订单
func (r *GormSpecsOrderRepository) Create(order *models.SpecsOrder) error {
	return r.db.Omit("Prescription").Create(order).Error
}

// GetByID 根据 ID 获取订单
func (r *GormSpecsOrderRepository) GetByID(id uint) (*models.SpecsOrder, error) {
	var order models.SpecsOrder
	if err := r.db.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单（含处方）
func (r *GormSpecsOrderRepository) GetByOrderNo(orderNo string) (*models.SpecsOrder, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var order models.SpecsOrder
	if err := r.db.Preload("Prescription").Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// List 订单列表
func (r *GormSpecsOrderRepository) List(filter SpecsOrderListFilter) ([]models.SpecsOrder, int64, error) {
	query := r.db.Model(&models.SpecsOrder{})
	if filter.StoreID != 0 {
		query = query.Where("store_id = ?", filter.StoreID)
	}
	if filter.PatientID != 0 {
		query = query.Where("patient_id = ?", filter.PatientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"order_no", "notes"})
		query = query.Where(condition, repeatLikeArgs("%"+keyword+"%", argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var orders []models.SpecsOrder
	if err := query.Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// TransitionStatus 以当前状态为条件更新订单状态，返回是否命中
func (r *GormSpecsOrderRepository) TransitionStatus(id uint, fromStatuses []string, status string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	query := r.db.Model(&models.SpecsOrder{}).Where("id = ?", id)
	if len(fromStatuses) > 0 {
		query = query.Where("status IN ?", fromStatuses)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
