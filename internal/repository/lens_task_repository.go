package repository

import (
	"errors"

	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"

	"gorm.io/gorm"
)

// LensTaskRepository 割边任务数据访问接口
type LensTaskRepository interface {
	Create(task *models.LensCuttingTask) error
	GetByID(id uint) (*models.LensCuttingTask, error)
	GetActiveByOrderID(orderID uint) (*models.LensCuttingTask, error)
	ListByOrderID(orderID uint) ([]models.LensCuttingTask, error)
	List(filter TaskListFilter) ([]models.LensCuttingTask, int64, error)
	UpdateWhereStatus(id uint, fromStatuses []string, updates map[string]interface{}) (bool, error)
	UpdateWherePayoutStatus(id uint, fromPayout []string, updates map[string]interface{}) (bool, error)
	CloseFailedForRework(id uint) (bool, error)
	DeactivateByOrderID(orderID uint) error
	WithTx(tx *gorm.DB) *GormLensTaskRepository
}

// GormLensTaskRepository GORM 实现
type GormLensTaskRepository struct {
	db *gorm.DB
}

// NewLensTaskRepository 创建割边任务仓库
func NewLensTaskRepository(db *gorm.DB) *GormLensTaskRepository {
	return &GormLensTaskRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLensTaskRepository) WithTx(tx *gorm.DB) *GormLensTaskRepository {
	if tx == nil {
		return r
	}
	return &GormLensTaskRepository{db: tx}
}

// Create 创建任务
func (r *GormLensTaskRepository) Create(task *models.LensCuttingTask) error {
	return r.db.Create(task).Error
}

// GetByID 根据 ID 获取任务
func (r *GormLensTaskRepository) GetByID(id uint) (*models.LensCuttingTask, error) {
	var task models.LensCuttingTask
	if err := r.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// GetActiveByOrderID 获取订单当前任务
func (r *GormLensTaskRepository) GetActiveByOrderID(orderID uint) (*models.LensCuttingTask, error) {
	var task models.LensCuttingTask
	err := r.db.Where("specs_order_id = ? AND active = ?", orderID, true).
		Order("id desc").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// ListByOrderID 按派单顺序返回订单全部任务（含返工链）
func (r *GormLensTaskRepository) ListByOrderID(orderID uint) ([]models.LensCuttingTask, error) {
	var tasks []models.LensCuttingTask
	if err := r.db.Where("specs_order_id = ?", orderID).Order("id asc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// List 任务列表
func (r *GormLensTaskRepository) List(filter TaskListFilter) ([]models.LensCuttingTask, int64, error) {
	query := r.db.Model(&models.LensCuttingTask{})
	if filter.SpecsOrderID != 0 {
		query = query.Where("specs_order_id = ?", filter.SpecsOrderID)
	}
	if filter.StoreID != 0 {
		query = query.Where("specs_order_id IN (?)",
			r.db.Model(&models.SpecsOrder{}).Select("id").Where("store_id = ?", filter.StoreID))
	}
	if filter.FitterID != 0 {
		query = query.Where("fitter_id = ?", filter.FitterID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PayoutStatus != "" {
		query = query.Where("payout_status = ?", filter.PayoutStatus)
	}
	if filter.OnlyActive {
		query = query.Where("active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var tasks []models.LensCuttingTask
	if err := query.Order("deadline is null, deadline asc, id desc").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// UpdateWhereStatus 以当前状态为条件更新任务，返回是否命中
func (r *GormLensTaskRepository) UpdateWhereStatus(id uint, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	query := r.db.Model(&models.LensCuttingTask{}).Where("id = ?", id)
	if len(fromStatuses) > 0 {
		query = query.Where("status IN ?", fromStatuses)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateWherePayoutStatus 以当前结算状态为条件更新任务，返回是否命中
func (r *GormLensTaskRepository) UpdateWherePayoutStatus(id uint, fromPayout []string, updates map[string]interface{}) (bool, error) {
	query := r.db.Model(&models.LensCuttingTask{}).Where("id = ?", id)
	if len(fromPayout) > 0 {
		query = query.Where("payout_status IN ?", fromPayout)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CloseFailedForRework 关闭质检未通过的当前任务，为返工任务让位
func (r *GormLensTaskRepository) CloseFailedForRework(id uint) (bool, error) {
	result := r.db.Model(&models.LensCuttingTask{}).
		Where("id = ? AND active = ? AND status = ? AND qc_status = ?", id, true, constants.TaskStatusQualityCheck, constants.QCStatusFail).
		Update("active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeactivateByOrderID 取消订单时关闭全部在途任务
func (r *GormLensTaskRepository) DeactivateByOrderID(orderID uint) error {
	return r.db.Model(&models.LensCuttingTask{}).
		Where("specs_order_id = ? AND active = ?", orderID, true).
		Update("active", false).Error
}
