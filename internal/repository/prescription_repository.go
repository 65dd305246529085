package repository

import (
	"errors"

	"github.com/specsflow-next/internal/models"

	"gorm.io/gorm"
)

// PrescriptionRepository 处方数据访问接口
type PrescriptionRepository interface {
	Create(prescription *models.LensPrescription) error
	GetByID(id uint) (*models.LensPrescription, error)
	List(filter PrescriptionListFilter) ([]models.LensPrescription, int64, error)
	UpdateStatus(id uint, fromStatuses []string, status string) (bool, error)
	WithTx(tx *gorm.DB) *GormPrescriptionRepository
}

// GormPrescriptionRepository GORM 实现
type GormPrescriptionRepository struct {
	db *gorm.DB
}

// NewPrescriptionRepository 创建处方仓库
func NewPrescriptionRepository(db *gorm.DB) *GormPrescriptionRepository {
	return &GormPrescriptionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPrescriptionRepository) WithTx(tx *gorm.DB) *GormPrescriptionRepository {
	if tx == nil {
		return r
	}
	return &GormPrescriptionRepository{db: tx}
}

// Create 创建处方
func (r *GormPrescriptionRepository) Create(prescription *models.LensPrescription) error {
	return r.db.Create(prescription).Error
}

// GetByID 根据 ID 获取处方
func (r *GormPrescriptionRepository) GetByID(id uint) (*models.LensPrescription, error) {
	var prescription models.LensPrescription
	if err := r.db.First(&prescription, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prescription, nil
}

// List 处方列表
func (r *GormPrescriptionRepository) List(filter PrescriptionListFilter) ([]models.LensPrescription, int64, error) {
	query := r.db.Model(&models.LensPrescription{})
	if filter.PatientID != 0 {
		query = query.Where("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorID != 0 {
		query = query.Where("doctor_id = ?", filter.DoctorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.LensPrescription
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateStatus 条件更新处方状态，fromStatuses 为空时不校验当前状态
func (r *GormPrescriptionRepository) UpdateStatus(id uint, fromStatuses []string, status string) (bool, error) {
	query := r.db.Model(&models.LensPrescription{}).Where("id = ?", id)
	if len(fromStatuses) > 0 {
		query = query.Where("status IN ?", fromStatuses)
	}
	result := query.Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
