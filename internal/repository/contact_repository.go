package repository

import (
	"errors"
	"strings"

	"github.com/specsflow-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactRepository 通知联系人数据访问接口
type ContactRepository interface {
	Get(recipientType string, recipientID uint) (*models.Contact, error)
	Upsert(contact *models.Contact) error
}

// GormContactRepository GORM 实现
type GormContactRepository struct {
	db *gorm.DB
}

// NewContactRepository 创建联系人仓库
func NewContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db}
}

// Get 查询联系人
func (r *GormContactRepository) Get(recipientType string, recipientID uint) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.Where("recipient_type = ? AND recipient_id = ?", strings.TrimSpace(recipientType), recipientID).
		First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

// Upsert 按接收方写入联系人
func (r *GormContactRepository) Upsert(contact *models.Contact) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient_type"}, {Name: "recipient_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "phone", "updated_at"}),
	}).Create(contact).Error
}
