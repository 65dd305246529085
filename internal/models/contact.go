package models

import "time"

// Contact 通知联系人（按接收方类型与ID唯一）
type Contact struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                                              // 主键
	RecipientType string    `gorm:"type:varchar(20);uniqueIndex:idx_contact_recipient;not null" json:"recipient_type"` // 接收方类型
	RecipientID   uint      `gorm:"uniqueIndex:idx_contact_recipient;not null" json:"recipient_id"`                    // 接收方ID
	Name          string    `gorm:"type:varchar(100)" json:"name"`                                                     // 名称
	Email         string    `gorm:"type:varchar(255)" json:"email"`                                                    // 邮箱
	Phone         string    `gorm:"type:varchar(50)" json:"phone"`                                                     // 电话
	CreatedAt     time.Time `json:"created_at"`                                                                        // 创建时间
	UpdatedAt     time.Time `json:"updated_at"`                                                                        // 更新时间
}

// TableName 指定表名
func (Contact) TableName() string {
	return "contacts"
}
