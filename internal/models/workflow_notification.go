package models

import "time"

// WorkflowNotification 工作流通知（追加写入，仅更新投递与已读状态）
type WorkflowNotification struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                   // 主键
	Type             string     `gorm:"type:varchar(40);index;not null" json:"type"`            // 通知类型
	RecipientType    string     `gorm:"type:varchar(20);index;not null" json:"recipient_type"`  // 接收方类型
	RecipientID      *uint      `gorm:"index" json:"recipient_id"`                              // 接收方ID
	RecipientContact string     `gorm:"type:varchar(255)" json:"recipient_contact"`             // 接收方联系方式
	SpecsOrderID     *uint      `gorm:"index" json:"specs_order_id"`                            // 关联订单
	TaskID           *uint      `gorm:"index" json:"task_id"`                                   // 关联任务
	DeliveryID       *uint      `gorm:"index" json:"delivery_id"`                               // 关联交付
	Subject          string     `gorm:"type:varchar(255);not null" json:"subject"`              // 标题
	Message          string     `gorm:"type:text;not null" json:"message"`                      // 内容
	Status           string     `gorm:"type:varchar(20);index;not null" json:"status"`          // 投递状态
	EmailSent        bool       `gorm:"not null;default:false" json:"email_sent"`               // 邮件是否发送
	SMSSent          bool       `gorm:"column:sms_sent;not null;default:false" json:"sms_sent"` // 短信是否发送
	Attempts         int        `gorm:"not null;default:0" json:"attempts"`                     // 投递次数
	LastError        string     `gorm:"type:text" json:"last_error,omitempty"`                  // 最近一次错误
	SentAt           *time.Time `json:"sent_at"`                                                // 发送时间
	ReadAt           *time.Time `json:"read_at"`                                                // 已读时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt        time.Time  `json:"updated_at"`                                             // 更新时间
}

// TableName 指定表名
func (WorkflowNotification) TableName() string {
	return "workflow_notifications"
}
