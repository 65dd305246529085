package models

import (
	"time"

	"gorm.io/gorm"
)

// Delivery 交付记录（门店自取/快递/送货上门）
type Delivery struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                          // 主键
	SpecsOrderID      uint           `gorm:"uniqueIndex;not null" json:"specs_order_id"`                    // 订单ID
	TaskID            uint           `gorm:"index;not null" json:"task_id"`                                 // 来源加工任务
	Method            string         `gorm:"type:varchar(20);not null" json:"method"`                       // 交付方式
	Address           string         `gorm:"type:varchar(500)" json:"address"`                              // 收货地址
	RecipientName     string         `gorm:"type:varchar(100)" json:"recipient_name"`                       // 收件人
	RecipientPhone    string         `gorm:"type:varchar(50)" json:"recipient_phone"`                       // 收件人电话
	Status            string         `gorm:"type:varchar(20);index;not null" json:"status"`                 // 交付状态
	TrackingNumber    string         `gorm:"type:varchar(100)" json:"tracking_number"`                      // 运单号
	CourierService    string         `gorm:"type:varchar(100)" json:"courier_service"`                      // 快递公司
	ShippingCharges   Money          `gorm:"type:decimal(12,2);not null;default:0" json:"shipping_charges"` // 运费
	ReadyAt           time.Time      `gorm:"not null" json:"ready_at"`                                      // 到店时间
	ScheduledAt       *time.Time     `json:"scheduled_at"`                                                  // 预约交付时间
	ShippedAt         *time.Time     `json:"shipped_at"`                                                    // 发货时间
	DeliveredAt       *time.Time     `json:"delivered_at"`                                                  // 送达时间
	QRTokenHash       string         `gorm:"column:qr_token_hash;type:varchar(100)" json:"-"`               // 取件令牌哈希
	QRTokenIssuedAt   *time.Time     `gorm:"column:qr_token_issued_at" json:"qr_token_issued_at"`           // 令牌签发时间
	QRTokenExpiresAt  *time.Time     `gorm:"column:qr_token_expires_at" json:"qr_token_expires_at"`         // 令牌过期时间
	QRTokenUsedAt     *time.Time     `gorm:"column:qr_token_used_at" json:"qr_token_used_at"`               // 令牌使用时间
	FinalQualityCheck bool           `gorm:"not null;default:false" json:"final_quality_check"`             // 终检是否通过
	FinalQCBy         *uint          `gorm:"column:final_qc_by" json:"final_qc_by"`                         // 终检人
	FinalQCAt         *time.Time     `gorm:"column:final_qc_at" json:"final_qc_at"`                         // 终检时间
	FinalQCNotes      string         `gorm:"column:final_qc_notes;type:text" json:"final_qc_notes"`         // 终检备注
	CustomerFeedback  string         `gorm:"type:text" json:"customer_feedback"`                            // 顾客反馈
	Rating            *int           `json:"rating"`                                                        // 评分 1-5
	FailureReason     string         `gorm:"type:varchar(255)" json:"failure_reason"`                       // 失败原因
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                                       // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间
}

// TableName 指定表名
func (Delivery) TableName() string {
	return "deliveries"
}
