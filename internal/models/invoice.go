package models

import "time"

// Invoice 订单发票（按订单幂等生成）
type Invoice struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                    // 主键
	InvoiceNo    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_no"` // 发票号
	SpecsOrderID uint      `gorm:"uniqueIndex;not null" json:"specs_order_id"`              // 订单ID
	PatientID    uint      `gorm:"index;not null" json:"patient_id"`                        // 患者ID
	Amount       Money     `gorm:"type:decimal(12,2);not null" json:"amount"`               // 金额
	Tax          Money     `gorm:"type:decimal(12,2);not null;default:0" json:"tax"`        // 税费
	IssuedAt     time.Time `gorm:"not null" json:"issued_at"`                               // 开票时间
	CreatedAt    time.Time `json:"created_at"`                                              // 创建时间
}

// TableName 指定表名
func (Invoice) TableName() string {
	return "invoices"
}
