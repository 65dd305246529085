package models

import (
	"time"

	"gorm.io/gorm"
)

// SpecsOrder 配镜订单（工作流聚合根）
type SpecsOrder struct {
	ID                   uint           `gorm:"primarykey" json:"id"`                                            // 主键
	OrderNo              string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_no"`           // 订单号
	PrescriptionID       uint           `gorm:"uniqueIndex;not null" json:"prescription_id"`                     // 处方ID（一单一处方）
	PatientID            uint           `gorm:"index;not null" json:"patient_id"`                                // 患者ID
	StoreID              uint           `gorm:"index;not null" json:"store_id"`                                  // 门店ID
	FrameRef             string         `gorm:"type:varchar(64);index" json:"frame_ref"`                         // 镜架编号（空表示自备镜架）
	FramePrice           Money          `gorm:"type:decimal(12,2);not null;default:0" json:"frame_price"`        // 镜架价格
	LensPrice            Money          `gorm:"type:decimal(12,2);not null;default:0" json:"lens_price"`         // 镜片价格
	CoatingPrice         Money          `gorm:"type:decimal(12,2);not null;default:0" json:"coating_price"`      // 镀膜价格
	AdditionalCharges    Money          `gorm:"type:decimal(12,2);not null;default:0" json:"additional_charges"` // 附加费用
	Subtotal             Money          `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`           // 小计
	Tax                  Money          `gorm:"type:decimal(12,2);not null;default:0" json:"tax"`                // 税费
	Discount             Money          `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`           // 折扣
	TotalAmount          Money          `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`       // 应付总额
	Status               string         `gorm:"type:varchar(20);index;not null" json:"status"`                   // 订单状态
	Priority             string         `gorm:"type:varchar(20);not null;default:'normal'" json:"priority"`      // 优先级
	OrderDate            time.Time      `gorm:"not null" json:"order_date"`                                      // 下单日期
	ExpectedDeliveryDate *time.Time     `json:"expected_delivery_date"`                                          // 预计交付日期
	ActualDeliveryDate   *time.Time     `json:"actual_delivery_date"`                                            // 实际交付日期
	Notes                string         `gorm:"type:text" json:"notes"`                                          // 备注
	CreatedBy            uint           `gorm:"index" json:"created_by"`                                         // 创建人
	ConfirmedBy          *uint          `json:"confirmed_by,omitempty"`                                          // 确认人
	ConfirmedAt          *time.Time     `json:"confirmed_at,omitempty"`                                          // 确认时间
	CanceledAt           *time.Time     `json:"canceled_at,omitempty"`                                           // 取消时间
	CancelReason         string         `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`                // 取消原因
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`                                         // 创建时间
	UpdatedAt            time.Time      `gorm:"index" json:"updated_at"`                                         // 更新时间
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`                                                  // 软删除时间

	Prescription *LensPrescription `gorm:"foreignKey:PrescriptionID" json:"prescription,omitempty"` // 关联处方
}

// TableName 指定表名
func (SpecsOrder) TableName() string {
	return "specs_orders"
}
