package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LensPrescription 验光处方（除状态外创建后不可变更）
type LensPrescription struct {
	ID                  uint            `gorm:"primarykey" json:"id"`                                       // 主键
	PatientID           uint            `gorm:"index;not null" json:"patient_id"`                           // 患者ID
	DoctorID            uint            `gorm:"index;not null" json:"doctor_id"`                            // 开方医生ID
	PrescribedAt        time.Time       `gorm:"not null" json:"prescribed_at"`                              // 开方日期
	RightSphere         decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"right_sphere"`   // 右眼球镜
	RightCylinder       decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"right_cylinder"` // 右眼柱镜
	RightAxis           int             `gorm:"not null;default:0" json:"right_axis"`                       // 右眼轴位
	RightAddition       decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"right_addition"` // 右眼下加光
	LeftSphere          decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"left_sphere"`    // 左眼球镜
	LeftCylinder        decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"left_cylinder"`  // 左眼柱镜
	LeftAxis            int             `gorm:"not null;default:0" json:"left_axis"`                        // 左眼轴位
	LeftAddition        decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"left_addition"`  // 左眼下加光
	PupillaryDistance   decimal.Decimal `gorm:"type:decimal(5,1);not null" json:"pupillary_distance"`       // 瞳距（mm）
	LensType            string          `gorm:"type:varchar(50);not null" json:"lens_type"`                 // 镜片类型（单光/渐进等）
	LensMaterial        string          `gorm:"type:varchar(50)" json:"lens_material"`                      // 镜片材质
	FrameRecommendation string          `gorm:"type:varchar(255)" json:"frame_recommendation"`              // 推荐镜架
	Coatings            StringArray     `gorm:"type:json" json:"coatings"`                                  // 镀膜
	Tints               StringArray     `gorm:"type:json" json:"tints"`                                     // 染色
	Instructions        string          `gorm:"type:text" json:"instructions"`                              // 医嘱
	Status              string          `gorm:"type:varchar(20);index;not null" json:"status"`              // 处方状态
	CreatedAt           time.Time       `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt           time.Time       `gorm:"index" json:"updated_at"`                                    // 更新时间
	DeletedAt           gorm.DeletedAt  `gorm:"index" json:"-"`                                             // 软删除时间
}

// TableName 指定表名
func (LensPrescription) TableName() string {
	return "lens_prescriptions"
}
