package models

import (
	"time"

	"gorm.io/gorm"
)

// LensCuttingTask 割边加工任务
type LensCuttingTask struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                                    // 主键
	TaskNo              string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"task_no"`    // 任务编号
	SpecsOrderID        uint           `gorm:"index;not null" json:"specs_order_id"`                    // 订单ID
	FitterID            uint           `gorm:"index;not null" json:"fitter_id"`                         // 加工师ID
	AssignedBy          uint           `gorm:"not null" json:"assigned_by"`                             // 派单人
	TaskType            string         `gorm:"type:varchar(30);not null" json:"task_type"`              // 任务类型
	FrameSize           string         `gorm:"type:varchar(30)" json:"frame_size"`                      // 镜架尺寸
	SpecialInstructions string         `gorm:"type:text" json:"special_instructions"`                   // 特殊加工说明
	EstimatedMinutes    int            `gorm:"not null;default:0" json:"estimated_minutes"`             // 预计耗时（分钟）
	Deadline            *time.Time     `json:"deadline"`                                                // 截止时间
	JobCharge           Money          `gorm:"type:decimal(12,2);not null;default:0" json:"job_charge"` // 加工费
	PayoutStatus        string         `gorm:"type:varchar(20);index;not null" json:"payout_status"`    // 结算状态
	PayoutReleasedAt    *time.Time     `json:"payout_released_at"`                                      // 结算时间
	Status              string         `gorm:"type:varchar(20);index;not null" json:"status"`           // 任务状态
	Progress            int            `gorm:"not null;default:0" json:"progress"`                      // 进度 0-100
	Active              bool           `gorm:"index;not null;default:true" json:"active"`               // 是否为订单当前任务
	AssignedAt          time.Time      `gorm:"not null" json:"assigned_at"`                             // 派单时间
	StartedAt           *time.Time     `json:"started_at"`                                              // 开工时间
	CompletedAt         *time.Time     `json:"completed_at"`                                            // 完工时间
	WorkRemarks         string         `gorm:"type:text" json:"work_remarks"`                           // 作业备注
	WorkPhotos          StringArray    `gorm:"type:json" json:"work_photos"`                            // 作业照片
	QCStatus            string         `gorm:"column:qc_status;type:varchar(10)" json:"qc_status"`      // 质检结果
	QCReason            string         `gorm:"column:qc_reason;type:text" json:"qc_reason"`             // 质检说明
	QCCheckedBy         *uint          `gorm:"column:qc_checked_by" json:"qc_checked_by"`               // 质检人
	QCCheckedAt         *time.Time     `gorm:"column:qc_checked_at" json:"qc_checked_at"`               // 质检时间
	ReworkRequired      bool           `gorm:"not null;default:false" json:"rework_required"`           // 是否需要返工
	ReworkReason        string         `gorm:"type:text" json:"rework_reason"`                          // 返工原因
	ReworkOfTaskID      *uint          `gorm:"index" json:"rework_of_task_id"`                          // 返工来源任务
	SentToStoreAt       *time.Time     `json:"sent_to_store_at"`                                        // 送店时间
	TrackingInfo        string         `gorm:"type:varchar(255)" json:"tracking_info"`                  // 送店物流信息
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                                 // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                          // 软删除时间
}

// TableName 指定表名
func (LensCuttingTask) TableName() string {
	return "lens_cutting_tasks"
}
