package models

import "time"

// FrameStock 镜架库存
type FrameStock struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                   // 主键
	FrameRef  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"frame_ref"` // 镜架编号
	Name      string    `gorm:"type:varchar(255)" json:"name"`                          // 名称
	Quantity  int       `gorm:"not null;default:0" json:"quantity"`                     // 可用数量
	Reserved  int       `gorm:"not null;default:0" json:"reserved"`                     // 已占用数量
	UpdatedAt time.Time `json:"updated_at"`                                             // 更新时间
}

// TableName 指定表名
func (FrameStock) TableName() string {
	return "frame_stocks"
}

// InventoryReservation 订单镜架扣减记录（按订单幂等）
type InventoryReservation struct {
	ID           uint       `gorm:"primarykey" json:"id"`                                                               // 主键
	SpecsOrderID uint       `gorm:"uniqueIndex:idx_reservation_order_frame;not null" json:"specs_order_id"`             // 订单ID
	FrameRef     string     `gorm:"type:varchar(64);uniqueIndex:idx_reservation_order_frame;not null" json:"frame_ref"` // 镜架编号
	Quantity     int        `gorm:"not null" json:"quantity"`                                                           // 扣减数量
	ReleasedAt   *time.Time `json:"released_at"`                                                                        // 释放时间
	CreatedAt    time.Time  `json:"created_at"`                                                                         // 创建时间
}

// TableName 指定表名
func (InventoryReservation) TableName() string {
	return "inventory_reservations"
}
