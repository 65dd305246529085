package constants

// 处方状态
const (
	PrescriptionStatusPrescribed   = "prescribed"
	PrescriptionStatusOrderCreated = "order_created"
	PrescriptionStatusInProgress   = "in_progress"
	PrescriptionStatusCompleted    = "completed"
)

// 配镜订单状态
const (
	OrderStatusDraft      = "draft"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusAssigned   = "assigned"
	OrderStatusInProgress = "in_progress" // 加工完成，待交付
	OrderStatusCompleted  = "completed"   // 已送达门店
	OrderStatusDelivered  = "delivered"
	OrderStatusCanceled   = "canceled"
)

// 订单优先级
const (
	OrderPriorityNormal = "normal"
	OrderPriorityUrgent = "urgent"
)

// 割边任务状态
const (
	TaskStatusAssigned     = "assigned"
	TaskStatusInProgress   = "in_progress"
	TaskStatusCompleted    = "completed"
	TaskStatusQualityCheck = "quality_check"
	TaskStatusSentToStore  = "sent_to_store"
)

// 任务类型
const (
	TaskTypeLensCutting = "lens_cutting"
	TaskTypeRework      = "rework"
)

// 质检结果
const (
	QCStatusPass = "pass"
	QCStatusFail = "fail"
)

// 结算状态
const (
	PayoutStatusPending = "pending"
	PayoutStatusPaid    = "paid"
	PayoutStatusHold    = "hold"
)

// 交付方式
const (
	DeliveryMethodPickup       = "pickup"
	DeliveryMethodCourier      = "courier"
	DeliveryMethodHomeDelivery = "home_delivery"
)

// 交付状态
const (
	DeliveryStatusReady          = "ready"
	DeliveryStatusOutForDelivery = "out_for_delivery"
	DeliveryStatusDelivered      = "delivered"
	DeliveryStatusFailed         = "failed"
)

// 取件二维码载荷类型
const (
	PickupPayloadKind = "delivery_pickup"
)

// 通知接收方类型
const (
	RecipientFitter  = "fitter"
	RecipientStore   = "store"
	RecipientPatient = "patient"
	RecipientAdmin   = "admin"
	RecipientDoctor  = "doctor"
)

// 通知类型
const (
	NotifyOrderCreated      = "order_created"
	NotifyOrderConfirmed    = "order_confirmed"
	NotifyOrderCanceled     = "order_canceled"
	NotifyTaskAssigned      = "task_assigned"
	NotifyTaskCompleted     = "task_completed"
	NotifyQCResult          = "qc_result"
	NotifyPayoutReleased    = "payout_released"
	NotifySentToStore       = "sent_to_store"
	NotifyReadyForPickup    = "ready_for_pickup"
	NotifyDeliveryScheduled = "delivery_scheduled"
	NotifyShipmentStarted   = "shipment_started"
	NotifyPickupConfirmed   = "pickup_confirmed"
	NotifyDelivered         = "delivered"
	NotifyDeliveryFailed    = "delivery_failed"
)

// 通知投递状态
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

// 操作人角色
const (
	RoleDoctor  = "doctor"
	RoleStore   = "store"
	RoleFitter  = "fitter"
	RoleCourier = "courier"
	RoleAdmin   = "admin"
	RolePatient = "patient"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)
