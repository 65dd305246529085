package repository

// PrescriptionListFilter 处方列表过滤条件
type PrescriptionListFilter struct {
	Page      int
	PageSize  int
	PatientID uint
	DoctorID  uint
	Status    string
}

// SpecsOrderListFilter 配镜订单列表过滤条件
type SpecsOrderListFilter struct {
	Page      int
	PageSize  int
	StoreID   uint
	PatientID uint
	Status    string
	Keyword   string
}

// TaskListFilter 加工任务列表过滤条件
type TaskListFilter struct {
	Page         int
	PageSize     int
	SpecsOrderID uint
	StoreID      uint
	FitterID     uint
	Status       string
	PayoutStatus string
	OnlyActive   bool
}

// DeliveryListFilter 交付列表过滤条件
type DeliveryListFilter struct {
	Page     int
	PageSize int
	StoreID  uint
	Status   string
	Method   string
}

// NotificationListFilter 通知列表过滤条件
type NotificationListFilter struct {
	Page          int
	PageSize      int
	RecipientType string
	RecipientID   uint
	SpecsOrderID  uint
	Status        string
	UnreadOnly    bool
}
