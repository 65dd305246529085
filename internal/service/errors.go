package service

import "errors"

// 错误类别，HTTP 层按类别映射响应码
var (
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrValidation        = errors.New("validation failed")
	ErrToken             = errors.New("token error")
	ErrConflict          = errors.New("conflict")
)

// kindError 带类别的业务错误，errors.Is 可同时匹配自身与类别
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Unwrap() error {
	return e.kind
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// 资源不存在
var (
	ErrPrescriptionNotFound = newKindError(ErrNotFound, "prescription not found")
	ErrOrderNotFound        = newKindError(ErrNotFound, "specs order not found")
	ErrTaskNotFound         = newKindError(ErrNotFound, "lens cutting task not found")
	ErrDeliveryNotFound     = newKindError(ErrNotFound, "delivery not found")
	ErrNotificationNotFound = newKindError(ErrNotFound, "notification not found")
	ErrFrameNotFound        = newKindError(ErrNotFound, "frame not found")
)

// 非法状态流转
var (
	ErrPrescriptionNotPrescribed = newKindError(ErrIllegalTransition, "prescription is not in prescribed state")
	ErrOrderStatusInvalid        = newKindError(ErrIllegalTransition, "order status does not allow this operation")
	ErrTaskStatusInvalid         = newKindError(ErrIllegalTransition, "task status does not allow this operation")
	ErrTaskInactive              = newKindError(ErrIllegalTransition, "task is no longer active")
	ErrTaskNotReworkable         = newKindError(ErrIllegalTransition, "task is not waiting for rework")
	ErrQCFailedRequiresRework    = newKindError(ErrIllegalTransition, "qc failed, rework is required before sending to store")
	ErrPayoutRequiresQCPass      = newKindError(ErrIllegalTransition, "payout requires a passed quality check")
	ErrDeliveryStatusInvalid     = newKindError(ErrIllegalTransition, "delivery status does not allow this operation")
	ErrPickupNotAllowed          = newKindError(ErrIllegalTransition, "delivery is not waiting for pickup")
)

// 参数校验
var (
	ErrActorRequired         = newKindError(ErrValidation, "actor is required")
	ErrInvalidPrescription   = newKindError(ErrValidation, "invalid prescription values")
	ErrInvalidOrderPricing   = newKindError(ErrValidation, "invalid order pricing")
	ErrInvalidOrderInput     = newKindError(ErrValidation, "invalid order input")
	ErrPatientMismatch       = newKindError(ErrValidation, "patient does not match prescription")
	ErrFitterRequired        = newKindError(ErrValidation, "fitter is required")
	ErrInvalidTaskInput      = newKindError(ErrValidation, "invalid task input")
	ErrInvalidProgress       = newKindError(ErrValidation, "progress must be between 0 and 100")
	ErrInvalidQCStatus       = newKindError(ErrValidation, "qc status must be pass or fail")
	ErrQCCheckerRequired     = newKindError(ErrValidation, "qc checked by is required")
	ErrInvalidPayoutStatus   = newKindError(ErrValidation, "invalid payout status")
	ErrInvalidJobCharge      = newKindError(ErrValidation, "job charge must not be negative")
	ErrInvalidDeliveryMethod = newKindError(ErrValidation, "invalid delivery method")
	ErrDeliveryAddressNeeded = newKindError(ErrValidation, "address is required for shipped delivery")
	ErrInvalidRating         = newKindError(ErrValidation, "rating must be between 1 and 5")
	ErrInvalidTokenTTL       = newKindError(ErrValidation, "token ttl must be positive")
	ErrPickupTokenRequired   = newKindError(ErrValidation, "pickup token is required")
	ErrFailureReasonRequired = newKindError(ErrValidation, "failure reason is required")
	ErrInvalidNotification   = newKindError(ErrValidation, "invalid notification event")
	ErrNotificationNoContact = newKindError(ErrValidation, "notification recipient has no contact")
)

// 取件令牌校验失败，消息即对外返回的原因
var (
	ErrPickupTokenInvalid     = newKindError(ErrToken, "Invalid token")
	ErrPickupTokenUsed        = newKindError(ErrToken, "Token already used")
	ErrPickupTokenExpired     = newKindError(ErrToken, "Token expired")
	ErrPickupAlreadyDelivered = newKindError(ErrToken, "Delivery already completed")
)

// 并发冲突
var (
	ErrOrderConflict      = newKindError(ErrConflict, "specs order was modified concurrently")
	ErrTaskConflict       = newKindError(ErrConflict, "lens cutting task was modified concurrently")
	ErrDeliveryConflict   = newKindError(ErrConflict, "delivery was modified concurrently")
	ErrActiveTaskExists   = newKindError(ErrConflict, "order already has an active task")
	ErrDeliveryExists     = newKindError(ErrConflict, "order already has a delivery")
	ErrFrameOutOfStock    = newKindError(ErrConflict, "frame is out of stock")
	ErrOrderNoExhausted   = newKindError(ErrConflict, "failed to allocate a unique number")
	ErrNotificationClosed = newKindError(ErrConflict, "notification is no longer pending")
)

// ErrNotificationDeadLettered 通知重试耗尽，已进入失败终态
var ErrNotificationDeadLettered = errors.New("notification dead lettered")
