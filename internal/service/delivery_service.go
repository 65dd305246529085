package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/logger"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/repository"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	pickupTokenBytes = 24
	pickupQRSize     = 256
)

// DeliveryService 交付与取件服务
type DeliveryService struct {
	deliveryRepo     repository.DeliveryRepository
	orderRepo        repository.SpecsOrderRepository
	prescriptionRepo repository.PrescriptionRepository
	notifier         *NotificationService
	cfg              config.WorkflowConfig
	now              func() time.Time
}

// NewDeliveryService 创建交付服务
func NewDeliveryService(
	deliveryRepo repository.DeliveryRepository,
	orderRepo repository.SpecsOrderRepository,
	prescriptionRepo repository.PrescriptionRepository,
	notifier *NotificationService,
	cfg config.WorkflowConfig,
) *DeliveryService {
	return &DeliveryService{
		deliveryRepo:     deliveryRepo,
		orderRepo:        orderRepo,
		prescriptionRepo: prescriptionRepo,
		notifier:         notifier,
		cfg:              cfg,
		now:              time.Now,
	}
}

var deliveryTransitions = map[string]map[string]bool{
	constants.DeliveryStatusReady: {
		constants.DeliveryStatusOutForDelivery: true,
		constants.DeliveryStatusDelivered:      true,
	},
	constants.DeliveryStatusOutForDelivery: {
		constants.DeliveryStatusOutForDelivery: true,
		constants.DeliveryStatusDelivered:      true,
		constants.DeliveryStatusFailed:         true,
	},
}

// CanTransitDelivery 判断交付状态能否流转
func CanTransitDelivery(from, to string) bool {
	return deliveryTransitions[from][to]
}

// ScheduleDeliveryInput 预约交付输入
type ScheduleDeliveryInput struct {
	Method         string
	ScheduledDate  *time.Time
	Address        string
	RecipientName  string
	RecipientPhone string
}

// Schedule 设置交付方式与收件信息，交付进入 out_for_delivery
func (s *DeliveryService) Schedule(ctx context.Context, actor Actor, deliveryID uint, input ScheduleDeliveryInput) (*models.Delivery, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	method := strings.TrimSpace(input.Method)
	switch method {
	case constants.DeliveryMethodPickup:
	case constants.DeliveryMethodCourier, constants.DeliveryMethodHomeDelivery:
		if strings.TrimSpace(input.Address) == "" {
			return nil, ErrDeliveryAddressNeeded
		}
	default:
		return nil, ErrInvalidDeliveryMethod
	}
	updates := map[string]interface{}{
		"method":          method,
		"address":         strings.TrimSpace(input.Address),
		"recipient_name":  strings.TrimSpace(input.RecipientName),
		"recipient_phone": strings.TrimSpace(input.RecipientPhone),
	}
	if input.ScheduledDate != nil {
		updates["scheduled_at"] = *input.ScheduledDate
	}
	return s.transit(ctx, deliveryID, constants.DeliveryStatusOutForDelivery, updates, func(order *models.SpecsOrder, delivery *models.Delivery) []NotificationEvent {
		when := "待定"
		if input.ScheduledDate != nil {
			when = input.ScheduledDate.Format(time.RFC3339)
		}
		return []NotificationEvent{
			deliveryEvent(order, delivery, constants.NotifyDeliveryScheduled, constants.RecipientPatient, order.PatientID,
				orderSubject(order, "交付已预约"),
				fmt.Sprintf("订单 %s 已预约交付，方式：%s，时间：%s。", order.OrderNo, method, when)),
		}
	})
}

// ShipDeliveryInput 发货输入
type ShipDeliveryInput struct {
	CourierService  string
	TrackingNumber  string
	ShippingCharges *decimal.Decimal
	ScheduledDate   *time.Time
}

// Ship 登记物流信息并通知患者已发货
func (s *DeliveryService) Ship(ctx context.Context, actor Actor, deliveryID uint, input ShipDeliveryInput) (*models.Delivery, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	if input.ShippingCharges != nil && input.ShippingCharges.IsNegative() {
		return nil, ErrInvalidOrderPricing
	}
	now := s.now()
	updates := map[string]interface{}{
		"courier_service": strings.TrimSpace(input.CourierService),
		"tracking_number": strings.TrimSpace(input.TrackingNumber),
		"shipped_at":      now,
	}
	if input.ShippingCharges != nil {
		updates["shipping_charges"] = models.NewMoneyFromDecimal(*input.ShippingCharges)
	}
	if input.ScheduledDate != nil {
		updates["scheduled_at"] = *input.ScheduledDate
	}
	return s.transit(ctx, deliveryID, constants.DeliveryStatusOutForDelivery, updates, func(order *models.SpecsOrder, delivery *models.Delivery) []NotificationEvent {
		return []NotificationEvent{
			deliveryEvent(order, delivery, constants.NotifyShipmentStarted, constants.RecipientPatient, order.PatientID,
				orderSubject(order, "眼镜已发货"),
				fmt.Sprintf("订单 %s 已发货，快递：%s，运单号：%s。", order.OrderNo, strings.TrimSpace(input.CourierService), strings.TrimSpace(input.TrackingNumber))),
		}
	})
}

// ConfirmDeliveredInput 签收确认输入（非扫码路径）
type ConfirmDeliveredInput struct {
	RecipientName string
	Feedback      string
	Rating        *int
}

// ConfirmDelivered 确认送达，订单随之进入 delivered
func (s *DeliveryService) ConfirmDelivered(ctx context.Context, actor Actor, deliveryID uint, input ConfirmDeliveredInput) (*models.Delivery, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	if input.Rating != nil && (*input.Rating < 1 || *input.Rating > 5) {
		return nil, ErrInvalidRating
	}
	now := s.now()
	updates := map[string]interface{}{
		"delivered_at":      now,
		"customer_feedback": strings.TrimSpace(input.Feedback),
	}
	if name := strings.TrimSpace(input.RecipientName); name != "" {
		updates["recipient_name"] = name
	}
	if input.Rating != nil {
		updates["rating"] = *input.Rating
	}
	return s.transit(ctx, deliveryID, constants.DeliveryStatusDelivered, updates, func(order *models.SpecsOrder, delivery *models.Delivery) []NotificationEvent {
		return []NotificationEvent{
			deliveryEvent(order, delivery, constants.NotifyDelivered, constants.RecipientPatient, order.PatientID,
				orderSubject(order, "眼镜已送达"),
				fmt.Sprintf("订单 %s 已签收，感谢您的信任。", order.OrderNo)),
			deliveryEvent(order, delivery, constants.NotifyDelivered, constants.RecipientAdmin, 0,
				orderSubject(order, "订单已交付"),
				fmt.Sprintf("订单 %s 已交付完成。", order.OrderNo)),
		}
	})
}

// MarkFailed 标记配送失败，交付进入 failed 终态
func (s *DeliveryService) MarkFailed(ctx context.Context, actor Actor, deliveryID uint, reason string) (*models.Delivery, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrFailureReasonRequired
	}
	updates := map[string]interface{}{
		"failure_reason": reason,
	}
	return s.transit(ctx, deliveryID, constants.DeliveryStatusFailed, updates, func(order *models.SpecsOrder, delivery *models.Delivery) []NotificationEvent {
		message := fmt.Sprintf("订单 %s 配送失败：%s", order.OrderNo, reason)
		return []NotificationEvent{
			deliveryEvent(order, delivery, constants.NotifyDeliveryFailed, constants.RecipientStore, order.StoreID, orderSubject(order, "配送失败"), message),
			deliveryEvent(order, delivery, constants.NotifyDeliveryFailed, constants.RecipientAdmin, 0, orderSubject(order, "配送失败"), message),
		}
	})
}

// transit 以当前状态为条件推进交付；进入 delivered 时同步推进订单与处方
func (s *DeliveryService) transit(
	ctx context.Context,
	deliveryID uint,
	to string,
	updates map[string]interface{},
	events func(order *models.SpecsOrder, delivery *models.Delivery) []NotificationEvent,
) (*models.Delivery, error) {
	delivery, err := s.loadDelivery(deliveryID)
	if err != nil {
		return nil, err
	}
	if !CanTransitDelivery(delivery.Status, to) {
		return nil, ErrDeliveryStatusInvalid
	}
	order, err := s.loadOrder(delivery.SpecsOrderID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	updates["status"] = to
	updates["updated_at"] = now

	var notificationIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.deliveryRepo.WithTx(tx).UpdateWhereStatus(delivery.ID, []string{delivery.Status}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDeliveryConflict
		}
		if to == constants.DeliveryStatusDelivered {
			if err := s.completeOrder(tx, order, now); err != nil {
				return err
			}
		}
		ids, err := s.notifier.Record(tx, events(order, delivery)...)
		if err != nil {
			return err
		}
		notificationIDs = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, order, notificationIDs)
	return s.loadDelivery(delivery.ID)
}

func (s *DeliveryService) completeOrder(tx *gorm.DB, order *models.SpecsOrder, now time.Time) error {
	if err := transitOrder(s.orderRepo.WithTx(tx), order, constants.OrderStatusDelivered, map[string]interface{}{
		"actual_delivery_date": now,
		"updated_at":           now,
	}); err != nil {
		return err
	}
	_, err := s.prescriptionRepo.WithTx(tx).UpdateStatus(order.PrescriptionID,
		[]string{constants.PrescriptionStatusOrderCreated, constants.PrescriptionStatusInProgress},
		constants.PrescriptionStatusCompleted)
	return err
}

// PickupPayload 取件二维码载荷
type PickupPayload struct {
	Kind       string `json:"kind"`
	DeliveryID uint   `json:"deliveryId"`
	Token      string `json:"token"`
	Exp        string `json:"exp"`
}

// PickupToken 取件令牌签发结果，明文令牌仅在此返回一次
type PickupToken struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Payload   PickupPayload `json:"payload"`
	QRPayload string        `json:"qr_payload"`
	QRImage   string        `json:"qr_image"`
}

// GeneratePickupToken 签发取件令牌；重新签发会覆盖旧令牌，旧令牌立即失效
func (s *DeliveryService) GeneratePickupToken(ctx context.Context, actor Actor, deliveryID uint, ttl time.Duration) (*PickupToken, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	if ttl < 0 {
		return nil, ErrInvalidTokenTTL
	}
	if ttl == 0 {
		ttl = s.cfg.PickupTokenTTL()
	}
	delivery, err := s.loadDelivery(deliveryID)
	if err != nil {
		return nil, err
	}
	if !pickupReissuable(delivery.Status) {
		return nil, ErrPickupNotAllowed
	}

	token, err := newPickupToken()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	issuedAt := s.now()
	expiresAt := issuedAt.Add(ttl)
	ok, err := s.deliveryRepo.IssuePickupToken(delivery.ID, string(hash), issuedAt, expiresAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDeliveryConflict
	}

	payload := PickupPayload{
		Kind:       constants.PickupPayloadKind,
		DeliveryID: delivery.ID,
		Token:      token,
		Exp:        expiresAt.UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(string(raw), qrcode.Medium, pickupQRSize)
	if err != nil {
		return nil, err
	}
	logger.Infow("pickup_token_issued",
		"delivery_id", delivery.ID,
		"actor_id", actor.ID,
		"expires_at", expiresAt,
	)
	return &PickupToken{
		Token:     token,
		ExpiresAt: expiresAt,
		Payload:   payload,
		QRPayload: string(raw),
		QRImage:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

func newPickupToken() (string, error) {
	buf := make([]byte, pickupTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// PickupResult 扫码核销结果
type PickupResult struct {
	Valid    bool             `json:"valid"`
	Reason   string           `json:"reason,omitempty"`
	Delivery *models.Delivery `json:"delivery,omitempty"`
}

func rejectPickup(err error) (*PickupResult, error) {
	return &PickupResult{Valid: false, Reason: err.Error()}, err
}

// VerifyPickup 核验并核销取件令牌
// 校验顺序：令牌不匹配、已使用、已过期；核销为单条条件更新，并发请求仅一次成功。
func (s *DeliveryService) VerifyPickup(ctx context.Context, actor Actor, deliveryID uint, token, recipientName string) (*PickupResult, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrPickupTokenRequired
	}
	delivery, err := s.loadDelivery(deliveryID)
	if err != nil {
		return nil, err
	}
	if !pickupTokenMatches(delivery.QRTokenHash, token) {
		return rejectPickup(ErrPickupTokenInvalid)
	}
	if delivery.QRTokenUsedAt != nil {
		return rejectPickup(ErrPickupTokenUsed)
	}
	now := s.now()
	if delivery.QRTokenExpiresAt == nil || now.After(*delivery.QRTokenExpiresAt) {
		return rejectPickup(ErrPickupTokenExpired)
	}
	if delivery.Status == constants.DeliveryStatusDelivered {
		return rejectPickup(ErrPickupAlreadyDelivered)
	}
	if !pickupOpen(delivery.Status) {
		return nil, ErrPickupNotAllowed
	}
	order, err := s.loadOrder(delivery.SpecsOrderID)
	if err != nil {
		return nil, err
	}

	recipientName = strings.TrimSpace(recipientName)
	var notificationIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.deliveryRepo.WithTx(tx).ConsumePickupToken(delivery.ID, delivery.QRTokenHash, now, recipientName)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDeliveryConflict
		}
		if err := s.completeOrder(tx, order, now); err != nil {
			return err
		}
		ids, err := s.notifier.Record(tx, deliveryEvent(order, delivery, constants.NotifyPickupConfirmed, constants.RecipientPatient, order.PatientID,
			orderSubject(order, "取件成功"),
			fmt.Sprintf("订单 %s 已完成到店取件。", order.OrderNo)))
		if err != nil {
			return err
		}
		notificationIDs = ids
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDeliveryConflict) {
			return s.explainLostPickup(delivery)
		}
		return nil, err
	}
	s.afterCommit(ctx, order, notificationIDs)
	updated, err := s.loadDelivery(delivery.ID)
	if err != nil {
		return nil, err
	}
	logger.Infow("pickup_verified",
		"delivery_id", delivery.ID,
		"order_id", order.ID,
		"actor_id", actor.ID,
	)
	return &PickupResult{Valid: true, Delivery: updated}, nil
}

// explainLostPickup 条件核销未命中时重新读取交付记录并给出原因
func (s *DeliveryService) explainLostPickup(previous *models.Delivery) (*PickupResult, error) {
	current, err := s.loadDelivery(previous.ID)
	if err != nil {
		return nil, err
	}
	if current.QRTokenHash != previous.QRTokenHash {
		return rejectPickup(ErrPickupTokenInvalid)
	}
	if current.QRTokenUsedAt != nil {
		return rejectPickup(ErrPickupTokenUsed)
	}
	if current.Status == constants.DeliveryStatusDelivered {
		return rejectPickup(ErrPickupAlreadyDelivered)
	}
	if !pickupOpen(current.Status) {
		return nil, ErrPickupNotAllowed
	}
	return nil, ErrDeliveryConflict
}

// pickupOpen 交付仍在等待取件或配送中
func pickupOpen(status string) bool {
	return status == constants.DeliveryStatusReady || status == constants.DeliveryStatusOutForDelivery
}

// pickupReissuable 已交付的记录也可补发令牌，失败的交付不再签发
func pickupReissuable(status string) bool {
	return pickupOpen(status) || status == constants.DeliveryStatusDelivered
}

func pickupTokenMatches(hash, token string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// Get 获取交付记录
func (s *DeliveryService) Get(deliveryID uint) (*models.Delivery, error) {
	return s.loadDelivery(deliveryID)
}

// GetByOrderID 获取订单的交付记录
func (s *DeliveryService) GetByOrderID(orderID uint) (*models.Delivery, error) {
	delivery, err := s.deliveryRepo.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	return delivery, nil
}

// List 交付列表，门店只能看到本店交付
func (s *DeliveryService) List(actor Actor, filter repository.DeliveryListFilter) ([]models.Delivery, int64, error) {
	if actor.Is(constants.RoleStore) {
		filter.StoreID = actor.ID
	}
	return s.deliveryRepo.List(filter)
}

func (s *DeliveryService) loadDelivery(id uint) (*models.Delivery, error) {
	delivery, err := s.deliveryRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	return delivery, nil
}

func (s *DeliveryService) loadOrder(id uint) (*models.SpecsOrder, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *DeliveryService) afterCommit(ctx context.Context, order *models.SpecsOrder, notificationIDs []uint) {
	invalidateWorkflowCache(ctx, order)
	s.notifier.Publish(ctx, notificationIDs)
}
