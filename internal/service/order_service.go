package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderService 配镜订单服务（订单台账）
type OrderService struct {
	orderRepo        repository.SpecsOrderRepository
	prescriptionRepo repository.PrescriptionRepository
	taskRepo         repository.LensTaskRepository
	deliveryRepo     repository.DeliveryRepository
	inventory        InventoryGateway
	invoices         InvoiceGateway
	notifier         *NotificationService
	numbers          NumberGenerator
	cfg              config.WorkflowConfig
	now              func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(
	orderRepo repository.SpecsOrderRepository,
	prescriptionRepo repository.PrescriptionRepository,
	taskRepo repository.LensTaskRepository,
	deliveryRepo repository.DeliveryRepository,
	inventory InventoryGateway,
	invoices InvoiceGateway,
	notifier *NotificationService,
	cfg config.WorkflowConfig,
) *OrderService {
	return &OrderService{
		orderRepo:        orderRepo,
		prescriptionRepo: prescriptionRepo,
		taskRepo:         taskRepo,
		deliveryRepo:     deliveryRepo,
		inventory:        inventory,
		invoices:         invoices,
		notifier:         notifier,
		numbers:          RandomNumberGenerator{},
		cfg:              cfg,
		now:              time.Now,
	}
}

// SetNumberGenerator 替换编号生成器
func (s *OrderService) SetNumberGenerator(gen NumberGenerator) {
	if gen != nil {
		s.numbers = gen
	}
}

// 订单状态机，取消为任意非终态均可进入的出口
var orderTransitions = map[string]map[string]bool{
	constants.OrderStatusDraft: {
		constants.OrderStatusConfirmed: true,
		constants.OrderStatusCanceled:  true,
	},
	constants.OrderStatusConfirmed: {
		constants.OrderStatusAssigned: true,
		constants.OrderStatusCanceled: true,
	},
	constants.OrderStatusAssigned: {
		constants.OrderStatusInProgress: true,
		constants.OrderStatusCanceled:   true,
	},
	constants.OrderStatusInProgress: {
		constants.OrderStatusCompleted: true,
		constants.OrderStatusCanceled:  true,
	},
	constants.OrderStatusCompleted: {
		constants.OrderStatusDelivered: true,
		constants.OrderStatusCanceled:  true,
	},
}

// CanTransitOrder 判断订单状态能否流转，同状态视为无操作
func CanTransitOrder(from, to string) bool {
	if from == to {
		return true
	}
	return orderTransitions[from][to]
}

// transitOrder 以当前状态为条件推进订单，命中 0 行视为并发冲突
func transitOrder(repo repository.SpecsOrderRepository, order *models.SpecsOrder, to string, updates map[string]interface{}) error {
	if order.Status == to {
		return nil
	}
	if !CanTransitOrder(order.Status, to) {
		return ErrOrderStatusInvalid
	}
	ok, err := repo.TransitionStatus(order.ID, []string{order.Status}, to, updates)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOrderConflict
	}
	order.Status = to
	return nil
}

// OrderPricing 订单计价输入，价格由调用方提供
type OrderPricing struct {
	FramePrice        decimal.Decimal
	LensPrice         decimal.Decimal
	CoatingPrice      decimal.Decimal
	AdditionalCharges decimal.Decimal
	Tax               *decimal.Decimal
	Discount          decimal.Decimal
}

// OrderTotals 订单计价结果
type OrderTotals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Discount    decimal.Decimal
	TotalAmount decimal.Decimal
}

// ComputeOrderTotals 计算小计与应付总额：subtotal = 各项之和，total = subtotal + tax - discount
func ComputeOrderTotals(pricing OrderPricing, taxRate decimal.Decimal) (OrderTotals, error) {
	parts := []decimal.Decimal{pricing.FramePrice, pricing.LensPrice, pricing.CoatingPrice, pricing.AdditionalCharges, pricing.Discount}
	for _, part := range parts {
		if part.IsNegative() {
			return OrderTotals{}, ErrInvalidOrderPricing
		}
	}
	subtotal := pricing.FramePrice.Round(2).
		Add(pricing.LensPrice.Round(2)).
		Add(pricing.CoatingPrice.Round(2)).
		Add(pricing.AdditionalCharges.Round(2))

	var tax decimal.Decimal
	if pricing.Tax != nil {
		if pricing.Tax.IsNegative() {
			return OrderTotals{}, ErrInvalidOrderPricing
		}
		tax = pricing.Tax.Round(2)
	} else {
		tax = subtotal.Mul(taxRate).Round(2)
	}
	discount := pricing.Discount.Round(2)
	total := subtotal.Add(tax).Sub(discount)
	if total.IsNegative() {
		return OrderTotals{}, ErrInvalidOrderPricing
	}
	return OrderTotals{
		Subtotal:    subtotal,
		Tax:         tax,
		Discount:    discount,
		TotalAmount: total.Round(2),
	}, nil
}

// CreateSpecsOrderInput 创建配镜订单输入
type CreateSpecsOrderInput struct {
	PrescriptionID       uint
	PatientID            uint
	StoreID              uint
	FrameRef             string
	Pricing              OrderPricing
	Priority             string
	ExpectedDeliveryDate *time.Time
	Notes                string
}

// Create 由处方创建草稿订单，并将处方推进到 order_created
func (s *OrderService) Create(ctx context.Context, actor Actor, input CreateSpecsOrderInput) (*models.SpecsOrder, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	if input.PrescriptionID == 0 || input.StoreID == 0 {
		return nil, ErrInvalidOrderInput
	}
	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = constants.OrderPriorityNormal
	}
	if priority != constants.OrderPriorityNormal && priority != constants.OrderPriorityUrgent {
		return nil, ErrInvalidOrderInput
	}
	totals, err := ComputeOrderTotals(input.Pricing, decimal.NewFromFloat(s.cfg.TaxRate))
	if err != nil {
		return nil, err
	}

	prescription, err := s.prescriptionRepo.GetByID(input.PrescriptionID)
	if err != nil {
		return nil, err
	}
	if prescription == nil {
		return nil, ErrPrescriptionNotFound
	}
	if prescription.Status != constants.PrescriptionStatusPrescribed {
		return nil, ErrPrescriptionNotPrescribed
	}
	if input.PatientID != 0 && input.PatientID != prescription.PatientID {
		return nil, ErrPatientMismatch
	}

	var order *models.SpecsOrder
	var notificationIDs []uint
	err = withUniqueNumber(s.numbers, orderNoPrefix, s.cfg.OrderNoAttempts(), s.now, func(orderNo string) error {
		now := s.now()
		candidate := &models.SpecsOrder{
			OrderNo:              orderNo,
			PrescriptionID:       prescription.ID,
			PatientID:            prescription.PatientID,
			StoreID:              input.StoreID,
			FrameRef:             strings.TrimSpace(input.FrameRef),
			FramePrice:           models.NewMoneyFromDecimal(input.Pricing.FramePrice),
			LensPrice:            models.NewMoneyFromDecimal(input.Pricing.LensPrice),
			CoatingPrice:         models.NewMoneyFromDecimal(input.Pricing.CoatingPrice),
			AdditionalCharges:    models.NewMoneyFromDecimal(input.Pricing.AdditionalCharges),
			Subtotal:             models.NewMoneyFromDecimal(totals.Subtotal),
			Tax:                  models.NewMoneyFromDecimal(totals.Tax),
			Discount:             models.NewMoneyFromDecimal(totals.Discount),
			TotalAmount:          models.NewMoneyFromDecimal(totals.TotalAmount),
			Status:               constants.OrderStatusDraft,
			Priority:             priority,
			OrderDate:            now,
			ExpectedDeliveryDate: input.ExpectedDeliveryDate,
			Notes:                strings.TrimSpace(input.Notes),
			CreatedBy:            actor.ID,
		}
		return models.DB.Transaction(func(tx *gorm.DB) error {
			ok, err := s.prescriptionRepo.WithTx(tx).UpdateStatus(prescription.ID, []string{constants.PrescriptionStatusPrescribed}, constants.PrescriptionStatusOrderCreated)
			if err != nil {
				return err
			}
			if !ok {
				return ErrOrderConflict
			}
			if err := s.orderRepo.WithTx(tx).Create(candidate); err != nil {
				return err
			}
			ids, err := s.notifier.Record(tx,
				orderEvent(candidate, constants.NotifyOrderCreated, constants.RecipientStore, candidate.StoreID,
					orderSubject(candidate, "新配镜订单"),
					fmt.Sprintf("订单 %s 已创建，应付金额 %s。", candidate.OrderNo, candidate.TotalAmount.String())),
				orderEvent(candidate, constants.NotifyOrderCreated, constants.RecipientDoctor, prescription.DoctorID,
					orderSubject(candidate, "处方已下单"),
					fmt.Sprintf("处方 #%d 已生成配镜订单 %s。", prescription.ID, candidate.OrderNo)),
			)
			if err != nil {
				return err
			}
			order = candidate
			notificationIDs = ids
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, order, notificationIDs)
	return order, nil
}

// Confirm 确认草稿订单：扣减镜架库存并开具发票，两者均按订单幂等
func (s *OrderService) Confirm(ctx context.Context, actor Actor, orderID uint) (*models.SpecsOrder, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	order, err := s.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.OrderStatusDraft {
		return nil, ErrOrderStatusInvalid
	}

	var notificationIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		now := s.now()
		if err := transitOrder(s.orderRepo.WithTx(tx), order, constants.OrderStatusConfirmed, map[string]interface{}{
			"confirmed_by": actor.ID,
			"confirmed_at": now,
			"updated_at":   now,
		}); err != nil {
			return err
		}
		order.ConfirmedBy = actor.idPtr()
		order.ConfirmedAt = &now
		if s.inventory != nil {
			if err := s.inventory.WithTx(tx).Deduct(order.ID, order.FrameRef); err != nil {
				return err
			}
		}
		if s.invoices != nil {
			if _, err := s.invoices.WithTx(tx).Issue(order); err != nil {
				return err
			}
		}
		ids, err := s.notifier.Record(tx,
			orderEvent(order, constants.NotifyOrderConfirmed, constants.RecipientPatient, order.PatientID,
				orderSubject(order, "订单已确认"),
				fmt.Sprintf("您的配镜订单 %s 已确认，我们将尽快安排加工。", order.OrderNo)),
			orderEvent(order, constants.NotifyOrderConfirmed, constants.RecipientStore, order.StoreID,
				orderSubject(order, "订单已确认"),
				fmt.Sprintf("订单 %s 已确认，请安排加工师。", order.OrderNo)),
		)
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
	return order, nil
}

// Cancel 取消订单：释放镜架、关闭在途任务与未完成交付
func (s *OrderService) Cancel(ctx context.Context, actor Actor, orderID uint, reason string) (*models.SpecsOrder, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	order, err := s.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == constants.OrderStatusCanceled || order.Status == constants.OrderStatusDelivered {
		return nil, ErrOrderStatusInvalid
	}
	reason = strings.TrimSpace(reason)

	var notificationIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		now := s.now()
		if err := transitOrder(s.orderRepo.WithTx(tx), order, constants.OrderStatusCanceled, map[string]interface{}{
			"canceled_at":   now,
			"cancel_reason": reason,
			"updated_at":    now,
		}); err != nil {
			return err
		}
		order.CanceledAt = &now
		order.CancelReason = reason
		if s.inventory != nil {
			if err := s.inventory.WithTx(tx).Release(order.ID); err != nil {
				return err
			}
		}
		if err := s.taskRepo.WithTx(tx).DeactivateByOrderID(order.ID); err != nil {
			return err
		}
		deliveryRepo := s.deliveryRepo.WithTx(tx)
		delivery, err := deliveryRepo.GetByOrderID(order.ID)
		if err != nil {
			return err
		}
		if delivery != nil {
			if _, err := deliveryRepo.UpdateWhereStatus(delivery.ID,
				[]string{constants.DeliveryStatusReady, constants.DeliveryStatusOutForDelivery},
				map[string]interface{}{
					"status":         constants.DeliveryStatusFailed,
					"failure_reason": "order canceled",
					"updated_at":     now,
				}); err != nil {
				return err
			}
		}
		message := fmt.Sprintf("订单 %s 已取消。", order.OrderNo)
		if reason != "" {
			message = fmt.Sprintf("订单 %s 已取消，原因：%s。", order.OrderNo, reason)
		}
		ids, err := s.notifier.Record(tx,
			orderEvent(order, constants.NotifyOrderCanceled, constants.RecipientStore, order.StoreID, orderSubject(order, "订单已取消"), message),
			orderEvent(order, constants.NotifyOrderCanceled, constants.RecipientPatient, order.PatientID, orderSubject(order, "订单已取消"), message),
		)
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
	return order, nil
}

// Get 获取订单
func (s *OrderService) Get(orderID uint) (*models.SpecsOrder, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// List 订单列表，患者与门店只能查看自己的订单
func (s *OrderService) List(actor Actor, filter repository.SpecsOrderListFilter) ([]models.SpecsOrder, int64, error) {
	switch actor.Role {
	case constants.RolePatient:
		filter.PatientID = actor.ID
	case constants.RoleStore:
		filter.StoreID = actor.ID
	}
	return s.orderRepo.List(filter)
}

func (s *OrderService) afterCommit(ctx context.Context, order *models.SpecsOrder, notificationIDs []uint) {
	invalidateWorkflowCache(ctx, order)
	s.notifier.Publish(ctx, notificationIDs)
}
