package service

import (
	"context"
	"time"

	"github.com/specsflow-next/internal/cache"
	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/repository"
)

const workflowStatusCacheTTL = 15 * time.Second

// 订单主流程
var orderStatusFlow = []string{
	constants.OrderStatusDraft,
	constants.OrderStatusConfirmed,
	constants.OrderStatusAssigned,
	constants.OrderStatusInProgress,
	constants.OrderStatusCompleted,
	constants.OrderStatusDelivered,
}

// 流程节点状态
const (
	StepDone     = "done"
	StepCurrent  = "current"
	StepPending  = "pending"
	StepCanceled = "canceled"
)

// WorkflowService 工作流编排查询
type WorkflowService struct {
	orderRepo        repository.SpecsOrderRepository
	prescriptionRepo repository.PrescriptionRepository
	taskRepo         repository.LensTaskRepository
	deliveryRepo     repository.DeliveryRepository
	notificationRepo repository.NotificationRepository
	now              func() time.Time
}

// NewWorkflowService 创建工作流查询服务
func NewWorkflowService(
	orderRepo repository.SpecsOrderRepository,
	prescriptionRepo repository.PrescriptionRepository,
	taskRepo repository.LensTaskRepository,
	deliveryRepo repository.DeliveryRepository,
	notificationRepo repository.NotificationRepository,
) *WorkflowService {
	return &WorkflowService{
		orderRepo:        orderRepo,
		prescriptionRepo: prescriptionRepo,
		taskRepo:         taskRepo,
		deliveryRepo:     deliveryRepo,
		notificationRepo: notificationRepo,
		now:              time.Now,
	}
}

// WorkflowStep 流程节点
type WorkflowStep struct {
	Name   string     `json:"name"`
	Status string     `json:"status"`
	At     *time.Time `json:"at,omitempty"`
}

// WorkflowStatus 订单全流程进度
type WorkflowStatus struct {
	Order              *models.SpecsOrder       `json:"order"`
	PrescriptionStatus string                   `json:"prescription_status"`
	CurrentTask        *models.LensCuttingTask  `json:"current_task,omitempty"`
	Tasks              []models.LensCuttingTask `json:"tasks"`
	Delivery           *models.Delivery         `json:"delivery,omitempty"`
	PickupTokenActive  bool                     `json:"pickup_token_active"`
	NotificationCount  int64                    `json:"notification_count"`
	Steps              []WorkflowStep           `json:"steps"`
}

// GetWorkflowStatus 获取订单全流程进度
func (s *WorkflowService) GetWorkflowStatus(ctx context.Context, orderID uint) (*WorkflowStatus, error) {
	cacheKey := cache.WorkflowStatusKey(orderID)
	var cached WorkflowStatus
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	status, err := s.build(order)
	if err != nil {
		return nil, err
	}
	_ = cache.SetJSON(ctx, cacheKey, status, workflowStatusCacheTTL)
	return status, nil
}

// GetWorkflowStatusByOrderNo 患者按订单号查询进度，仅能查看本人订单
func (s *WorkflowService) GetWorkflowStatusByOrderNo(ctx context.Context, actor Actor, orderNo string) (*WorkflowStatus, error) {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if actor.Is(constants.RolePatient) && order.PatientID != actor.ID {
		return nil, ErrOrderNotFound
	}
	return s.GetWorkflowStatus(ctx, order.ID)
}

func (s *WorkflowService) build(order *models.SpecsOrder) (*WorkflowStatus, error) {
	prescription, err := s.prescriptionRepo.GetByID(order.PrescriptionID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.ListByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	delivery, err := s.deliveryRepo.GetByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	notificationCount, err := s.notificationRepo.CountByOrderID(order.ID)
	if err != nil {
		return nil, err
	}

	result := &WorkflowStatus{
		Order:             order,
		Tasks:             tasks,
		Delivery:          delivery,
		NotificationCount: notificationCount,
	}
	if prescription != nil {
		result.PrescriptionStatus = prescription.Status
	}
	for i := range tasks {
		if tasks[i].Active {
			task := tasks[i]
			result.CurrentTask = &task
			break
		}
	}
	if delivery != nil {
		result.PickupTokenActive = pickupOpen(delivery.Status) &&
			delivery.QRTokenHash != "" &&
			delivery.QRTokenUsedAt == nil &&
			delivery.QRTokenExpiresAt != nil &&
			s.now().Before(*delivery.QRTokenExpiresAt)
	}
	result.Steps = buildWorkflowSteps(order, tasks, delivery)
	return result, nil
}

func buildWorkflowSteps(order *models.SpecsOrder, tasks []models.LensCuttingTask, delivery *models.Delivery) []WorkflowStep {
	current := -1
	for i, status := range orderStatusFlow {
		if status == order.Status {
			current = i
			break
		}
	}
	canceled := order.Status == constants.OrderStatusCanceled
	lastReached := -1
	if canceled {
		lastReached = lastReachedBeforeCancel(order, tasks, delivery)
	}

	steps := make([]WorkflowStep, 0, len(orderStatusFlow))
	for i, name := range orderStatusFlow {
		step := WorkflowStep{Name: name, At: stepTime(name, order, tasks, delivery)}
		switch {
		case canceled && i <= lastReached:
			step.Status = StepDone
		case canceled:
			step.Status = StepCanceled
		case i < current || (i == current && name == constants.OrderStatusDelivered):
			step.Status = StepDone
		case i == current:
			step.Status = StepCurrent
		default:
			step.Status = StepPending
		}
		steps = append(steps, step)
	}
	return steps
}

func lastReachedBeforeCancel(order *models.SpecsOrder, tasks []models.LensCuttingTask, delivery *models.Delivery) int {
	reached := 0
	for i, name := range orderStatusFlow {
		if stepTime(name, order, tasks, delivery) != nil {
			reached = i
		}
	}
	return reached
}

func stepTime(name string, order *models.SpecsOrder, tasks []models.LensCuttingTask, delivery *models.Delivery) *time.Time {
	switch name {
	case constants.OrderStatusDraft:
		at := order.OrderDate
		return &at
	case constants.OrderStatusConfirmed:
		return order.ConfirmedAt
	case constants.OrderStatusAssigned:
		if len(tasks) > 0 {
			at := tasks[0].AssignedAt
			for _, task := range tasks {
				if task.AssignedAt.Before(at) {
					at = task.AssignedAt
				}
			}
			return &at
		}
	case constants.OrderStatusInProgress:
		for _, task := range tasks {
			if task.CompletedAt != nil {
				return task.CompletedAt
			}
		}
	case constants.OrderStatusCompleted:
		for _, task := range tasks {
			if task.SentToStoreAt != nil {
				return task.SentToStoreAt
			}
		}
	case constants.OrderStatusDelivered:
		if delivery != nil && delivery.DeliveredAt != nil {
			return delivery.DeliveredAt
		}
		return order.ActualDeliveryDate
	}
	return nil
}
