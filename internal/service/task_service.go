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

// TaskService 割边任务服务（派单、进度、质检、结算、送店）
type TaskService struct {
	taskRepo         repository.LensTaskRepository
	orderRepo        repository.SpecsOrderRepository
	prescriptionRepo repository.PrescriptionRepository
	deliveryRepo     repository.DeliveryRepository
	notifier         *NotificationService
	numbers          NumberGenerator
	cfg              config.WorkflowConfig
	now              func() time.Time
}

// NewTaskService 创建任务服务
func NewTaskService(
	taskRepo repository.LensTaskRepository,
	orderRepo repository.SpecsOrderRepository,
	prescriptionRepo repository.PrescriptionRepository,
	deliveryRepo repository.DeliveryRepository,
	notifier *NotificationService,
	cfg config.WorkflowConfig,
) *TaskService {
	return &TaskService{
		taskRepo:         taskRepo,
		orderRepo:        orderRepo,
		prescriptionRepo: prescriptionRepo,
		deliveryRepo:     deliveryRepo,
		notifier:         notifier,
		numbers:          RandomNumberGenerator{},
		cfg:              cfg,
		now:              time.Now,
	}
}

// SetNumberGenerator 替换编号生成器
func (s *TaskService) SetNumberGenerator(gen NumberGenerator) {
	if gen != nil {
		s.numbers = gen
	}
}

var taskTransitions = map[string]map[string]bool{
	constants.TaskStatusAssigned: {
		constants.TaskStatusInProgress: true,
		constants.TaskStatusCompleted:  true,
	},
	constants.TaskStatusInProgress: {
		constants.TaskStatusCompleted: true,
	},
	constants.TaskStatusCompleted: {
		constants.TaskStatusQualityCheck: true,
		constants.TaskStatusSentToStore:  true,
	},
	constants.TaskStatusQualityCheck: {
		constants.TaskStatusQualityCheck: true,
		constants.TaskStatusSentToStore:  true,
	},
}

// CanTransitTask 判断任务状态能否流转，同状态视为无操作
func CanTransitTask(from, to string) bool {
	if from == to {
		return true
	}
	return taskTransitions[from][to]
}

// TaskDetails 派单明细
type TaskDetails struct {
	FitterID            uint
	TaskType            string
	FrameSize           string
	SpecialInstructions string
	EstimatedMinutes    int
	Deadline            *time.Time
	JobCharge           decimal.Decimal
}

func (d TaskDetails) validate() error {
	if d.FitterID == 0 {
		return ErrFitterRequired
	}
	if d.EstimatedMinutes < 0 {
		return ErrInvalidTaskInput
	}
	if d.JobCharge.IsNegative() {
		return ErrInvalidJobCharge
	}
	return nil
}

func (s *TaskService) newTask(taskNo string, orderID uint, actor Actor, details TaskDetails, taskType string) *models.LensCuttingTask {
	if strings.TrimSpace(details.TaskType) != "" {
		taskType = strings.TrimSpace(details.TaskType)
	}
	return &models.LensCuttingTask{
		TaskNo:              taskNo,
		SpecsOrderID:        orderID,
		FitterID:            details.FitterID,
		AssignedBy:          actor.ID,
		TaskType:            taskType,
		FrameSize:           strings.TrimSpace(details.FrameSize),
		SpecialInstructions: strings.TrimSpace(details.SpecialInstructions),
		EstimatedMinutes:    details.EstimatedMinutes,
		Deadline:            details.Deadline,
		JobCharge:           models.NewMoneyFromDecimal(details.JobCharge),
		PayoutStatus:        constants.PayoutStatusPending,
		Status:              constants.TaskStatusAssigned,
		Progress:            0,
		Active:              true,
		AssignedAt:          s.now(),
		WorkPhotos:          models.StringArray{},
	}
}

// Assign 为已确认订单派单，订单随之进入 assigned；同一订单仅允许一个在途任务
func (s *TaskService) Assign(ctx context.Context, actor Actor, orderID uint, details TaskDetails) (*models.LensCuttingTask, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	if err := details.validate(); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.OrderStatusConfirmed {
		active, err := s.taskRepo.GetActiveByOrderID(order.ID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, ErrActiveTaskExists
		}
		return nil, ErrOrderStatusInvalid
	}

	var task *models.LensCuttingTask
	var notificationIDs []uint
	err = withUniqueNumber(s.numbers, taskNoPrefix, s.cfg.OrderNoAttempts(), s.now, func(taskNo string) error {
		candidate := s.newTask(taskNo, order.ID, actor, details, constants.TaskTypeLensCutting)
		return models.DB.Transaction(func(tx *gorm.DB) error {
			snapshot := *order
			if err := transitOrder(s.orderRepo.WithTx(tx), &snapshot, constants.OrderStatusAssigned, map[string]interface{}{
				"updated_at": s.now(),
			}); err != nil {
				return err
			}
			if err := s.taskRepo.WithTx(tx).Create(candidate); err != nil {
				return err
			}
			if _, err := s.prescriptionRepo.WithTx(tx).UpdateStatus(order.PrescriptionID,
				[]string{constants.PrescriptionStatusOrderCreated}, constants.PrescriptionStatusInProgress); err != nil {
				return err
			}
			ids, err := s.notifier.Record(tx, taskEvent(&snapshot, candidate, constants.NotifyTaskAssigned, constants.RecipientFitter, candidate.FitterID,
				orderSubject(&snapshot, "新加工任务"),
				fmt.Sprintf("您有新的割边任务 %s（订单 %s）。", candidate.TaskNo, snapshot.OrderNo)))
			if err != nil {
				return err
			}
			order.Status = snapshot.Status
			task = candidate
			notificationIDs = ids
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, order, notificationIDs)
	return task, nil
}

// ReworkInput 返工派单输入，FitterID 为空时沿用原加工师
type ReworkInput struct {
	TaskDetails
	ReworkReason string
}

// AssignRework 为质检不通过的任务创建返工任务；原任务让出在途位，订单状态不变
func (s *TaskService) AssignRework(ctx context.Context, actor Actor, failedTaskID uint, input ReworkInput) (*models.LensCuttingTask, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	failed, order, err := s.loadScopedTask(actor, failedTaskID)
	if err != nil {
		return nil, err
	}
	if !failed.Active || failed.Status != constants.TaskStatusQualityCheck || failed.QCStatus != constants.QCStatusFail {
		return nil, ErrTaskNotReworkable
	}
	if input.FitterID == 0 {
		input.FitterID = failed.FitterID
	}
	if input.FrameSize == "" {
		input.FrameSize = failed.FrameSize
	}
	if err := input.TaskDetails.validate(); err != nil {
		return nil, err
	}
	if order.Status != constants.OrderStatusInProgress {
		return nil, ErrOrderStatusInvalid
	}
	reason := strings.TrimSpace(input.ReworkReason)
	if reason == "" {
		reason = failed.ReworkReason
	}
	if reason == "" {
		reason = failed.QCReason
	}

	var task *models.LensCuttingTask
	var notificationIDs []uint
	err = withUniqueNumber(s.numbers, taskNoPrefix, s.cfg.OrderNoAttempts(), s.now, func(taskNo string) error {
		candidate := s.newTask(taskNo, order.ID, actor, input.TaskDetails, constants.TaskTypeRework)
		candidate.ReworkOfTaskID = &failed.ID
		candidate.ReworkReason = reason
		return models.DB.Transaction(func(tx *gorm.DB) error {
			taskRepo := s.taskRepo.WithTx(tx)
			ok, err := taskRepo.CloseFailedForRework(failed.ID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrActiveTaskExists
			}
			if err := taskRepo.Create(candidate); err != nil {
				return err
			}
			ids, err := s.notifier.Record(tx, taskEvent(order, candidate, constants.NotifyTaskAssigned, constants.RecipientFitter, candidate.FitterID,
				orderSubject(order, "返工任务"),
				fmt.Sprintf("订单 %s 需要返工（来源任务 %s）：%s", order.OrderNo, failed.TaskNo, reason)))
			if err != nil {
				return err
			}
			task = candidate
			notificationIDs = ids
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, order, notificationIDs)
	return task, nil
}

// UpdateProgressInput 进度更新输入，未传字段保持不变
type UpdateProgressInput struct {
	Status   *string
	Progress *int
	Remarks  *string
	Photos   []string
}

// UpdateProgress 更新加工进度；进度 100 与 completed 状态互相蕴含
func (s *TaskService) UpdateProgress(ctx context.Context, actor Actor, taskID uint, input UpdateProgressInput) (*models.LensCuttingTask, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	task, _, err := s.loadScopedTask(actor, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Active {
		return nil, ErrTaskInactive
	}

	target := task.Status
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if status != constants.TaskStatusInProgress && status != constants.TaskStatusCompleted && status != task.Status {
			return nil, ErrInvalidTaskInput
		}
		target = status
	}
	progress := task.Progress
	if input.Progress != nil {
		if *input.Progress < 0 || *input.Progress > 100 {
			return nil, ErrInvalidProgress
		}
		progress = *input.Progress
		switch {
		case progress == 100 && !isFinishedTaskStatus(target):
			target = constants.TaskStatusCompleted
		case progress > 0 && target == constants.TaskStatusAssigned:
			target = constants.TaskStatusInProgress
		}
	}
	if target == constants.TaskStatusCompleted && input.Progress == nil {
		progress = 100
	}
	if isFinishedTaskStatus(target) && progress != 100 {
		return nil, ErrInvalidProgress
	}
	if !CanTransitTask(task.Status, target) {
		return nil, ErrTaskStatusInvalid
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":     target,
		"progress":   progress,
		"updated_at": now,
	}
	if input.Remarks != nil {
		updates["work_remarks"] = strings.TrimSpace(*input.Remarks)
	}
	if input.Photos != nil {
		updates["work_photos"] = models.StringArray(normalizeStringList(input.Photos))
	}
	if target == constants.TaskStatusInProgress && task.StartedAt == nil {
		updates["started_at"] = now
	}
	completing := target == constants.TaskStatusCompleted && task.Status != constants.TaskStatusCompleted
	if completing {
		updates["completed_at"] = now
	}

	var order *models.SpecsOrder
	var notificationIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.taskRepo.WithTx(tx).UpdateWhereStatus(task.ID, []string{task.Status}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTaskConflict
		}
		if !completing {
			return nil
		}
		order, err = s.orderRepo.WithTx(tx).GetByID(task.SpecsOrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if err := transitOrder(s.orderRepo.WithTx(tx), order, constants.OrderStatusInProgress, map[string]interface{}{
			"updated_at": now,
		}); err != nil {
			return err
		}
		ids, err := s.notifier.Record(tx, taskEvent(order, task, constants.NotifyTaskCompleted, constants.RecipientStore, order.StoreID,
			orderSubject(order, "加工完成"),
			fmt.Sprintf("任务 %s 已完成加工，等待质检与送店。", task.TaskNo)))
		if err != nil {
			return err
		}
		notificationIDs = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	if order != nil {
		s.afterCommit(ctx, order, notificationIDs)
	}
	return s.loadTask(task.ID)
}

func isFinishedTaskStatus(status string) bool {
	switch status {
	case constants.TaskStatusCompleted, constants.TaskStatusQualityCheck, constants.TaskStatusSentToStore:
		return true
	}
	return false
}

// QCInput 质检结果输入，ReworkRequired 为空时按配置推断
type QCInput struct {
	QCStatus       string
	QCReason       string
	ReworkRequired *bool
	ReworkReason   string
}

// RecordQC 记录质检结果，任务进入 quality_check；不自动创建返工任务
func (s *TaskService) RecordQC(ctx context.Context, actor Actor, taskID uint, input QCInput) (*models.LensCuttingTask, error) {
	if actor.ID == 0 {
		return nil, ErrQCCheckerRequired
	}
	qcStatus := strings.TrimSpace(input.QCStatus)
	if qcStatus != constants.QCStatusPass && qcStatus != constants.QCStatusFail {
		return nil, ErrInvalidQCStatus
	}
	task, order, err := s.loadScopedTask(actor, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Active {
		return nil, ErrTaskInactive
	}
	if task.Status != constants.TaskStatusCompleted && task.Status != constants.TaskStatusQualityCheck {
		return nil, ErrTaskStatusInvalid
	}

	rework := false
	if qcStatus == constants.QCStatusFail {
		rework = s.cfg.QCFailImpliesRework
		if input.ReworkRequired != nil {
			rework = *input.ReworkRequired
		}
	}
	reworkReason := ""
	if rework {
		reworkReason = strings.TrimSpace(input.ReworkReason)
		if reworkReason == "" {
			reworkReason = strings.TrimSpace(input.QCReason)
		}
	}
	now := s.now()
	updates := map[string]interface{}{
		"status":          constants.TaskStatusQualityCheck,
		"qc_status":       qcStatus,
		"qc_reason":       strings.TrimSpace(input.QCReason),
		"qc_checked_by":   actor.ID,
		"qc_checked_at":   now,
		"rework_required": rework,
		"rework_reason":   reworkReason,
		"updated_at":      now,
	}

	var notificationIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.taskRepo.WithTx(tx).UpdateWhereStatus(task.ID, []string{task.Status}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTaskConflict
		}
		result := "通过"
		if qcStatus == constants.QCStatusFail {
			result = "不通过"
		}
		ids, err := s.notifier.Record(tx, taskEvent(order, task, constants.NotifyQCResult, constants.RecipientAdmin, 0,
			orderSubject(order, "质检结果："+result),
			fmt.Sprintf("任务 %s 质检%s。%s", task.TaskNo, result, strings.TrimSpace(input.QCReason))))
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
	return s.loadTask(task.ID)
}

// PayoutInput 结算输入
type PayoutInput struct {
	PayoutStatus string
	JobCharge    *decimal.Decimal
}

// RecordPayout 更新加工费结算状态；是否要求质检通过由配置决定
func (s *TaskService) RecordPayout(ctx context.Context, actor Actor, taskID uint, input PayoutInput) (*models.LensCuttingTask, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	status := strings.TrimSpace(input.PayoutStatus)
	switch status {
	case constants.PayoutStatusPending, constants.PayoutStatusPaid, constants.PayoutStatusHold:
	default:
		return nil, ErrInvalidPayoutStatus
	}
	if input.JobCharge != nil && input.JobCharge.IsNegative() {
		return nil, ErrInvalidJobCharge
	}
	task, order, err := s.loadScopedTask(actor, taskID)
	if err != nil {
		return nil, err
	}
	if task.PayoutStatus == constants.PayoutStatusPaid {
		if status == constants.PayoutStatusPaid && input.JobCharge == nil {
			return task, nil
		}
		return nil, ErrTaskStatusInvalid
	}
	if status == constants.PayoutStatusPaid && s.cfg.PayoutRequiresQCPass && task.QCStatus != constants.QCStatusPass {
		return nil, ErrPayoutRequiresQCPass
	}

	now := s.now()
	updates := map[string]interface{}{
		"payout_status": status,
		"updated_at":    now,
	}
	jobCharge := task.JobCharge
	if input.JobCharge != nil {
		jobCharge = models.NewMoneyFromDecimal(*input.JobCharge)
		updates["job_charge"] = jobCharge
	}
	released := status == constants.PayoutStatusPaid
	if released {
		updates["payout_released_at"] = now
	}

	var notificationIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.taskRepo.WithTx(tx).UpdateWherePayoutStatus(task.ID, []string{task.PayoutStatus}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTaskConflict
		}
		if !released {
			return nil
		}
		message := fmt.Sprintf("任务 %s 加工费 %s 已结算。", task.TaskNo, jobCharge.String())
		ids, err := s.notifier.Record(tx,
			taskEvent(order, task, constants.NotifyPayoutReleased, constants.RecipientAdmin, 0, orderSubject(order, "加工费已结算"), message),
			taskEvent(order, task, constants.NotifyPayoutReleased, constants.RecipientFitter, task.FitterID, orderSubject(order, "加工费已结算"), message),
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
	return s.loadTask(task.ID)
}

// SendToStoreInput 送店输入
type SendToStoreInput struct {
	TrackingInfo  string
	DeliveryNotes string
}

// SendToStoreResult 送店结果
type SendToStoreResult struct {
	Task     *models.LensCuttingTask `json:"task"`
	Delivery *models.Delivery        `json:"delivery"`
}

// SendToStore 成品送店：任务 sent_to_store，订单 completed，生成待取件交付记录
func (s *TaskService) SendToStore(ctx context.Context, actor Actor, taskID uint, input SendToStoreInput) (*SendToStoreResult, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	task, order, err := s.loadScopedTask(actor, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Active {
		return nil, ErrTaskInactive
	}
	if task.Status != constants.TaskStatusCompleted && task.Status != constants.TaskStatusQualityCheck {
		return nil, ErrTaskStatusInvalid
	}
	if task.QCStatus == constants.QCStatusFail {
		return nil, ErrQCFailedRequiresRework
	}

	now := s.now()
	delivery := &models.Delivery{
		SpecsOrderID:      order.ID,
		TaskID:            task.ID,
		Method:            constants.DeliveryMethodPickup,
		Status:            constants.DeliveryStatusReady,
		ReadyAt:           now,
		FinalQualityCheck: true,
		FinalQCBy:         actor.idPtr(),
		FinalQCAt:         &now,
		FinalQCNotes:      strings.TrimSpace(input.DeliveryNotes),
	}

	var notificationIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.taskRepo.WithTx(tx).UpdateWhereStatus(task.ID, []string{task.Status}, map[string]interface{}{
			"status":           constants.TaskStatusSentToStore,
			"sent_to_store_at": now,
			"tracking_info":    strings.TrimSpace(input.TrackingInfo),
			"updated_at":       now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrTaskConflict
		}
		if err := transitOrder(s.orderRepo.WithTx(tx), order, constants.OrderStatusCompleted, map[string]interface{}{
			"updated_at": now,
		}); err != nil {
			return err
		}
		deliveryRepo := s.deliveryRepo.WithTx(tx)
		existing, err := deliveryRepo.GetByOrderID(order.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDeliveryExists
		}
		if err := deliveryRepo.Create(delivery); err != nil {
			if isDuplicateKeyError(err) {
				return ErrDeliveryExists
			}
			return err
		}
		ids, err := s.notifier.Record(tx,
			deliveryEvent(order, delivery, constants.NotifySentToStore, constants.RecipientStore, order.StoreID,
				orderSubject(order, "成品已送店"),
				fmt.Sprintf("订单 %s 的成品已送达门店，物流信息：%s", order.OrderNo, strings.TrimSpace(input.TrackingInfo))),
			deliveryEvent(order, delivery, constants.NotifyReadyForPickup, constants.RecipientPatient, order.PatientID,
				orderSubject(order, "眼镜已可取件"),
				fmt.Sprintf("您的眼镜（订单 %s）已到店，可到店取件或预约配送。", order.OrderNo)),
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
	updated, err := s.loadTask(task.ID)
	if err != nil {
		return nil, err
	}
	return &SendToStoreResult{Task: updated, Delivery: delivery}, nil
}

// Get 获取任务
func (s *TaskService) Get(actor Actor, taskID uint) (*models.LensCuttingTask, error) {
	task, _, err := s.loadScopedTask(actor, taskID)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// List 任务列表，加工师只能看到分派给自己的任务，门店只能看到本店订单的任务
func (s *TaskService) List(actor Actor, filter repository.TaskListFilter) ([]models.LensCuttingTask, int64, error) {
	switch {
	case actor.Is(constants.RoleFitter):
		filter.FitterID = actor.ID
	case actor.Is(constants.RoleStore):
		filter.StoreID = actor.ID
	}
	return s.taskRepo.List(filter)
}

// loadScopedTask 读取任务及其订单；他人的任务对加工师与门店不可见
func (s *TaskService) loadScopedTask(actor Actor, taskID uint) (*models.LensCuttingTask, *models.SpecsOrder, error) {
	task, err := s.loadTask(taskID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Is(constants.RoleFitter) && task.FitterID != actor.ID {
		return nil, nil, ErrTaskNotFound
	}
	order, err := s.loadOrder(task.SpecsOrderID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Is(constants.RoleStore) && order.StoreID != actor.ID {
		return nil, nil, ErrTaskNotFound
	}
	return task, order, nil
}

func (s *TaskService) loadTask(id uint) (*models.LensCuttingTask, error) {
	task, err := s.taskRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) loadOrder(id uint) (*models.SpecsOrder, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *TaskService) afterCommit(ctx context.Context, order *models.SpecsOrder, notificationIDs []uint) {
	invalidateWorkflowCache(ctx, order)
	s.notifier.Publish(ctx, notificationIDs)
}
