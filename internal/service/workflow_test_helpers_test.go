package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/queue"
	"github.com/specsflow-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	testDoctor  = Actor{ID: 11, Role: constants.RoleDoctor}
	testStore   = Actor{ID: 21, Role: constants.RoleStore}
	testFitter  = Actor{ID: 31, Role: constants.RoleFitter}
	testAdmin   = Actor{ID: 1, Role: constants.RoleAdmin}
	testPatient = Actor{ID: 41, Role: constants.RolePatient}
)

type recordingSink struct {
	mu       sync.Mutex
	messages []SinkMessage
	err      error
}

func (s *recordingSink) Dispatch(ctx context.Context, msg SinkMessage) (SinkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return SinkResult{}, s.err
	}
	s.messages = append(s.messages, msg)
	return SinkResult{EmailSent: msg.Contact != ""}, nil
}

func (s *recordingSink) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSink) count(eventType, recipientType string, recipientID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, msg := range s.messages {
		if msg.Type != eventType || msg.RecipientType != recipientType {
			continue
		}
		if recipientID != 0 && (msg.RecipientID == nil || *msg.RecipientID != recipientID) {
			continue
		}
		total++
	}
	return total
}

// sequenceNumberGenerator 按顺序返回预置编号，用完后回退到最后一个
type sequenceNumberGenerator struct {
	mu      sync.Mutex
	numbers []string
	calls   int
}

func (g *sequenceNumberGenerator) Next(prefix string, now time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.calls
	if idx >= len(g.numbers) {
		idx = len(g.numbers) - 1
	}
	g.calls++
	return prefix + g.numbers[idx], nil
}

type workflowTestEnv struct {
	db               *gorm.DB
	sink             *recordingSink
	cfg              config.WorkflowConfig
	prescriptions    *PrescriptionService
	orders           *OrderService
	tasks            *TaskService
	deliveries       *DeliveryService
	notifications    *NotificationService
	workflow         *WorkflowService
	inventoryRepo    *repository.GormInventoryRepository
	notificationRepo *repository.GormNotificationRepository
	contactRepo      *repository.GormContactRepository
}

func defaultTestWorkflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		PickupTokenTTLHours:  24,
		QCFailImpliesRework:  true,
		NotificationMaxRetry: 3,
		StoreEmail:           "store@example.com",
		AdminEmail:           "admin@example.com",
	}
}

func setupWorkflowServiceTest(t *testing.T, cfg config.WorkflowConfig) *workflowTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:workflow_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.WorkflowModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}

	prescriptionRepo := repository.NewPrescriptionRepository(db)
	orderRepo := repository.NewSpecsOrderRepository(db)
	taskRepo := repository.NewLensTaskRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	contactRepo := repository.NewContactRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	sink := &recordingSink{}
	notifications := NewNotificationService(notificationRepo, contactRepo, sink, queueClient, cfg)
	return &workflowTestEnv{
		db:            db,
		sink:          sink,
		cfg:           cfg,
		prescriptions: NewPrescriptionService(prescriptionRepo),
		orders: NewOrderService(orderRepo, prescriptionRepo, taskRepo, deliveryRepo,
			NewStockInventoryGateway(inventoryRepo), NewLedgerInvoiceGateway(invoiceRepo), notifications, cfg),
		tasks:            NewTaskService(taskRepo, orderRepo, prescriptionRepo, deliveryRepo, notifications, cfg),
		deliveries:       NewDeliveryService(deliveryRepo, orderRepo, prescriptionRepo, notifications, cfg),
		notifications:    notifications,
		workflow:         NewWorkflowService(orderRepo, prescriptionRepo, taskRepo, deliveryRepo, notificationRepo),
		inventoryRepo:    inventoryRepo,
		notificationRepo: notificationRepo,
		contactRepo:      contactRepo,
	}
}

func createTestPrescription(t *testing.T, env *workflowTestEnv) *models.LensPrescription {
	t.Helper()
	prescription, err := env.prescriptions.Create(testDoctor, CreatePrescriptionInput{
		PatientID: testPatient.ID,
		Right: EyeValues{
			Sphere:   decimal.RequireFromString("-1.25"),
			Cylinder: decimal.RequireFromString("-0.50"),
			Axis:     90,
			Addition: decimal.RequireFromString("1.50"),
		},
		Left: EyeValues{
			Sphere:   decimal.RequireFromString("-1.00"),
			Axis:     180,
			Addition: decimal.RequireFromString("1.50"),
		},
		PupillaryDistance: decimal.RequireFromString("63.5"),
		LensType:          "Progressive",
		Coatings:          []string{"anti-reflective", " anti-reflective ", "blue-cut"},
	})
	if err != nil {
		t.Fatalf("create prescription failed: %v", err)
	}
	return prescription
}

func scenarioPricing() OrderPricing {
	tax := decimal.RequireFromString("10.00")
	return OrderPricing{
		FramePrice:   decimal.RequireFromString("100.00"),
		LensPrice:    decimal.RequireFromString("150.00"),
		CoatingPrice: decimal.RequireFromString("20.00"),
		Tax:          &tax,
		Discount:     decimal.Zero,
	}
}

func createTestOrder(t *testing.T, env *workflowTestEnv, prescriptionID uint, frameRef string) *models.SpecsOrder {
	t.Helper()
	order, err := env.orders.Create(context.Background(), testStore, CreateSpecsOrderInput{
		PrescriptionID: prescriptionID,
		StoreID:        testStore.ID,
		FrameRef:       frameRef,
		Pricing:        scenarioPricing(),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func seedFrameStock(t *testing.T, env *workflowTestEnv, frameRef string, quantity int) {
	t.Helper()
	if err := env.inventoryRepo.UpsertStock(&models.FrameStock{FrameRef: frameRef, Name: frameRef, Quantity: quantity}); err != nil {
		t.Fatalf("seed frame stock failed: %v", err)
	}
}

func testTaskDetails() TaskDetails {
	return TaskDetails{
		FitterID:         testFitter.ID,
		FrameSize:        "52-18-140",
		EstimatedMinutes: 45,
		JobCharge:        decimal.RequireFromString("35.00"),
	}
}

// assignTestTask 创建、确认订单并派单
func assignTestTask(t *testing.T, env *workflowTestEnv) (*models.SpecsOrder, *models.LensCuttingTask) {
	t.Helper()
	prescription := createTestPrescription(t, env)
	order := createTestOrder(t, env, prescription.ID, "")
	ctx := context.Background()
	if _, err := env.orders.Confirm(ctx, testStore, order.ID); err != nil {
		t.Fatalf("confirm order failed: %v", err)
	}
	task, err := env.tasks.Assign(ctx, testStore, order.ID, testTaskDetails())
	if err != nil {
		t.Fatalf("assign task failed: %v", err)
	}
	return order, task
}

func completeTestTask(t *testing.T, env *workflowTestEnv, taskID uint) *models.LensCuttingTask {
	t.Helper()
	status := constants.TaskStatusCompleted
	task, err := env.tasks.UpdateProgress(context.Background(), testFitter, taskID, UpdateProgressInput{Status: &status})
	if err != nil {
		t.Fatalf("complete task failed: %v", err)
	}
	return task
}

// readyTestDelivery 推进到成品送店，返回待取件交付记录
func readyTestDelivery(t *testing.T, env *workflowTestEnv) (*models.SpecsOrder, *models.Delivery) {
	t.Helper()
	order, task := assignTestTask(t, env)
	completeTestTask(t, env, task.ID)
	result, err := env.tasks.SendToStore(context.Background(), testFitter, task.ID, SendToStoreInput{TrackingInfo: "in-house van"})
	if err != nil {
		t.Fatalf("send to store failed: %v", err)
	}
	return order, result.Delivery
}

func reloadOrder(t *testing.T, env *workflowTestEnv, id uint) *models.SpecsOrder {
	t.Helper()
	order, err := env.orders.Get(id)
	if err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	return order
}

func reloadPrescription(t *testing.T, env *workflowTestEnv, id uint) *models.LensPrescription {
	t.Helper()
	prescription, err := env.prescriptions.Get(id)
	if err != nil {
		t.Fatalf("reload prescription failed: %v", err)
	}
	return prescription
}

func taskListFilter() repository.TaskListFilter {
	return repository.TaskListFilter{Page: 1, PageSize: 20}
}
