package staff

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/constants"
	handlershared "github.com/specsflow-next/internal/http/handlers/shared"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/provider"
	"github.com/specsflow-next/internal/queue"
	"github.com/specsflow-next/internal/repository"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var (
	handlerDoctor = service.Actor{ID: 11, Role: constants.RoleDoctor}
	handlerStore  = service.Actor{ID: 21, Role: constants.RoleStore}
	otherStore    = service.Actor{ID: 22, Role: constants.RoleStore}
	handlerFitter = service.Actor{ID: 31, Role: constants.RoleFitter}
)

type handlerEnvelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupStaffHandlerTest(t *testing.T) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:staff_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	cfg := config.WorkflowConfig{PickupTokenTTLHours: 24, QCFailImpliesRework: true, NotificationMaxRetry: 3}

	prescriptionRepo := repository.NewPrescriptionRepository(db)
	orderRepo := repository.NewSpecsOrderRepository(db)
	taskRepo := repository.NewLensTaskRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	contactRepo := repository.NewContactRepository(db)
	inventoryGateway := service.NewStockInventoryGateway(repository.NewInventoryRepository(db))
	invoiceGateway := service.NewLedgerInvoiceGateway(repository.NewInvoiceRepository(db))
	notifications := service.NewNotificationService(notificationRepo, contactRepo, service.LogSink{}, queueClient, cfg)

	return New(&provider.Container{
		PrescriptionService: service.NewPrescriptionService(prescriptionRepo),
		OrderService: service.NewOrderService(orderRepo, prescriptionRepo, taskRepo, deliveryRepo,
			inventoryGateway, invoiceGateway, notifications, cfg),
		TaskService:         service.NewTaskService(taskRepo, orderRepo, prescriptionRepo, deliveryRepo, notifications, cfg),
		DeliveryService:     service.NewDeliveryService(deliveryRepo, orderRepo, prescriptionRepo, notifications, cfg),
		NotificationService: notifications,
		WorkflowService:     service.NewWorkflowService(orderRepo, prescriptionRepo, taskRepo, deliveryRepo, notificationRepo),
		InventoryGateway:    inventoryGateway,
	})
}

func newStaffRouter(h *Handler, actor service.Actor) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(handlershared.ActorContextKey, actor)
		c.Next()
	})
	r.POST("/prescriptions", h.CreatePrescription)
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.POST("/orders/:id/confirm", h.ConfirmOrder)
	r.POST("/orders/:id/cancel", h.CancelOrder)
	r.POST("/orders/:id/tasks", h.AssignTask)
	r.GET("/tasks/:id", h.GetTask)
	r.PATCH("/tasks/:id/progress", h.UpdateTaskProgress)
	r.POST("/tasks/:id/qc", h.RecordTaskQC)
	r.POST("/tasks/:id/payout", h.RecordTaskPayout)
	r.POST("/tasks/:id/rework", h.AssignRework)
	r.POST("/tasks/:id/send-to-store", h.SendTaskToStore)
	r.POST("/deliveries/:id/verify-pickup", h.VerifyPickup)
	return r
}

func doStaffRequest(t *testing.T, r *gin.Engine, method, path, body string) handlerEnvelope {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	var env handlerEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return env
}

func decodeID(t *testing.T, env handlerEnvelope) uint {
	t.Helper()
	var payload struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode id failed: %v", err)
	}
	if payload.ID == 0 {
		t.Fatalf("expected id in response: %s", string(env.Data))
	}
	return payload.ID
}

const prescriptionBody = `{
	"patient_id": 41,
	"right": {"sphere": "-1.25", "cylinder": "-0.50", "axis": 90},
	"left": {"sphere": "-1.00", "axis": 180},
	"pupillary_distance": "63.5",
	"lens_type": "Single Vision"
}`

func createOrderThroughHandlers(t *testing.T, h *Handler) uint {
	t.Helper()
	env := doStaffRequest(t, newStaffRouter(h, handlerDoctor), http.MethodPost, "/prescriptions", prescriptionBody)
	if env.StatusCode != 0 {
		t.Fatalf("create prescription failed: %+v", env)
	}
	prescriptionID := decodeID(t, env)

	body := fmt.Sprintf(`{"prescription_id": %d, "store_id": 999, "pricing": {"frame_price": "100", "lens_price": "150"}}`, prescriptionID)
	env = doStaffRequest(t, newStaffRouter(h, handlerStore), http.MethodPost, "/orders", body)
	if env.StatusCode != 0 {
		t.Fatalf("create order failed: %+v", env)
	}
	var order models.SpecsOrder
	if err := json.Unmarshal(env.Data, &order); err != nil {
		t.Fatalf("decode order failed: %v", err)
	}
	if order.StoreID != handlerStore.ID {
		t.Fatalf("expected store forced to acting store, got %d", order.StoreID)
	}
	return order.ID
}

func TestOrderHandlersScopeStoreAndMapErrors(t *testing.T) {
	h := setupStaffHandlerTest(t)
	orderID := createOrderThroughHandlers(t, h)
	path := fmt.Sprintf("/orders/%d", orderID)

	if env := doStaffRequest(t, newStaffRouter(h, otherStore), http.MethodGet, path, ""); env.StatusCode != 404 {
		t.Fatalf("expected other store to get 404, got %+v", env)
	}
	if env := doStaffRequest(t, newStaffRouter(h, handlerStore), http.MethodGet, "/orders/abc", ""); env.StatusCode != 400 {
		t.Fatalf("expected invalid id 400, got %+v", env)
	}

	store := newStaffRouter(h, handlerStore)
	if env := doStaffRequest(t, store, http.MethodPost, path+"/confirm", ""); env.StatusCode != 0 {
		t.Fatalf("confirm failed: %+v", env)
	}
	env := doStaffRequest(t, store, http.MethodPost, path+"/confirm", "")
	if env.StatusCode != 409 {
		t.Fatalf("expected repeated confirm 409, got %+v", env)
	}
	if env.Msg != service.ErrOrderStatusInvalid.Error() {
		t.Fatalf("expected service message surfaced, got %q", env.Msg)
	}

	if env := doStaffRequest(t, store, http.MethodPost, path+"/cancel", ""); env.StatusCode != 0 {
		t.Fatalf("cancel with empty body failed: %+v", env)
	}
}

func TestTaskHandlersScopeStoreAndFitter(t *testing.T) {
	h := setupStaffHandlerTest(t)
	orderID := createOrderThroughHandlers(t, h)
	store := newStaffRouter(h, handlerStore)
	fitter := newStaffRouter(h, handlerFitter)

	if env := doStaffRequest(t, store, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", orderID), ""); env.StatusCode != 0 {
		t.Fatalf("confirm failed: %+v", env)
	}
	env := doStaffRequest(t, store, http.MethodPost, fmt.Sprintf("/orders/%d/tasks", orderID), fmt.Sprintf(`{"fitter_id": %d, "job_charge": "30"}`, handlerFitter.ID))
	if env.StatusCode != 0 {
		t.Fatalf("assign task failed: %+v", env)
	}
	taskID := decodeID(t, env)
	if env := doStaffRequest(t, fitter, http.MethodPatch, fmt.Sprintf("/tasks/%d/progress", taskID), `{"status": "completed"}`); env.StatusCode != 0 {
		t.Fatalf("complete task failed: %+v", env)
	}

	intruder := newStaffRouter(h, otherStore)
	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, fmt.Sprintf("/tasks/%d", taskID), ""},
		{http.MethodPost, fmt.Sprintf("/tasks/%d/qc", taskID), `{"qc_status": "pass"}`},
		{http.MethodPost, fmt.Sprintf("/tasks/%d/payout", taskID), `{"payout_status": "paid"}`},
		{http.MethodPost, fmt.Sprintf("/tasks/%d/rework", taskID), fmt.Sprintf(`{"fitter_id": %d}`, handlerFitter.ID)},
		{http.MethodPost, fmt.Sprintf("/tasks/%d/send-to-store", taskID), ""},
	}
	for _, tc := range cases {
		if env := doStaffRequest(t, intruder, tc.method, tc.path, tc.body); env.StatusCode != 404 {
			t.Fatalf("%s %s: expected other store 404, got %+v", tc.method, tc.path, env)
		}
	}

	otherFitter := newStaffRouter(h, service.Actor{ID: 99, Role: constants.RoleFitter})
	if env := doStaffRequest(t, otherFitter, http.MethodPost, fmt.Sprintf("/tasks/%d/send-to-store", taskID), ""); env.StatusCode != 404 {
		t.Fatalf("expected other fitter 404, got %+v", env)
	}

	if env := doStaffRequest(t, fitter, http.MethodPost, fmt.Sprintf("/tasks/%d/send-to-store", taskID), ""); env.StatusCode != 0 {
		t.Fatalf("owning fitter send to store failed: %+v", env)
	}
}

func TestVerifyPickupHandlerReportsReason(t *testing.T) {
	h := setupStaffHandlerTest(t)
	orderID := createOrderThroughHandlers(t, h)
	store := newStaffRouter(h, handlerStore)
	fitter := newStaffRouter(h, handlerFitter)

	if env := doStaffRequest(t, store, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", orderID), ""); env.StatusCode != 0 {
		t.Fatalf("confirm failed: %+v", env)
	}
	env := doStaffRequest(t, store, http.MethodPost, fmt.Sprintf("/orders/%d/tasks", orderID), fmt.Sprintf(`{"fitter_id": %d, "job_charge": "30"}`, handlerFitter.ID))
	if env.StatusCode != 0 {
		t.Fatalf("assign task failed: %+v", env)
	}
	taskID := decodeID(t, env)
	if env := doStaffRequest(t, fitter, http.MethodPatch, fmt.Sprintf("/tasks/%d/progress", taskID), `{"status": "completed"}`); env.StatusCode != 0 {
		t.Fatalf("complete task failed: %+v", env)
	}
	if env := doStaffRequest(t, fitter, http.MethodPost, fmt.Sprintf("/tasks/%d/send-to-store", taskID), ""); env.StatusCode != 0 {
		t.Fatalf("send to store failed: %+v", env)
	}

	delivery, err := h.DeliveryService.GetByOrderID(orderID)
	if err != nil {
		t.Fatalf("load delivery failed: %v", err)
	}
	if _, err := h.DeliveryService.GeneratePickupToken(t.Context(), handlerStore, delivery.ID, time.Hour); err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	verifyPath := fmt.Sprintf("/deliveries/%d/verify-pickup", delivery.ID)
	env = doStaffRequest(t, store, http.MethodPost, verifyPath, `{"token": "deadbeef"}`)
	if env.StatusCode != 400 || env.Msg != "Invalid token" {
		t.Fatalf("expected invalid token 400, got %+v", env)
	}
	var reason struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(env.Data, &reason); err != nil {
		t.Fatalf("decode reason failed: %v", err)
	}
	if reason.Valid || reason.Reason != "Invalid token" {
		t.Fatalf("unexpected reason payload: %+v", reason)
	}

	if env := doStaffRequest(t, newStaffRouter(h, otherStore), http.MethodPost, verifyPath, `{"token": "deadbeef"}`); env.StatusCode != 404 {
		t.Fatalf("expected other store to get 404, got %+v", env)
	}
	if env := doStaffRequest(t, store, http.MethodPost, verifyPath, `{}`); env.StatusCode != 400 {
		t.Fatalf("expected missing token 400, got %+v", env)
	}
}
