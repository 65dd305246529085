package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specsflow-next/internal/constants"

	"github.com/shopspring/decimal"
)

func TestWorkflowCreateOrderFromPrescription(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	prescription := createTestPrescription(t, env)
	if prescription.Status != constants.PrescriptionStatusPrescribed {
		t.Fatalf("expected prescribed, got %s", prescription.Status)
	}
	if len(prescription.Coatings) != 2 {
		t.Fatalf("expected deduplicated coatings, got %v", prescription.Coatings)
	}

	order := createTestOrder(t, env, prescription.ID, "")
	if order.Status != constants.OrderStatusDraft {
		t.Fatalf("expected draft, got %s", order.Status)
	}
	if !order.Subtotal.Equal(decimal.RequireFromString("270.00")) {
		t.Fatalf("expected subtotal 270.00, got %s", order.Subtotal.String())
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("280.00")) {
		t.Fatalf("expected total 280.00, got %s", order.TotalAmount.String())
	}
	if order.PatientID != testPatient.ID {
		t.Fatalf("expected patient copied from prescription, got %d", order.PatientID)
	}
	if got := reloadPrescription(t, env, prescription.ID).Status; got != constants.PrescriptionStatusOrderCreated {
		t.Fatalf("expected prescription order_created, got %s", got)
	}
	if env.sink.count(constants.NotifyOrderCreated, constants.RecipientStore, testStore.ID) != 1 {
		t.Fatalf("expected store notified of new order")
	}
	if env.sink.count(constants.NotifyOrderCreated, constants.RecipientDoctor, testDoctor.ID) != 1 {
		t.Fatalf("expected doctor notified of new order")
	}

	// 一张处方只能生成一张订单
	_, err := env.orders.Create(context.Background(), testStore, CreateSpecsOrderInput{
		PrescriptionID: prescription.ID,
		StoreID:        testStore.ID,
		Pricing:        scenarioPricing(),
	})
	if !errors.Is(err, ErrPrescriptionNotPrescribed) {
		t.Fatalf("expected ErrPrescriptionNotPrescribed, got %v", err)
	}
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected illegal transition kind, got %v", err)
	}
}

func TestWorkflowConfirmAndAssign(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	ctx := context.Background()
	prescription := createTestPrescription(t, env)
	order := createTestOrder(t, env, prescription.ID, "")

	confirmed, err := env.orders.Confirm(ctx, testStore, order.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Status != constants.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	if confirmed.ConfirmedBy == nil || *confirmed.ConfirmedBy != testStore.ID {
		t.Fatalf("expected confirmed_by %d, got %v", testStore.ID, confirmed.ConfirmedBy)
	}

	task, err := env.tasks.Assign(ctx, testStore, order.ID, testTaskDetails())
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if task.Status != constants.TaskStatusAssigned || task.Progress != 0 || !task.Active {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.TaskNo == "" || task.PayoutStatus != constants.PayoutStatusPending {
		t.Fatalf("unexpected task defaults: %+v", task)
	}
	if got := reloadOrder(t, env, order.ID).Status; got != constants.OrderStatusAssigned {
		t.Fatalf("expected order assigned, got %s", got)
	}
	if got := reloadPrescription(t, env, prescription.ID).Status; got != constants.PrescriptionStatusInProgress {
		t.Fatalf("expected prescription in_progress, got %s", got)
	}
	if env.sink.count(constants.NotifyTaskAssigned, constants.RecipientFitter, testFitter.ID) != 1 {
		t.Fatalf("expected exactly one notification to fitter")
	}

	_, err = env.tasks.Assign(ctx, testStore, order.ID, testTaskDetails())
	if !errors.Is(err, ErrActiveTaskExists) {
		t.Fatalf("expected ErrActiveTaskExists, got %v", err)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict kind, got %v", err)
	}
}

func TestWorkflowCompleteTaskMovesOrderInProgress(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	order, task := assignTestTask(t, env)

	completed := completeTestTask(t, env, task.ID)
	if completed.Status != constants.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", completed.Progress)
	}
	if completed.CompletedAt == nil {
		t.Fatalf("expected completed_at set")
	}
	if got := reloadOrder(t, env, order.ID).Status; got != constants.OrderStatusInProgress {
		t.Fatalf("expected order in_progress, got %s", got)
	}
	if env.sink.count(constants.NotifyTaskCompleted, constants.RecipientStore, testStore.ID) != 1 {
		t.Fatalf("expected store notified of completion")
	}
}

func TestWorkflowSendToStoreCreatesReadyDelivery(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	ctx := context.Background()
	order, task := assignTestTask(t, env)
	completeTestTask(t, env, task.ID)

	result, err := env.tasks.SendToStore(ctx, testFitter, task.ID, SendToStoreInput{TrackingInfo: "in-house van"})
	if err != nil {
		t.Fatalf("send to store failed: %v", err)
	}
	if result.Task.Status != constants.TaskStatusSentToStore || result.Task.SentToStoreAt == nil {
		t.Fatalf("unexpected task after send: %+v", result.Task)
	}
	if result.Delivery == nil || result.Delivery.Status != constants.DeliveryStatusReady {
		t.Fatalf("expected ready delivery, got %+v", result.Delivery)
	}
	if result.Delivery.Method != constants.DeliveryMethodPickup || !result.Delivery.FinalQualityCheck {
		t.Fatalf("unexpected delivery defaults: %+v", result.Delivery)
	}
	if got := reloadOrder(t, env, order.ID).Status; got != constants.OrderStatusCompleted {
		t.Fatalf("expected order completed, got %s", got)
	}
	if env.sink.count(constants.NotifyReadyForPickup, constants.RecipientPatient, testPatient.ID) != 1 {
		t.Fatalf("expected patient notified for pickup")
	}

	_, err = env.tasks.SendToStore(ctx, testFitter, task.ID, SendToStoreInput{})
	if !errors.Is(err, ErrTaskStatusInvalid) {
		t.Fatalf("expected ErrTaskStatusInvalid on second send, got %v", err)
	}
}

func TestWorkflowPickupTokenSingleUse(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	ctx := context.Background()
	order, delivery := readyTestDelivery(t, env)

	token, err := env.deliveries.GeneratePickupToken(ctx, testStore, delivery.ID, time.Hour)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if token.Token == "" || token.QRPayload == "" || token.QRImage == "" {
		t.Fatalf("unexpected token: %+v", token)
	}
	if token.Payload.Kind != constants.PickupPayloadKind || token.Payload.DeliveryID != delivery.ID {
		t.Fatalf("unexpected payload: %+v", token.Payload)
	}
	if token.ExpiresAt.Sub(time.Now()) > time.Hour {
		t.Fatalf("expected ttl within an hour, got %s", token.ExpiresAt)
	}

	result, err := env.deliveries.VerifyPickup(ctx, testStore, delivery.ID, token.Token, "Pat")
	if err != nil {
		t.Fatalf("verify pickup failed: %v", err)
	}
	if !result.Valid || result.Delivery.Status != constants.DeliveryStatusDelivered {
		t.Fatalf("unexpected pickup result: %+v", result)
	}
	if result.Delivery.QRTokenUsedAt == nil {
		t.Fatalf("expected token consumed")
	}
	updated := reloadOrder(t, env, order.ID)
	if updated.Status != constants.OrderStatusDelivered || updated.ActualDeliveryDate == nil {
		t.Fatalf("expected order delivered, got %+v", updated)
	}
	if got := reloadPrescription(t, env, updated.PrescriptionID).Status; got != constants.PrescriptionStatusCompleted {
		t.Fatalf("expected prescription completed, got %s", got)
	}

	again, err := env.deliveries.VerifyPickup(ctx, testStore, delivery.ID, token.Token, "Pat")
	if !errors.Is(err, ErrPickupTokenUsed) {
		t.Fatalf("expected ErrPickupTokenUsed, got %v", err)
	}
	if again == nil || again.Valid || again.Reason != "Token already used" {
		t.Fatalf("unexpected second result: %+v", again)
	}
}

func TestWorkflowReissueAfterPickupInvalidatesUsedToken(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	ctx := context.Background()
	order, delivery := readyTestDelivery(t, env)

	first, err := env.deliveries.GeneratePickupToken(ctx, testStore, delivery.ID, time.Hour)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if result, err := env.deliveries.VerifyPickup(ctx, testStore, delivery.ID, first.Token, ""); err != nil || !result.Valid {
		t.Fatalf("first pickup failed: %+v err=%v", result, err)
	}
	if _, err := env.deliveries.VerifyPickup(ctx, testStore, delivery.ID, first.Token, ""); !errors.Is(err, ErrPickupTokenUsed) {
		t.Fatalf("expected ErrPickupTokenUsed, got %v", err)
	}

	second, err := env.deliveries.GeneratePickupToken(ctx, testStore, delivery.ID, 0)
	if err != nil {
		t.Fatalf("reissue after pickup failed: %v", err)
	}
	stored, err := env.deliveries.Get(delivery.ID)
	if err != nil {
		t.Fatalf("reload delivery failed: %v", err)
	}
	if stored.QRTokenUsedAt != nil {
		t.Fatalf("expected used_at cleared on reissue")
	}

	result, err := env.deliveries.VerifyPickup(ctx, testStore, delivery.ID, first.Token, "")
	if !errors.Is(err, ErrPickupTokenInvalid) {
		t.Fatalf("expected old token invalid, got %v", err)
	}
	if result == nil || result.Valid || result.Reason != "Invalid token" {
		t.Fatalf("unexpected result for old token: %+v", result)
	}

	result, err = env.deliveries.VerifyPickup(ctx, testStore, delivery.ID, second.Token, "")
	if !errors.Is(err, ErrPickupAlreadyDelivered) {
		t.Fatalf("expected ErrPickupAlreadyDelivered, got %v", err)
	}
	if result == nil || result.Valid {
		t.Fatalf("reissued token must not deliver twice: %+v", result)
	}
	if got := reloadOrder(t, env, order.ID).Status; got != constants.OrderStatusDelivered {
		t.Fatalf("expected order to stay delivered, got %s", got)
	}
	if n := env.sink.count(constants.NotifyPickupConfirmed, constants.RecipientPatient, testPatient.ID); n != 1 {
		t.Fatalf("expected one pickup notification, got %d", n)
	}
}

func TestWorkflowReissuedTokenInvalidatesPrevious(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	ctx := context.Background()
	_, delivery := readyTestDelivery(t, env)

	first, err := env.deliveries.GeneratePickupToken(ctx, testStore, delivery.ID, 0)
	if err != nil {
		t.Fatalf("generate first token failed: %v", err)
	}
	second, err := env.deliveries.GeneratePickupToken(ctx, testStore, delivery.ID, 0)
	if err != nil {
		t.Fatalf("generate second token failed: %v", err)
	}
	if first.Token == second.Token {
		t.Fatalf("expected distinct tokens")
	}

	result, err := env.deliveries.VerifyPickup(ctx, testStore, delivery.ID, first.Token, "")
	if !errors.Is(err, ErrPickupTokenInvalid) {
		t.Fatalf("expected ErrPickupTokenInvalid, got %v", err)
	}
	if result == nil || result.Valid || result.Reason != "Invalid token" {
		t.Fatalf("unexpected result: %+v", result)
	}

	result, err = env.deliveries.VerifyPickup(ctx, testStore, delivery.ID, second.Token, "")
	if err != nil || !result.Valid {
		t.Fatalf("expected current token accepted, got %+v err=%v", result, err)
	}
}

func TestWorkflowStatusSteps(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	ctx := context.Background()
	order, task := assignTestTask(t, env)
	completeTestTask(t, env, task.ID)

	status, err := env.workflow.GetWorkflowStatus(ctx, order.ID)
	if err != nil {
		t.Fatalf("get workflow status failed: %v", err)
	}
	if status.Order.Status != constants.OrderStatusInProgress {
		t.Fatalf("expected in_progress, got %s", status.Order.Status)
	}
	if status.PrescriptionStatus != constants.PrescriptionStatusInProgress {
		t.Fatalf("unexpected prescription status: %s", status.PrescriptionStatus)
	}
	if status.CurrentTask == nil || status.CurrentTask.ID != task.ID {
		t.Fatalf("expected current task %d, got %+v", task.ID, status.CurrentTask)
	}
	if status.Delivery != nil || status.PickupTokenActive {
		t.Fatalf("expected no delivery yet")
	}
	if status.NotificationCount == 0 {
		t.Fatalf("expected notifications counted")
	}
	expected := map[string]string{
		constants.OrderStatusDraft:      StepDone,
		constants.OrderStatusConfirmed:  StepDone,
		constants.OrderStatusAssigned:   StepDone,
		constants.OrderStatusInProgress: StepCurrent,
		constants.OrderStatusCompleted:  StepPending,
		constants.OrderStatusDelivered:  StepPending,
	}
	for _, step := range status.Steps {
		if expected[step.Name] != step.Status {
			t.Fatalf("step %s: expected %s, got %s", step.Name, expected[step.Name], step.Status)
		}
	}
}

func TestWorkflowStatusByOrderNoScopedToPatient(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	ctx := context.Background()
	prescription := createTestPrescription(t, env)
	order := createTestOrder(t, env, prescription.ID, "")

	status, err := env.workflow.GetWorkflowStatusByOrderNo(ctx, testPatient, order.OrderNo)
	if err != nil {
		t.Fatalf("expected owner access, got %v", err)
	}
	if status.Order.ID != order.ID {
		t.Fatalf("unexpected order: %d", status.Order.ID)
	}

	stranger := Actor{ID: testPatient.ID + 1, Role: constants.RolePatient}
	if _, err := env.workflow.GetWorkflowStatusByOrderNo(ctx, stranger, order.OrderNo); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for other patient, got %v", err)
	}
	if _, err := env.workflow.GetWorkflowStatusByOrderNo(ctx, testPatient, "SO-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found kind, got %v", err)
	}
}

func TestWorkflowStatusCanceledSteps(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	ctx := context.Background()
	order, _ := assignTestTask(t, env)
	if _, err := env.orders.Cancel(ctx, testStore, order.ID, "patient request"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	status, err := env.workflow.GetWorkflowStatus(ctx, order.ID)
	if err != nil {
		t.Fatalf("get workflow status failed: %v", err)
	}
	if status.CurrentTask != nil {
		t.Fatalf("expected no active task after cancel")
	}
	for _, step := range status.Steps {
		want := StepCanceled
		switch step.Name {
		case constants.OrderStatusDraft, constants.OrderStatusConfirmed, constants.OrderStatusAssigned:
			want = StepDone
		}
		if step.Status != want {
			t.Fatalf("step %s: expected %s, got %s", step.Name, want, step.Status)
		}
	}
}
