package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/repository"
)

func patientEvent(subject string) NotificationEvent {
	return NotificationEvent{
		Type:          constants.NotifyOrderConfirmed,
		RecipientType: constants.RecipientPatient,
		RecipientID:   uintPtr(testPatient.ID),
		Subject:       subject,
	}
}

func TestDispatchInlineResolvesContact(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	ctx := context.Background()
	if err := env.contactRepo.Upsert(&models.Contact{
		RecipientType: constants.RecipientPatient,
		RecipientID:   testPatient.ID,
		Name:          "Pat",
		Email:         "pat@example.com",
	}); err != nil {
		t.Fatalf("upsert contact failed: %v", err)
	}

	row, err := env.notifications.Send(ctx, patientEvent("hello"))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if row.Status != constants.NotificationStatusSent || row.RecipientContact != "pat@example.com" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if !row.EmailSent || row.Attempts != 1 || row.SentAt == nil {
		t.Fatalf("unexpected delivery flags: %+v", row)
	}
	if row.Message != "hello" {
		t.Fatalf("expected message to default to subject, got %q", row.Message)
	}

	order := createTestOrder(t, env, createTestPrescription(t, env).ID, "")
	rows, _, err := env.notifications.List(testAdmin, repository.NotificationListFilter{
		Page:          1,
		PageSize:      20,
		SpecsOrderID:  order.ID,
		RecipientType: constants.RecipientStore,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 1 || rows[0].RecipientContact != "store@example.com" {
		t.Fatalf("expected store fallback contact, got %+v", rows)
	}
}

func TestSinkOutageDoesNotBlockWorkflow(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	env.sink.setErr(errors.New("smtp down"))

	prescription := createTestPrescription(t, env)
	order := createTestOrder(t, env, prescription.ID, "")
	if order.Status != constants.OrderStatusDraft {
		t.Fatalf("expected order created despite outage, got %s", order.Status)
	}
	rows, total, err := env.notifications.List(testAdmin, repository.NotificationListFilter{Page: 1, PageSize: 20, SpecsOrderID: order.ID})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected two recorded notifications, got %d", total)
	}
	for _, row := range rows {
		if row.Status != constants.NotificationStatusPending || row.Attempts != 1 || row.LastError == "" {
			t.Fatalf("expected pending row with one failed attempt, got %+v", row)
		}
	}

	env.sink.setErr(nil)
	env.notifications.now = func() time.Time { return time.Now().Add(time.Hour) }
	swept, err := env.notifications.SweepPending(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 2 {
		t.Fatalf("expected 2 swept, got %d", swept)
	}
	rows, _, err = env.notifications.List(testAdmin, repository.NotificationListFilter{Page: 1, PageSize: 20, SpecsOrderID: order.ID})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, row := range rows {
		if row.Status != constants.NotificationStatusSent {
			t.Fatalf("expected swept row sent, got %+v", row)
		}
	}
}

func TestDispatchDeadLettersAfterMaxRetry(t *testing.T) {
	cfg := defaultTestWorkflowConfig()
	cfg.NotificationMaxRetry = 2
	env := setupWorkflowServiceTest(t, cfg)
	ctx := context.Background()
	env.sink.setErr(errors.New("smtp down"))

	row, err := env.notifications.Send(ctx, patientEvent("retry me"))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if row.Attempts != 1 || row.Status != constants.NotificationStatusPending {
		t.Fatalf("unexpected row after first attempt: %+v", row)
	}
	if err := env.notifications.Dispatch(ctx, row.ID); err == nil || errors.Is(err, ErrNotificationDeadLettered) {
		t.Fatalf("expected retryable error on second attempt, got %v", err)
	}
	err = env.notifications.Dispatch(ctx, row.ID)
	if !errors.Is(err, ErrNotificationDeadLettered) {
		t.Fatalf("expected ErrNotificationDeadLettered, got %v", err)
	}
	stored, err := env.notificationRepo.GetByID(row.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.Status != constants.NotificationStatusFailed || stored.Attempts != 3 {
		t.Fatalf("unexpected dead-lettered row: %+v", stored)
	}

	env.sink.setErr(nil)
	if err := env.notifications.Dispatch(ctx, row.ID); err != nil {
		t.Fatalf("expected closed row to be skipped, got %v", err)
	}
	if env.sink.count(constants.NotifyOrderConfirmed, constants.RecipientPatient, testPatient.ID) != 0 {
		t.Fatalf("expected dead-lettered row never delivered")
	}
}

func TestDispatchValidationErrorIsFinal(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	env.sink.setErr(ErrNotificationNoContact)

	row, err := env.notifications.Send(context.Background(), patientEvent("no contact"))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if row.Status != constants.NotificationStatusFailed || row.Attempts != 1 {
		t.Fatalf("expected immediate dead letter, got %+v", row)
	}
}

func TestRecordRejectsIncompleteEvent(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	if _, err := env.notifications.Record(nil, NotificationEvent{Type: constants.NotifyDelivered}); !errors.Is(err, ErrInvalidNotification) {
		t.Fatalf("expected ErrInvalidNotification, got %v", err)
	}
	if err := env.notifications.Dispatch(context.Background(), 9999); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	env := setupWorkflowServiceTest(t, defaultTestWorkflowConfig())
	row, err := env.notifications.Send(context.Background(), patientEvent("read me"))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	stranger := Actor{ID: testPatient.ID + 1, Role: constants.RolePatient}
	if _, err := env.notifications.MarkRead(stranger, row.ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound for stranger, got %v", err)
	}
	read, err := env.notifications.MarkRead(testPatient, row.ID)
	if err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if read.ReadAt == nil {
		t.Fatalf("expected read_at set")
	}

	rows, total, err := env.notifications.List(stranger, repository.NotificationListFilter{Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Fatalf("expected stranger to see nothing, got %d", total)
	}
}
