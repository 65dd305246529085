package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/service"

	"github.com/hibiken/asynq"
)

func TestClassifyDispatchErrorSkipsRetryWhenDeadLettered(t *testing.T) {
	err := classifyDispatchError(7, fmt.Errorf("%w: smtp down", service.ErrNotificationDeadLettered))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestClassifyDispatchErrorKeepsTransientError(t *testing.T) {
	transient := errors.New("smtp down")
	err := classifyDispatchError(7, transient)
	if !errors.Is(err, transient) || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if err := classifyDispatchError(7, service.ErrNotificationNotFound); err != nil {
		t.Fatalf("expected missing notification to be dropped, got %v", err)
	}
	if err := classifyDispatchError(7, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestHandleNotificationDispatchRejectsBadPayload(t *testing.T) {
	consumer := NewConsumer(nil)
	err := consumer.handleNotificationDispatch(context.Background(), asynq.NewTask("workflow:notification_dispatch", []byte(`{"notification_id":0}`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for invalid payload, got %v", err)
	}
	if err := consumer.handleNotificationDispatch(context.Background(), asynq.NewTask("workflow:notification_dispatch", []byte(`{"notification_id":3}`))); err != nil {
		t.Fatalf("expected nil container to be skipped, got %v", err)
	}
}

func TestNewServiceRequiresQueue(t *testing.T) {
	if _, err := NewService(&config.QueueConfig{Enabled: false}, config.WorkflowConfig{}, NewConsumer(nil)); err == nil {
		t.Fatalf("expected disabled queue rejected")
	}
	if _, err := NewService(&config.QueueConfig{Enabled: true}, config.WorkflowConfig{}, nil); err == nil {
		t.Fatalf("expected nil consumer rejected")
	}
}
