package queue

import (
	"testing"

	"github.com/specsflow-next/internal/config"
)

func TestDisabledClientSkipsEnqueue(t *testing.T) {
	client, err := NewClient(nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("nil config should produce a disabled client")
	}
	if err := client.EnqueueNotificationDispatch(NotificationDispatchPayload{NotificationID: 1}); err != nil {
		t.Fatalf("disabled enqueue should be noop: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close disabled client failed: %v", err)
	}
}

func TestNotificationDispatchTaskRoundTrip(t *testing.T) {
	task, err := NewNotificationDispatchTask(NotificationDispatchPayload{NotificationID: 7})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskNotificationDispatch {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	payload, err := ParseNotificationDispatchPayload(task.Payload())
	if err != nil {
		t.Fatalf("parse payload failed: %v", err)
	}
	if payload.NotificationID != 7 {
		t.Fatalf("unexpected notification id: %d", payload.NotificationID)
	}
	if _, err := NewNotificationDispatchTask(NotificationDispatchPayload{}); err == nil {
		t.Fatalf("zero notification id should be rejected")
	}
	if _, err := ParseNotificationDispatchPayload([]byte(`{"notification_id":0}`)); err == nil {
		t.Fatalf("zero notification id payload should be rejected")
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(&config.QueueConfig{Host: " redis ", Port: 6380, DB: 2})
	if opt.Addr != "redis:6380" || opt.DB != 2 {
		t.Fatalf("unexpected redis opt: %+v", opt)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("unexpected concurrency: %d", cfg.Concurrency)
	}
	if cfg.Queues[CriticalQueue] == 0 || cfg.Queues[DefaultQueue] == 0 {
		t.Fatalf("default queues missing: %+v", cfg.Queues)
	}
}
