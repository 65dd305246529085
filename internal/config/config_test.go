package config

import (
	"testing"
	"time"
)

func TestWorkflowConfigDefaults(t *testing.T) {
	var cfg WorkflowConfig
	if got := cfg.PickupTokenTTL(); got != 168*time.Hour {
		t.Fatalf("default pickup ttl want 168h got %s", got)
	}
	if got := cfg.MaxRetry(); got != 5 {
		t.Fatalf("default max retry want 5 got %d", got)
	}
	if got := cfg.SweepInterval(); got != time.Minute {
		t.Fatalf("default sweep interval want 1m got %s", got)
	}
	if got := cfg.StaleAfter(); got != 2*time.Minute {
		t.Fatalf("default stale after want 2m got %s", got)
	}
	if got := cfg.OrderNoAttempts(); got != 5 {
		t.Fatalf("default order no attempts want 5 got %d", got)
	}
}

func TestWorkflowConfigOverrides(t *testing.T) {
	cfg := WorkflowConfig{
		PickupTokenTTLHours:  1,
		NotificationMaxRetry: -1,
		OrderNoMaxAttempts:   2,
	}
	if got := cfg.PickupTokenTTL(); got != time.Hour {
		t.Fatalf("pickup ttl want 1h got %s", got)
	}
	if got := cfg.MaxRetry(); got != 0 {
		t.Fatalf("negative retry should clamp to 0, got %d", got)
	}
	if got := cfg.OrderNoAttempts(); got != 2 {
		t.Fatalf("order no attempts want 2 got %d", got)
	}
}
