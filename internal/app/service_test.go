package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specsflow-next/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	stopped  atomic.Bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *fakeService) Stop(ctx context.Context) error {
	s.stopped.Store(true)
	return nil
}

func TestRunnerStopsAllServicesOnFailure(t *testing.T) {
	healthy := &fakeService{name: "healthy"}
	broken := &fakeService{name: "broken", startErr: errors.New("bind failed")}

	runner := NewRunner(healthy, broken)
	cleaned := false
	runner.OnStop(func() { cleaned = true })
	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "broken: bind failed" {
		t.Fatalf("expected start error, got %v", err)
	}
	if !healthy.stopped.Load() || !broken.stopped.Load() {
		t.Fatalf("expected every service stopped")
	}
	if !cleaned {
		t.Fatalf("expected stop hooks to run")
	}
}

func TestRunnerCancelledContextReturnsNil(t *testing.T) {
	svc := &fakeService{name: "idle"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewRunner(svc).Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}
	if !svc.stopped.Load() {
		t.Fatalf("expected service stopped")
	}
}

func TestNormalizeOptionsAndMode(t *testing.T) {
	opts := normalizeOptions(Options{Mode: " Worker "})
	if opts.Mode != ModeWorker || opts.ShutdownTimeout != 10*time.Second || opts.Logger == nil {
		t.Fatalf("unexpected normalized options: %+v", opts)
	}
	if IsValidMode("cron") {
		t.Fatalf("expected unknown mode rejected")
	}
	if _, err := BuildRunner(&config.Config{}, "cron"); err == nil {
		t.Fatalf("expected BuildRunner to reject unknown mode")
	}
	if _, err := BuildRunner(nil, ModeAll); err == nil {
		t.Fatalf("expected BuildRunner to reject nil config")
	}
}
