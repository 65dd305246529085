package worker

import (
	"context"
	"errors"
	"time"

	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/logger"
	"github.com/specsflow-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, workflow config.WorkflowConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		sweepInterval: workflow.SweepInterval(),
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.Container != nil && s.consumer.NotificationService != nil {
		go s.runNotificationSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runNotificationSweepLoop 周期性重新入队滞留的 pending 通知
func (s *Service) runNotificationSweepLoop(ctx context.Context) {
	notifications := s.consumer.NotificationService
	runOnce := func() {
		count, err := notifications.SweepPending(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warnw("worker_notification_sweep_failed", "error", err)
			}
			return
		}
		if count > 0 {
			logger.Infow("worker_notification_sweep_requeued", "count", count)
		}
	}
	runOnce()

	interval := s.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
