package service

import (
	"context"
	"time"

	"github.com/specsflow-next/internal/cache"
	"github.com/specsflow-next/internal/repository"
)

const dashboardCacheTTL = 45 * time.Second

// DashboardService 工作流看板服务
// 说明：聚合订单、任务、交付与通知的状态分布，按门店缓存。
type DashboardService struct {
	repo repository.DashboardRepository
	now  func() time.Time
}

// NewDashboardService 创建看板服务
func NewDashboardService(repo repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo, now: time.Now}
}

// DashboardStats 看板统计
type DashboardStats struct {
	StoreID              uint                 `json:"store_id"`
	GeneratedAt          string               `json:"generated_at"`
	OrdersByStatus       map[string]int64     `json:"orders_by_status"`
	TasksByStatus        map[string]int64     `json:"tasks_by_status"`
	DeliveriesByStatus   map[string]int64     `json:"deliveries_by_status"`
	ActiveTasks          int64                `json:"active_tasks"`
	OverdueTasks         int64                `json:"overdue_tasks"`
	ReworkTasks          int64                `json:"rework_tasks"`
	PendingPayoutTasks   int64                `json:"pending_payout_tasks"`
	PendingPayoutAmount  string               `json:"pending_payout_amount"`
	PendingNotifications int64                `json:"pending_notifications"`
	FailedNotifications  int64                `json:"failed_notifications"`
	Alerts               []DashboardAlertItem `json:"alerts"`
}

// DashboardAlertItem 看板告警项
type DashboardAlertItem struct {
	Type  string `json:"type"`
	Level string `json:"level"`
	Value int64  `json:"value"`
}

// GetStats 获取看板统计，storeID 为 0 表示全部门店
func (s *DashboardService) GetStats(ctx context.Context, storeID uint, forceRefresh bool) (*DashboardStats, error) {
	if s == nil || s.repo == nil {
		return &DashboardStats{}, nil
	}
	cacheKey := cache.DashboardStatsKey(storeID)
	if !forceRefresh {
		var cached DashboardStats
		hit, cacheErr := cache.GetJSON(ctx, cacheKey, &cached)
		if cacheErr == nil && hit {
			return &cached, nil
		}
	}

	now := s.now()
	row, err := s.repo.GetWorkflowOverview(storeID, now)
	if err != nil {
		return nil, err
	}
	stats := &DashboardStats{
		StoreID:              storeID,
		GeneratedAt:          now.Format(time.RFC3339),
		OrdersByStatus:       nonNilCounts(row.OrdersByStatus),
		TasksByStatus:        nonNilCounts(row.TasksByStatus),
		DeliveriesByStatus:   nonNilCounts(row.DeliveriesByStatus),
		ActiveTasks:          row.ActiveTasks,
		OverdueTasks:         row.OverdueTasks,
		ReworkTasks:          row.ReworkTasks,
		PendingPayoutTasks:   row.PendingPayoutTasks,
		PendingPayoutAmount:  row.PendingPayoutAmount.String(),
		PendingNotifications: row.PendingNotifications,
		FailedNotifications:  row.FailedNotifications,
		Alerts:               buildDashboardAlerts(row),
	}

	_ = cache.SetJSON(ctx, cacheKey, stats, dashboardCacheTTL)
	return stats, nil
}

func nonNilCounts(counts map[string]int64) map[string]int64 {
	if counts == nil {
		return map[string]int64{}
	}
	return counts
}

func buildDashboardAlerts(row repository.DashboardWorkflowRow) []DashboardAlertItem {
	alerts := make([]DashboardAlertItem, 0, 3)
	if row.OverdueTasks > 0 {
		alerts = append(alerts, DashboardAlertItem{Type: "overdue_tasks", Level: "error", Value: row.OverdueTasks})
	}
	if row.ReworkTasks > 0 {
		alerts = append(alerts, DashboardAlertItem{Type: "rework_tasks", Level: "warning", Value: row.ReworkTasks})
	}
	if row.FailedNotifications > 0 {
		alerts = append(alerts, DashboardAlertItem{Type: "failed_notifications", Level: "warning", Value: row.FailedNotifications})
	}
	return alerts
}
