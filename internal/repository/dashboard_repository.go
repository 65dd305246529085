package repository

import (
	"time"

	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"

	"gorm.io/gorm"
)

// DashboardRepository 工作流看板聚合查询接口
// 说明：仅聚合统计数据，不承载业务规则。
type DashboardRepository interface {
	GetWorkflowOverview(storeID uint, now time.Time) (DashboardWorkflowRow, error)
}

// DashboardWorkflowRow 看板原始统计结果
type DashboardWorkflowRow struct {
	OrdersByStatus       map[string]int64
	TasksByStatus        map[string]int64
	DeliveriesByStatus   map[string]int64
	ActiveTasks          int64
	OverdueTasks         int64
	ReworkTasks          int64
	PendingPayoutTasks   int64
	PendingPayoutAmount  models.Money
	PendingNotifications int64
	FailedNotifications  int64
}

type statusCountRow struct {
	Status string
	Total  int64
}

// GormDashboardRepository GORM 看板聚合实现
type GormDashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository 创建看板仓库
func NewDashboardRepository(db *gorm.DB) *GormDashboardRepository {
	return &GormDashboardRepository{db: db}
}

func (r *GormDashboardRepository) storeOrderIDs(storeID uint) *gorm.DB {
	return r.db.Model(&models.SpecsOrder{}).Select("id").Where("store_id = ?", storeID)
}

func countByStatus(query *gorm.DB) (map[string]int64, error) {
	var rows []statusCountRow
	if err := query.Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Total
	}
	return result, nil
}

// GetWorkflowOverview 统计订单/任务/交付/通知的状态分布，storeID 为 0 表示全部门店
func (r *GormDashboardRepository) GetWorkflowOverview(storeID uint, now time.Time) (DashboardWorkflowRow, error) {
	result := DashboardWorkflowRow{}

	orderBase := func() *gorm.DB {
		query := r.db.Model(&models.SpecsOrder{})
		if storeID != 0 {
			query = query.Where("store_id = ?", storeID)
		}
		return query
	}
	taskBase := func() *gorm.DB {
		query := r.db.Model(&models.LensCuttingTask{})
		if storeID != 0 {
			query = query.Where("specs_order_id IN (?)", r.storeOrderIDs(storeID))
		}
		return query
	}
	deliveryBase := func() *gorm.DB {
		query := r.db.Model(&models.Delivery{})
		if storeID != 0 {
			query = query.Where("specs_order_id IN (?)", r.storeOrderIDs(storeID))
		}
		return query
	}
	notificationBase := func() *gorm.DB {
		query := r.db.Model(&models.WorkflowNotification{})
		if storeID != 0 {
			query = query.Where("specs_order_id IN (?)", r.storeOrderIDs(storeID))
		}
		return query
	}

	var err error
	if result.OrdersByStatus, err = countByStatus(orderBase()); err != nil {
		return result, err
	}
	if result.TasksByStatus, err = countByStatus(taskBase()); err != nil {
		return result, err
	}
	if result.DeliveriesByStatus, err = countByStatus(deliveryBase()); err != nil {
		return result, err
	}

	if err := taskBase().Where("active = ?", true).Count(&result.ActiveTasks).Error; err != nil {
		return result, err
	}
	openTaskStatuses := []string{constants.TaskStatusAssigned, constants.TaskStatusInProgress}
	if err := taskBase().
		Where("active = ? AND status IN ? AND deadline IS NOT NULL AND deadline < ?", true, openTaskStatuses, now).
		Count(&result.OverdueTasks).Error; err != nil {
		return result, err
	}
	if err := taskBase().Where("rework_of_task_id IS NOT NULL").Count(&result.ReworkTasks).Error; err != nil {
		return result, err
	}

	payoutBase := func() *gorm.DB {
		return taskBase().Where("payout_status = ? AND status IN ?", constants.PayoutStatusPending, []string{
			constants.TaskStatusCompleted,
			constants.TaskStatusQualityCheck,
			constants.TaskStatusSentToStore,
		})
	}
	if err := payoutBase().Count(&result.PendingPayoutTasks).Error; err != nil {
		return result, err
	}
	if err := payoutBase().Select("COALESCE(SUM(job_charge), 0)").Row().Scan(&result.PendingPayoutAmount); err != nil {
		return result, err
	}

	if err := notificationBase().Where("status = ?", constants.NotificationStatusPending).Count(&result.PendingNotifications).Error; err != nil {
		return result, err
	}
	if err := notificationBase().Where("status = ?", constants.NotificationStatusFailed).Count(&result.FailedNotifications).Error; err != nil {
		return result, err
	}
	return result, nil
}
