package cache

import "fmt"

// DashboardStatsKey 看板统计缓存 key，storeID 为 0 表示全部门店
func DashboardStatsKey(storeID uint) string {
	return fmt.Sprintf("dashboard:stats:%d", storeID)
}

// WorkflowStatusKey 订单工作流进度缓存 key
func WorkflowStatusKey(orderID uint) string {
	return fmt.Sprintf("workflow:status:%d", orderID)
}
