package repository

import "gorm.io/gorm"

// maxListPageSize 列表单页上限，与接口层保持一致
const maxListPageSize = 100

// applyPagination 按页码截取列表；pageSize 不大于 0 时返回全部
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}
