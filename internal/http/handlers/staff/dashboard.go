package staff

import (
	"github.com/specsflow-next/internal/constants"
	handlershared "github.com/specsflow-next/internal/http/handlers/shared"
	"github.com/specsflow-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetDashboard 仪表盘统计，门店只能查看本店
func (h *Handler) GetDashboard(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	storeID := handlershared.QueryUint(c, "store_id")
	if actor.Is(constants.RoleStore) {
		storeID = actor.ID
	}
	forceRefresh := c.Query("force_refresh") == "true"
	stats, err := h.DashboardService.GetStats(c.Request.Context(), storeID, forceRefresh)
	if err != nil {
		respondServiceError(c, err, "dashboard fetch failed")
		return
	}
	response.Success(c, stats)
}

// CheckFrameAvailability 查询镜架库存
func (h *Handler) CheckFrameAvailability(c *gin.Context) {
	if _, ok := getActor(c); !ok {
		return
	}
	availability, err := h.InventoryGateway.CheckAvailability(c.Param("frame_ref"))
	if err != nil {
		respondServiceError(c, err, "inventory fetch failed")
		return
	}
	response.Success(c, availability)
}
