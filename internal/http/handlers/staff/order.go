package staff

import (
	"strings"
	"time"

	"github.com/specsflow-next/internal/constants"
	handlershared "github.com/specsflow-next/internal/http/handlers/shared"
	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/repository"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderPricingRequest 订单价格明细
type OrderPricingRequest struct {
	FramePrice        decimal.Decimal  `json:"frame_price"`
	LensPrice         decimal.Decimal  `json:"lens_price"`
	CoatingPrice      decimal.Decimal  `json:"coating_price"`
	AdditionalCharges decimal.Decimal  `json:"additional_charges"`
	Tax               *decimal.Decimal `json:"tax"`
	Discount          decimal.Decimal  `json:"discount"`
}

// CreateOrderRequest 创建配镜订单请求
type CreateOrderRequest struct {
	PrescriptionID       uint                `json:"prescription_id" binding:"required"`
	PatientID            uint                `json:"patient_id"`
	StoreID              uint                `json:"store_id"`
	FrameRef             string              `json:"frame_ref"`
	Pricing              OrderPricingRequest `json:"pricing"`
	Priority             string              `json:"priority"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date"`
	Notes                string              `json:"notes"`
}

// CancelOrderRequest 取消订单请求
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CreateOrder 由处方创建配镜订单
func (h *Handler) CreateOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	storeID := req.StoreID
	if actor.Is(constants.RoleStore) {
		storeID = actor.ID
	}

	order, err := h.OrderService.Create(c.Request.Context(), actor, service.CreateSpecsOrderInput{
		PrescriptionID: req.PrescriptionID,
		PatientID:      req.PatientID,
		StoreID:        storeID,
		FrameRef:       req.FrameRef,
		Pricing: service.OrderPricing{
			FramePrice:        req.Pricing.FramePrice,
			LensPrice:         req.Pricing.LensPrice,
			CoatingPrice:      req.Pricing.CoatingPrice,
			AdditionalCharges: req.Pricing.AdditionalCharges,
			Tax:               req.Pricing.Tax,
			Discount:          req.Pricing.Discount,
		},
		Priority:             req.Priority,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Notes:                req.Notes,
	})
	if err != nil {
		respondServiceError(c, err, "order create failed")
		return
	}
	response.Success(c, order)
}

// ListOrders 订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	orders, total, err := h.OrderService.List(actor, repository.SpecsOrderListFilter{
		Page:      page,
		PageSize:  pageSize,
		StoreID:   handlershared.QueryUint(c, "store_id"),
		PatientID: handlershared.QueryUint(c, "patient_id"),
		Status:    strings.TrimSpace(c.Query("status")),
		Keyword:   strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondServiceError(c, err, "order fetch failed")
		return
	}
	response.SuccessWithPage(c, orders, handlershared.BuildPagination(page, pageSize, total))
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	order, ok := h.loadVisibleOrder(c, actor)
	if !ok {
		return
	}
	response.Success(c, order)
}

// ConfirmOrder 确认订单
func (h *Handler) ConfirmOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	order, ok := h.loadVisibleOrder(c, actor)
	if !ok {
		return
	}
	confirmed, err := h.OrderService.Confirm(c.Request.Context(), actor, order.ID)
	if err != nil {
		respondServiceError(c, err, "order confirm failed")
		return
	}
	response.Success(c, confirmed)
}

// CancelOrder 取消订单
func (h *Handler) CancelOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req CancelOrderRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	order, ok := h.loadVisibleOrder(c, actor)
	if !ok {
		return
	}
	canceled, err := h.OrderService.Cancel(c.Request.Context(), actor, order.ID, req.Reason)
	if err != nil {
		respondServiceError(c, err, "order cancel failed")
		return
	}
	response.Success(c, canceled)
}

// GetOrderWorkflow 订单工作流全貌
func (h *Handler) GetOrderWorkflow(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	order, ok := h.loadVisibleOrder(c, actor)
	if !ok {
		return
	}
	status, err := h.WorkflowService.GetWorkflowStatus(c.Request.Context(), order.ID)
	if err != nil {
		respondServiceError(c, err, "workflow fetch failed")
		return
	}
	response.Success(c, status)
}

// loadVisibleOrder 读取路径中的订单，门店只能访问本店订单
func (h *Handler) loadVisibleOrder(c *gin.Context, actor service.Actor) (*models.SpecsOrder, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	order, err := h.OrderService.Get(id)
	if err != nil {
		respondServiceError(c, err, "order fetch failed")
		return nil, false
	}
	if actor.Is(constants.RoleStore) && order.StoreID != actor.ID {
		respondServiceError(c, service.ErrOrderNotFound, "order fetch failed")
		return nil, false
	}
	return order, true
}
