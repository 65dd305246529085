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

// ScheduleDeliveryRequest 安排配送请求
type ScheduleDeliveryRequest struct {
	Method         string     `json:"method" binding:"required"`
	ScheduledDate  *time.Time `json:"scheduled_date"`
	Address        string     `json:"address"`
	RecipientName  string     `json:"recipient_name"`
	RecipientPhone string     `json:"recipient_phone"`
}

// ShipDeliveryRequest 发货请求
type ShipDeliveryRequest struct {
	CourierService  string           `json:"courier_service"`
	TrackingNumber  string           `json:"tracking_number"`
	ShippingCharges *decimal.Decimal `json:"shipping_charges"`
	ScheduledDate   *time.Time       `json:"scheduled_date"`
}

// PickupTokenRequest 签发取件码请求
type PickupTokenRequest struct {
	TTLHours int `json:"ttl_hours"`
}

// VerifyPickupRequest 核验取件码请求
type VerifyPickupRequest struct {
	Token         string `json:"token" binding:"required"`
	RecipientName string `json:"recipient_name"`
}

// ConfirmDeliveredRequest 确认送达请求
type ConfirmDeliveredRequest struct {
	RecipientName string `json:"recipient_name"`
	Feedback      string `json:"feedback"`
	Rating        *int   `json:"rating"`
}

// MarkDeliveryFailedRequest 配送失败请求
type MarkDeliveryFailedRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ListDeliveries 交付列表
func (h *Handler) ListDeliveries(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	rows, total, err := h.DeliveryService.List(actor, repository.DeliveryListFilter{
		Page:     page,
		PageSize: pageSize,
		StoreID:  handlershared.QueryUint(c, "store_id"),
		Status:   strings.TrimSpace(c.Query("status")),
		Method:   strings.TrimSpace(c.Query("method")),
	})
	if err != nil {
		respondServiceError(c, err, "delivery fetch failed")
		return
	}
	response.SuccessWithPage(c, rows, handlershared.BuildPagination(page, pageSize, total))
}

// GetDelivery 交付详情
func (h *Handler) GetDelivery(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	delivery, ok := h.loadVisibleDelivery(c, actor)
	if !ok {
		return
	}
	response.Success(c, delivery)
}

// ScheduleDelivery 安排配送
func (h *Handler) ScheduleDelivery(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req ScheduleDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	delivery, ok := h.loadVisibleDelivery(c, actor)
	if !ok {
		return
	}
	updated, err := h.DeliveryService.Schedule(c.Request.Context(), actor, delivery.ID, service.ScheduleDeliveryInput{
		Method:         req.Method,
		ScheduledDate:  req.ScheduledDate,
		Address:        req.Address,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
	})
	if err != nil {
		respondServiceError(c, err, "delivery schedule failed")
		return
	}
	response.Success(c, updated)
}

// ShipDelivery 发货
func (h *Handler) ShipDelivery(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req ShipDeliveryRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	delivery, ok := h.loadVisibleDelivery(c, actor)
	if !ok {
		return
	}
	updated, err := h.DeliveryService.Ship(c.Request.Context(), actor, delivery.ID, service.ShipDeliveryInput{
		CourierService:  req.CourierService,
		TrackingNumber:  req.TrackingNumber,
		ShippingCharges: req.ShippingCharges,
		ScheduledDate:   req.ScheduledDate,
	})
	if err != nil {
		respondServiceError(c, err, "delivery ship failed")
		return
	}
	response.Success(c, updated)
}

// GeneratePickupToken 签发取件码
func (h *Handler) GeneratePickupToken(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req PickupTokenRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if req.TTLHours < 0 {
		respondServiceError(c, service.ErrInvalidTokenTTL, "pickup token failed")
		return
	}
	delivery, ok := h.loadVisibleDelivery(c, actor)
	if !ok {
		return
	}
	token, err := h.DeliveryService.GeneratePickupToken(c.Request.Context(), actor, delivery.ID, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		respondServiceError(c, err, "pickup token failed")
		return
	}
	response.Success(c, token)
}

// VerifyPickup 核验取件码并完成交付
func (h *Handler) VerifyPickup(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req VerifyPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	delivery, ok := h.loadVisibleDelivery(c, actor)
	if !ok {
		return
	}
	result, err := h.DeliveryService.VerifyPickup(c.Request.Context(), actor, delivery.ID, req.Token, req.RecipientName)
	if err != nil {
		if result != nil && !result.Valid {
			response.ErrorWithData(c, response.CodeBadRequest, result.Reason, gin.H{"valid": false, "reason": result.Reason})
			return
		}
		respondServiceError(c, err, "pickup verify failed")
		return
	}
	response.Success(c, result)
}

// ConfirmDelivered 确认送达
func (h *Handler) ConfirmDelivered(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req ConfirmDeliveredRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	delivery, ok := h.loadVisibleDelivery(c, actor)
	if !ok {
		return
	}
	updated, err := h.DeliveryService.ConfirmDelivered(c.Request.Context(), actor, delivery.ID, service.ConfirmDeliveredInput{
		RecipientName: req.RecipientName,
		Feedback:      req.Feedback,
		Rating:        req.Rating,
	})
	if err != nil {
		respondServiceError(c, err, "delivery confirm failed")
		return
	}
	response.Success(c, updated)
}

// MarkDeliveryFailed 标记配送失败
func (h *Handler) MarkDeliveryFailed(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req MarkDeliveryFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	delivery, ok := h.loadVisibleDelivery(c, actor)
	if !ok {
		return
	}
	updated, err := h.DeliveryService.MarkFailed(c.Request.Context(), actor, delivery.ID, req.Reason)
	if err != nil {
		respondServiceError(c, err, "delivery mark failed")
		return
	}
	response.Success(c, updated)
}

// loadVisibleDelivery 读取路径中的交付单，门店只能访问本店订单的交付
func (h *Handler) loadVisibleDelivery(c *gin.Context, actor service.Actor) (*models.Delivery, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	delivery, err := h.DeliveryService.Get(id)
	if err != nil {
		respondServiceError(c, err, "delivery fetch failed")
		return nil, false
	}
	if actor.Is(constants.RoleStore) {
		order, err := h.OrderService.Get(delivery.SpecsOrderID)
		if err != nil {
			respondServiceError(c, err, "delivery fetch failed")
			return nil, false
		}
		if order.StoreID != actor.ID {
			respondServiceError(c, service.ErrDeliveryNotFound, "delivery fetch failed")
			return nil, false
		}
	}
	return delivery, true
}
