package staff

import (
	"strings"
	"time"

	handlershared "github.com/specsflow-next/internal/http/handlers/shared"
	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/repository"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TaskDetailsRequest 派工参数
type TaskDetailsRequest struct {
	FitterID            uint            `json:"fitter_id" binding:"required"`
	TaskType            string          `json:"task_type"`
	FrameSize           string          `json:"frame_size"`
	SpecialInstructions string          `json:"special_instructions"`
	EstimatedMinutes    int             `json:"estimated_minutes"`
	Deadline            *time.Time      `json:"deadline"`
	JobCharge           decimal.Decimal `json:"job_charge"`
}

func (r TaskDetailsRequest) toService() service.TaskDetails {
	return service.TaskDetails{
		FitterID:            r.FitterID,
		TaskType:            r.TaskType,
		FrameSize:           r.FrameSize,
		SpecialInstructions: r.SpecialInstructions,
		EstimatedMinutes:    r.EstimatedMinutes,
		Deadline:            r.Deadline,
		JobCharge:           r.JobCharge,
	}
}

// ReworkRequest 返工派工请求
type ReworkRequest struct {
	TaskDetailsRequest
	ReworkReason string `json:"rework_reason"`
}

// UpdateProgressRequest 进度更新请求
type UpdateProgressRequest struct {
	Status   *string  `json:"status"`
	Progress *int     `json:"progress"`
	Remarks  *string  `json:"remarks"`
	Photos   []string `json:"photos"`
}

// QCRequest 质检结果请求
type QCRequest struct {
	QCStatus       string `json:"qc_status" binding:"required"`
	QCReason       string `json:"qc_reason"`
	ReworkRequired *bool  `json:"rework_required"`
	ReworkReason   string `json:"rework_reason"`
}

// PayoutRequest 结算请求
type PayoutRequest struct {
	PayoutStatus string           `json:"payout_status" binding:"required"`
	JobCharge    *decimal.Decimal `json:"job_charge"`
}

// SendToStoreRequest 送回门店请求
type SendToStoreRequest struct {
	TrackingInfo  string `json:"tracking_info"`
	DeliveryNotes string `json:"delivery_notes"`
}

// AssignTask 为订单派工
func (h *Handler) AssignTask(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req TaskDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	order, ok := h.loadVisibleOrder(c, actor)
	if !ok {
		return
	}
	task, err := h.TaskService.Assign(c.Request.Context(), actor, order.ID, req.toService())
	if err != nil {
		respondServiceError(c, err, "task assign failed")
		return
	}
	response.Success(c, task)
}

// AssignRework 为质检失败的任务派发返工
func (h *Handler) AssignRework(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	visible, ok := h.loadVisibleTask(c, actor)
	if !ok {
		return
	}
	var req ReworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	task, err := h.TaskService.AssignRework(c.Request.Context(), actor, visible.ID, service.ReworkInput{
		TaskDetails:  req.toService(),
		ReworkReason: req.ReworkReason,
	})
	if err != nil {
		respondServiceError(c, err, "rework assign failed")
		return
	}
	response.Success(c, task)
}

// ListTasks 任务列表
func (h *Handler) ListTasks(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	tasks, total, err := h.TaskService.List(actor, repository.TaskListFilter{
		Page:         page,
		PageSize:     pageSize,
		SpecsOrderID: handlershared.QueryUint(c, "specs_order_id"),
		FitterID:     handlershared.QueryUint(c, "fitter_id"),
		Status:       strings.TrimSpace(c.Query("status")),
		PayoutStatus: strings.TrimSpace(c.Query("payout_status")),
		OnlyActive:   c.Query("active") == "true",
	})
	if err != nil {
		respondServiceError(c, err, "task fetch failed")
		return
	}
	response.SuccessWithPage(c, tasks, handlershared.BuildPagination(page, pageSize, total))
}

// GetTask 任务详情
func (h *Handler) GetTask(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	task, ok := h.loadVisibleTask(c, actor)
	if !ok {
		return
	}
	response.Success(c, task)
}

// UpdateTaskProgress 更新加工进度
func (h *Handler) UpdateTaskProgress(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	visible, ok := h.loadVisibleTask(c, actor)
	if !ok {
		return
	}
	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	task, err := h.TaskService.UpdateProgress(c.Request.Context(), actor, visible.ID, service.UpdateProgressInput{
		Status:   req.Status,
		Progress: req.Progress,
		Remarks:  req.Remarks,
		Photos:   req.Photos,
	})
	if err != nil {
		respondServiceError(c, err, "task progress update failed")
		return
	}
	response.Success(c, task)
}

// RecordTaskQC 记录质检结果
func (h *Handler) RecordTaskQC(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	visible, ok := h.loadVisibleTask(c, actor)
	if !ok {
		return
	}
	var req QCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	task, err := h.TaskService.RecordQC(c.Request.Context(), actor, visible.ID, service.QCInput{
		QCStatus:       req.QCStatus,
		QCReason:       req.QCReason,
		ReworkRequired: req.ReworkRequired,
		ReworkReason:   req.ReworkReason,
	})
	if err != nil {
		respondServiceError(c, err, "task qc failed")
		return
	}
	response.Success(c, task)
}

// RecordTaskPayout 记录结算状态
func (h *Handler) RecordTaskPayout(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	visible, ok := h.loadVisibleTask(c, actor)
	if !ok {
		return
	}
	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	task, err := h.TaskService.RecordPayout(c.Request.Context(), actor, visible.ID, service.PayoutInput{
		PayoutStatus: req.PayoutStatus,
		JobCharge:    req.JobCharge,
	})
	if err != nil {
		respondServiceError(c, err, "task payout failed")
		return
	}
	response.Success(c, task)
}

// SendTaskToStore 加工完成送回门店
func (h *Handler) SendTaskToStore(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	visible, ok := h.loadVisibleTask(c, actor)
	if !ok {
		return
	}
	var req SendToStoreRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	result, err := h.TaskService.SendToStore(c.Request.Context(), actor, visible.ID, service.SendToStoreInput{
		TrackingInfo:  req.TrackingInfo,
		DeliveryNotes: req.DeliveryNotes,
	})
	if err != nil {
		respondServiceError(c, err, "send to store failed")
		return
	}
	response.Success(c, result)
}

// loadVisibleTask 读取路径中的任务，加工师只能访问自己的任务，门店只能访问本店订单的任务
func (h *Handler) loadVisibleTask(c *gin.Context, actor service.Actor) (*models.LensCuttingTask, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	task, err := h.TaskService.Get(actor, id)
	if err != nil {
		respondServiceError(c, err, "task fetch failed")
		return nil, false
	}
	return task, true
}
