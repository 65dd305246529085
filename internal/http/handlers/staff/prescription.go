package staff

import (
	"strings"
	"time"

	"github.com/specsflow-next/internal/constants"
	handlershared "github.com/specsflow-next/internal/http/handlers/shared"
	"github.com/specsflow-next/internal/http/response"
	"github.com/specsflow-next/internal/repository"
	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// EyeValuesRequest 单眼验光参数
type EyeValuesRequest struct {
	Sphere   decimal.Decimal `json:"sphere"`
	Cylinder decimal.Decimal `json:"cylinder"`
	Axis     int             `json:"axis"`
	Addition decimal.Decimal `json:"addition"`
}

func (r EyeValuesRequest) toService() service.EyeValues {
	return service.EyeValues{
		Sphere:   r.Sphere,
		Cylinder: r.Cylinder,
		Axis:     r.Axis,
		Addition: r.Addition,
	}
}

// CreatePrescriptionRequest 开具处方请求
type CreatePrescriptionRequest struct {
	PatientID           uint             `json:"patient_id" binding:"required"`
	DoctorID            uint             `json:"doctor_id"`
	PrescribedAt        *time.Time       `json:"prescribed_at"`
	Right               EyeValuesRequest `json:"right"`
	Left                EyeValuesRequest `json:"left"`
	PupillaryDistance   decimal.Decimal  `json:"pupillary_distance"`
	LensType            string           `json:"lens_type" binding:"required"`
	LensMaterial        string           `json:"lens_material"`
	FrameRecommendation string           `json:"frame_recommendation"`
	Coatings            []string         `json:"coatings"`
	Tints               []string         `json:"tints"`
	Instructions        string           `json:"instructions"`
}

// CreatePrescription 开具处方
func (h *Handler) CreatePrescription(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	prescription, err := h.PrescriptionService.Create(actor, service.CreatePrescriptionInput{
		PatientID:           req.PatientID,
		DoctorID:            req.DoctorID,
		PrescribedAt:        req.PrescribedAt,
		Right:               req.Right.toService(),
		Left:                req.Left.toService(),
		PupillaryDistance:   req.PupillaryDistance,
		LensType:            req.LensType,
		LensMaterial:        req.LensMaterial,
		FrameRecommendation: req.FrameRecommendation,
		Coatings:            req.Coatings,
		Tints:               req.Tints,
		Instructions:        req.Instructions,
	})
	if err != nil {
		respondServiceError(c, err, "prescription create failed")
		return
	}
	response.Success(c, prescription)
}

// ListPrescriptions 处方列表
func (h *Handler) ListPrescriptions(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.PrescriptionListFilter{
		Page:      page,
		PageSize:  pageSize,
		PatientID: handlershared.QueryUint(c, "patient_id"),
		DoctorID:  handlershared.QueryUint(c, "doctor_id"),
		Status:    strings.TrimSpace(c.Query("status")),
	}
	rows, total, err := h.PrescriptionService.List(actor, filter)
	if err != nil {
		respondServiceError(c, err, "prescription fetch failed")
		return
	}
	response.SuccessWithPage(c, rows, handlershared.BuildPagination(page, pageSize, total))
}

// GetPrescription 处方详情
func (h *Handler) GetPrescription(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	prescription, err := h.PrescriptionService.Get(id)
	if err != nil {
		respondServiceError(c, err, "prescription fetch failed")
		return
	}
	if actor.Is(constants.RoleDoctor) && prescription.DoctorID != actor.ID {
		respondServiceError(c, service.ErrPrescriptionNotFound, "prescription fetch failed")
		return
	}
	response.Success(c, prescription)
}
