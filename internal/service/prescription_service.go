package service

import (
	"strings"
	"time"

	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/repository"

	"github.com/shopspring/decimal"
)

// PrescriptionService 验光处方服务
type PrescriptionService struct {
	repo repository.PrescriptionRepository
	now  func() time.Time
}

// NewPrescriptionService 创建处方服务
func NewPrescriptionService(repo repository.PrescriptionRepository) *PrescriptionService {
	return &PrescriptionService{repo: repo, now: time.Now}
}

// EyeValues 单眼验光数据
type EyeValues struct {
	Sphere   decimal.Decimal
	Cylinder decimal.Decimal
	Axis     int
	Addition decimal.Decimal
}

// CreatePrescriptionInput 开具处方输入
type CreatePrescriptionInput struct {
	PatientID           uint
	DoctorID            uint
	PrescribedAt        *time.Time
	Right               EyeValues
	Left                EyeValues
	PupillaryDistance   decimal.Decimal
	LensType            string
	LensMaterial        string
	FrameRecommendation string
	Coatings            []string
	Tints               []string
	Instructions        string
}

// Create 开具处方，医生本人开具时以操作人作为开方医生
func (s *PrescriptionService) Create(actor Actor, input CreatePrescriptionInput) (*models.LensPrescription, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	doctorID := input.DoctorID
	if actor.Is(constants.RoleDoctor) {
		doctorID = actor.ID
	}
	if input.PatientID == 0 || doctorID == 0 {
		return nil, ErrInvalidPrescription
	}
	lensType := strings.TrimSpace(input.LensType)
	if lensType == "" {
		return nil, ErrInvalidPrescription
	}
	if !validAxis(input.Right.Axis) || !validAxis(input.Left.Axis) {
		return nil, ErrInvalidPrescription
	}
	if !input.PupillaryDistance.IsPositive() {
		return nil, ErrInvalidPrescription
	}
	if input.Right.Addition.IsNegative() || input.Left.Addition.IsNegative() {
		return nil, ErrInvalidPrescription
	}

	prescribedAt := s.now()
	if input.PrescribedAt != nil && !input.PrescribedAt.IsZero() {
		prescribedAt = *input.PrescribedAt
	}
	prescription := &models.LensPrescription{
		PatientID:           input.PatientID,
		DoctorID:            doctorID,
		PrescribedAt:        prescribedAt,
		RightSphere:         input.Right.Sphere.Round(2),
		RightCylinder:       input.Right.Cylinder.Round(2),
		RightAxis:           input.Right.Axis,
		RightAddition:       input.Right.Addition.Round(2),
		LeftSphere:          input.Left.Sphere.Round(2),
		LeftCylinder:        input.Left.Cylinder.Round(2),
		LeftAxis:            input.Left.Axis,
		LeftAddition:        input.Left.Addition.Round(2),
		PupillaryDistance:   input.PupillaryDistance.Round(1),
		LensType:            lensType,
		LensMaterial:        strings.TrimSpace(input.LensMaterial),
		FrameRecommendation: strings.TrimSpace(input.FrameRecommendation),
		Coatings:            models.StringArray(normalizeStringList(input.Coatings)),
		Tints:               models.StringArray(normalizeStringList(input.Tints)),
		Instructions:        strings.TrimSpace(input.Instructions),
		Status:              constants.PrescriptionStatusPrescribed,
	}
	if err := s.repo.Create(prescription); err != nil {
		return nil, err
	}
	return prescription, nil
}

// Get 获取处方
func (s *PrescriptionService) Get(id uint) (*models.LensPrescription, error) {
	prescription, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if prescription == nil {
		return nil, ErrPrescriptionNotFound
	}
	return prescription, nil
}

// List 处方列表，医生只能查看自己开具的处方
func (s *PrescriptionService) List(actor Actor, filter repository.PrescriptionListFilter) ([]models.LensPrescription, int64, error) {
	if actor.Is(constants.RoleDoctor) {
		filter.DoctorID = actor.ID
	}
	return s.repo.List(filter)
}

func validAxis(axis int) bool {
	return axis >= 0 && axis <= 180
}

func normalizeStringList(items []string) []string {
	result := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}
