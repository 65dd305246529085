package main

import (
	"fmt"
	"time"

	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/logger"
	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/repository"
	"github.com/specsflow-next/internal/service"

	"github.com/shopspring/decimal"
)

type seedActor struct {
	actor service.Actor
	name  string
	email string
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	actors := []seedActor{
		{actor: service.Actor{ID: 1, Role: constants.RoleAdmin}, name: "Admin", email: "admin@specsflow.local"},
		{actor: service.Actor{ID: 11, Role: constants.RoleDoctor}, name: "Dr. Lin", email: "doctor@specsflow.local"},
		{actor: service.Actor{ID: 21, Role: constants.RoleStore}, name: "Harbour Optics", email: "store@specsflow.local"},
		{actor: service.Actor{ID: 31, Role: constants.RoleFitter}, name: "Chen Fitter", email: "fitter@specsflow.local"},
		{actor: service.Actor{ID: 41, Role: constants.RoleCourier}, name: "Swift Courier", email: "courier@specsflow.local"},
		{actor: service.Actor{ID: 101, Role: constants.RolePatient}, name: "Pat Wong", email: "patient@specsflow.local"},
	}

	// 联系人
	contactRepo := repository.NewContactRepository(models.DB)
	for _, item := range actors {
		if item.actor.Role == constants.RoleCourier {
			continue
		}
		contact := &models.Contact{
			RecipientType: item.actor.Role,
			RecipientID:   item.actor.ID,
			Name:          item.name,
			Email:         item.email,
		}
		if err := contactRepo.Upsert(contact); err != nil {
			stdLog.Printf("Failed to upsert contact %s: %v", item.email, err)
			continue
		}
		stdLog.Printf("Upserted contact: %s (%s)", item.email, item.actor.Role)
	}

	// 镜架库存
	inventoryRepo := repository.NewInventoryRepository(models.DB)
	frames := []models.FrameStock{
		{FrameRef: "FR-ROUND-01", Name: "Round Titanium", Quantity: 12},
		{FrameRef: "FR-SQUARE-02", Name: "Square Acetate", Quantity: 8},
		{FrameRef: "FR-RIMLESS-03", Name: "Rimless Light", Quantity: 0},
	}
	for i := range frames {
		if err := inventoryRepo.UpsertStock(&frames[i]); err != nil {
			stdLog.Printf("Failed to upsert frame %s: %v", frames[i].FrameRef, err)
			continue
		}
		stdLog.Printf("Upserted frame: %s qty=%d", frames[i].FrameRef, frames[i].Quantity)
	}

	// 示例处方
	prescriptions := service.NewPrescriptionService(repository.NewPrescriptionRepository(models.DB))
	doctor := actors[1].actor
	patient := actors[5].actor
	prescribedAt := time.Now()
	prescription, err := prescriptions.Create(doctor, service.CreatePrescriptionInput{
		PatientID:    patient.ID,
		PrescribedAt: &prescribedAt,
		Right: service.EyeValues{
			Sphere:   decimal.RequireFromString("-1.25"),
			Cylinder: decimal.RequireFromString("-0.50"),
			Axis:     90,
		},
		Left: service.EyeValues{
			Sphere:   decimal.RequireFromString("-1.00"),
			Cylinder: decimal.RequireFromString("-0.25"),
			Axis:     85,
		},
		PupillaryDistance:   decimal.RequireFromString("63.0"),
		LensType:            "single_vision",
		LensMaterial:        "polycarbonate",
		FrameRecommendation: "FR-ROUND-01",
		Coatings:            []string{"anti_reflective"},
	})
	if err != nil {
		stdLog.Printf("Failed to create prescription: %v", err)
	} else {
		stdLog.Printf("Created prescription: id=%d patient=%d", prescription.ID, prescription.PatientID)
	}

	// 各角色调试令牌
	fmt.Println("Actor tokens:")
	for _, item := range actors {
		token, expiresAt, err := service.IssueActorToken(cfg.JWT, item.actor, time.Now())
		if err != nil {
			stdLog.Printf("Failed to issue token for %s: %v", item.actor.Role, err)
			continue
		}
		fmt.Printf("  %-8s id=%-4d exp=%s\n    %s\n", item.actor.Role, item.actor.ID, expiresAt.Format(time.RFC3339), token)
	}
}
