package repository

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRepositoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.WorkflowModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

var repositoryTestPrescriptionSeq uint32

func seedRepositoryOrder(t *testing.T, db *gorm.DB, orderNo string, storeID uint, status string) *models.SpecsOrder {
	t.Helper()
	order := &models.SpecsOrder{
		OrderNo:        orderNo,
		PrescriptionID: uint(atomic.AddUint32(&repositoryTestPrescriptionSeq, 1)),
		PatientID:      7,
		StoreID:        storeID,
		Status:         status,
		Priority:       constants.OrderPriorityNormal,
		OrderDate:      time.Now(),
		TotalAmount:    models.MustMoney("280.00"),
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}
