package repository

import (
	"testing"
	"time"

	"github.com/specsflow-next/internal/models"
)

func TestInventoryReserveAndRelease(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewInventoryRepository(db)
	if err := repo.UpsertStock(&models.FrameStock{FrameRef: "FR-01", Name: "Titan", Quantity: 1}); err != nil {
		t.Fatalf("upsert stock failed: %v", err)
	}

	ok, err := repo.Reserve(11, "FR-01", 1)
	if err != nil || !ok {
		t.Fatalf("reserve should succeed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Reserve(12, "FR-01", 1)
	if err != nil {
		t.Fatalf("reserve second order error: %v", err)
	}
	if ok {
		t.Fatalf("reserve should fail when stock is exhausted")
	}

	if err := repo.ReleaseByOrderID(11, time.Now()); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	// 重复释放不应重复回补
	if err := repo.ReleaseByOrderID(11, time.Now()); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
	stock, err := repo.GetStock("FR-01")
	if err != nil || stock == nil {
		t.Fatalf("get stock failed: %v", err)
	}
	if stock.Quantity != 1 || stock.Reserved != 0 {
		t.Fatalf("stock want quantity=1 reserved=0 got %d/%d", stock.Quantity, stock.Reserved)
	}
}
