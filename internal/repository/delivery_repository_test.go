package repository

import (
	"testing"
	"time"

	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"
)

func seedRepositoryDelivery(t *testing.T, repo *GormDeliveryRepository, orderID uint) *models.Delivery {
	t.Helper()
	delivery := &models.Delivery{
		SpecsOrderID:      orderID,
		TaskID:            1,
		Method:            constants.DeliveryMethodPickup,
		Status:            constants.DeliveryStatusReady,
		ReadyAt:           time.Now(),
		FinalQualityCheck: true,
	}
	if err := repo.Create(delivery); err != nil {
		t.Fatalf("create delivery failed: %v", err)
	}
	return delivery
}

func TestConsumePickupTokenOnlyOnce(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	order := seedRepositoryOrder(t, db, "SO-REPO-TOKEN-1", 1, constants.OrderStatusCompleted)
	delivery := seedRepositoryDelivery(t, repo, order.ID)

	now := time.Now()
	ok, err := repo.IssuePickupToken(delivery.ID, "hash-a", now, now.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("issue token failed: ok=%v err=%v", ok, err)
	}

	ok, err = repo.ConsumePickupToken(delivery.ID, "hash-a", now, "Alice")
	if err != nil || !ok {
		t.Fatalf("first consume should succeed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.ConsumePickupToken(delivery.ID, "hash-a", now, "Mallory")
	if err != nil {
		t.Fatalf("second consume error: %v", err)
	}
	if ok {
		t.Fatalf("second consume must not succeed")
	}

	reloaded, err := repo.GetByID(delivery.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload delivery failed: %v", err)
	}
	if reloaded.Status != constants.DeliveryStatusDelivered {
		t.Fatalf("status want delivered got %s", reloaded.Status)
	}
	if reloaded.QRTokenUsedAt == nil {
		t.Fatalf("used_at should be set")
	}
	if reloaded.RecipientName != "Alice" {
		t.Fatalf("recipient want Alice got %s", reloaded.RecipientName)
	}
}

func TestConsumePickupTokenRejectsReplacedHash(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	order := seedRepositoryOrder(t, db, "SO-REPO-TOKEN-2", 1, constants.OrderStatusCompleted)
	delivery := seedRepositoryDelivery(t, repo, order.ID)

	now := time.Now()
	if _, err := repo.IssuePickupToken(delivery.ID, "hash-old", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("issue old token failed: %v", err)
	}
	if _, err := repo.IssuePickupToken(delivery.ID, "hash-new", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("issue new token failed: %v", err)
	}
	ok, err := repo.ConsumePickupToken(delivery.ID, "hash-old", now, "")
	if err != nil {
		t.Fatalf("consume old token error: %v", err)
	}
	if ok {
		t.Fatalf("replaced token hash must not be consumable")
	}
}

func TestIssuePickupTokenAfterDeliveryClearsUsedAt(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	order := seedRepositoryOrder(t, db, "SO-REPO-TOKEN-3", 1, constants.OrderStatusCompleted)
	delivery := seedRepositoryDelivery(t, repo, order.ID)

	now := time.Now()
	if _, err := repo.IssuePickupToken(delivery.ID, "hash-first", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("issue first token failed: %v", err)
	}
	if ok, err := repo.ConsumePickupToken(delivery.ID, "hash-first", now, ""); err != nil || !ok {
		t.Fatalf("consume first token failed: ok=%v err=%v", ok, err)
	}

	ok, err := repo.IssuePickupToken(delivery.ID, "hash-second", now, now.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("reissue on delivered delivery failed: ok=%v err=%v", ok, err)
	}
	reloaded, err := repo.GetByID(delivery.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload delivery failed: %v", err)
	}
	if reloaded.QRTokenHash != "hash-second" || reloaded.QRTokenUsedAt != nil {
		t.Fatalf("expected new hash with used_at cleared, got hash=%s used_at=%v", reloaded.QRTokenHash, reloaded.QRTokenUsedAt)
	}

	ok, err = repo.ConsumePickupToken(delivery.ID, "hash-second", now, "")
	if err != nil {
		t.Fatalf("consume reissued token error: %v", err)
	}
	if ok {
		t.Fatalf("delivered delivery must not be consumed twice")
	}
}

func TestIssuePickupTokenRejectsFailedDelivery(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDeliveryRepository(db)
	order := seedRepositoryOrder(t, db, "SO-REPO-TOKEN-4", 1, constants.OrderStatusCompleted)
	delivery := seedRepositoryDelivery(t, repo, order.ID)
	if _, err := repo.UpdateWhereStatus(delivery.ID, nil, map[string]interface{}{"status": constants.DeliveryStatusFailed}); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}
	now := time.Now()
	ok, err := repo.IssuePickupToken(delivery.ID, "hash", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("issue token error: %v", err)
	}
	if ok {
		t.Fatalf("failed delivery should not accept a new token")
	}
}
