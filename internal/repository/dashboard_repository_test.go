package repository

import (
	"testing"
	"time"

	"github.com/specsflow-next/internal/constants"
	"github.com/specsflow-next/internal/models"
)

func TestGetWorkflowOverviewFiltersByStore(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDashboardRepository(db)
	now := time.Now()

	orderA := seedRepositoryOrder(t, db, "SO-DASH-A", 1, constants.OrderStatusAssigned)
	orderB := seedRepositoryOrder(t, db, "SO-DASH-B", 2, constants.OrderStatusConfirmed)

	past := now.Add(-time.Hour)
	tasks := []models.LensCuttingTask{
		{
			TaskNo:       "LT-DASH-1",
			SpecsOrderID: orderA.ID,
			FitterID:     3,
			AssignedBy:   1,
			TaskType:     constants.TaskTypeLensCutting,
			Status:       constants.TaskStatusAssigned,
			PayoutStatus: constants.PayoutStatusPending,
			Active:       true,
			AssignedAt:   now,
			Deadline:     &past,
			JobCharge:    models.MustMoney("12.50"),
		},
		{
			TaskNo:       "LT-DASH-2",
			SpecsOrderID: orderB.ID,
			FitterID:     3,
			AssignedBy:   1,
			TaskType:     constants.TaskTypeLensCutting,
			Status:       constants.TaskStatusCompleted,
			Progress:     100,
			PayoutStatus: constants.PayoutStatusPending,
			Active:       true,
			AssignedAt:   now,
			JobCharge:    models.MustMoney("20.00"),
		},
	}
	if err := db.Create(&tasks).Error; err != nil {
		t.Fatalf("create tasks failed: %v", err)
	}

	all, err := repo.GetWorkflowOverview(0, now)
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if all.OrdersByStatus[constants.OrderStatusAssigned] != 1 || all.OrdersByStatus[constants.OrderStatusConfirmed] != 1 {
		t.Fatalf("unexpected order counts: %+v", all.OrdersByStatus)
	}
	if all.ActiveTasks != 2 {
		t.Fatalf("active tasks want 2 got %d", all.ActiveTasks)
	}
	if all.OverdueTasks != 1 {
		t.Fatalf("overdue tasks want 1 got %d", all.OverdueTasks)
	}
	if all.PendingPayoutTasks != 1 || all.PendingPayoutAmount.String() != "20.00" {
		t.Fatalf("pending payout want 1/20 got %d/%v", all.PendingPayoutTasks, all.PendingPayoutAmount)
	}

	storeA, err := repo.GetWorkflowOverview(1, now)
	if err != nil {
		t.Fatalf("store overview failed: %v", err)
	}
	if storeA.OrdersByStatus[constants.OrderStatusConfirmed] != 0 {
		t.Fatalf("store 1 should not see store 2 orders: %+v", storeA.OrdersByStatus)
	}
	if storeA.TasksByStatus[constants.TaskStatusAssigned] != 1 || storeA.TasksByStatus[constants.TaskStatusCompleted] != 0 {
		t.Fatalf("unexpected store task counts: %+v", storeA.TasksByStatus)
	}
}

func TestGetWorkflowOverviewSumsPayoutAsDecimal(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewDashboardRepository(db)
	now := time.Now()
	const storeID = 5

	charges := []string{"0.10", "0.20", "10.05"}
	for i, charge := range charges {
		order := seedRepositoryOrder(t, db, "SO-DASH-CENTS-"+charge, storeID, constants.OrderStatusInProgress)
		task := models.LensCuttingTask{
			TaskNo:       "LT-DASH-CENTS-" + charge,
			SpecsOrderID: order.ID,
			FitterID:     uint(i + 1),
			AssignedBy:   1,
			TaskType:     constants.TaskTypeLensCutting,
			Status:       constants.TaskStatusCompleted,
			Progress:     100,
			PayoutStatus: constants.PayoutStatusPending,
			Active:       true,
			AssignedAt:   now,
			JobCharge:    models.MustMoney(charge),
		}
		if err := db.Create(&task).Error; err != nil {
			t.Fatalf("create task failed: %v", err)
		}
	}

	row, err := repo.GetWorkflowOverview(storeID, now)
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if row.PendingPayoutTasks != 3 {
		t.Fatalf("pending payout tasks want 3 got %d", row.PendingPayoutTasks)
	}
	if got := row.PendingPayoutAmount.String(); got != "10.35" {
		t.Fatalf("pending payout amount want 10.35 got %s", got)
	}
}
