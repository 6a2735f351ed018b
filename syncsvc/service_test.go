package syncsvc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/insights_backend/models"
)

func testReserve(entityId int, day string) models.BankReserve {
	date, _ := time.Parse("2006-01-02", day)
	return models.BankReserve{
		BusinessEntityId: entityId,
		ReserveDate:      date,
		TotalAmount:      decimal.NewFromInt(100),
		DataSource:       models.DataSourceFortuna,
		LastSyncedAt:     time.Now(),
	}
}

func TestStageRecordsDropsPersistedAndStagedDuplicates(t *testing.T) {
	records := []models.BankReserve{
		testReserve(1, "2026-01-17"),
		testReserve(1, "2026-01-17"),
		testReserve(2, "2026-01-17"),
		testReserve(3, "2026-01-17"),
	}
	existing := map[string]struct{}{
		records[3].UniquenessKey(): {},
	}

	fresh, skipped := stageRecords(records, existing)
	if len(fresh) != 2 {
		t.Fatalf("got %d fresh records, want 2", len(fresh))
	}
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}
	for _, r := range fresh {
		if r.BusinessEntityId == 3 {
			t.Fatalf("persisted record staged again: %+v", r)
		}
	}
}

func TestRunEntityTasksIsolatesFailures(t *testing.T) {
	entities := []*models.BusinessEntity{
		{ID: 1, Code: "ACME"},
		{ID: 2, Code: "GLOBX"},
		{ID: 3, Code: "NORTE"},
	}

	var completed int32
	errs := runEntityTasks(context.Background(), 2, entities, func(ctx context.Context, entity *models.BusinessEntity) error {
		if entity.Code == "GLOBX" {
			return errors.New("upstream unavailable")
		}
		atomic.AddInt32(&completed, 1)
		return nil
	})

	if got := atomic.LoadInt32(&completed); got != 2 {
		t.Fatalf("completed = %d, want 2", got)
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0] != "GLOBX: upstream unavailable" {
		t.Fatalf("error = %q", errs[0])
	}
}

func TestWorkerLimitFromEnv(t *testing.T) {
	t.Setenv("SYNC_WORKER_LIMIT", "")
	if got := workerLimitFromEnv(); got != defaultWorkerLimit {
		t.Fatalf("default limit = %d, want %d", got, defaultWorkerLimit)
	}
	t.Setenv("SYNC_WORKER_LIMIT", "3")
	if got := workerLimitFromEnv(); got != 3 {
		t.Fatalf("limit = %d, want 3", got)
	}
	t.Setenv("SYNC_WORKER_LIMIT", "junk")
	if got := workerLimitFromEnv(); got != defaultWorkerLimit {
		t.Fatalf("bad value limit = %d, want %d", got, defaultWorkerLimit)
	}
}
