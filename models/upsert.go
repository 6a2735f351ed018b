package models

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetricRecord is implemented by every per-domain metric row. The key is the
// stringified uniqueness tuple the table enforces with a unique index; the
// orchestrator uses it to dedupe before writing.
type MetricRecord interface {
	UniquenessKey() string
}

func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "Duplicate entry") {
		return true
	}
	return err == gorm.ErrDuplicatedKey
}

// BulkUpsertMetrics writes records idempotently: the conflict target is the
// table's uniqueness key and a conflicting row gets its metric fields
// replaced. If the bulk statement itself fails with a duplicate-key race,
// records are retried one at a time and individual duplicates are counted
// as skipped instead of failing the run.
func BulkUpsertMetrics[T MetricRecord](ctx context.Context, conflictColumns []string, updateColumns []string, records []T) (saved int, skipped int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	db := config.GetDB()
	cols := make([]clause.Column, 0, len(conflictColumns))
	for _, c := range conflictColumns {
		cols = append(cols, clause.Column{Name: c})
	}

	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   cols,
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).
		Create(&records).Error
	if err == nil {
		return len(records), 0, nil
	}
	if !IsDuplicateKeyError(err) {
		return 0, 0, err
	}

	// Duplicate-key race with another process: fall back to row-at-a-time.
	saved, skipped = 0, 0
	for i := range records {
		record := records[i]
		insErr := db.WithContext(ctx).Create(&record).Error
		if insErr == nil {
			saved++
			continue
		}
		if IsDuplicateKeyError(insErr) {
			skipped++
			continue
		}
		return saved, skipped, insErr
	}
	return saved, skipped, nil
}
