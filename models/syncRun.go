package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
)

// SyncRun records one orchestrated sync for one domain: counts, status,
// timings and the retained error strings.
type SyncRun struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	Domain      SyncDomain `gorm:"size:40;index;not null" json:"domain"`
	Status      string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy string     `gorm:"size:20" json:"triggered_by"`

	WindowFrom time.Time `gorm:"type:date" json:"window_from"`
	WindowTo   time.Time `gorm:"type:date" json:"window_to"`

	ItemsProcessed int    `json:"items_processed"`
	RecordsSaved   int    `json:"records_saved"`
	RecordsSkipped int    `json:"records_skipped"`
	ErrorCount     int    `json:"error_count"`
	ErrorsJSON     []byte `gorm:"type:json" json:"errors"`

	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	DurationMs int64      `json:"duration_ms"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func CreateSyncRun(ctx context.Context, domain SyncDomain, triggeredBy string, from, to time.Time) (*SyncRun, error) {
	now := time.Now()
	run := SyncRun{
		Domain:      domain,
		Status:      SyncRunStatusRunning,
		TriggeredBy: triggeredBy,
		WindowFrom:  from,
		WindowTo:    to,
		StartedAt:   &now,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func FinishSyncRun(ctx context.Context, run *SyncRun, status string, itemsProcessed, saved, skipped int, errs []string) error {
	if run == nil {
		return nil
	}
	finishedAt := time.Now()
	var durationMs int64
	if run.StartedAt != nil {
		durationMs = finishedAt.Sub(*run.StartedAt).Milliseconds()
	}
	errsJSON, _ := json.Marshal(errs)

	db := config.GetDB()
	return db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":          status,
		"items_processed": itemsProcessed,
		"records_saved":   saved,
		"records_skipped": skipped,
		"error_count":     len(errs),
		"errors_json":     errsJSON,
		"finished_at":     finishedAt,
		"duration_ms":     durationMs,
	}).Error
}

// RecentSyncRuns lists the latest runs for a domain, newest first.
func RecentSyncRuns(ctx context.Context, domain SyncDomain, limit int) ([]*SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []*SyncRun
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Order("id DESC").Limit(limit)
	if domain != "" {
		dbCtx = dbCtx.Where("domain = ?", domain)
	}
	if err := dbCtx.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
