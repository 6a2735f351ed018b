package syncsvc

import (
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/models"
)

// SyncResult is the structured outcome of one domain run. Partial success
// (errors but at least one saved record) still counts as Success; the
// errors are retained either way.
type SyncResult struct {
	Domain  models.SyncDomain `json:"domain"`
	Success bool              `json:"success"`
	// ItemsProcessed counts upstream rows handled, the same meaning for
	// fan-out and single-task domains.
	ItemsProcessed int `json:"items_processed"`
	RecordsSaved   int               `json:"records_saved"`
	RecordsSkipped int               `json:"records_skipped"`
	Errors         []string          `json:"errors"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
}

func (r *SyncResult) finalize() {
	r.FinishedAt = time.Now()
	r.DurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	r.Success = len(r.Errors) == 0 || r.RecordsSaved > 0
}

func (r *SyncResult) runStatus() string {
	switch {
	case len(r.Errors) == 0:
		return models.SyncRunStatusSuccess
	case r.RecordsSaved > 0:
		return models.SyncRunStatusPartial
	default:
		return models.SyncRunStatusFailed
	}
}
