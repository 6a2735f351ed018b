package syncsvc

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/upstream"
)

func buildRevenueReservations(ctx context.Context, rows []upstream.ZanalyticsReservationRow, timezone string, syncedAt time.Time, resolveProject projectResolver) (records []models.RevenueReservation, skipped int, err error) {
	for _, row := range rows {
		name := strings.TrimSpace(row.ProjectName)
		team := strings.TrimSpace(row.SalesTeam)
		if name == "" || team == "" {
			skipped++
			continue
		}
		date, parseErr := parseRowDate(row.ReserveDate, timezone)
		if parseErr != nil {
			skipped++
			continue
		}
		amount, ok := decimalFromNumber(row.Amount)
		if !ok {
			skipped++
			continue
		}
		projectId, resolveErr := resolveProject(ctx, name, 0)
		if resolveErr != nil {
			return records, skipped, resolveErr
		}
		records = append(records, models.RevenueReservation{
			ProjectId:      projectId,
			SalesTeamName:  team,
			ReserveDate:    date,
			ReservedAmount: amount,
			UnitCount:      row.Units,
			DataSource:     models.DataSourceZanalytics,
			LastSyncedAt:   syncedAt,
		})
	}
	return records, skipped, nil
}

func (s *Service) syncRevenueReservations(ctx context.Context, window Window) *SyncResult {
	result := newResult(models.SyncDomainRevenueReservation)
	defer result.finalize()

	existing, err := models.ExistingRevenueReservationKeys(ctx, window.From, window.To)
	if err != nil {
		result.Errors = append(result.Errors, "load existing keys: "+err.Error())
		return result
	}

	rows, err := s.zan.RevenueReservations(ctx, window.FromDate(), window.ToDate())
	if err != nil {
		result.Errors = append(result.Errors, "fetch revenue reservations: "+err.Error())
		return result
	}

	syncedAt := time.Now()
	records, skipped, err := buildRevenueReservations(ctx, rows, s.timezone, syncedAt, dbProjectResolver)
	result.ItemsProcessed = len(rows)
	result.RecordsSkipped += skipped
	if err != nil {
		result.Errors = append(result.Errors, "resolve projects: "+err.Error())
	}

	fresh, dupes := stageRecords(records, existing)
	result.RecordsSkipped += dupes
	if len(fresh) == 0 {
		return result
	}

	saved, conflicts, err := models.SaveRevenueReservations(ctx, fresh)
	result.RecordsSaved = saved
	result.RecordsSkipped += conflicts
	if err != nil {
		result.Errors = append(result.Errors, "save revenue reservations: "+err.Error())
	}
	return result
}
