package syncsvc

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/upstream"
)

// entityResolver maps an upstream entity code to a local entity id. Unknown
// codes resolve to (0, false); those rows are skipped, never invented.
type entityResolver func(ctx context.Context, code string) (int, bool)

func dbEntityResolver(ctx context.Context, code string) (int, bool) {
	entity, err := models.GetBusinessEntityByCode(ctx, code)
	if err != nil || entity == nil {
		return 0, false
	}
	return entity.ID, true
}

// buildSalesCollections turns export rows into metric records. Sentinel
// labels in the project column become special rows with zero entity and
// project ids; a record never carries both a project reference and a
// special type.
func buildSalesCollections(ctx context.Context, rows []upstream.ZanalyticsCollectionRow, timezone string, syncedAt time.Time, resolveEntity entityResolver, resolveProject projectResolver) (records []models.SalesCollection, skipped int, err error) {
	for _, row := range rows {
		date, parseErr := parseRowDate(row.CollectionDate, timezone)
		if parseErr != nil {
			skipped++
			continue
		}
		collected, okCollected := decimalFromNumber(row.Collected)
		invoiced, okInvoiced := decimalFromNumber(row.Invoiced)
		if !okCollected || !okInvoiced {
			skipped++
			continue
		}

		record := models.SalesCollection{
			CollectionDate:  date,
			CollectedAmount: collected,
			InvoicedAmount:  invoiced,
			DataSource:      models.DataSourceZanalytics,
			LastSyncedAt:    syncedAt,
		}

		if special := ClassifySpecial(row.ProjectName); special != models.SpecialTypeNone {
			record.SpecialType = special
			records = append(records, record)
			continue
		}

		entityId, ok := resolveEntity(ctx, strings.TrimSpace(row.EntityCode))
		if !ok {
			skipped++
			continue
		}
		record.BusinessEntityId = entityId
		if name := strings.TrimSpace(row.ProjectName); name != "" {
			record.ProjectId, err = resolveProject(ctx, name, entityId)
			if err != nil {
				return records, skipped, err
			}
		}
		records = append(records, record)
	}
	return records, skipped, nil
}

// syncSalesCollections runs the asynchronous bulk export. A failed or
// timed-out export fails the whole run because there is no per-entity slice
// to fall back on.
func (s *Service) syncSalesCollections(ctx context.Context, window Window) *SyncResult {
	result := newResult(models.SyncDomainSalesCollection)
	defer result.finalize()

	existing, err := models.ExistingSalesCollectionKeys(ctx, window.From, window.To)
	if err != nil {
		result.Errors = append(result.Errors, "load existing keys: "+err.Error())
		return result
	}

	rows, err := s.zan.SalesCollections(ctx, window.FromDate(), window.ToDate())
	if err != nil {
		result.Errors = append(result.Errors, "export sales collections: "+err.Error())
		return result
	}

	syncedAt := time.Now()
	records, skipped, err := buildSalesCollections(ctx, rows, s.timezone, syncedAt, dbEntityResolver, dbProjectResolver)
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

	saved, conflicts, err := models.SaveSalesCollections(ctx, fresh)
	result.RecordsSaved = saved
	result.RecordsSkipped += conflicts
	if err != nil {
		result.Errors = append(result.Errors, "save sales collections: "+err.Error())
	}
	return result
}
