package syncsvc

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/upstream"
)

// projectResolver is the thin seam the transformers use to tie upstream
// project names to local project ids. The production resolver is
// models.GetOrCreateProjectByName; tests inject a map-backed fake.
type projectResolver func(ctx context.Context, name string, businessEntityId int) (int, error)

func dbProjectResolver(ctx context.Context, name string, businessEntityId int) (int, error) {
	project, err := models.GetOrCreateProjectByName(ctx, name, businessEntityId)
	if err != nil {
		return 0, err
	}
	return project.ID, nil
}

func buildProcurementOrders(ctx context.Context, entityId int, rows []upstream.FortunaPurchaseOrderRow, timezone string, syncedAt time.Time, resolve projectResolver) (records []models.ProcurementOrder, skipped int, err error) {
	for _, row := range rows {
		poNo := strings.TrimSpace(row.PONumber)
		if poNo == "" {
			skipped++
			continue
		}
		date, parseErr := parseRowDate(row.OrderDate, timezone)
		if parseErr != nil {
			skipped++
			continue
		}
		amount, ok := decimalFromNumber(row.Amount)
		if !ok {
			skipped++
			continue
		}
		projectId := 0
		if name := strings.TrimSpace(row.ProjectName); name != "" {
			projectId, err = resolve(ctx, name, entityId)
			if err != nil {
				return records, skipped, err
			}
		}
		records = append(records, models.ProcurementOrder{
			PurchaseOrderNo:  poNo,
			BusinessEntityId: entityId,
			ProjectId:        projectId,
			OrderDate:        date,
			OrderAmount:      amount,
			SupplierName:     strings.TrimSpace(row.SupplierName),
			Status:           strings.TrimSpace(row.Status),
			DataSource:       models.DataSourceFortuna,
			LastSyncedAt:     syncedAt,
		})
	}
	return records, skipped, nil
}

func (s *Service) syncProcurementOrders(ctx context.Context, window Window) *SyncResult {
	result := newResult(models.SyncDomainProcurementOrder)
	defer result.finalize()

	entities, err := models.ListBusinessEntities(ctx)
	if err != nil {
		result.Errors = append(result.Errors, "load business entities: "+err.Error())
		return result
	}
	existing, err := models.ExistingProcurementOrderKeys(ctx)
	if err != nil {
		result.Errors = append(result.Errors, "load existing keys: "+err.Error())
		return result
	}

	syncedAt := time.Now()
	collected := newCollector[models.ProcurementOrder]()
	errs := runEntityTasks(ctx, s.workerLimit, entities, func(ctx context.Context, entity *models.BusinessEntity) error {
		rows, err := s.fortuna.PurchaseOrders(ctx, window.FromDate(), window.ToDate(), entity.Code)
		if err != nil {
			return err
		}
		records, skipped, err := buildProcurementOrders(ctx, entity.ID, rows, s.timezone, syncedAt, dbProjectResolver)
		collected.add(records, skipped, len(rows))
		return err
	})
	result.Errors = append(result.Errors, errs...)

	records, skipped, processed := collected.drain()
	result.ItemsProcessed = processed
	result.RecordsSkipped += skipped

	fresh, dupes := stageRecords(records, existing)
	result.RecordsSkipped += dupes
	if len(fresh) == 0 {
		return result
	}

	saved, conflicts, err := models.SaveProcurementOrders(ctx, fresh)
	result.RecordsSaved = saved
	result.RecordsSkipped += conflicts
	if err != nil {
		result.Errors = append(result.Errors, "save procurement orders: "+err.Error())
	}
	return result
}
