package syncsvc

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/upstream"
)

func buildExpensePayouts(entityId int, rows []upstream.FortunaPayoutRow, timezone string, syncedAt time.Time) (records []models.ExpensePayout, skipped int) {
	for _, row := range rows {
		date, err := parseRowDate(row.PayoutDate, timezone)
		if err != nil {
			skipped++
			continue
		}
		amount, ok := decimalFromNumber(row.Amount)
		if !ok {
			skipped++
			continue
		}
		records = append(records, models.ExpensePayout{
			BusinessEntityId: entityId,
			PayoutDate:       date,
			PayoutAmount:     amount,
			TransactionCount: row.TxnCount,
			DataSource:       models.DataSourceFortuna,
			LastSyncedAt:     syncedAt,
		})
	}
	return records, skipped
}

// aggregateExpensePayouts emits the entity 0 total row per date, like the
// bank reserve aggregation.
func aggregateExpensePayouts(records []models.ExpensePayout, syncedAt time.Time) []models.ExpensePayout {
	byDate := map[string]*models.ExpensePayout{}
	order := []string{}
	for _, r := range records {
		key := r.PayoutDate.Format("2006-01-02")
		b, ok := byDate[key]
		if !ok {
			b = &models.ExpensePayout{
				BusinessEntityId: 0,
				PayoutDate:       r.PayoutDate,
				DataSource:       models.DataSourceFortuna,
				LastSyncedAt:     syncedAt,
			}
			byDate[key] = b
			order = append(order, key)
		}
		b.PayoutAmount = b.PayoutAmount.Add(r.PayoutAmount)
		b.TransactionCount += r.TransactionCount
	}
	totals := make([]models.ExpensePayout, 0, len(order))
	for _, key := range order {
		totals = append(totals, *byDate[key])
	}
	return totals
}

func (s *Service) syncExpensePayouts(ctx context.Context, window Window) *SyncResult {
	result := newResult(models.SyncDomainExpensePayout)
	defer result.finalize()

	entities, err := models.ListBusinessEntities(ctx)
	if err != nil {
		result.Errors = append(result.Errors, "load business entities: "+err.Error())
		return result
	}
	existing, err := models.ExistingExpensePayoutKeys(ctx, window.From, window.To, models.DataSourceFortuna)
	if err != nil {
		result.Errors = append(result.Errors, "load existing keys: "+err.Error())
		return result
	}

	syncedAt := time.Now()
	collected := newCollector[models.ExpensePayout]()
	errs := runEntityTasks(ctx, s.workerLimit, entities, func(ctx context.Context, entity *models.BusinessEntity) error {
		rows, err := s.fortuna.ExpensePayouts(ctx, window.FromDate(), window.ToDate(), entity.Code)
		if err != nil {
			return err
		}
		records, skipped := buildExpensePayouts(entity.ID, rows, s.timezone, syncedAt)
		collected.add(records, skipped, len(rows))
		return nil
	})
	result.Errors = append(result.Errors, errs...)

	records, skipped, processed := collected.drain()
	result.ItemsProcessed = processed
	result.RecordsSkipped += skipped

	records = append(records, aggregateExpensePayouts(records, syncedAt)...)
	fresh, dupes := stageRecords(records, existing)
	result.RecordsSkipped += dupes
	if len(fresh) == 0 {
		return result
	}

	saved, conflicts, err := models.SaveExpensePayouts(ctx, fresh)
	result.RecordsSaved = saved
	result.RecordsSkipped += conflicts
	if err != nil {
		result.Errors = append(result.Errors, "save expense payouts: "+err.Error())
	}
	return result
}
