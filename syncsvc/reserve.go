package syncsvc

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/upstream"
	"github.com/shopspring/decimal"
)

// buildBankReserves turns one entity's Fortuna rows into metric records.
// Rows with a zero total or an unparseable date/amount are dropped and
// counted as skipped.
func buildBankReserves(entityId int, rows []upstream.FortunaReserveRow, timezone string, syncedAt time.Time) (records []models.BankReserve, skipped int) {
	for _, row := range rows {
		date, err := parseRowDate(row.BalanceDate, timezone)
		if err != nil {
			skipped++
			continue
		}
		es, okEs := decimalFromNumber(row.ES)
		nonEs, okNon := decimalFromNumber(row.NonES)
		if !okEs || !okNon {
			skipped++
			continue
		}
		total := es.Add(nonEs)
		if total.IsZero() {
			skipped++
			continue
		}
		records = append(records, models.BankReserve{
			BusinessEntityId: entityId,
			ReserveDate:      date,
			EsAmount:         es,
			NonEsAmount:      nonEs,
			TotalAmount:      total,
			DataSource:       models.DataSourceFortuna,
			LastSyncedAt:     syncedAt,
		})
	}
	return records, skipped
}

// aggregateBankReserves emits one cross-entity total row per date that has
// at least one per-entity record. Entity id 0 marks the total row.
func aggregateBankReserves(records []models.BankReserve, syncedAt time.Time) []models.BankReserve {
	type bucket struct {
		date  time.Time
		es    decimal.Decimal
		nonEs decimal.Decimal
	}
	byDate := map[string]*bucket{}
	for _, r := range records {
		key := r.ReserveDate.Format("2006-01-02")
		b, ok := byDate[key]
		if !ok {
			b = &bucket{date: r.ReserveDate, es: decimal.Zero, nonEs: decimal.Zero}
			byDate[key] = b
		}
		b.es = b.es.Add(r.EsAmount)
		b.nonEs = b.nonEs.Add(r.NonEsAmount)
	}

	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	totals := make([]models.BankReserve, 0, len(keys))
	for _, k := range keys {
		b := byDate[k]
		totals = append(totals, models.BankReserve{
			BusinessEntityId: 0,
			ReserveDate:      b.date,
			EsAmount:         b.es,
			NonEsAmount:      b.nonEs,
			TotalAmount:      b.es.Add(b.nonEs),
			DataSource:       models.DataSourceFortuna,
			LastSyncedAt:     syncedAt,
		})
	}
	return totals
}

func (s *Service) syncBankReserves(ctx context.Context, window Window) *SyncResult {
	result := newResult(models.SyncDomainBankReserve)
	defer result.finalize()

	entities, err := models.ListBusinessEntities(ctx)
	if err != nil {
		result.Errors = append(result.Errors, "load business entities: "+err.Error())
		return result
	}
	existing, err := models.ExistingBankReserveKeys(ctx, window.From, window.To, models.DataSourceFortuna)
	if err != nil {
		result.Errors = append(result.Errors, "load existing keys: "+err.Error())
		return result
	}

	syncedAt := time.Now()
	collected := newCollector[models.BankReserve]()
	errs := runEntityTasks(ctx, s.workerLimit, entities, func(ctx context.Context, entity *models.BusinessEntity) error {
		rows, err := s.fortuna.ReserveBalances(ctx, window.FromDate(), window.ToDate(), entity.Code)
		if err != nil {
			return err
		}
		records, skipped := buildBankReserves(entity.ID, rows, s.timezone, syncedAt)
		collected.add(records, skipped, len(rows))
		return nil
	})
	result.Errors = append(result.Errors, errs...)

	records, skipped, processed := collected.drain()
	result.ItemsProcessed = processed
	result.RecordsSkipped += skipped

	records = append(records, aggregateBankReserves(records, syncedAt)...)
	fresh, dupes := stageRecords(records, existing)
	result.RecordsSkipped += dupes
	if len(fresh) == 0 {
		return result
	}

	saved, conflicts, err := models.SaveBankReserves(ctx, fresh)
	result.RecordsSaved = saved
	result.RecordsSkipped += conflicts
	if err != nil {
		result.Errors = append(result.Errors, "save bank reserves: "+err.Error())
	}
	return result
}
