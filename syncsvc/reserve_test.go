package syncsvc

import (
	"encoding/json"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/upstream"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
)

func TestBuildBankReservesFiltersZeroTotals(t *testing.T) {
	syncedAt := time.Now()
	rows := []upstream.FortunaReserveRow{
		{BalanceDate: "2026-01-18", ES: json.Number("100"), NonES: json.Number("50")},
		{BalanceDate: "2026-01-18", ES: json.Number("0"), NonES: json.Number("0")},
		{BalanceDate: "not-a-date", ES: json.Number("10"), NonES: json.Number("5")},
	}

	records, skipped := buildBankReserves(1, rows, utils.DefaultTimezone, syncedAt)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if skipped != 2 {
		t.Fatalf("got %d skipped, want 2", skipped)
	}
	r := records[0]
	if r.BusinessEntityId != 1 {
		t.Fatalf("entity id = %d", r.BusinessEntityId)
	}
	if !r.TotalAmount.Equal(r.EsAmount.Add(r.NonEsAmount)) {
		t.Fatalf("total %s != ES %s + NonES %s", r.TotalAmount, r.EsAmount, r.NonEsAmount)
	}
	if r.DataSource != models.DataSourceFortuna {
		t.Fatalf("data source = %s", r.DataSource)
	}
}

// Three entities for one date: A returns data, B returns nothing, C returns
// a zero-total row. Exactly one per-entity record plus one aggregate row
// must come out.
func TestBankReserveAggregationScenario(t *testing.T) {
	syncedAt := time.Now()

	recordsA, _ := buildBankReserves(1, []upstream.FortunaReserveRow{
		{BalanceDate: "2026-01-18", ES: json.Number("100"), NonES: json.Number("50")},
	}, utils.DefaultTimezone, syncedAt)
	recordsB, _ := buildBankReserves(2, nil, utils.DefaultTimezone, syncedAt)
	recordsC, skippedC := buildBankReserves(3, []upstream.FortunaReserveRow{
		{BalanceDate: "2026-01-18", ES: json.Number("0"), NonES: json.Number("0")},
	}, utils.DefaultTimezone, syncedAt)

	if len(recordsB) != 0 {
		t.Fatalf("entity B should yield no records, got %d", len(recordsB))
	}
	if len(recordsC) != 0 || skippedC != 1 {
		t.Fatalf("entity C zero-total should be skipped, got %d records %d skipped", len(recordsC), skippedC)
	}

	all := append(recordsA, recordsB...)
	all = append(all, recordsC...)
	totals := aggregateBankReserves(all, syncedAt)
	if len(totals) != 1 {
		t.Fatalf("got %d aggregate rows, want 1", len(totals))
	}
	agg := totals[0]
	if agg.BusinessEntityId != 0 {
		t.Fatalf("aggregate entity id = %d, want 0", agg.BusinessEntityId)
	}
	if agg.EsAmount.String() != "100" || agg.NonEsAmount.String() != "50" || agg.TotalAmount.String() != "150" {
		t.Fatalf("aggregate amounts ES=%s NonES=%s Total=%s", agg.EsAmount, agg.NonEsAmount, agg.TotalAmount)
	}

	if got := len(all) + len(totals); got != 2 {
		t.Fatalf("scenario must persist 2 records, got %d", got)
	}
}

func TestAggregateBankReservesEmitsOneRowPerDate(t *testing.T) {
	syncedAt := time.Now()
	day1 := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)

	records, _ := buildBankReserves(1, []upstream.FortunaReserveRow{
		{BalanceDate: "2026-01-17", ES: json.Number("10"), NonES: json.Number("0")},
		{BalanceDate: "2026-01-18", ES: json.Number("20"), NonES: json.Number("5")},
	}, "UTC", syncedAt)
	more, _ := buildBankReserves(2, []upstream.FortunaReserveRow{
		{BalanceDate: "2026-01-18", ES: json.Number("30"), NonES: json.Number("5")},
	}, "UTC", syncedAt)

	totals := aggregateBankReserves(append(records, more...), syncedAt)
	if len(totals) != 2 {
		t.Fatalf("got %d aggregate rows, want 2", len(totals))
	}
	byDate := map[string]models.BankReserve{}
	for _, agg := range totals {
		byDate[agg.ReserveDate.Format("2006-01-02")] = agg
	}
	if byDate[day1.Format("2006-01-02")].TotalAmount.String() != "10" {
		t.Fatalf("day1 total = %s", byDate[day1.Format("2006-01-02")].TotalAmount)
	}
	if byDate[day2.Format("2006-01-02")].TotalAmount.String() != "60" {
		t.Fatalf("day2 total = %s", byDate[day2.Format("2006-01-02")].TotalAmount)
	}
}
