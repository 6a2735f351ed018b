package syncsvc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
)

func TestParseRowDateReturnsUTCMidnight(t *testing.T) {
	got, err := parseRowDate("2026-01-18", utils.DefaultTimezone)
	if err != nil {
		t.Fatalf("parseRowDate: %v", err)
	}
	want := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("got %s (%s), want %s", got, got.Location(), want)
	}
}

func TestUniquenessKeySurvivesUTCRoundTrip(t *testing.T) {
	// The driver converts every time argument to UTC before sending; a
	// record built in the business timezone must produce the same key as
	// its persisted row read back in UTC.
	date, err := parseRowDate("2026-01-18", utils.DefaultTimezone)
	if err != nil {
		t.Fatalf("parseRowDate: %v", err)
	}
	built := models.BankReserve{
		BusinessEntityId: 1,
		ReserveDate:      date,
		TotalAmount:      decimal.NewFromInt(100),
		DataSource:       models.DataSourceFortuna,
	}
	persisted := built
	persisted.ReserveDate = built.ReserveDate.In(time.UTC)
	if built.UniquenessKey() != persisted.UniquenessKey() {
		t.Fatalf("key drifted across UTC round trip: built=%q persisted=%q",
			built.UniquenessKey(), persisted.UniquenessKey())
	}
	if built.ReserveDate.In(time.UTC).Format("2006-01-02") != "2026-01-18" {
		t.Fatalf("UTC calendar day = %s, want 2026-01-18",
			built.ReserveDate.In(time.UTC).Format("2006-01-02"))
	}
}

func TestDecimalFromNumber(t *testing.T) {
	cases := []struct {
		raw  json.Number
		want decimal.Decimal
		ok   bool
	}{
		{json.Number(""), decimal.Zero, true},
		{json.Number("150.25"), decimal.RequireFromString("150.25"), true},
		{json.Number("abc"), decimal.Zero, false},
	}
	for _, c := range cases {
		got, ok := decimalFromNumber(c.raw)
		if ok != c.ok || (ok && !got.Equal(c.want)) {
			t.Fatalf("decimalFromNumber(%q) = (%s, %v), want (%s, %v)", c.raw, got, ok, c.want, c.ok)
		}
	}
}

func TestCollectorSumsProcessedRows(t *testing.T) {
	c := newCollector[models.BankReserve]()
	c.add([]models.BankReserve{{BusinessEntityId: 1}}, 1, 5)
	c.add(nil, 0, 3)
	records, skipped, processed := c.drain()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
	if processed != 8 {
		t.Fatalf("processed = %d, want 8 (sum of upstream rows)", processed)
	}
}
