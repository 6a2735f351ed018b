package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthToDateWindowsAcrossYearBoundary(t *testing.T) {
	curFrom, curTo, prevFrom, prevTo := monthToDateWindows(day(2026, time.January, 18))
	if !curFrom.Equal(day(2026, time.January, 1)) || !curTo.Equal(day(2026, time.January, 18)) {
		t.Fatalf("current window = %s..%s", curFrom, curTo)
	}
	if !prevFrom.Equal(day(2025, time.December, 1)) || !prevTo.Equal(day(2025, time.December, 18)) {
		t.Fatalf("previous window = %s..%s", prevFrom, prevTo)
	}
}

func TestYearToDateWindows(t *testing.T) {
	curFrom, curTo, prevFrom, prevTo := yearToDateWindows(day(2026, time.March, 5))
	if !curFrom.Equal(day(2026, time.January, 1)) || !curTo.Equal(day(2026, time.March, 5)) {
		t.Fatalf("current window = %s..%s", curFrom, curTo)
	}
	if !prevFrom.Equal(day(2025, time.January, 1)) || !prevTo.Equal(day(2025, time.March, 5)) {
		t.Fatalf("previous window = %s..%s", prevFrom, prevTo)
	}
}

func TestPctChange(t *testing.T) {
	got := pctChange(decimal.NewFromInt(120), decimal.NewFromInt(100))
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("pctChange(120, 100) = %s, want 20", got)
	}

	got = pctChange(decimal.NewFromInt(80), decimal.NewFromInt(100))
	if !got.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("pctChange(80, 100) = %s, want -20", got)
	}

	got = pctChange(decimal.NewFromInt(50), decimal.Zero)
	if !got.IsZero() {
		t.Fatalf("pctChange with zero baseline = %s, want 0", got)
	}

	got = pctChange(decimal.NewFromInt(1), decimal.NewFromInt(3))
	if got.String() != "-66.67" {
		t.Fatalf("pctChange(1, 3) = %s, want -66.67", got)
	}
}
