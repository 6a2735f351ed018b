package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodTotal is one summed window.
type PeriodTotal struct {
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Total       decimal.Decimal `json:"total"`
}

// PeriodComparison pairs a window with the same window shifted one period
// back, plus the percentage change between the two totals.
type PeriodComparison struct {
	Current   PeriodTotal     `json:"current"`
	Previous  PeriodTotal     `json:"previous"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// monthToDateWindows derives both MTD windows from the requested date, so
// the comparison stays correct across month and year boundaries.
func monthToDateWindows(asOf time.Time) (curFrom, curTo, prevFrom, prevTo time.Time) {
	curFrom = time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	curTo = asOf
	prevTo = asOf.AddDate(0, -1, 0)
	prevFrom = time.Date(prevTo.Year(), prevTo.Month(), 1, 0, 0, 0, 0, asOf.Location())
	return curFrom, curTo, prevFrom, prevTo
}

func yearToDateWindows(asOf time.Time) (curFrom, curTo, prevFrom, prevTo time.Time) {
	curFrom = time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, asOf.Location())
	curTo = asOf
	prevTo = asOf.AddDate(-1, 0, 0)
	prevFrom = time.Date(prevTo.Year(), time.January, 1, 0, 0, 0, 0, asOf.Location())
	return curFrom, curTo, prevFrom, prevTo
}

// pctChange returns ((cur - prev) / prev) * 100, rounded to two places.
// A zero previous total reads as no comparable baseline, not infinity.
func pctChange(cur, prev decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
}

func comparePeriods(curFrom, curTo, prevFrom, prevTo time.Time, cur, prev decimal.Decimal) PeriodComparison {
	return PeriodComparison{
		Current:   PeriodTotal{PeriodStart: curFrom, PeriodEnd: curTo, Total: cur},
		Previous:  PeriodTotal{PeriodStart: prevFrom, PeriodEnd: prevTo, Total: prev},
		ChangePct: pctChange(cur, prev),
	}
}
