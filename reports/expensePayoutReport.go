package reports

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ExpensePayoutFilters struct {
	BusinessEntityId string
	FromDate         *time.Time
	ToDate           *time.Time
	MinAmount        *decimal.Decimal
	MaxAmount        *decimal.Decimal
}

func (f ExpensePayoutFilters) cacheKey() string {
	return fmt.Sprintf("e%s:f%v:t%v:min%v:max%v", f.BusinessEntityId, f.FromDate, f.ToDate, f.MinAmount, f.MaxAmount)
}

type ExpensePayoutDetailRow struct {
	BusinessEntityId   int             `json:"business_entity_id"`
	BusinessEntityName string          `json:"business_entity_name"`
	PayoutAmount       decimal.Decimal `json:"payout_amount"`
	TransactionCount   int             `json:"transaction_count"`
}

type ExpensePayoutDateGroup struct {
	Date             time.Time                 `json:"date"`
	PayoutTotal      decimal.Decimal           `json:"payout_total"`
	TransactionCount int                       `json:"transaction_count"`
	Rows             []*ExpensePayoutDetailRow `json:"rows"`
}

type ExpensePayoutDetailResponse struct {
	DateGroups []*ExpensePayoutDateGroup `json:"date_groups"`
	Pagination Pagination                `json:"pagination"`
}

func expensePayoutBase(ctx context.Context, f ExpensePayoutFilters, entityId int, entityPresent bool) *gorm.DB {
	q := config.GetDB().WithContext(ctx).
		Model(&models.ExpensePayout{}).
		Where("expense_payouts.business_entity_id <> 0")
	if entityPresent {
		q = q.Where("expense_payouts.business_entity_id = ?", entityId)
	}
	if f.FromDate != nil {
		q = q.Where("expense_payouts.payout_date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("expense_payouts.payout_date <= ?", *f.ToDate)
	}
	if f.MinAmount != nil {
		q = q.Where("expense_payouts.payout_amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("expense_payouts.payout_amount <= ?", *f.MaxAmount)
	}
	return q
}

func GetExpensePayoutDetail(ctx context.Context, filters ExpensePayoutFilters, page, pageSize int) (*ExpensePayoutDetailResponse, error) {
	started := time.Now()
	page, pageSize = normalizePage(page, pageSize)

	entityId, entityPresent, ok := parseDimensionId(filters.BusinessEntityId)
	if !ok {
		return &ExpensePayoutDetailResponse{
			DateGroups: []*ExpensePayoutDateGroup{},
			Pagination: buildPagination(page, pageSize, 0),
		}, nil
	}

	cacheKey := detailCacheKey("expense_payout_detail", filters.cacheKey(), page, pageSize)
	if reportCacheEnabled() {
		var cached ExpensePayoutDetailResponse
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	var totalDates int64
	if err := expensePayoutBase(ctx, filters, entityId, entityPresent).
		Distinct("expense_payouts.payout_date").
		Count(&totalDates).Error; err != nil {
		return nil, err
	}

	var dates []time.Time
	if err := expensePayoutBase(ctx, filters, entityId, entityPresent).
		Distinct("expense_payouts.payout_date").
		Order("expense_payouts.payout_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Pluck("expense_payouts.payout_date", &dates).Error; err != nil {
		return nil, err
	}

	response := &ExpensePayoutDetailResponse{
		DateGroups: make([]*ExpensePayoutDateGroup, 0, len(dates)),
		Pagination: buildPagination(page, pageSize, totalDates),
	}
	if len(dates) == 0 {
		return response, nil
	}

	var aggregates []models.ExpensePayout
	if err := config.GetDB().WithContext(ctx).
		Where("business_entity_id = 0 AND payout_date IN ?", dates).
		Find(&aggregates).Error; err != nil {
		return nil, err
	}
	aggregateByDate := make(map[string]models.ExpensePayout, len(aggregates))
	for _, agg := range aggregates {
		aggregateByDate[agg.PayoutDate.Format("2006-01-02")] = agg
	}

	var rows []struct {
		models.ExpensePayout
		BusinessEntityName string
	}
	if err := expensePayoutBase(ctx, filters, entityId, entityPresent).
		Select("expense_payouts.*, business_entities.name AS business_entity_name").
		Joins("LEFT JOIN business_entities ON business_entities.id = expense_payouts.business_entity_id").
		Where("expense_payouts.payout_date IN ?", dates).
		Order("expense_payouts.payout_date DESC, expense_payouts.business_entity_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	groupByDate := make(map[string]*ExpensePayoutDateGroup, len(dates))
	for _, date := range dates {
		group := &ExpensePayoutDateGroup{Date: date, Rows: []*ExpensePayoutDetailRow{}}
		if agg, ok := aggregateByDate[date.Format("2006-01-02")]; ok {
			group.PayoutTotal = agg.PayoutAmount
			group.TransactionCount = agg.TransactionCount
		}
		groupByDate[date.Format("2006-01-02")] = group
		response.DateGroups = append(response.DateGroups, group)
	}
	for _, row := range rows {
		group, ok := groupByDate[row.PayoutDate.Format("2006-01-02")]
		if !ok {
			continue
		}
		group.Rows = append(group.Rows, &ExpensePayoutDetailRow{
			BusinessEntityId:   row.BusinessEntityId,
			BusinessEntityName: row.BusinessEntityName,
			PayoutAmount:       row.PayoutAmount,
			TransactionCount:   row.TransactionCount,
		})
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	logSlowReport(ctx, "expense_payout_detail", started, map[string]any{"page": page})
	return response, nil
}

type ExpensePayoutListResponse struct {
	Records    []*models.ExpensePayout `json:"records"`
	Pagination Pagination              `json:"pagination"`
}

func ListExpensePayouts(ctx context.Context, filters ExpensePayoutFilters, page, pageSize int) (*ExpensePayoutListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	entityId, entityPresent, ok := parseDimensionId(filters.BusinessEntityId)
	if !ok {
		return &ExpensePayoutListResponse{Records: []*models.ExpensePayout{}, Pagination: buildPagination(page, pageSize, 0)}, nil
	}

	var total int64
	if err := expensePayoutBase(ctx, filters, entityId, entityPresent).Count(&total).Error; err != nil {
		return nil, err
	}
	var records []*models.ExpensePayout
	if err := expensePayoutBase(ctx, filters, entityId, entityPresent).
		Order("payout_date DESC, business_entity_id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return &ExpensePayoutListResponse{Records: records, Pagination: buildPagination(page, pageSize, total)}, nil
}

type ExpensePayoutSummaryResponse struct {
	AsOf        time.Time        `json:"as_of"`
	MonthToDate PeriodComparison `json:"month_to_date"`
	YearToDate  PeriodComparison `json:"year_to_date"`
}

func GetExpensePayoutSummary(ctx context.Context, asOf time.Time, businessEntityId string) (*ExpensePayoutSummaryResponse, error) {
	entityId, entityPresent, ok := parseDimensionId(businessEntityId)
	if !ok {
		return &ExpensePayoutSummaryResponse{AsOf: asOf}, nil
	}

	sum := func(from, to time.Time) (decimal.Decimal, error) {
		var out struct {
			Total decimal.Decimal
		}
		q := config.GetDB().WithContext(ctx).
			Model(&models.ExpensePayout{}).
			Where("business_entity_id <> 0").
			Where("payout_date BETWEEN ? AND ?", from, to)
		if entityPresent {
			q = q.Where("business_entity_id = ?", entityId)
		}
		if err := q.Select("COALESCE(SUM(payout_amount), 0) AS total").Scan(&out).Error; err != nil {
			return decimal.Zero, err
		}
		return out.Total, nil
	}

	mtdCurFrom, mtdCurTo, mtdPrevFrom, mtdPrevTo := monthToDateWindows(asOf)
	ytdCurFrom, ytdCurTo, ytdPrevFrom, ytdPrevTo := yearToDateWindows(asOf)

	mtdCur, err := sum(mtdCurFrom, mtdCurTo)
	if err != nil {
		return nil, err
	}
	mtdPrev, err := sum(mtdPrevFrom, mtdPrevTo)
	if err != nil {
		return nil, err
	}
	ytdCur, err := sum(ytdCurFrom, ytdCurTo)
	if err != nil {
		return nil, err
	}
	ytdPrev, err := sum(ytdPrevFrom, ytdPrevTo)
	if err != nil {
		return nil, err
	}

	return &ExpensePayoutSummaryResponse{
		AsOf:        asOf,
		MonthToDate: comparePeriods(mtdCurFrom, mtdCurTo, mtdPrevFrom, mtdPrevTo, mtdCur, mtdPrev),
		YearToDate:  comparePeriods(ytdCurFrom, ytdCurTo, ytdPrevFrom, ytdPrevTo, ytdCur, ytdPrev),
	}, nil
}
