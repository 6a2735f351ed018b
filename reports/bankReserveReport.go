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

type BankReserveFilters struct {
	BusinessEntityId string
	FromDate         *time.Time
	ToDate           *time.Time
	MinTotal         *decimal.Decimal
	MaxTotal         *decimal.Decimal
}

func (f BankReserveFilters) cacheKey() string {
	return fmt.Sprintf("e%s:f%v:t%v:min%v:max%v", f.BusinessEntityId, f.FromDate, f.ToDate, f.MinTotal, f.MaxTotal)
}

type BankReserveDetailRow struct {
	BusinessEntityId   int             `json:"business_entity_id"`
	BusinessEntityName string          `json:"business_entity_name"`
	EsAmount           decimal.Decimal `json:"es_amount"`
	NonEsAmount        decimal.Decimal `json:"non_es_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
}

// BankReserveDateGroup is one date bucket. The summary amounts come from
// the stored cross-entity row (entity id 0), zero when that row is absent.
type BankReserveDateGroup struct {
	Date        time.Time               `json:"date"`
	EsTotal     decimal.Decimal         `json:"es_total"`
	NonEsTotal  decimal.Decimal         `json:"non_es_total"`
	GrandTotal  decimal.Decimal         `json:"grand_total"`
	Rows        []*BankReserveDetailRow `json:"rows"`
}

type BankReserveDetailResponse struct {
	DateGroups []*BankReserveDateGroup `json:"date_groups"`
	Pagination Pagination              `json:"pagination"`
}

func emptyBankReserveDetail(page, pageSize int) *BankReserveDetailResponse {
	return &BankReserveDetailResponse{
		DateGroups: []*BankReserveDateGroup{},
		Pagination: buildPagination(page, pageSize, 0),
	}
}

func bankReserveBase(ctx context.Context, f BankReserveFilters, entityId int, entityPresent bool) *gorm.DB {
	q := config.GetDB().WithContext(ctx).
		Model(&models.BankReserve{}).
		Where("bank_reserves.business_entity_id <> 0")
	if entityPresent {
		q = q.Where("bank_reserves.business_entity_id = ?", entityId)
	}
	if f.FromDate != nil {
		q = q.Where("bank_reserves.reserve_date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("bank_reserves.reserve_date <= ?", *f.ToDate)
	}
	if f.MinTotal != nil {
		q = q.Where("bank_reserves.total_amount >= ?", *f.MinTotal)
	}
	if f.MaxTotal != nil {
		q = q.Where("bank_reserves.total_amount <= ?", *f.MaxTotal)
	}
	return q
}

// GetBankReserveDetail pages over distinct dates descending and attaches
// the per-entity rows plus the stored aggregate totals for each date.
func GetBankReserveDetail(ctx context.Context, filters BankReserveFilters, page, pageSize int) (*BankReserveDetailResponse, error) {
	started := time.Now()
	page, pageSize = normalizePage(page, pageSize)

	entityId, entityPresent, ok := parseDimensionId(filters.BusinessEntityId)
	if !ok {
		return emptyBankReserveDetail(page, pageSize), nil
	}

	cacheKey := detailCacheKey("bank_reserve_detail", filters.cacheKey(), page, pageSize)
	if reportCacheEnabled() {
		var cached BankReserveDetailResponse
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	var totalDates int64
	if err := bankReserveBase(ctx, filters, entityId, entityPresent).
		Distinct("bank_reserves.reserve_date").
		Count(&totalDates).Error; err != nil {
		return nil, err
	}

	var dates []time.Time
	if err := bankReserveBase(ctx, filters, entityId, entityPresent).
		Distinct("bank_reserves.reserve_date").
		Order("bank_reserves.reserve_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Pluck("bank_reserves.reserve_date", &dates).Error; err != nil {
		return nil, err
	}

	response := &BankReserveDetailResponse{
		DateGroups: make([]*BankReserveDateGroup, 0, len(dates)),
		Pagination: buildPagination(page, pageSize, totalDates),
	}
	if len(dates) == 0 {
		return response, nil
	}

	var aggregates []models.BankReserve
	if err := config.GetDB().WithContext(ctx).
		Where("business_entity_id = 0 AND reserve_date IN ?", dates).
		Find(&aggregates).Error; err != nil {
		return nil, err
	}
	aggregateByDate := make(map[string]models.BankReserve, len(aggregates))
	for _, agg := range aggregates {
		aggregateByDate[agg.ReserveDate.Format("2006-01-02")] = agg
	}

	var rows []struct {
		models.BankReserve
		BusinessEntityName string
	}
	if err := bankReserveBase(ctx, filters, entityId, entityPresent).
		Select("bank_reserves.*, business_entities.name AS business_entity_name").
		Joins("LEFT JOIN business_entities ON business_entities.id = bank_reserves.business_entity_id").
		Where("bank_reserves.reserve_date IN ?", dates).
		Order("bank_reserves.reserve_date DESC, bank_reserves.business_entity_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	groupByDate := make(map[string]*BankReserveDateGroup, len(dates))
	for _, date := range dates {
		group := &BankReserveDateGroup{Date: date, Rows: []*BankReserveDetailRow{}}
		if agg, ok := aggregateByDate[date.Format("2006-01-02")]; ok {
			group.EsTotal = agg.EsAmount
			group.NonEsTotal = agg.NonEsAmount
			group.GrandTotal = agg.TotalAmount
		}
		groupByDate[date.Format("2006-01-02")] = group
		response.DateGroups = append(response.DateGroups, group)
	}
	for _, row := range rows {
		group, ok := groupByDate[row.ReserveDate.Format("2006-01-02")]
		if !ok {
			continue
		}
		group.Rows = append(group.Rows, &BankReserveDetailRow{
			BusinessEntityId:   row.BusinessEntityId,
			BusinessEntityName: row.BusinessEntityName,
			EsAmount:           row.EsAmount,
			NonEsAmount:        row.NonEsAmount,
			TotalAmount:        row.TotalAmount,
		})
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	logSlowReport(ctx, "bank_reserve_detail", started, map[string]any{"page": page})
	return response, nil
}

type BankReserveListResponse struct {
	Records    []*models.BankReserve `json:"records"`
	Pagination Pagination            `json:"pagination"`
}

func ListBankReserves(ctx context.Context, filters BankReserveFilters, page, pageSize int) (*BankReserveListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	entityId, entityPresent, ok := parseDimensionId(filters.BusinessEntityId)
	if !ok {
		return &BankReserveListResponse{Records: []*models.BankReserve{}, Pagination: buildPagination(page, pageSize, 0)}, nil
	}

	var total int64
	if err := bankReserveBase(ctx, filters, entityId, entityPresent).Count(&total).Error; err != nil {
		return nil, err
	}
	var records []*models.BankReserve
	if err := bankReserveBase(ctx, filters, entityId, entityPresent).
		Order("reserve_date DESC, business_entity_id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return &BankReserveListResponse{Records: records, Pagination: buildPagination(page, pageSize, total)}, nil
}

type BankReserveSummaryResponse struct {
	AsOf        time.Time        `json:"as_of"`
	MonthToDate PeriodComparison `json:"month_to_date"`
	YearToDate  PeriodComparison `json:"year_to_date"`
}

// GetBankReserveSummary sums per-entity totals for MTD and YTD windows
// anchored on the requested date, each against the prior period.
func GetBankReserveSummary(ctx context.Context, asOf time.Time, businessEntityId string) (*BankReserveSummaryResponse, error) {
	entityId, entityPresent, ok := parseDimensionId(businessEntityId)
	if !ok {
		return &BankReserveSummaryResponse{AsOf: asOf}, nil
	}

	sum := func(from, to time.Time) (decimal.Decimal, error) {
		var out struct {
			Total decimal.Decimal
		}
		q := config.GetDB().WithContext(ctx).
			Model(&models.BankReserve{}).
			Where("business_entity_id <> 0").
			Where("reserve_date BETWEEN ? AND ?", from, to)
		if entityPresent {
			q = q.Where("business_entity_id = ?", entityId)
		}
		if err := q.Select("COALESCE(SUM(total_amount), 0) AS total").Scan(&out).Error; err != nil {
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

	return &BankReserveSummaryResponse{
		AsOf:        asOf,
		MonthToDate: comparePeriods(mtdCurFrom, mtdCurTo, mtdPrevFrom, mtdPrevTo, mtdCur, mtdPrev),
		YearToDate:  comparePeriods(ytdCurFrom, ytdCurTo, ytdPrevFrom, ytdPrevTo, ytdCur, ytdPrev),
	}, nil
}
