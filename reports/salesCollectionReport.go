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

type SalesCollectionFilters struct {
	BusinessEntityId string
	ProjectId        string
	FromDate         *time.Time
	ToDate           *time.Time
	MinCollected     *decimal.Decimal
	MaxCollected     *decimal.Decimal
}

func (f SalesCollectionFilters) cacheKey() string {
	return fmt.Sprintf("e%s:p%s:f%v:t%v:min%v:max%v", f.BusinessEntityId, f.ProjectId, f.FromDate, f.ToDate, f.MinCollected, f.MaxCollected)
}

type SalesCollectionDetailRow struct {
	BusinessEntityId   int             `json:"business_entity_id"`
	BusinessEntityName string          `json:"business_entity_name"`
	ProjectId          int             `json:"project_id"`
	ProjectName        string          `json:"project_name"`
	CollectedAmount    decimal.Decimal `json:"collected_amount"`
	InvoicedAmount     decimal.Decimal `json:"invoiced_amount"`
}

// SalesCollectionDateGroup is one date bucket. Summary amounts come from
// the GrandSummary sentinel row when present, zero otherwise.
type SalesCollectionDateGroup struct {
	Date           time.Time                   `json:"date"`
	CollectedTotal decimal.Decimal             `json:"collected_total"`
	InvoicedTotal  decimal.Decimal             `json:"invoiced_total"`
	Rows           []*SalesCollectionDetailRow `json:"rows"`
}

type SalesCollectionDetailResponse struct {
	DateGroups []*SalesCollectionDateGroup `json:"date_groups"`
	Pagination Pagination                  `json:"pagination"`
}

func salesCollectionBase(ctx context.Context, f SalesCollectionFilters, entityId int, entityPresent bool, projectId int, projectPresent bool) *gorm.DB {
	q := config.GetDB().WithContext(ctx).
		Model(&models.SalesCollection{}).
		Where("sales_collections.special_type = ''")
	if entityPresent {
		q = q.Where("sales_collections.business_entity_id = ?", entityId)
	}
	if projectPresent {
		q = q.Where("sales_collections.project_id = ?", projectId)
	}
	if f.FromDate != nil {
		q = q.Where("sales_collections.collection_date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("sales_collections.collection_date <= ?", *f.ToDate)
	}
	if f.MinCollected != nil {
		q = q.Where("sales_collections.collected_amount >= ?", *f.MinCollected)
	}
	if f.MaxCollected != nil {
		q = q.Where("sales_collections.collected_amount <= ?", *f.MaxCollected)
	}
	return q
}

func GetSalesCollectionDetail(ctx context.Context, filters SalesCollectionFilters, page, pageSize int) (*SalesCollectionDetailResponse, error) {
	started := time.Now()
	page, pageSize = normalizePage(page, pageSize)

	entityId, entityPresent, entityOk := parseDimensionId(filters.BusinessEntityId)
	projectId, projectPresent, projectOk := parseDimensionId(filters.ProjectId)
	if !entityOk || !projectOk {
		return &SalesCollectionDetailResponse{
			DateGroups: []*SalesCollectionDateGroup{},
			Pagination: buildPagination(page, pageSize, 0),
		}, nil
	}

	cacheKey := detailCacheKey("sales_collection_detail", filters.cacheKey(), page, pageSize)
	if reportCacheEnabled() {
		var cached SalesCollectionDetailResponse
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	var totalDates int64
	if err := salesCollectionBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).
		Distinct("sales_collections.collection_date").
		Count(&totalDates).Error; err != nil {
		return nil, err
	}

	var dates []time.Time
	if err := salesCollectionBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).
		Distinct("sales_collections.collection_date").
		Order("sales_collections.collection_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Pluck("sales_collections.collection_date", &dates).Error; err != nil {
		return nil, err
	}

	response := &SalesCollectionDetailResponse{
		DateGroups: make([]*SalesCollectionDateGroup, 0, len(dates)),
		Pagination: buildPagination(page, pageSize, totalDates),
	}
	if len(dates) == 0 {
		return response, nil
	}

	var sentinels []models.SalesCollection
	if err := config.GetDB().WithContext(ctx).
		Where("special_type = ? AND collection_date IN ?", models.SpecialTypeGrandSummary, dates).
		Find(&sentinels).Error; err != nil {
		return nil, err
	}
	sentinelByDate := make(map[string]models.SalesCollection, len(sentinels))
	for _, row := range sentinels {
		sentinelByDate[row.CollectionDate.Format("2006-01-02")] = row
	}

	var rows []struct {
		models.SalesCollection
		BusinessEntityName string
		ProjectName        string
	}
	if err := salesCollectionBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).
		Select("sales_collections.*, business_entities.name AS business_entity_name, projects.name AS project_name").
		Joins("LEFT JOIN business_entities ON business_entities.id = sales_collections.business_entity_id").
		Joins("LEFT JOIN projects ON projects.id = sales_collections.project_id").
		Where("sales_collections.collection_date IN ?", dates).
		Order("sales_collections.collection_date DESC, sales_collections.business_entity_id ASC, sales_collections.project_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	groupByDate := make(map[string]*SalesCollectionDateGroup, len(dates))
	for _, date := range dates {
		group := &SalesCollectionDateGroup{Date: date, Rows: []*SalesCollectionDetailRow{}}
		if sentinel, ok := sentinelByDate[date.Format("2006-01-02")]; ok {
			group.CollectedTotal = sentinel.CollectedAmount
			group.InvoicedTotal = sentinel.InvoicedAmount
		}
		groupByDate[date.Format("2006-01-02")] = group
		response.DateGroups = append(response.DateGroups, group)
	}
	for _, row := range rows {
		group, ok := groupByDate[row.CollectionDate.Format("2006-01-02")]
		if !ok {
			continue
		}
		group.Rows = append(group.Rows, &SalesCollectionDetailRow{
			BusinessEntityId:   row.BusinessEntityId,
			BusinessEntityName: row.BusinessEntityName,
			ProjectId:          row.ProjectId,
			ProjectName:        row.ProjectName,
			CollectedAmount:    row.CollectedAmount,
			InvoicedAmount:     row.InvoicedAmount,
		})
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	logSlowReport(ctx, "sales_collection_detail", started, map[string]any{"page": page})
	return response, nil
}

type SalesCollectionListResponse struct {
	Records    []*models.SalesCollection `json:"records"`
	Pagination Pagination                `json:"pagination"`
}

func ListSalesCollections(ctx context.Context, filters SalesCollectionFilters, page, pageSize int) (*SalesCollectionListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	entityId, entityPresent, entityOk := parseDimensionId(filters.BusinessEntityId)
	projectId, projectPresent, projectOk := parseDimensionId(filters.ProjectId)
	if !entityOk || !projectOk {
		return &SalesCollectionListResponse{Records: []*models.SalesCollection{}, Pagination: buildPagination(page, pageSize, 0)}, nil
	}

	var total int64
	if err := salesCollectionBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).Count(&total).Error; err != nil {
		return nil, err
	}
	var records []*models.SalesCollection
	if err := salesCollectionBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).
		Order("collection_date DESC, business_entity_id ASC, project_id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return &SalesCollectionListResponse{Records: records, Pagination: buildPagination(page, pageSize, total)}, nil
}

type SalesCollectionSummaryResponse struct {
	AsOf        time.Time        `json:"as_of"`
	MonthToDate PeriodComparison `json:"month_to_date"`
	YearToDate  PeriodComparison `json:"year_to_date"`
}

func GetSalesCollectionSummary(ctx context.Context, asOf time.Time, businessEntityId string) (*SalesCollectionSummaryResponse, error) {
	entityId, entityPresent, ok := parseDimensionId(businessEntityId)
	if !ok {
		return &SalesCollectionSummaryResponse{AsOf: asOf}, nil
	}

	sum := func(from, to time.Time) (decimal.Decimal, error) {
		var out struct {
			Total decimal.Decimal
		}
		q := config.GetDB().WithContext(ctx).
			Model(&models.SalesCollection{}).
			Where("special_type = ''").
			Where("collection_date BETWEEN ? AND ?", from, to)
		if entityPresent {
			q = q.Where("business_entity_id = ?", entityId)
		}
		if err := q.Select("COALESCE(SUM(collected_amount), 0) AS total").Scan(&out).Error; err != nil {
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

	return &SalesCollectionSummaryResponse{
		AsOf:        asOf,
		MonthToDate: comparePeriods(mtdCurFrom, mtdCurTo, mtdPrevFrom, mtdPrevTo, mtdCur, mtdPrev),
		YearToDate:  comparePeriods(ytdCurFrom, ytdCurTo, ytdPrevFrom, ytdPrevTo, ytdCur, ytdPrev),
	}, nil
}
