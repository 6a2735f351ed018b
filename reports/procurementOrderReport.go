package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProcurementOrderFilters struct {
	BusinessEntityId string
	ProjectId        string
	SupplierName     string
	Status           string
	FromDate         *time.Time
	ToDate           *time.Time
	MinAmount        *decimal.Decimal
	MaxAmount        *decimal.Decimal
}

func (f ProcurementOrderFilters) cacheKey() string {
	return fmt.Sprintf("e%s:p%s:sup%s:st%s:f%v:t%v:min%v:max%v",
		f.BusinessEntityId, f.ProjectId, f.SupplierName, f.Status, f.FromDate, f.ToDate, f.MinAmount, f.MaxAmount)
}

type ProcurementOrderDetailRow struct {
	PurchaseOrderNo    string          `json:"purchase_order_no"`
	BusinessEntityId   int             `json:"business_entity_id"`
	BusinessEntityName string          `json:"business_entity_name"`
	ProjectId          int             `json:"project_id"`
	ProjectName        string          `json:"project_name"`
	SupplierName       string          `json:"supplier_name"`
	Status             string          `json:"status"`
	OrderAmount        decimal.Decimal `json:"order_amount"`
}

type ProcurementOrderDateGroup struct {
	Date        time.Time                    `json:"date"`
	OrderTotal  decimal.Decimal              `json:"order_total"`
	OrderCount  int                          `json:"order_count"`
	Rows        []*ProcurementOrderDetailRow `json:"rows"`
}

type ProcurementOrderDetailResponse struct {
	DateGroups []*ProcurementOrderDateGroup `json:"date_groups"`
	Pagination Pagination                   `json:"pagination"`
}

func procurementOrderBase(ctx context.Context, f ProcurementOrderFilters, entityId int, entityPresent bool, projectId int, projectPresent bool) *gorm.DB {
	q := config.GetDB().WithContext(ctx).Model(&models.ProcurementOrder{})
	if entityPresent {
		q = q.Where("procurement_orders.business_entity_id = ?", entityId)
	}
	if projectPresent {
		q = q.Where("procurement_orders.project_id = ?", projectId)
	}
	if supplier := strings.TrimSpace(f.SupplierName); supplier != "" {
		q = q.Where("LOWER(procurement_orders.supplier_name) = LOWER(?)", supplier)
	}
	if status := strings.TrimSpace(f.Status); status != "" {
		q = q.Where("procurement_orders.status = ?", status)
	}
	if f.FromDate != nil {
		q = q.Where("procurement_orders.order_date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("procurement_orders.order_date <= ?", *f.ToDate)
	}
	if f.MinAmount != nil {
		q = q.Where("procurement_orders.order_amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("procurement_orders.order_amount <= ?", *f.MaxAmount)
	}
	return q
}

func GetProcurementOrderDetail(ctx context.Context, filters ProcurementOrderFilters, page, pageSize int) (*ProcurementOrderDetailResponse, error) {
	started := time.Now()
	page, pageSize = normalizePage(page, pageSize)

	entityId, entityPresent, entityOk := parseDimensionId(filters.BusinessEntityId)
	projectId, projectPresent, projectOk := parseDimensionId(filters.ProjectId)
	if !entityOk || !projectOk {
		return &ProcurementOrderDetailResponse{
			DateGroups: []*ProcurementOrderDateGroup{},
			Pagination: buildPagination(page, pageSize, 0),
		}, nil
	}

	cacheKey := detailCacheKey("procurement_order_detail", filters.cacheKey(), page, pageSize)
	if reportCacheEnabled() {
		var cached ProcurementOrderDetailResponse
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	var totalDates int64
	if err := procurementOrderBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).
		Distinct("procurement_orders.order_date").
		Count(&totalDates).Error; err != nil {
		return nil, err
	}

	var dates []time.Time
	if err := procurementOrderBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).
		Distinct("procurement_orders.order_date").
		Order("procurement_orders.order_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Pluck("procurement_orders.order_date", &dates).Error; err != nil {
		return nil, err
	}

	response := &ProcurementOrderDetailResponse{
		DateGroups: make([]*ProcurementOrderDateGroup, 0, len(dates)),
		Pagination: buildPagination(page, pageSize, totalDates),
	}
	if len(dates) == 0 {
		return response, nil
	}

	var rows []struct {
		models.ProcurementOrder
		BusinessEntityName string
		ProjectName        string
	}
	if err := procurementOrderBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).
		Select("procurement_orders.*, business_entities.name AS business_entity_name, projects.name AS project_name").
		Joins("LEFT JOIN business_entities ON business_entities.id = procurement_orders.business_entity_id").
		Joins("LEFT JOIN projects ON projects.id = procurement_orders.project_id").
		Where("procurement_orders.order_date IN ?", dates).
		Order("procurement_orders.order_date DESC, procurement_orders.purchase_order_no ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	groupByDate := make(map[string]*ProcurementOrderDateGroup, len(dates))
	for _, date := range dates {
		group := &ProcurementOrderDateGroup{Date: date, Rows: []*ProcurementOrderDetailRow{}}
		groupByDate[date.Format("2006-01-02")] = group
		response.DateGroups = append(response.DateGroups, group)
	}
	for _, row := range rows {
		group, ok := groupByDate[row.OrderDate.Format("2006-01-02")]
		if !ok {
			continue
		}
		group.OrderTotal = group.OrderTotal.Add(row.OrderAmount)
		group.OrderCount++
		group.Rows = append(group.Rows, &ProcurementOrderDetailRow{
			PurchaseOrderNo:    row.PurchaseOrderNo,
			BusinessEntityId:   row.BusinessEntityId,
			BusinessEntityName: row.BusinessEntityName,
			ProjectId:          row.ProjectId,
			ProjectName:        row.ProjectName,
			SupplierName:       row.SupplierName,
			Status:             row.Status,
			OrderAmount:        row.OrderAmount,
		})
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	logSlowReport(ctx, "procurement_order_detail", started, map[string]any{"page": page})
	return response, nil
}

type ProcurementOrderListResponse struct {
	Records    []*models.ProcurementOrder `json:"records"`
	Pagination Pagination                 `json:"pagination"`
}

func ListProcurementOrders(ctx context.Context, filters ProcurementOrderFilters, page, pageSize int) (*ProcurementOrderListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	entityId, entityPresent, entityOk := parseDimensionId(filters.BusinessEntityId)
	projectId, projectPresent, projectOk := parseDimensionId(filters.ProjectId)
	if !entityOk || !projectOk {
		return &ProcurementOrderListResponse{Records: []*models.ProcurementOrder{}, Pagination: buildPagination(page, pageSize, 0)}, nil
	}

	var total int64
	if err := procurementOrderBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).Count(&total).Error; err != nil {
		return nil, err
	}
	var records []*models.ProcurementOrder
	if err := procurementOrderBase(ctx, filters, entityId, entityPresent, projectId, projectPresent).
		Order("order_date DESC, purchase_order_no ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return &ProcurementOrderListResponse{Records: records, Pagination: buildPagination(page, pageSize, total)}, nil
}

type ProcurementOrderSummaryResponse struct {
	AsOf        time.Time        `json:"as_of"`
	MonthToDate PeriodComparison `json:"month_to_date"`
	YearToDate  PeriodComparison `json:"year_to_date"`
}

func GetProcurementOrderSummary(ctx context.Context, asOf time.Time, businessEntityId string) (*ProcurementOrderSummaryResponse, error) {
	entityId, entityPresent, ok := parseDimensionId(businessEntityId)
	if !ok {
		return &ProcurementOrderSummaryResponse{AsOf: asOf}, nil
	}

	sum := func(from, to time.Time) (decimal.Decimal, error) {
		var out struct {
			Total decimal.Decimal
		}
		q := config.GetDB().WithContext(ctx).
			Model(&models.ProcurementOrder{}).
			Where("order_date BETWEEN ? AND ?", from, to)
		if entityPresent {
			q = q.Where("business_entity_id = ?", entityId)
		}
		if err := q.Select("COALESCE(SUM(order_amount), 0) AS total").Scan(&out).Error; err != nil {
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

	return &ProcurementOrderSummaryResponse{
		AsOf:        asOf,
		MonthToDate: comparePeriods(mtdCurFrom, mtdCurTo, mtdPrevFrom, mtdPrevTo, mtdCur, mtdPrev),
		YearToDate:  comparePeriods(ytdCurFrom, ytdCurTo, ytdPrevFrom, ytdPrevTo, ytdCur, ytdPrev),
	}, nil
}
