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

type RevenueReservationFilters struct {
	ProjectId     string
	SalesTeamName string
	FromDate      *time.Time
	ToDate        *time.Time
	MinAmount     *decimal.Decimal
	MaxAmount     *decimal.Decimal
}

func (f RevenueReservationFilters) cacheKey() string {
	return fmt.Sprintf("p%s:team%s:f%v:t%v:min%v:max%v", f.ProjectId, f.SalesTeamName, f.FromDate, f.ToDate, f.MinAmount, f.MaxAmount)
}

type RevenueReservationDetailRow struct {
	ProjectId      int             `json:"project_id"`
	ProjectName    string          `json:"project_name"`
	SalesTeamName  string          `json:"sales_team_name"`
	ReservedAmount decimal.Decimal `json:"reserved_amount"`
	UnitCount      int             `json:"unit_count"`
}

// RevenueReservationDateGroup is one date bucket. There is no stored
// aggregate row for this domain, so the totals are summed from the details.
type RevenueReservationDateGroup struct {
	Date          time.Time                      `json:"date"`
	ReservedTotal decimal.Decimal                `json:"reserved_total"`
	UnitTotal     int                            `json:"unit_total"`
	Rows          []*RevenueReservationDetailRow `json:"rows"`
}

type RevenueReservationDetailResponse struct {
	DateGroups []*RevenueReservationDateGroup `json:"date_groups"`
	Pagination Pagination                     `json:"pagination"`
}

func revenueReservationBase(ctx context.Context, f RevenueReservationFilters, projectId int, projectPresent bool) *gorm.DB {
	q := config.GetDB().WithContext(ctx).Model(&models.RevenueReservation{})
	if projectPresent {
		q = q.Where("revenue_reservations.project_id = ?", projectId)
	}
	if team := strings.TrimSpace(f.SalesTeamName); team != "" {
		q = q.Where("revenue_reservations.sales_team_name = ?", team)
	}
	if f.FromDate != nil {
		q = q.Where("revenue_reservations.reserve_date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("revenue_reservations.reserve_date <= ?", *f.ToDate)
	}
	if f.MinAmount != nil {
		q = q.Where("revenue_reservations.reserved_amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("revenue_reservations.reserved_amount <= ?", *f.MaxAmount)
	}
	return q
}

func GetRevenueReservationDetail(ctx context.Context, filters RevenueReservationFilters, page, pageSize int) (*RevenueReservationDetailResponse, error) {
	started := time.Now()
	page, pageSize = normalizePage(page, pageSize)

	projectId, projectPresent, ok := parseDimensionId(filters.ProjectId)
	if !ok {
		return &RevenueReservationDetailResponse{
			DateGroups: []*RevenueReservationDateGroup{},
			Pagination: buildPagination(page, pageSize, 0),
		}, nil
	}

	cacheKey := detailCacheKey("revenue_reservation_detail", filters.cacheKey(), page, pageSize)
	if reportCacheEnabled() {
		var cached RevenueReservationDetailResponse
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	var totalDates int64
	if err := revenueReservationBase(ctx, filters, projectId, projectPresent).
		Distinct("revenue_reservations.reserve_date").
		Count(&totalDates).Error; err != nil {
		return nil, err
	}

	var dates []time.Time
	if err := revenueReservationBase(ctx, filters, projectId, projectPresent).
		Distinct("revenue_reservations.reserve_date").
		Order("revenue_reservations.reserve_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Pluck("revenue_reservations.reserve_date", &dates).Error; err != nil {
		return nil, err
	}

	response := &RevenueReservationDetailResponse{
		DateGroups: make([]*RevenueReservationDateGroup, 0, len(dates)),
		Pagination: buildPagination(page, pageSize, totalDates),
	}
	if len(dates) == 0 {
		return response, nil
	}

	var rows []struct {
		models.RevenueReservation
		ProjectName string
	}
	if err := revenueReservationBase(ctx, filters, projectId, projectPresent).
		Select("revenue_reservations.*, projects.name AS project_name").
		Joins("LEFT JOIN projects ON projects.id = revenue_reservations.project_id").
		Where("revenue_reservations.reserve_date IN ?", dates).
		Order("revenue_reservations.reserve_date DESC, revenue_reservations.project_id ASC, revenue_reservations.sales_team_name ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	groupByDate := make(map[string]*RevenueReservationDateGroup, len(dates))
	for _, date := range dates {
		group := &RevenueReservationDateGroup{Date: date, Rows: []*RevenueReservationDetailRow{}}
		groupByDate[date.Format("2006-01-02")] = group
		response.DateGroups = append(response.DateGroups, group)
	}
	for _, row := range rows {
		group, ok := groupByDate[row.ReserveDate.Format("2006-01-02")]
		if !ok {
			continue
		}
		group.ReservedTotal = group.ReservedTotal.Add(row.ReservedAmount)
		group.UnitTotal += row.UnitCount
		group.Rows = append(group.Rows, &RevenueReservationDetailRow{
			ProjectId:      row.ProjectId,
			ProjectName:    row.ProjectName,
			SalesTeamName:  row.SalesTeamName,
			ReservedAmount: row.ReservedAmount,
			UnitCount:      row.UnitCount,
		})
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	logSlowReport(ctx, "revenue_reservation_detail", started, map[string]any{"page": page})
	return response, nil
}

type RevenueReservationListResponse struct {
	Records    []*models.RevenueReservation `json:"records"`
	Pagination Pagination                   `json:"pagination"`
}

func ListRevenueReservations(ctx context.Context, filters RevenueReservationFilters, page, pageSize int) (*RevenueReservationListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	projectId, projectPresent, ok := parseDimensionId(filters.ProjectId)
	if !ok {
		return &RevenueReservationListResponse{Records: []*models.RevenueReservation{}, Pagination: buildPagination(page, pageSize, 0)}, nil
	}

	var total int64
	if err := revenueReservationBase(ctx, filters, projectId, projectPresent).Count(&total).Error; err != nil {
		return nil, err
	}
	var records []*models.RevenueReservation
	if err := revenueReservationBase(ctx, filters, projectId, projectPresent).
		Order("reserve_date DESC, project_id ASC, sales_team_name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return &RevenueReservationListResponse{Records: records, Pagination: buildPagination(page, pageSize, total)}, nil
}

type RevenueReservationSummaryResponse struct {
	AsOf        time.Time        `json:"as_of"`
	MonthToDate PeriodComparison `json:"month_to_date"`
	YearToDate  PeriodComparison `json:"year_to_date"`
}

func GetRevenueReservationSummary(ctx context.Context, asOf time.Time, projectIdRaw string) (*RevenueReservationSummaryResponse, error) {
	projectId, projectPresent, ok := parseDimensionId(projectIdRaw)
	if !ok {
		return &RevenueReservationSummaryResponse{AsOf: asOf}, nil
	}

	sum := func(from, to time.Time) (decimal.Decimal, error) {
		var out struct {
			Total decimal.Decimal
		}
		q := config.GetDB().WithContext(ctx).
			Model(&models.RevenueReservation{}).
			Where("reserve_date BETWEEN ? AND ?", from, to)
		if projectPresent {
			q = q.Where("project_id = ?", projectId)
		}
		if err := q.Select("COALESCE(SUM(reserved_amount), 0) AS total").Scan(&out).Error; err != nil {
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

	return &RevenueReservationSummaryResponse{
		AsOf:        asOf,
		MonthToDate: comparePeriods(mtdCurFrom, mtdCurTo, mtdPrevFrom, mtdPrevTo, mtdCur, mtdPrev),
		YearToDate:  comparePeriods(ytdCurFrom, ytdCurTo, ytdPrevFrom, ytdPrevTo, ytdCur, ytdPrev),
	}, nil
}
