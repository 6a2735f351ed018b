package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/models"
	"gorm.io/gorm"
)

type SocialInsightFilters struct {
	BusinessEntityId string
	Platform         string
	FromDate         *time.Time
	ToDate           *time.Time
}

func (f SocialInsightFilters) cacheKey() string {
	return fmt.Sprintf("e%s:pl%s:f%v:t%v", f.BusinessEntityId, f.Platform, f.FromDate, f.ToDate)
}

type SocialInsightDetailRow struct {
	BusinessEntityId   int                   `json:"business_entity_id"`
	BusinessEntityName string                `json:"business_entity_name"`
	Platform           models.SocialPlatform `json:"platform"`
	Followers          int64                 `json:"followers"`
	Impressions        int64                 `json:"impressions"`
	Engagements        int64                 `json:"engagements"`
}

type SocialInsightDateGroup struct {
	Date             time.Time                 `json:"date"`
	FollowerTotal    int64                     `json:"follower_total"`
	ImpressionTotal  int64                     `json:"impression_total"`
	EngagementTotal  int64                     `json:"engagement_total"`
	Rows             []*SocialInsightDetailRow `json:"rows"`
}

type SocialInsightDetailResponse struct {
	DateGroups []*SocialInsightDateGroup `json:"date_groups"`
	Pagination Pagination                `json:"pagination"`
}

func socialInsightBase(ctx context.Context, f SocialInsightFilters, entityId int, entityPresent bool) *gorm.DB {
	q := config.GetDB().WithContext(ctx).Model(&models.SocialInsight{})
	if entityPresent {
		q = q.Where("social_insights.business_entity_id = ?", entityId)
	}
	if platform := strings.TrimSpace(f.Platform); platform != "" {
		q = q.Where("social_insights.platform = ?", platform)
	}
	if f.FromDate != nil {
		q = q.Where("social_insights.insight_date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("social_insights.insight_date <= ?", *f.ToDate)
	}
	return q
}

func GetSocialInsightDetail(ctx context.Context, filters SocialInsightFilters, page, pageSize int) (*SocialInsightDetailResponse, error) {
	started := time.Now()
	page, pageSize = normalizePage(page, pageSize)

	entityId, entityPresent, ok := parseDimensionId(filters.BusinessEntityId)
	if !ok {
		return &SocialInsightDetailResponse{
			DateGroups: []*SocialInsightDateGroup{},
			Pagination: buildPagination(page, pageSize, 0),
		}, nil
	}

	cacheKey := detailCacheKey("social_insight_detail", filters.cacheKey(), page, pageSize)
	if reportCacheEnabled() {
		var cached SocialInsightDetailResponse
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	var totalDates int64
	if err := socialInsightBase(ctx, filters, entityId, entityPresent).
		Distinct("social_insights.insight_date").
		Count(&totalDates).Error; err != nil {
		return nil, err
	}

	var dates []time.Time
	if err := socialInsightBase(ctx, filters, entityId, entityPresent).
		Distinct("social_insights.insight_date").
		Order("social_insights.insight_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Pluck("social_insights.insight_date", &dates).Error; err != nil {
		return nil, err
	}

	response := &SocialInsightDetailResponse{
		DateGroups: make([]*SocialInsightDateGroup, 0, len(dates)),
		Pagination: buildPagination(page, pageSize, totalDates),
	}
	if len(dates) == 0 {
		return response, nil
	}

	var rows []struct {
		models.SocialInsight
		BusinessEntityName string
	}
	if err := socialInsightBase(ctx, filters, entityId, entityPresent).
		Select("social_insights.*, business_entities.name AS business_entity_name").
		Joins("LEFT JOIN business_entities ON business_entities.id = social_insights.business_entity_id").
		Where("social_insights.insight_date IN ?", dates).
		Order("social_insights.insight_date DESC, social_insights.business_entity_id ASC, social_insights.platform ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	groupByDate := make(map[string]*SocialInsightDateGroup, len(dates))
	for _, date := range dates {
		group := &SocialInsightDateGroup{Date: date, Rows: []*SocialInsightDetailRow{}}
		groupByDate[date.Format("2006-01-02")] = group
		response.DateGroups = append(response.DateGroups, group)
	}
	for _, row := range rows {
		group, ok := groupByDate[row.InsightDate.Format("2006-01-02")]
		if !ok {
			continue
		}
		group.FollowerTotal += row.Followers
		group.ImpressionTotal += row.Impressions
		group.EngagementTotal += row.Engagements
		group.Rows = append(group.Rows, &SocialInsightDetailRow{
			BusinessEntityId:   row.BusinessEntityId,
			BusinessEntityName: row.BusinessEntityName,
			Platform:           row.Platform,
			Followers:          row.Followers,
			Impressions:        row.Impressions,
			Engagements:        row.Engagements,
		})
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	logSlowReport(ctx, "social_insight_detail", started, map[string]any{"page": page})
	return response, nil
}

type SocialInsightListResponse struct {
	Records    []*models.SocialInsight `json:"records"`
	Pagination Pagination              `json:"pagination"`
}

func ListSocialInsights(ctx context.Context, filters SocialInsightFilters, page, pageSize int) (*SocialInsightListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	entityId, entityPresent, ok := parseDimensionId(filters.BusinessEntityId)
	if !ok {
		return &SocialInsightListResponse{Records: []*models.SocialInsight{}, Pagination: buildPagination(page, pageSize, 0)}, nil
	}

	var total int64
	if err := socialInsightBase(ctx, filters, entityId, entityPresent).Count(&total).Error; err != nil {
		return nil, err
	}
	var records []*models.SocialInsight
	if err := socialInsightBase(ctx, filters, entityId, entityPresent).
		Order("insight_date DESC, business_entity_id ASC, platform ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return &SocialInsightListResponse{Records: records, Pagination: buildPagination(page, pageSize, total)}, nil
}

type SocialInsightSummaryResponse struct {
	AsOf             time.Time `json:"as_of"`
	CurrentFollowers int64     `json:"current_followers"`
	MonthEngagements int64     `json:"month_engagements"`
	PrevEngagements  int64     `json:"prev_engagements"`
}

// GetSocialInsightSummary reports the latest follower counts plus this
// month's engagements against last month's. Followers are a level, not a
// flow, so they are read from the most recent date rather than summed.
func GetSocialInsightSummary(ctx context.Context, asOf time.Time, businessEntityId string) (*SocialInsightSummaryResponse, error) {
	entityId, entityPresent, ok := parseDimensionId(businessEntityId)
	if !ok {
		return &SocialInsightSummaryResponse{AsOf: asOf}, nil
	}

	db := config.GetDB().WithContext(ctx)

	followerQ := db.Model(&models.SocialInsight{}).
		Where("insight_date = (SELECT MAX(insight_date) FROM social_insights WHERE insight_date <= ?)", asOf)
	if entityPresent {
		followerQ = followerQ.Where("business_entity_id = ?", entityId)
	}
	var followers struct {
		Total int64
	}
	if err := followerQ.Select("COALESCE(SUM(followers), 0) AS total").Scan(&followers).Error; err != nil {
		return nil, err
	}

	sumEngagements := func(from, to time.Time) (int64, error) {
		var out struct {
			Total int64
		}
		q := db.Model(&models.SocialInsight{}).
			Where("insight_date BETWEEN ? AND ?", from, to)
		if entityPresent {
			q = q.Where("business_entity_id = ?", entityId)
		}
		if err := q.Select("COALESCE(SUM(engagements), 0) AS total").Scan(&out).Error; err != nil {
			return 0, err
		}
		return out.Total, nil
	}

	curFrom, curTo, prevFrom, prevTo := monthToDateWindows(asOf)
	cur, err := sumEngagements(curFrom, curTo)
	if err != nil {
		return nil, err
	}
	prev, err := sumEngagements(prevFrom, prevTo)
	if err != nil {
		return nil, err
	}

	return &SocialInsightSummaryResponse{
		AsOf:             asOf,
		CurrentFollowers: followers.Total,
		MonthEngagements: cur,
		PrevEngagements:  prev,
	}, nil
}
