package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
)

// SocialInsight is one day of social-media metrics for one entity and
// platform.
type SocialInsight struct {
	ID               uint           `gorm:"primary_key" json:"id"`
	BusinessEntityId int            `gorm:"uniqueIndex:idx_social_insight_key,priority:1" json:"business_entity_id"`
	Platform         SocialPlatform `gorm:"size:20;uniqueIndex:idx_social_insight_key,priority:2;not null" json:"platform"`
	InsightDate      time.Time      `gorm:"type:date;uniqueIndex:idx_social_insight_key,priority:3;index" json:"insight_date"`

	Followers   int64 `gorm:"default:0" json:"followers"`
	Impressions int64 `gorm:"default:0" json:"impressions"`
	Engagements int64 `gorm:"default:0" json:"engagements"`

	DataSource   DataSource `gorm:"size:30;not null" json:"data_source"`
	LastSyncedAt time.Time  `json:"last_synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s SocialInsight) UniquenessKey() string {
	return fmt.Sprintf("%d|%s|%s", s.BusinessEntityId, s.Platform, s.InsightDate.Format("2006-01-02"))
}

func socialInsightConflictColumns() []string {
	return []string{"business_entity_id", "platform", "insight_date"}
}

func socialInsightUpdateColumns() []string {
	return []string{"followers", "impressions", "engagements", "last_synced_at"}
}

func ExistingSocialInsightKeys(ctx context.Context, from, to time.Time) (map[string]struct{}, error) {
	var rows []SocialInsight
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Select("business_entity_id", "platform", "insight_date").
		Where("insight_date BETWEEN ? AND ?", from, to).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		keys[row.UniquenessKey()] = struct{}{}
	}
	return keys, nil
}

func SaveSocialInsights(ctx context.Context, records []SocialInsight) (int, int, error) {
	return BulkUpsertMetrics(ctx, socialInsightConflictColumns(), socialInsightUpdateColumns(), records)
}
