package syncsvc

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/upstream"
)

func buildSocialInsights(entityId int, rows []upstream.SocialpulseInsightRow, timezone string, syncedAt time.Time) (records []models.SocialInsight, skipped int) {
	for _, row := range rows {
		platform, ok := parsePlatform(row.Platform)
		if !ok {
			skipped++
			continue
		}
		date, err := parseRowDate(row.InsightDate, timezone)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, models.SocialInsight{
			BusinessEntityId: entityId,
			Platform:         platform,
			InsightDate:      date,
			Followers:        row.Followers,
			Impressions:      row.Impressions,
			Engagements:      row.Engagements,
			DataSource:       models.DataSourceSocialpulse,
			LastSyncedAt:     syncedAt,
		})
	}
	return records, skipped
}

func (s *Service) syncSocialInsights(ctx context.Context, window Window) *SyncResult {
	result := newResult(models.SyncDomainSocialInsight)
	defer result.finalize()

	entities, err := models.ListBusinessEntities(ctx)
	if err != nil {
		result.Errors = append(result.Errors, "load business entities: "+err.Error())
		return result
	}
	existing, err := models.ExistingSocialInsightKeys(ctx, window.From, window.To)
	if err != nil {
		result.Errors = append(result.Errors, "load existing keys: "+err.Error())
		return result
	}

	syncedAt := time.Now()
	collected := newCollector[models.SocialInsight]()
	errs := runEntityTasks(ctx, s.workerLimit, entities, func(ctx context.Context, entity *models.BusinessEntity) error {
		rows, err := s.social.Insights(ctx, entity.Code, window.FromDate(), window.ToDate())
		if err != nil {
			return err
		}
		records, skipped := buildSocialInsights(entity.ID, rows, s.timezone, syncedAt)
		collected.add(records, skipped, len(rows))
		return nil
	})
	result.Errors = append(result.Errors, errs...)

	records, skipped, processed := collected.drain()
	result.ItemsProcessed = processed
	result.RecordsSkipped += skipped

	fresh, dupes := stageRecords(records, existing)
	result.RecordsSkipped += dupes
	if len(fresh) == 0 {
		return result
	}

	saved, conflicts, err := models.SaveSocialInsights(ctx, fresh)
	result.RecordsSaved = saved
	result.RecordsSkipped += conflicts
	if err != nil {
		result.Errors = append(result.Errors, "save social insights: "+err.Error())
	}
	return result
}
