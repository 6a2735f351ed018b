package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"github.com/shopspring/decimal"
)

// SalesCollection is one day of collected sales for one entity+project, or a
// sentinel row for the date. Sentinel rows (GrandSummary, NoValue) carry a
// SpecialType and zero entity/project ids; normal rows carry an empty
// SpecialType. The composite unique index enforces both key shapes because
// sentinels pin entity and project to zero.
type SalesCollection struct {
	ID               uint        `gorm:"primary_key" json:"id"`
	BusinessEntityId int         `gorm:"uniqueIndex:idx_sales_collection_key,priority:1" json:"business_entity_id"`
	ProjectId        int         `gorm:"uniqueIndex:idx_sales_collection_key,priority:2" json:"project_id"`
	SpecialType      SpecialType `gorm:"size:20;uniqueIndex:idx_sales_collection_key,priority:3;default:''" json:"special_type"`
	CollectionDate   time.Time   `gorm:"type:date;uniqueIndex:idx_sales_collection_key,priority:4;index" json:"collection_date"`

	CollectedAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"collected_amount"`
	InvoicedAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"invoiced_amount"`

	DataSource   DataSource `gorm:"size:30;not null" json:"data_source"`
	LastSyncedAt time.Time  `json:"last_synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c SalesCollection) IsSentinel() bool {
	return c.SpecialType != SpecialTypeNone
}

func (c SalesCollection) UniquenessKey() string {
	date := c.CollectionDate.Format("2006-01-02")
	if c.IsSentinel() {
		return fmt.Sprintf("S|%s|%s", c.SpecialType, date)
	}
	return fmt.Sprintf("N|%d|%d|%s", c.BusinessEntityId, c.ProjectId, date)
}

func salesCollectionConflictColumns() []string {
	return []string{"business_entity_id", "project_id", "special_type", "collection_date"}
}

func salesCollectionUpdateColumns() []string {
	return []string{"collected_amount", "invoiced_amount", "last_synced_at"}
}

func ExistingSalesCollectionKeys(ctx context.Context, from, to time.Time) (map[string]struct{}, error) {
	var rows []SalesCollection
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Select("business_entity_id", "project_id", "special_type", "collection_date").
		Where("collection_date BETWEEN ? AND ?", from, to).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		keys[row.UniquenessKey()] = struct{}{}
	}
	return keys, nil
}

func SaveSalesCollections(ctx context.Context, records []SalesCollection) (int, int, error) {
	return BulkUpsertMetrics(ctx, salesCollectionConflictColumns(), salesCollectionUpdateColumns(), records)
}
