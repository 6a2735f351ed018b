package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"github.com/shopspring/decimal"
)

// RevenueReservation is one day of reserved (booked, not yet realized)
// revenue for one project and sales team. There is no aggregate row; totals
// are computed by query-time grouping in the reports package.
type RevenueReservation struct {
	ID            uint      `gorm:"primary_key" json:"id"`
	ProjectId     int       `gorm:"uniqueIndex:idx_revenue_reservation_key,priority:1" json:"project_id"`
	SalesTeamName string    `gorm:"size:100;uniqueIndex:idx_revenue_reservation_key,priority:2;not null" json:"sales_team_name"`
	ReserveDate   time.Time `gorm:"type:date;uniqueIndex:idx_revenue_reservation_key,priority:3;index" json:"reserve_date"`

	ReservedAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reserved_amount"`
	UnitCount      int             `gorm:"default:0" json:"unit_count"`

	DataSource   DataSource `gorm:"size:30;not null" json:"data_source"`
	LastSyncedAt time.Time  `json:"last_synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r RevenueReservation) UniquenessKey() string {
	return fmt.Sprintf("%d|%s|%s", r.ProjectId, r.SalesTeamName, r.ReserveDate.Format("2006-01-02"))
}

func revenueReservationConflictColumns() []string {
	return []string{"project_id", "sales_team_name", "reserve_date"}
}

func revenueReservationUpdateColumns() []string {
	return []string{"reserved_amount", "unit_count", "last_synced_at"}
}

func ExistingRevenueReservationKeys(ctx context.Context, from, to time.Time) (map[string]struct{}, error) {
	var rows []RevenueReservation
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Select("project_id", "sales_team_name", "reserve_date").
		Where("reserve_date BETWEEN ? AND ?", from, to).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		keys[row.UniquenessKey()] = struct{}{}
	}
	return keys, nil
}

func SaveRevenueReservations(ctx context.Context, records []RevenueReservation) (int, int, error) {
	return BulkUpsertMetrics(ctx, revenueReservationConflictColumns(), revenueReservationUpdateColumns(), records)
}
