package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"github.com/shopspring/decimal"
)

// BankReserve is one day of bank reserve balances for one entity.
// Grain: (business_entity_id, reserve_date, data_source); entity id 0 is
// the cross-entity total row for that date.
type BankReserve struct {
	ID               uint      `gorm:"primary_key" json:"id"`
	BusinessEntityId int       `gorm:"uniqueIndex:idx_bank_reserve_key,priority:1" json:"business_entity_id"`
	ReserveDate      time.Time `gorm:"type:date;uniqueIndex:idx_bank_reserve_key,priority:2;index" json:"reserve_date"`

	EsAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"es_amount"`
	NonEsAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"non_es_amount"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`

	DataSource   DataSource `gorm:"size:30;uniqueIndex:idx_bank_reserve_key,priority:3;not null" json:"data_source"`
	LastSyncedAt time.Time  `json:"last_synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r BankReserve) UniquenessKey() string {
	return fmt.Sprintf("%d|%s|%s", r.BusinessEntityId, r.ReserveDate.Format("2006-01-02"), r.DataSource)
}

func bankReserveConflictColumns() []string {
	return []string{"business_entity_id", "reserve_date", "data_source"}
}

func bankReserveUpdateColumns() []string {
	return []string{"es_amount", "non_es_amount", "total_amount", "last_synced_at"}
}

// ExistingBankReserveKeys snapshots the keys already persisted inside the
// sync window so a run can skip known rows without touching the upsert path.
func ExistingBankReserveKeys(ctx context.Context, from, to time.Time, source DataSource) (map[string]struct{}, error) {
	var rows []BankReserve
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Select("business_entity_id", "reserve_date", "data_source").
		Where("reserve_date BETWEEN ? AND ? AND data_source = ?", from, to, source).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		keys[row.UniquenessKey()] = struct{}{}
	}
	return keys, nil
}

func SaveBankReserves(ctx context.Context, records []BankReserve) (int, int, error) {
	return BulkUpsertMetrics(ctx, bankReserveConflictColumns(), bankReserveUpdateColumns(), records)
}
