package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"github.com/shopspring/decimal"
)

// ExpensePayout is one day of expense payouts for one entity.
// Grain matches BankReserve: entity id 0 carries the cross-entity total.
type ExpensePayout struct {
	ID               uint      `gorm:"primary_key" json:"id"`
	BusinessEntityId int       `gorm:"uniqueIndex:idx_expense_payout_key,priority:1" json:"business_entity_id"`
	PayoutDate       time.Time `gorm:"type:date;uniqueIndex:idx_expense_payout_key,priority:2;index" json:"payout_date"`

	PayoutAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"payout_amount"`
	TransactionCount int             `gorm:"default:0" json:"transaction_count"`

	DataSource   DataSource `gorm:"size:30;uniqueIndex:idx_expense_payout_key,priority:3;not null" json:"data_source"`
	LastSyncedAt time.Time  `json:"last_synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p ExpensePayout) UniquenessKey() string {
	return fmt.Sprintf("%d|%s|%s", p.BusinessEntityId, p.PayoutDate.Format("2006-01-02"), p.DataSource)
}

func expensePayoutConflictColumns() []string {
	return []string{"business_entity_id", "payout_date", "data_source"}
}

func expensePayoutUpdateColumns() []string {
	return []string{"payout_amount", "transaction_count", "last_synced_at"}
}

func ExistingExpensePayoutKeys(ctx context.Context, from, to time.Time, source DataSource) (map[string]struct{}, error) {
	var rows []ExpensePayout
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Select("business_entity_id", "payout_date", "data_source").
		Where("payout_date BETWEEN ? AND ? AND data_source = ?", from, to, source).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		keys[row.UniquenessKey()] = struct{}{}
	}
	return keys, nil
}

func SaveExpensePayouts(ctx context.Context, records []ExpensePayout) (int, int, error) {
	return BulkUpsertMetrics(ctx, expensePayoutConflictColumns(), expensePayoutUpdateColumns(), records)
}
