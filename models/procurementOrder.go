package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"github.com/shopspring/decimal"
)

// ProcurementOrder is one purchase order; the PO number is globally unique
// so the uniqueness key degenerates to a single column.
type ProcurementOrder struct {
	ID               uint   `gorm:"primary_key" json:"id"`
	PurchaseOrderNo  string `gorm:"uniqueIndex;size:64;not null" json:"purchase_order_no"`
	BusinessEntityId int    `gorm:"index" json:"business_entity_id"`
	ProjectId        int    `gorm:"index" json:"project_id"`

	OrderDate    time.Time       `gorm:"type:date;index" json:"order_date"`
	OrderAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"order_amount"`
	SupplierName string          `gorm:"size:255" json:"supplier_name"`
	Status       string          `gorm:"size:30" json:"status"`

	DataSource   DataSource `gorm:"size:30;not null" json:"data_source"`
	LastSyncedAt time.Time  `json:"last_synced_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o ProcurementOrder) UniquenessKey() string {
	return o.PurchaseOrderNo
}

func procurementOrderConflictColumns() []string {
	return []string{"purchase_order_no"}
}

func procurementOrderUpdateColumns() []string {
	return []string{"order_date", "order_amount", "supplier_name", "status", "last_synced_at"}
}

// ExistingProcurementOrderKeys snapshots all known PO numbers. The key is
// global, not windowed, because upstream re-sends open orders every run.
func ExistingProcurementOrderKeys(ctx context.Context) (map[string]struct{}, error) {
	var numbers []string
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Model(&ProcurementOrder{}).
		Pluck("purchase_order_no", &numbers).Error; err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		keys[n] = struct{}{}
	}
	return keys, nil
}

func SaveProcurementOrders(ctx context.Context, records []ProcurementOrder) (int, int, error) {
	return BulkUpsertMetrics(ctx, procurementOrderConflictColumns(), procurementOrderUpdateColumns(), records)
}
