package models

import (
	"log"

	"bitbucket.org/mmdatafocus/insights_backend/config"
)

// MigrateTable runs AutoMigrate for every table the service owns.
func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&BusinessEntity{},
		&Project{},
		&BankReserve{},
		&ExpensePayout{},
		&SalesCollection{},
		&RevenueReservation{},
		&ProcurementOrder{},
		&SocialInsight{},
		&SyncRun{},
	)
	if err != nil {
		log.Printf("auto migrate failed: %v", err)
	}
}
