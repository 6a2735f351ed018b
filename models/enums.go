package models

// DataSource tags every metric row with the upstream provider it came from.
// It is part of several uniqueness keys, so renaming a value is a migration.
type DataSource string

const (
	DataSourceFortuna     DataSource = "fortuna"
	DataSourceZanalytics  DataSource = "zanalytics"
	DataSourceSocialpulse DataSource = "socialpulse"
)

// SpecialType marks sentinel rows in sales collections. A sentinel row has
// no entity/project reference; a normal row never carries a SpecialType.
type SpecialType string

const (
	SpecialTypeNone         SpecialType = ""
	SpecialTypeGrandSummary SpecialType = "GrandSummary"
	SpecialTypeNoValue      SpecialType = "NoValue"
)

type SocialPlatform string

const (
	SocialPlatformFacebook  SocialPlatform = "Facebook"
	SocialPlatformInstagram SocialPlatform = "Instagram"
	SocialPlatformYoutube   SocialPlatform = "Youtube"
	SocialPlatformTiktok    SocialPlatform = "Tiktok"
)

// SyncDomain is one metric family with its own table and sync logic.
type SyncDomain string

const (
	SyncDomainBankReserve        SyncDomain = "bank_reserve"
	SyncDomainExpensePayout      SyncDomain = "expense_payout"
	SyncDomainSalesCollection    SyncDomain = "sales_collection"
	SyncDomainRevenueReservation SyncDomain = "revenue_reservation"
	SyncDomainProcurementOrder   SyncDomain = "procurement_order"
	SyncDomainSocialInsight      SyncDomain = "social_insight"
)

// AllSyncDomains in the order the scheduled sweep runs them.
func AllSyncDomains() []SyncDomain {
	return []SyncDomain{
		SyncDomainBankReserve,
		SyncDomainExpensePayout,
		SyncDomainSalesCollection,
		SyncDomainRevenueReservation,
		SyncDomainProcurementOrder,
		SyncDomainSocialInsight,
	}
}

func IsValidSyncDomain(d SyncDomain) bool {
	for _, v := range AllSyncDomains() {
		if v == d {
			return true
		}
	}
	return false
}

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual    = "manual"
	SyncTriggeredScheduled = "scheduled"
	SyncTriggeredPubSub    = "pubsub"
)

const (
	ProjectStatusActive = "Active"
	ProjectStatusClosed = "Closed"
)
