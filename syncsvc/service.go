package syncsvc

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/upstream"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultWorkerLimit = 8

// Service owns the upstream clients and drives per-domain sync runs. One
// value is built at startup and shared by the scheduler, the manual trigger
// handlers and the Pub/Sub push path.
type Service struct {
	fortuna reserveFetcher
	zan     analyticsFetcher
	social  insightFetcher

	workerLimit int
	timezone    string
	logger      *logrus.Logger
}

// reserveFetcher covers the Fortuna endpoints.
type reserveFetcher interface {
	ReserveBalances(ctx context.Context, fromDate, toDate, scopeCode string) ([]upstream.FortunaReserveRow, error)
	ExpensePayouts(ctx context.Context, fromDate, toDate, scopeCode string) ([]upstream.FortunaPayoutRow, error)
	PurchaseOrders(ctx context.Context, fromDate, toDate, scopeCode string) ([]upstream.FortunaPurchaseOrderRow, error)
}

// analyticsFetcher covers the Z-Analytics views.
type analyticsFetcher interface {
	SalesCollections(ctx context.Context, fromDate, toDate string) ([]upstream.ZanalyticsCollectionRow, error)
	RevenueReservations(ctx context.Context, fromDate, toDate string) ([]upstream.ZanalyticsReservationRow, error)
}

// insightFetcher covers Socialpulse.
type insightFetcher interface {
	Insights(ctx context.Context, profileCode, fromDate, toDate string) ([]upstream.SocialpulseInsightRow, error)
}

func NewService() (*Service, error) {
	tokens := upstream.NewTokenCache()
	fortuna, err := upstream.NewFortunaClient(tokens)
	if err != nil {
		return nil, err
	}
	zan, err := upstream.NewZanalyticsClient(tokens)
	if err != nil {
		return nil, err
	}
	social, err := upstream.NewSocialpulseClient()
	if err != nil {
		return nil, err
	}
	return &Service{
		fortuna:     fortuna,
		zan:         zan,
		social:      social,
		workerLimit: workerLimitFromEnv(),
		timezone:    utils.DefaultTimezone,
		logger:      config.GetLogger(),
	}, nil
}

func workerLimitFromEnv() int {
	v := strings.TrimSpace(os.Getenv("SYNC_WORKER_LIMIT"))
	if v == "" {
		return defaultWorkerLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultWorkerLimit
	}
	return n
}

// RunDomain executes one sync run for one domain and records it in the
// sync_runs table. Only precondition failures (unknown domain, token
// exchange, key-snapshot load) mark a run failed outright; per-slice fetch
// failures are collected and do not abort sibling tasks.
func (s *Service) RunDomain(ctx context.Context, domain models.SyncDomain, window Window) *SyncResult {
	triggeredBy, _ := utils.GetTriggeredByFromContext(ctx)
	if triggeredBy == "" {
		triggeredBy = models.SyncTriggeredManual
	}

	run, runErr := models.CreateSyncRun(ctx, domain, triggeredBy, window.From, window.To)
	if runErr != nil && s.logger != nil {
		config.LogError(s.logger, "syncsvc", "RunDomain", "create sync run", string(domain), runErr)
	}

	var result *SyncResult
	switch domain {
	case models.SyncDomainBankReserve:
		result = s.syncBankReserves(ctx, window)
	case models.SyncDomainExpensePayout:
		result = s.syncExpensePayouts(ctx, window)
	case models.SyncDomainSalesCollection:
		result = s.syncSalesCollections(ctx, window)
	case models.SyncDomainRevenueReservation:
		result = s.syncRevenueReservations(ctx, window)
	case models.SyncDomainProcurementOrder:
		result = s.syncProcurementOrders(ctx, window)
	case models.SyncDomainSocialInsight:
		result = s.syncSocialInsights(ctx, window)
	default:
		result = newResult(domain)
		result.Errors = append(result.Errors, fmt.Sprintf("unknown sync domain %q", domain))
		result.finalize()
	}

	if run != nil {
		if err := models.FinishSyncRun(ctx, run, result.runStatus(),
			result.ItemsProcessed, result.RecordsSaved, result.RecordsSkipped, result.Errors); err != nil && s.logger != nil {
			config.LogError(s.logger, "syncsvc", "RunDomain", "finish sync run", string(domain), err)
		}
	}
	return result
}

// RunAll runs every domain sequentially: a domain's result is logged before
// the next domain starts.
func (s *Service) RunAll(ctx context.Context, window Window) []*SyncResult {
	results := make([]*SyncResult, 0, len(models.AllSyncDomains()))
	for _, domain := range models.AllSyncDomains() {
		result := s.RunDomain(ctx, domain, window)
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{
				"domain":          result.Domain,
				"success":         result.Success,
				"items_processed": result.ItemsProcessed,
				"records_saved":   result.RecordsSaved,
				"records_skipped": result.RecordsSkipped,
				"error_count":     len(result.Errors),
				"window":          window.String(),
				"duration_ms":     result.DurationMs,
			}).Info("sync run finished")
		}
		results = append(results, result)
	}
	return results
}

func newResult(domain models.SyncDomain) *SyncResult {
	return &SyncResult{Domain: domain, StartedAt: time.Now(), Errors: []string{}}
}

// runEntityTasks fans the work out per entity with a bounded worker budget.
// A failing task records its error and never cancels siblings.
func runEntityTasks(ctx context.Context, limit int, entities []*models.BusinessEntity, fn func(ctx context.Context, entity *models.BusinessEntity) error) []string {
	if limit <= 0 {
		limit = defaultWorkerLimit
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)

	var mu sync.Mutex
	errs := []string{}
	for _, entity := range entities {
		entity := entity
		g.Go(func() error {
			if err := fn(ctx, entity); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Sprintf("%s: %v", entity.Code, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// stageRecords drops records whose uniqueness key is already persisted or
// already staged earlier in this run.
func stageRecords[T models.MetricRecord](records []T, existing map[string]struct{}) (fresh []T, skipped int) {
	staged := make(map[string]struct{}, len(records))
	fresh = make([]T, 0, len(records))
	for _, record := range records {
		key := record.UniquenessKey()
		if _, ok := existing[key]; ok {
			skipped++
			continue
		}
		if _, ok := staged[key]; ok {
			skipped++
			continue
		}
		staged[key] = struct{}{}
		fresh = append(fresh, record)
	}
	return fresh, skipped
}
