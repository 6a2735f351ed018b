package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/reports"
	"bitbucket.org/mmdatafocus/insights_backend/scheduler"
	"bitbucket.org/mmdatafocus/insights_backend/syncsvc"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	_ = godotenv.Load()

	port := os.Getenv("INSIGHTS_SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	svc, err := syncsvc.NewService()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "upstream"}).Fatal(err)
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	// Sync triggers.
	r.POST("/api/sync/:domain", syncsvc.TriggerSyncHandler(svc))
	r.POST("/api/sync/:domain/enqueue", syncsvc.EnqueueSyncHandler())
	r.GET("/api/sync-runs", syncsvc.SyncHistoryHandler())

	// Reports.
	r.GET("/api/reports/bank-reserves", reports.BankReserveListHandler())
	r.GET("/api/reports/bank-reserves/detail", reports.BankReserveDetailHandler())
	r.GET("/api/reports/bank-reserves/summary", reports.BankReserveSummaryHandler())
	r.GET("/api/reports/bank-reserves/export", reports.BankReserveExportHandler())
	r.GET("/api/reports/expense-payouts", reports.ExpensePayoutListHandler())
	r.GET("/api/reports/expense-payouts/detail", reports.ExpensePayoutDetailHandler())
	r.GET("/api/reports/expense-payouts/summary", reports.ExpensePayoutSummaryHandler())
	r.GET("/api/reports/sales-collections", reports.SalesCollectionListHandler())
	r.GET("/api/reports/sales-collections/detail", reports.SalesCollectionDetailHandler())
	r.GET("/api/reports/sales-collections/summary", reports.SalesCollectionSummaryHandler())
	r.GET("/api/reports/sales-collections/export", reports.SalesCollectionExportHandler())
	r.GET("/api/reports/revenue-reservations", reports.RevenueReservationListHandler())
	r.GET("/api/reports/revenue-reservations/detail", reports.RevenueReservationDetailHandler())
	r.GET("/api/reports/revenue-reservations/summary", reports.RevenueReservationSummaryHandler())
	r.GET("/api/reports/procurement-orders", reports.ProcurementOrderListHandler())
	r.GET("/api/reports/procurement-orders/detail", reports.ProcurementOrderDetailHandler())
	r.GET("/api/reports/procurement-orders/summary", reports.ProcurementOrderSummaryHandler())
	r.GET("/api/reports/social-insights", reports.SocialInsightListHandler())
	r.GET("/api/reports/social-insights/detail", reports.SocialInsightDetailHandler())
	r.GET("/api/reports/social-insights/summary", reports.SocialInsightSummaryHandler())

	// Pub/Sub push endpoint for sync triggers.
	r.POST("/pubsub/sync", syncsvc.PubSubPushHandler(svc))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	sched, err := scheduler.New(svc)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "scheduler"}).Fatal(err)
	}
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("DISABLE_SCHEDULER")), "true") {
		sched.Start()
		defer sched.Stop()
	}

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}
