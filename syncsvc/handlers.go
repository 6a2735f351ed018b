package syncsvc

import (
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
	"github.com/gin-gonic/gin"
)

// TriggerSyncHandler runs one domain (or all, with domain "all")
// synchronously and returns the structured result. fromDate/toDate query
// params override the default window.
func TriggerSyncHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := models.SyncDomain(strings.TrimSpace(c.Param("domain")))

		window, err := ParseWindow(c.Query("fromDate"), c.Query("toDate"), svc.timezone)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := utils.SetTriggeredByInContext(c.Request.Context(), models.SyncTriggeredManual)
		if domain == "all" {
			c.JSON(http.StatusOK, gin.H{"results": svc.RunAll(ctx, window)})
			return
		}
		if !models.IsValidSyncDomain(domain) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sync domain"})
			return
		}
		c.JSON(http.StatusOK, svc.RunDomain(ctx, domain, window))
	}
}

// EnqueueSyncHandler publishes a trigger to Pub/Sub instead of running
// inline, for callers that should not wait on upstream latency.
func EnqueueSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := models.SyncDomain(strings.TrimSpace(c.Param("domain")))
		if domain != "all" && !models.IsValidSyncDomain(domain) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sync domain"})
			return
		}
		payload := SyncTriggerPayload{
			FromDate: c.Query("fromDate"),
			ToDate:   c.Query("toDate"),
		}
		if domain != "all" {
			payload.Domain = domain
		}
		if err := PublishSyncTrigger(c.Request.Context(), payload); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"enqueued": true})
	}
}

// SyncHistoryHandler lists recent runs for one domain.
func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := models.SyncDomain(strings.TrimSpace(c.Query("domain")))
		if domain != "" && !models.IsValidSyncDomain(domain) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sync domain"})
			return
		}
		limit := 20
		if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		runs, err := models.RecentSyncRuns(c.Request.Context(), domain, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}
