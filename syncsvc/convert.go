package syncsvc

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
	"github.com/shopspring/decimal"
)

// parseRowDate normalizes an upstream date string to UTC midnight so the
// stored date survives the driver's UTC conversion unchanged.
func parseRowDate(value, timezone string) (time.Time, error) {
	return utils.ParseDateOnly(value, timezone)
}

// collector gathers per-entity task output under one lock.
type collector[T any] struct {
	mu        sync.Mutex
	records   []T
	skipped   int
	processed int
}

func newCollector[T any]() *collector[T] {
	return &collector[T]{}
}

func (c *collector[T]) add(records []T, skipped, processed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, records...)
	c.skipped += skipped
	c.processed += processed
}

func (c *collector[T]) drain() ([]T, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records, c.skipped, c.processed
}

// decimalFromNumber tolerates the empty strings Fortuna sends for missing
// amounts. A value that is present but unparseable is a bad row.
func decimalFromNumber(n json.Number) (decimal.Decimal, bool) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parsePlatform(raw string) (models.SocialPlatform, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "facebook", "fb":
		return models.SocialPlatformFacebook, true
	case "instagram", "ig":
		return models.SocialPlatformInstagram, true
	case "youtube", "yt":
		return models.SocialPlatformYoutube, true
	case "tiktok":
		return models.SocialPlatformTiktok, true
	}
	return "", false
}
