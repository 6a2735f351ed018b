package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/models"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type seedEntity struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// Seeds the business_entities table from a JSON file. Existing codes are
// updated in place, so re-running is safe.
func main() {
	_ = godotenv.Load()

	file := flag.String("file", "seed/business_entities.json", "path to entity seed file")
	flag.Parse()

	logger := config.GetLogger()

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.WithFields(logrus.Fields{"file": *file}).Fatal(err)
	}
	var entities []seedEntity
	if err := json.Unmarshal(data, &entities); err != nil {
		logger.WithFields(logrus.Fields{"file": *file}).Fatal(err)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	seeded := 0
	for _, entity := range entities {
		code := strings.TrimSpace(entity.Code)
		name := strings.TrimSpace(entity.Name)
		if code == "" || name == "" {
			logger.WithFields(logrus.Fields{"code": entity.Code}).Warn("skipping entity with empty code or name")
			continue
		}
		if _, err := models.UpsertBusinessEntity(ctx, code, name, strings.TrimSpace(entity.Currency)); err != nil {
			config.LogError(logger, "seed", "main", "upsert business entity", code, err)
			continue
		}
		seeded++
	}
	logger.WithFields(logrus.Fields{"seeded": seeded, "total": len(entities)}).Info("dimension seed finished")
}
