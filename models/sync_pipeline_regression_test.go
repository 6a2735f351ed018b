package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/reports"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
	"github.com/shopspring/decimal"
)

func TestBankReservePipelineAgainstMySQL(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "insights_test")
	t.Setenv("ENABLE_REPORT_CACHE", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	acme, err := models.UpsertBusinessEntity(ctx, "ACME", "Acme Holdings", "USD")
	if err != nil {
		t.Fatalf("UpsertBusinessEntity: %v", err)
	}
	globex, err := models.UpsertBusinessEntity(ctx, "GLOBX", "Globex Corp", "USD")
	if err != nil {
		t.Fatalf("UpsertBusinessEntity: %v", err)
	}

	// Dates go through the same business-timezone parse the transformers
	// use, so the stored DATE must read back as the same calendar day.
	var dates []time.Time
	for _, day := range []string{"2026-01-15", "2026-01-16", "2026-01-17"} {
		date, err := utils.ParseDateOnly(day, utils.DefaultTimezone)
		if err != nil {
			t.Fatalf("ParseDateOnly(%s): %v", day, err)
		}
		dates = append(dates, date)
	}
	syncedAt := time.Now()

	var batch []models.BankReserve
	for _, date := range dates {
		batch = append(batch,
			models.BankReserve{
				BusinessEntityId: acme.ID,
				ReserveDate:      date,
				EsAmount:         decimal.NewFromInt(100),
				NonEsAmount:      decimal.NewFromInt(50),
				TotalAmount:      decimal.NewFromInt(150),
				DataSource:       models.DataSourceFortuna,
				LastSyncedAt:     syncedAt,
			},
			models.BankReserve{
				BusinessEntityId: globex.ID,
				ReserveDate:      date,
				EsAmount:         decimal.NewFromInt(30),
				NonEsAmount:      decimal.NewFromInt(20),
				TotalAmount:      decimal.NewFromInt(50),
				DataSource:       models.DataSourceFortuna,
				LastSyncedAt:     syncedAt,
			},
			// Cross-entity total row for the date.
			models.BankReserve{
				BusinessEntityId: 0,
				ReserveDate:      date,
				EsAmount:         decimal.NewFromInt(130),
				NonEsAmount:      decimal.NewFromInt(70),
				TotalAmount:      decimal.NewFromInt(200),
				DataSource:       models.DataSourceFortuna,
				LastSyncedAt:     syncedAt,
			},
		)
	}

	saved, skipped, err := models.SaveBankReserves(ctx, batch)
	if err != nil {
		t.Fatalf("SaveBankReserves: %v", err)
	}
	if saved != len(batch) || skipped != 0 {
		t.Fatalf("first save: saved=%d skipped=%d, want saved=%d skipped=0", saved, skipped, len(batch))
	}

	// The key snapshot must now cover the whole batch, so a rerun over the
	// same window stages nothing new.
	existing, err := models.ExistingBankReserveKeys(ctx, dates[0], dates[len(dates)-1], models.DataSourceFortuna)
	if err != nil {
		t.Fatalf("ExistingBankReserveKeys: %v", err)
	}
	if len(existing) != len(batch) {
		t.Fatalf("existing keys = %d, want %d", len(existing), len(batch))
	}
	for _, record := range batch {
		if _, ok := existing[record.UniquenessKey()]; !ok {
			t.Fatalf("key missing from snapshot: %s", record.UniquenessKey())
		}
	}

	// Writing the same batch again must not grow the table.
	rerun := make([]models.BankReserve, len(batch))
	for i, record := range batch {
		record.ID = 0
		record.TotalAmount = record.TotalAmount.Add(decimal.NewFromInt(1))
		rerun[i] = record
	}
	if _, _, err := models.SaveBankReserves(ctx, rerun); err != nil {
		t.Fatalf("rerun SaveBankReserves: %v", err)
	}

	db := config.GetDB()
	var rowCount int64
	if err := db.WithContext(ctx).Model(&models.BankReserve{}).Count(&rowCount).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rowCount != int64(len(batch)) {
		t.Fatalf("row count after rerun = %d, want %d", rowCount, len(batch))
	}

	// Exactly one cross-entity total row per date survives the rerun, and
	// the rerun's amounts replaced the originals.
	var aggregateCount int64
	if err := db.WithContext(ctx).Model(&models.BankReserve{}).
		Where("business_entity_id = 0").
		Count(&aggregateCount).Error; err != nil {
		t.Fatalf("count aggregates: %v", err)
	}
	if aggregateCount != int64(len(dates)) {
		t.Fatalf("aggregate rows = %d, want %d", aggregateCount, len(dates))
	}
	var updated models.BankReserve
	if err := db.WithContext(ctx).
		Where("business_entity_id = 0 AND reserve_date = ?", dates[0]).
		First(&updated).Error; err != nil {
		t.Fatalf("fetch aggregate: %v", err)
	}
	if !updated.TotalAmount.Equal(decimal.NewFromInt(201)) {
		t.Fatalf("aggregate total after rerun = %s, want 201", updated.TotalAmount)
	}

	// Detail report pages over distinct dates, newest first, with the
	// stored aggregate feeding each bucket's totals.
	detail, err := reports.GetBankReserveDetail(ctx, reports.BankReserveFilters{}, 1, 2)
	if err != nil {
		t.Fatalf("GetBankReserveDetail: %v", err)
	}
	if detail.Pagination.TotalItems != int64(len(dates)) {
		t.Fatalf("total dates = %d, want %d", detail.Pagination.TotalItems, len(dates))
	}
	if detail.Pagination.TotalPages != 2 {
		t.Fatalf("total pages = %d, want 2", detail.Pagination.TotalPages)
	}
	if len(detail.DateGroups) != 2 {
		t.Fatalf("page 1 groups = %d, want 2", len(detail.DateGroups))
	}
	first := detail.DateGroups[0]
	if first.Date.Format("2006-01-02") != "2026-01-17" {
		t.Fatalf("first group date = %s, want 2026-01-17", first.Date.Format("2006-01-02"))
	}
	if !first.GrandTotal.Equal(decimal.NewFromInt(201)) {
		t.Fatalf("first group grand total = %s, want 201", first.GrandTotal)
	}
	if len(first.Rows) != 2 {
		t.Fatalf("first group rows = %d, want 2", len(first.Rows))
	}
	for _, row := range first.Rows {
		if row.BusinessEntityId == 0 {
			t.Fatalf("aggregate row leaked into detail rows")
		}
	}

	// The excel export walks every page, so all three dates must land in
	// the workbook regardless of the detail page size.
	workbook, err := reports.ExportBankReserveDetailExcel(ctx, reports.BankReserveFilters{})
	if err != nil {
		t.Fatalf("ExportBankReserveDetailExcel: %v", err)
	}
	cells, err := workbook.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	exported := map[string]bool{}
	for _, row := range cells[1:] {
		if len(row) > 0 {
			exported[row[0]] = true
		}
	}
	for _, date := range dates {
		if !exported[date.Format("2006-01-02")] {
			t.Fatalf("date %s missing from export", date.Format("2006-01-02"))
		}
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("insights-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("insights-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=insights_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
