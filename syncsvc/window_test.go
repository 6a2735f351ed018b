package syncsvc

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/utils"
)

func TestDefaultWindowCoversLastThreeDays(t *testing.T) {
	now := time.Date(2026, 1, 18, 14, 30, 0, 0, time.UTC)
	w, err := DefaultWindow(now, utils.DefaultTimezone)
	if err != nil {
		t.Fatalf("DefaultWindow: %v", err)
	}
	if w.FromDate() != "2026-01-16" {
		t.Fatalf("from = %s, want 2026-01-16", w.FromDate())
	}
	if w.ToDate() != "2026-01-18" {
		t.Fatalf("to = %s, want 2026-01-18", w.ToDate())
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2026-01-01", "2026-01-10", utils.DefaultTimezone)
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	if w.FromDate() != "2026-01-01" || w.ToDate() != "2026-01-10" {
		t.Fatalf("window = %s", w)
	}

	if _, err := ParseWindow("2026-01-01", "", utils.DefaultTimezone); err == nil {
		t.Fatal("expected error when only fromDate is set")
	}
	if _, err := ParseWindow("", "2026-01-10", utils.DefaultTimezone); err == nil {
		t.Fatal("expected error when only toDate is set")
	}
	if _, err := ParseWindow("2026-01-10", "2026-01-01", utils.DefaultTimezone); err == nil {
		t.Fatal("expected error for inverted range")
	}
	if _, err := ParseWindow("not-a-date", "2026-01-10", utils.DefaultTimezone); err == nil {
		t.Fatal("expected error for malformed fromDate")
	}

	w, err = ParseWindow("", "", utils.DefaultTimezone)
	if err != nil {
		t.Fatalf("default window: %v", err)
	}
	if !w.To.After(w.From) {
		t.Fatalf("default window not ordered: %s", w)
	}
}
