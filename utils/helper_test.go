package utils

import (
	"testing"
	"time"
	"unicode/utf8"
)

func TestGenerateCode(t *testing.T) {
	cases := []struct {
		name   string
		maxLen int
		want   string
	}{
		{"Riverside Towers", 0, "RIVERSIDETOWERS"},
		{"Riverside Towers", 8, "RIVERSID"},
		{"Phase-2 (East)", 0, "PHASE2EAST"},
		{"  ", 10, ""},
		// Combining marks are dropped as non-letters; truncation must cut
		// at rune boundaries, never mid-sequence.
		{"မြန်မာပြည်", 4, "မနမပ"},
	}
	for _, c := range cases {
		got := GenerateCode(c.name, c.maxLen)
		if got != c.want {
			t.Fatalf("GenerateCode(%q, %d) = %q, want %q", c.name, c.maxLen, got, c.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("GenerateCode(%q, %d) = %q is not valid UTF-8", c.name, c.maxLen, got)
		}
	}
}

func TestParseDateOnly(t *testing.T) {
	got, err := ParseDateOnly(" 2026-01-17 ", "UTC")
	if err != nil {
		t.Fatalf("ParseDateOnly: %v", err)
	}
	want := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	if _, err := ParseDateOnly("17/01/2026", "UTC"); err == nil {
		t.Fatal("expected error for non ISO date")
	}
}

func TestParseDateOnlyAlwaysReturnsUTC(t *testing.T) {
	// The date grain is UTC regardless of the business timezone, so a
	// stored DATE column reads back as the same calendar day.
	got, err := ParseDateOnly("2026-01-18", DefaultTimezone)
	if err != nil {
		t.Fatalf("ParseDateOnly: %v", err)
	}
	if got.Location() != time.UTC {
		t.Fatalf("location = %s, want UTC", got.Location())
	}
	if got.In(time.UTC).Format("2006-01-02") != "2026-01-18" {
		t.Fatalf("UTC calendar day = %s, want 2026-01-18", got.In(time.UTC).Format("2006-01-02"))
	}
}

func TestConvertToDateCrossesMidnight(t *testing.T) {
	// 20:00 UTC is already the next day in Yangon (UTC+6:30); the result is
	// that Yangon calendar day pinned to UTC midnight.
	instant := time.Date(2026, 1, 17, 20, 0, 0, 0, time.UTC)
	got, err := ConvertToDate(instant, DefaultTimezone)
	if err != nil {
		t.Fatalf("ConvertToDate: %v", err)
	}
	want := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("location = %s, want UTC", got.Location())
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]string{"a", "b", "a", "c", "b"})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("UniqueSlice = %v", got)
	}
}
