package syncsvc

import (
	"testing"

	"bitbucket.org/mmdatafocus/insights_backend/models"
)

func TestClassifySpecial(t *testing.T) {
	cases := []struct {
		name string
		want models.SpecialType
	}{
		{"Grand Summary", models.SpecialTypeGrandSummary},
		{"GRAND TOTAL", models.SpecialTypeGrandSummary},
		{"  grand summary  ", models.SpecialTypeGrandSummary},
		{"No Value", models.SpecialTypeNoValue},
		{"no data", models.SpecialTypeNoValue},
		{"Golden Gardens Phase 2", models.SpecialTypeNone},
		{"", models.SpecialTypeNone},
	}
	for _, tc := range cases {
		if got := ClassifySpecial(tc.name); got != tc.want {
			t.Fatalf("ClassifySpecial(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
