package syncsvc

import (
	"strings"

	"bitbucket.org/mmdatafocus/insights_backend/models"
)

// ClassifySpecial maps upstream placeholder labels onto sentinel types.
// Z-Analytics emits summary and missing-dimension rows as ordinary data rows
// whose project name is a label rather than a project.
func ClassifySpecial(name string) models.SpecialType {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(n, "grand summary"), strings.Contains(n, "grand total"):
		return models.SpecialTypeGrandSummary
	case strings.Contains(n, "no value"), strings.Contains(n, "no data"):
		return models.SpecialTypeNoValue
	}
	return models.SpecialTypeNone
}
