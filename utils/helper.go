package utils

import (
	"strings"
	"time"
	"unicode"
)

// DefaultTimezone is used whenever a record or request carries no zone.
var DefaultTimezone = "Asia/Yangon"

func UniqueSlice[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func LoadLocation(timezone string) (*time.Location, error) {
	if strings.TrimSpace(timezone) == "" {
		timezone = DefaultTimezone
	}
	return time.LoadLocation(timezone)
}

// ConvertToDate resolves the calendar day of a timestamp in the given
// timezone and returns it as UTC midnight. Date-grained values carry UTC
// throughout so the driver's UTC conversion and DATE-column truncation
// round-trip the same calendar day.
func ConvertToDate(t time.Time, timezone string) (time.Time, error) {
	location, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	local := t.In(location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseDateOnly parses a "2006-01-02" string into UTC midnight of that
// calendar day. The timezone is validated but the result is always UTC,
// same grain as ConvertToDate.
func ParseDateOnly(value string, timezone string) (time.Time, error) {
	if _, err := LoadLocation(timezone); err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.UTC)
}

// GenerateCode derives a deterministic dimension code from a display name:
// non-alphanumerics dropped, uppercased, truncated.
func GenerateCode(name string, maxLen int) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	code := []rune(b.String())
	if maxLen > 0 && len(code) > maxLen {
		code = code[:maxLen]
	}
	return string(code)
}
