package syncsvc

import (
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/utils"
)

// Window is the inclusive date range one sync run covers.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) FromDate() string { return w.From.Format("2006-01-02") }
func (w Window) ToDate() string   { return w.To.Format("2006-01-02") }

func (w Window) String() string {
	return w.FromDate() + ".." + w.ToDate()
}

// DefaultWindow covers the last three days so late-arriving upstream
// corrections get picked up by the next scheduled run.
func DefaultWindow(now time.Time, timezone string) (Window, error) {
	today, err := utils.ConvertToDate(now, timezone)
	if err != nil {
		return Window{}, err
	}
	return Window{From: today.AddDate(0, 0, -2), To: today}, nil
}

// ParseWindow builds a window from optional "2006-01-02" strings, falling
// back to the default window when both are empty.
func ParseWindow(fromStr, toStr, timezone string) (Window, error) {
	fromStr = strings.TrimSpace(fromStr)
	toStr = strings.TrimSpace(toStr)
	if fromStr == "" && toStr == "" {
		return DefaultWindow(time.Now(), timezone)
	}
	if fromStr == "" || toStr == "" {
		return Window{}, fmt.Errorf("both fromDate and toDate are required when either is set")
	}
	from, err := utils.ParseDateOnly(fromStr, timezone)
	if err != nil {
		return Window{}, fmt.Errorf("invalid fromDate %q", fromStr)
	}
	to, err := utils.ParseDateOnly(toStr, timezone)
	if err != nil {
		return Window{}, fmt.Errorf("invalid toDate %q", toStr)
	}
	if to.Before(from) {
		return Window{}, fmt.Errorf("toDate %q is before fromDate %q", toStr, fromStr)
	}
	return Window{From: from, To: to}, nil
}
