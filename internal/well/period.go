package well

import (
	"fmt"
	"strings"
	"time"
)

// Period is an aggregation window length.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod accepts "daily", "weekly", "monthly" and the short forms
// "day", "week", "month".
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day":
		return PeriodDaily, nil
	case "weekly", "week":
		return PeriodWeekly, nil
	case "monthly", "month":
		return PeriodMonthly, nil
	default:
		return "", invalid("period", fmt.Sprintf("%q is not one of daily, weekly, monthly", s))
	}
}

// Days returns the number of calendar days the period covers.
func (p Period) Days() int {
	switch p {
	case PeriodWeekly:
		return 7
	case PeriodMonthly:
		return 30
	default:
		return 1
	}
}

// Window returns the half-open range [start, end) for the period ending on the
// calendar day of ref in loc. Weekly and monthly windows are rolling: they end
// with ref's day and reach back 7 or 30 days.
func (p Period) Window(ref time.Time, loc *time.Location) (start, end time.Time) {
	day := startOfDay(ref, loc)
	return day.AddDate(0, 0, -(p.Days() - 1)), day.AddDate(0, 0, 1)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// dayIndex returns the number of calendar days from start to t in loc.
// Calendar arithmetic keeps DST transitions from shifting the index.
func dayIndex(start, t time.Time, loc *time.Location) int {
	s := start.In(loc)
	v := t.In(loc)
	a := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
