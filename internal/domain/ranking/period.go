package ranking

import (
	"fmt"
	"time"

	"github.com/speakloop/backend/internal/domain/calendar"
)

// Period is a leaderboard time window.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
	PeriodTotal  Period = "total"
)

// ParsePeriod validates a period name. An empty name means PeriodTotal.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDaily, PeriodWeekly, PeriodTotal:
		return Period(s), nil
	case "":
		return PeriodTotal, nil
	}
	return "", fmt.Errorf("ranking: unknown period %q", s)
}

// Cutoff returns the earliest instant counted for p as of now in the
// reference zone ref: local midnight for daily, Monday 00:00 for weekly and
// nil (unbounded) for total.
func Cutoff(p Period, now time.Time, ref *time.Location) (*time.Time, error) {
	var c time.Time
	switch p {
	case PeriodDaily:
		c = calendar.StartOfDay(now, ref)
	case PeriodWeekly:
		c = calendar.StartOfWeek(now, ref)
	case PeriodTotal:
		return nil, nil
	default:
		return nil, fmt.Errorf("ranking: unknown period %q", p)
	}
	return &c, nil
}
