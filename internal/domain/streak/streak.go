// Package streak computes consecutive-day activity streaks from local dates.
package streak

import (
	"sort"
	"time"

	"github.com/speakloop/backend/internal/domain/calendar"
)

// Summary holds the streak figures shown on a dashboard.
type Summary struct {
	Current   int  `json:"current"`
	Longest   int  `json:"longest"`
	TodayDone bool `json:"today_done"`
}

// Compute returns the current streak for a set of local activity dates
// ("YYYY-MM-DD"). The streak is counted as of yesterday in loc, then today
// adds one if present, so recording today's first activity bumps the value
// immediately without double counting. Unparseable dates are ignored.
func Compute(dates []string, now time.Time, loc *time.Location) int {
	set := toSet(dates)
	if len(set) == 0 {
		return 0
	}

	today := calendar.LocalDate(now, loc)

	base := 0
	for d := today.AddDays(-1); set[d]; d = d.AddDays(-1) {
		base++
	}

	if set[today] {
		return base + 1
	}
	return base
}

// Longest returns the longest run of consecutive dates anywhere in history.
func Longest(dates []string) int {
	set := toSet(dates)
	if len(set) == 0 {
		return 0
	}

	sorted := make([]calendar.Date, 0, len(set))
	for d := range set {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	longest, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].AddDays(1) == sorted[i] {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// Summarize computes current and longest streaks plus whether today counts.
func Summarize(dates []string, now time.Time, loc *time.Location) Summary {
	set := toSet(dates)
	current := Compute(dates, now, loc)
	longest := Longest(dates)
	if current > longest {
		longest = current
	}
	return Summary{
		Current:   current,
		Longest:   longest,
		TodayDone: set[calendar.LocalDate(now, loc)],
	}
}

func toSet(dates []string) map[calendar.Date]bool {
	set := make(map[calendar.Date]bool, len(dates))
	for _, s := range dates {
		d, err := calendar.ParseDate(s)
		if err != nil {
			continue
		}
		set[d] = true
	}
	return set
}
