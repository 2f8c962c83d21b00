// Package calendar answers every "what day is it for this user" question.
//
// All functions take a resolved *time.Location. Resolution of user-supplied
// IANA names happens once, in ResolveTimezone; the math below never falls
// back to UTC on its own and panics on a nil location.
package calendar

import (
	"fmt"
	"time"

	"github.com/speakloop/backend/internal/domain/rules"
)

const dateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("calendar: invalid date %q: %w", s, err)
	}
	return dateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return o.Before(d)
}

// AddDays returns the date n days away (n may be negative).
func (d Date) AddDays(n int) Date {
	return dateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

func dateOf(t time.Time) Date {
	y, m, day := t.Date()
	return Date{Year: y, Month: m, Day: day}
}

func mustLocation(loc *time.Location) *time.Location {
	if loc == nil {
		panic("calendar: nil location; resolve the timezone with ResolveTimezone first")
	}
	return loc
}

// LocalDate projects t onto the calendar of loc.
func LocalDate(t time.Time, loc *time.Location) Date {
	return dateOf(t.In(mustLocation(loc)))
}

// SameLocalDay reports whether a and b fall on the same date in loc.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	return LocalDate(a, loc) == LocalDate(b, loc)
}

// CanReset reports whether a daily reset is allowed at now.
// Both the local date must have advanced past lastReset's date and at least
// rules.ResetGuard must have elapsed; either alone is not enough. A nil
// lastReset means no reset has ever happened.
func CanReset(loc *time.Location, lastReset *time.Time, now time.Time) bool {
	return CanResetWithGuard(loc, lastReset, now, rules.ResetGuard)
}

// CanResetWithGuard is CanReset with an explicit elapsed-time guard.
func CanResetWithGuard(loc *time.Location, lastReset *time.Time, now time.Time, guard time.Duration) bool {
	mustLocation(loc)
	if lastReset == nil {
		return true
	}
	if !LocalDate(now, loc).After(LocalDate(*lastReset, loc)) {
		return false
	}
	return now.Sub(*lastReset) >= guard
}

// StartOfDay returns local midnight of t's date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(mustLocation(loc))
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns Monday 00:00 of t's week in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return time.Date(day.Year(), day.Month(), day.Day()-offset, 0, 0, 0, 0, loc)
}
