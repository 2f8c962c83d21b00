package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyTimezone is reported when a user has no timezone set.
var ErrEmptyTimezone = errors.New("calendar: empty timezone")

// Zone is the outcome of validating a user's timezone preference.
type Zone struct {
	Name     string         // IANA name actually in effect
	Location *time.Location // never nil
	FellBack bool           // true when the requested name was replaced by UTC
	Err      error          // why the fallback happened; nil when FellBack is false
}

// ResolveTimezone validates an IANA identifier. Invalid or empty names
// resolve to UTC with FellBack set so the caller can tell the user their
// preference did not apply.
func ResolveTimezone(name string) Zone {
	if name == "" {
		return Zone{Name: "UTC", Location: time.UTC, FellBack: true, Err: ErrEmptyTimezone}
	}
	if name == "UTC" {
		return Zone{Name: "UTC", Location: time.UTC}
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{
			Name:     "UTC",
			Location: time.UTC,
			FellBack: true,
			Err:      fmt.Errorf("calendar: invalid timezone %q: %w", name, err),
		}
	}
	return Zone{Name: name, Location: loc}
}

// IsValidTimezone reports whether name resolves without fallback.
func IsValidTimezone(name string) bool {
	return !ResolveTimezone(name).FellBack
}
