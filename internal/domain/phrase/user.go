// Package phrase holds the learner-facing records the engine reads: phrases
// and their owners.
package phrase

import (
	"time"

	"github.com/speakloop/backend/internal/domain/calendar"
	"github.com/speakloop/backend/internal/id"
)

// User is the owner of phrases.
type User struct {
	ID       string
	Name     string
	Timezone string
	// CreatedAt breaks ranking ties: earlier accounts rank first.
	CreatedAt time.Time
	// PracticeStartAt is the watermark before which phrases are left out of
	// practice unless IncludePreexisting is set. Nil until first practice.
	PracticeStartAt    *time.Time
	IncludePreexisting bool
}

func NewUser(name, timezone string, now time.Time) *User {
	return &User{
		ID:        id.GenerateID(),
		Name:      name,
		Timezone:  timezone,
		CreatedAt: now,
	}
}

// Zone resolves the user's timezone, falling back to UTC with a flag.
func (u *User) Zone() calendar.Zone {
	return calendar.ResolveTimezone(u.Timezone)
}
