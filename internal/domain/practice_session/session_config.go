package practicesession

import (
	"errors"
	"fmt"
	"time"

	"github.com/speakloop/backend/internal/domain/rules"
)

var (
	ErrUnknownMode    = errors.New("unknown session mode")
	ErrUnknownSubMode = errors.New("unknown session sub-mode")
	ErrInvalidConfig  = errors.New("invalid session config")
)

type Mode string

const (
	ModePractice Mode = "practice"
	ModeSpeak    Mode = "speak"
	ModeQuiz     Mode = "quiz"
)

type SubMode string

const (
	SubModeNormal SubMode = "normal"
	SubModeReview SubMode = "review" // practice only
	SubModeRandom SubMode = "random" // quiz only
)

// Order is the CreatedAt tie-break direction.
type Order string

const (
	OldestFirst Order = "oldest_first"
	NewestFirst Order = "newest_first"
)

// SessionConfig holds the selection rules for one session.
type SessionConfig struct {
	Mode    Mode
	SubMode SubMode
	Count   int // 0 = every eligible item

	MaxRepetitions   *int // nil = no ceiling on TotalRepetitions
	ExcludeDoneToday bool // speak and quiz; practice always excludes
	Order            Order

	Location *time.Location // user's resolved zone
	Now      time.Time

	// PracticeStart hides phrases created before it unless IncludePreexisting.
	PracticeStart      *time.Time
	IncludePreexisting bool

	MasteryThreshold int // 0 = rules.MasteryThreshold
}

// DefaultConfig returns the config a fresh session of mode starts from.
func DefaultConfig(mode Mode, loc *time.Location, now time.Time) SessionConfig {
	cfg := SessionConfig{
		Mode:     mode,
		SubMode:  SubModeNormal,
		Order:    OldestFirst,
		Location: loc,
		Now:      now,
	}
	switch mode {
	case ModePractice:
		cfg.Count = rules.DefaultPracticeCount
	case ModeQuiz:
		cfg.Count = rules.DefaultQuizCount
	case ModeSpeak:
		cfg.Count = 1
	}
	return cfg
}

// Validate rejects configs that callers should never build.
func (c SessionConfig) Validate() error {
	switch c.Mode {
	case ModePractice:
		if c.SubMode != SubModeNormal && c.SubMode != SubModeReview {
			return fmt.Errorf("%w: %q for %s", ErrUnknownSubMode, c.SubMode, c.Mode)
		}
	case ModeQuiz:
		if c.SubMode != SubModeNormal && c.SubMode != SubModeRandom {
			return fmt.Errorf("%w: %q for %s", ErrUnknownSubMode, c.SubMode, c.Mode)
		}
	case ModeSpeak:
		if c.SubMode != "" && c.SubMode != SubModeNormal {
			return fmt.Errorf("%w: %q for %s", ErrUnknownSubMode, c.SubMode, c.Mode)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}

	if c.Order != OldestFirst && c.Order != NewestFirst && c.Order != "" {
		return fmt.Errorf("%w: order %q", ErrInvalidConfig, c.Order)
	}
	if c.Count < 0 {
		return fmt.Errorf("%w: negative count", ErrInvalidConfig)
	}
	if c.MaxRepetitions != nil && *c.MaxRepetitions < 0 {
		return fmt.Errorf("%w: negative repetition ceiling", ErrInvalidConfig)
	}
	if c.Location == nil {
		return fmt.Errorf("%w: nil location", ErrInvalidConfig)
	}
	if c.Now.IsZero() {
		return fmt.Errorf("%w: zero clock", ErrInvalidConfig)
	}
	return nil
}

func (c SessionConfig) masteryThreshold() int {
	if c.MasteryThreshold > 0 {
		return c.MasteryThreshold
	}
	return rules.MasteryThreshold
}

// ResolveWatermark returns the practice-start watermark to use. An unset
// watermark becomes now; initialized tells the caller to persist it.
func ResolveWatermark(current *time.Time, now time.Time) (watermark time.Time, initialized bool) {
	if current != nil {
		return *current, false
	}
	return now, true
}
