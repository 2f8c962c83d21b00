// Package rules holds the tunable thresholds every engine component reads.
// There is exactly one copy of each boundary value; components take a Table
// (or the package constants) instead of hard-coding numbers at call sites.
package rules

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MasteryThreshold splits practice items into "normal" (below) and "review" (at or above).
	MasteryThreshold = 5

	// DailyCap is the hard per-day repetition cap for a single item.
	DailyCap = 100

	// ResetGuard is the minimum wall-clock time between two daily resets.
	ResetGuard = 20 * time.Hour

	// DefaultQuizCount is used when a quiz is requested without a count.
	DefaultQuizCount = 10

	// DefaultPracticeCount is used when a practice session is requested without a count.
	DefaultPracticeCount = 10

	// DefaultLeaderboardSize bounds the visible top-N of a leaderboard.
	DefaultLeaderboardSize = 10

	// MaxLeaderboardSize caps any requested top-N.
	MaxLeaderboardSize = 100
)

// Table is the set of thresholds used by one running instance.
type Table struct {
	MasteryThreshold       int           `yaml:"mastery_threshold"`
	DailyCap               int           `yaml:"daily_cap"`
	ResetGuard             time.Duration `yaml:"reset_guard"`
	DefaultQuizCount       int           `yaml:"default_quiz_count"`
	DefaultPracticeCount   int           `yaml:"default_practice_count"`
	DefaultLeaderboardSize int           `yaml:"default_leaderboard_size"`
	MaxLeaderboardSize     int           `yaml:"max_leaderboard_size"`
}

// Default returns the built-in table.
func Default() Table {
	return Table{
		MasteryThreshold:       MasteryThreshold,
		DailyCap:               DailyCap,
		ResetGuard:             ResetGuard,
		DefaultQuizCount:       DefaultQuizCount,
		DefaultPracticeCount:   DefaultPracticeCount,
		DefaultLeaderboardSize: DefaultLeaderboardSize,
		MaxLeaderboardSize:     MaxLeaderboardSize,
	}
}

// Validate reports the first out-of-range value.
func (t Table) Validate() error {
	switch {
	case t.MasteryThreshold <= 0:
		return errors.New("rules: mastery_threshold must be positive")
	case t.DailyCap <= 0:
		return errors.New("rules: daily_cap must be positive")
	case t.ResetGuard <= 0 || t.ResetGuard > 24*time.Hour:
		return errors.New("rules: reset_guard must be within (0, 24h]")
	case t.DefaultQuizCount < 0 || t.DefaultPracticeCount < 0:
		return errors.New("rules: default counts must not be negative")
	case t.DefaultLeaderboardSize <= 0 || t.MaxLeaderboardSize < t.DefaultLeaderboardSize:
		return errors.New("rules: leaderboard sizes are inconsistent")
	}
	return nil
}

// LeaderboardSize clamps a requested top-N into [1, MaxLeaderboardSize].
// Zero or negative requests get the default.
func (t Table) LeaderboardSize(requested int) int {
	if requested <= 0 {
		return t.DefaultLeaderboardSize
	}
	if requested > t.MaxLeaderboardSize {
		return t.MaxLeaderboardSize
	}
	return requested
}

// LoadFile reads YAML overrides on top of Default. Keys absent from the file
// keep their default value. An empty path returns Default.
func LoadFile(path string) (Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("rules: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}
