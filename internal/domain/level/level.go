// Package level maps an item's correct-answer count onto a fixed mastery ladder.
package level

import "errors"

// ErrNegativeCount is the panic value for a negative count.
var ErrNegativeCount = errors.New("level: correct answer count must not be negative")

// Level is one rung of the mastery ladder.
type Level struct {
	Threshold int    `json:"threshold"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

// ladder is ordered by descending threshold; Classify returns the first rung met.
var ladder = [...]Level{
	{Threshold: 30, Name: "Level 7", Color: "#1e3a8a"},
	{Threshold: 20, Name: "Level 6", Color: "#1d4ed8"},
	{Threshold: 10, Name: "Level 5", Color: "#2563eb"},
	{Threshold: 5, Name: "Level 4", Color: "#3b82f6"},
	{Threshold: 3, Name: "Level 3", Color: "#60a5fa"},
	{Threshold: 1, Name: "Level 2", Color: "#93c5fd"},
	{Threshold: 0, Name: "Level 1", Color: "#dbeafe"},
}

// Classify returns the highest level whose threshold is <= count.
// A negative count is a caller bug and panics with ErrNegativeCount.
func Classify(count int) Level {
	if count < 0 {
		panic(ErrNegativeCount)
	}
	for _, l := range ladder {
		if count >= l.Threshold {
			return l
		}
	}
	// unreachable: the last rung has threshold 0
	return ladder[len(ladder)-1]
}

// Ladder returns every level, lowest first.
func Ladder() []Level {
	out := make([]Level, len(ladder))
	for i := range ladder {
		out[len(ladder)-1-i] = ladder[i]
	}
	return out
}

// IsThreshold reports whether t is one of the ladder thresholds.
func IsThreshold(t int) bool {
	for _, l := range ladder {
		if l.Threshold == t {
			return true
		}
	}
	return false
}

// Bucket is the number of items sitting at one level.
type Bucket struct {
	Level Level `json:"level"`
	Count int   `json:"count"`
}

// Summarize counts how many of the given correct-answer counts fall on each
// level. Every level is present in the result, lowest first, even when empty.
func Summarize(counts []int) []Bucket {
	byThreshold := make(map[int]int, len(ladder))
	for _, c := range counts {
		byThreshold[Classify(c).Threshold]++
	}

	levels := Ladder()
	out := make([]Bucket, len(levels))
	for i, l := range levels {
		out[i] = Bucket{Level: l, Count: byThreshold[l.Threshold]}
	}
	return out
}
