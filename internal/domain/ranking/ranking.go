// Package ranking turns activity events into ranked leaderboards.
package ranking

import (
	"sort"
	"time"
)

// Event is a countable action by a user. Weight is how many actions it
// stands for; zero counts as one.
type Event struct {
	UserID         string
	At             time.Time
	AccountCreated time.Time
	Weight         int
}

// Entry is one row of a leaderboard.
type Entry struct {
	UserID   string    `json:"user_id"`
	Count    int       `json:"count"`
	TieBreak time.Time `json:"tie_break"`
	Rank     int       `json:"rank"`
}

// Board is a fully sorted and ranked leaderboard.
type Board struct {
	entries []Entry
	index   map[string]int
}

// Aggregate groups events by user, dropping those before cutoff (nil keeps
// everything). Entries are ordered by count descending, then by earlier
// account creation, then by user ID. Equal counts share a rank and the next
// lower count is ranked by how many entries precede it.
func Aggregate(events []Event, cutoff *time.Time) *Board {
	byUser := make(map[string]*Entry)
	for _, e := range events {
		if cutoff != nil && e.At.Before(*cutoff) {
			continue
		}
		entry, ok := byUser[e.UserID]
		if !ok {
			entry = &Entry{UserID: e.UserID, TieBreak: e.AccountCreated}
			byUser[e.UserID] = entry
		}
		if e.Weight > 0 {
			entry.Count += e.Weight
		} else {
			entry.Count++
		}
	}

	entries := make([]Entry, 0, len(byUser))
	for _, entry := range byUser {
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if !a.TieBreak.Equal(b.TieBreak) {
			return a.TieBreak.Before(b.TieBreak)
		}
		return a.UserID < b.UserID
	})

	index := make(map[string]int, len(entries))
	for i := range entries {
		if i > 0 && entries[i].Count == entries[i-1].Count {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
		index[entries[i].UserID] = i
	}

	return &Board{entries: entries, index: index}
}

// Len is the number of users with at least one qualifying event.
func (b *Board) Len() int {
	return len(b.entries)
}

// Top returns the first n entries (all of them when n <= 0 or n > Len).
func (b *Board) Top(n int) []Entry {
	if n <= 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]Entry, n)
	copy(out, b.entries[:n])
	return out
}

// RankOf returns the user's rank, or Len()+1 when the user has no
// qualifying events.
func (b *Board) RankOf(userID string) int {
	if i, ok := b.index[userID]; ok {
		return b.entries[i].Rank
	}
	return len(b.entries) + 1
}

// Entry returns the user's row. ok is false for users without events; the
// returned entry then carries the last-place rank and a zero count.
func (b *Board) Entry(userID string) (Entry, bool) {
	if i, ok := b.index[userID]; ok {
		return b.entries[i], true
	}
	return Entry{UserID: userID, Rank: len(b.entries) + 1}, false
}

// Percentile returns the share of ranked users the given user is ahead of
// or tied with, in [0, 100]. Users without events get 0.
func (b *Board) Percentile(userID string) float64 {
	i, ok := b.index[userID]
	if !ok || len(b.entries) == 0 {
		return 0
	}
	rank := b.entries[i].Rank
	behind := len(b.entries) - rank + 1
	return float64(behind) / float64(len(b.entries)) * 100
}
