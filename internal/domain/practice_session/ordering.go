package practicesession

import (
	"sort"
	"time"

	"github.com/speakloop/backend/internal/domain/phrase"
)

// Key extracts the primary numeric sort key of a phrase.
type Key func(p *phrase.Phrase) int

var (
	ByCorrectCount     Key = func(p *phrase.Phrase) int { return p.CorrectCount }
	ByTotalRepetitions Key = func(p *phrase.Phrase) int { return p.TotalRepetitions }
	ByNothing          Key = func(*phrase.Phrase) int { return 0 }
)

// Filter returns the phrases for which keep is true, in their original order.
func Filter(pool []phrase.Phrase, keep func(p *phrase.Phrase) bool) []phrase.Phrase {
	out := make([]phrase.Phrase, 0, len(pool))
	for i := range pool {
		if keep(&pool[i]) {
			out = append(out, pool[i])
		}
	}
	return out
}

// ExcludeDoneToday drops phrases whose last activity falls on now's local date.
func ExcludeDoneToday(pool []phrase.Phrase, now time.Time, loc *time.Location) []phrase.Phrase {
	return Filter(pool, func(p *phrase.Phrase) bool {
		return !p.DoneOn(now, loc)
	})
}

// ExcludeAtOrAbove drops phrases whose key is >= ceiling.
func ExcludeAtOrAbove(pool []phrase.Phrase, key Key, ceiling int) []phrase.Phrase {
	return Filter(pool, func(p *phrase.Phrase) bool {
		return key(p) < ceiling
	})
}

// SortBy returns a sorted copy: key ascending, then CreatedAt in the given
// direction, then ID so repeated calls on unchanged data agree.
func SortBy(pool []phrase.Phrase, key Key, order Order) []phrase.Phrase {
	out := make([]phrase.Phrase, len(pool))
	copy(out, pool)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if ka, kb := key(a), key(b); ka != kb {
			return ka < kb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == NewestFirst {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func truncate(pool []phrase.Phrase, n int) []phrase.Phrase {
	if n <= 0 || n >= len(pool) {
		return pool
	}
	return pool[:n]
}
