// Package counter accumulates repetitions locally for one phrase and writes
// them to the item repository in batches.
//
// Taps never touch the repository; only Flush does. A Tracker belongs to a
// single session and is not safe for concurrent use.
package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/speakloop/backend/internal/domain/calendar"
	"github.com/speakloop/backend/internal/domain/phrase"
	"github.com/speakloop/backend/internal/domain/rules"
)

// ErrFlushFailed wraps repository errors returned from Flush. Pending counts
// are kept when it is returned.
var ErrFlushFailed = errors.New("counter: flush failed")

// Writer persists a batch of counter changes.
type Writer interface {
	ApplyDelta(ctx context.Context, d phrase.Delta) error
}

// Fetcher reads the server-confirmed counters of a phrase.
type Fetcher interface {
	GetPhrase(ctx context.Context, phraseID string) (*phrase.Phrase, error)
}

// TapResult is what the UI needs after a tap.
type TapResult struct {
	Accepted bool
	Today    int
	Total    int
	// CapWarning is set on the first refused tap of the day only.
	CapWarning bool
}

// Repository is the item repository a tracker writes to and reloads from.
type Repository interface {
	Writer
	Fetcher
}

// Tracker holds the pending and display counters of one phrase.
type Tracker struct {
	PhraseID string

	loc      *time.Location
	dailyCap int
	day      calendar.Date

	pending        int
	pendingCorrect int
	pendingAt      time.Time       // last accepted tap counted in pending
	sealed         []phrase.Delta // unwritten deltas of earlier local days, oldest first

	today    int
	total    int
	recorded int
	warned   bool
}

// NewTracker seeds a tracker from the phrase's persisted counters.
// A dailyCap of 0 uses rules.DailyCap.
func NewTracker(p phrase.Phrase, now time.Time, loc *time.Location, dailyCap int) *Tracker {
	if dailyCap <= 0 {
		dailyCap = rules.DailyCap
	}
	return &Tracker{
		PhraseID: p.ID,
		loc:      loc,
		dailyCap: dailyCap,
		day:      calendar.LocalDate(now, loc),
		today:    p.DailyAsOf(now, loc),
		total:    p.TotalRepetitions,
	}
}

// advance moves the tracker onto now's local day. Counts still pending from
// the earlier day are sealed with their own timestamp, so a later write dates
// them on the day they happened.
func (t *Tracker) advance(now time.Time) bool {
	today := calendar.LocalDate(now, t.loc)
	if !today.After(t.day) {
		return false
	}

	if d := t.Pending(); !d.IsZero() {
		t.sealed = append(t.sealed, d)
	}
	t.pending = 0
	t.pendingCorrect = 0
	t.pendingAt = time.Time{}

	t.day = today
	t.today = 0
	t.warned = false
	return true
}

// RecordTap counts one repetition made at now locally. Once Today reaches
// the daily cap further taps are refused; the first refusal carries
// CapWarning.
func (t *Tracker) RecordTap(now time.Time) TapResult {
	t.advance(now)

	if t.today >= t.dailyCap {
		res := TapResult{Today: t.today, Total: t.total, CapWarning: !t.warned}
		t.warned = true
		return res
	}

	t.pending++
	t.pendingAt = now
	t.recorded++
	t.today++
	t.total++
	return TapResult{Accepted: true, Today: t.today, Total: t.total}
}

// RecordAnswer counts a repetition and, when correct, a correct answer.
func (t *Tracker) RecordAnswer(correct bool, now time.Time) TapResult {
	res := t.RecordTap(now)
	if res.Accepted && correct {
		t.pendingCorrect++
	}
	return res
}

// Recorded is the number of accepted taps since the tracker was created,
// flushed or not.
func (t *Tracker) Recorded() int { return t.recorded }

// Pending returns the not-yet-persisted delta of the current local day.
func (t *Tracker) Pending() phrase.Delta {
	return phrase.Delta{
		PhraseID:    t.PhraseID,
		Repetitions: t.pending,
		Correct:     t.pendingCorrect,
		At:          t.pendingAt,
	}
}

// Unsaved returns every delta not yet written, earlier days first.
func (t *Tracker) Unsaved() []phrase.Delta {
	out := append([]phrase.Delta(nil), t.sealed...)
	if d := t.Pending(); !d.IsZero() {
		out = append(out, d)
	}
	return out
}

// HasPending reports whether anything is left to write.
func (t *Tracker) HasPending() bool {
	return len(t.sealed) > 0 || !t.Pending().IsZero()
}

// Today is the display count for the current local day.
func (t *Tracker) Today() int { return t.today }

// Total is the display count across all days.
func (t *Tracker) Total() int { return t.total }

// Flush writes sealed deltas oldest first, then the current one. With
// nothing pending it returns nil without calling w. On error everything not
// yet written is kept for a retry.
func (t *Tracker) Flush(ctx context.Context, w Writer) error {
	for len(t.sealed) > 0 {
		if err := w.ApplyDelta(ctx, t.sealed[0]); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFlushFailed, t.PhraseID, err)
		}
		t.sealed = t.sealed[1:]
	}

	d := t.Pending()
	if d.IsZero() {
		return nil
	}

	if err := w.ApplyDelta(ctx, d); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFlushFailed, t.PhraseID, err)
	}

	t.pending -= d.Repetitions
	t.pendingCorrect -= d.Correct
	if t.pending == 0 && t.pendingCorrect == 0 {
		t.pendingAt = time.Time{}
	}
	return nil
}

// CheckRollover detects a change of local day. On a new day it writes the
// previous day's counts, zeroes the daily display count, clears the cap
// warning and reloads the server's counters through r. It reports whether a
// rollover happened. A failed write keeps the previous day's counts for a
// retry.
func (t *Tracker) CheckRollover(ctx context.Context, now time.Time, r Repository) (bool, error) {
	if !t.advance(now) {
		return false, nil
	}

	if err := t.Flush(ctx, r); err != nil {
		return true, err
	}

	p, err := r.GetPhrase(ctx, t.PhraseID)
	if err != nil {
		return true, fmt.Errorf("counter: refresh %s after rollover: %w", t.PhraseID, err)
	}
	t.today = p.DailyAsOf(now, t.loc)
	t.total = p.TotalRepetitions + t.pending
	return true, nil
}
