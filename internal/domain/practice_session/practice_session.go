package practicesession

import (
	"errors"
	"time"

	"github.com/speakloop/backend/internal/domain/counter"
	"github.com/speakloop/backend/internal/domain/phrase"
	"github.com/speakloop/backend/internal/id"
)

var (
	ErrNotInSession = errors.New("phrase is not part of this session")
	ErrFinished     = errors.New("session already finished")
)

// SessionState is the explicit state of one running session: the selected
// phrase IDs, a cursor, one counter.Tracker per phrase and the set of
// phrases completed so far. It is owned by a single caller and is not safe
// for concurrent use.
type SessionState struct {
	ID        string
	UserID    string
	Language  string
	Config    SessionConfig
	ItemIDs   []string
	StartedAt time.Time

	cursor    int
	dailyCap  int
	trackers  map[string]*counter.Tracker
	completed map[string]bool
	finished  bool
}

// New starts a session over items in the order given. A dailyCap of 0 uses
// the default cap.
func New(userID, language string, cfg SessionConfig, items []phrase.Phrase, dailyCap int) *SessionState {
	s := &SessionState{
		ID:        id.GenerateID(),
		UserID:    userID,
		Language:  language,
		Config:    cfg,
		StartedAt: cfg.Now,
		dailyCap:  dailyCap,
		trackers:  make(map[string]*counter.Tracker, len(items)),
		completed: make(map[string]bool),
	}
	for _, p := range items {
		s.Append(p, cfg.Now)
	}
	return s
}

func (s *SessionState) Mode() Mode { return s.Config.Mode }

// Append adds a phrase at the end of the session. Speak sessions grow one
// phrase at a time. Adding a phrase already present is a no-op.
func (s *SessionState) Append(p phrase.Phrase, now time.Time) {
	if _, ok := s.trackers[p.ID]; ok {
		return
	}
	s.ItemIDs = append(s.ItemIDs, p.ID)
	s.trackers[p.ID] = counter.NewTracker(p, now, s.Config.Location, s.dailyCap)
}

// Current returns the phrase ID under the cursor.
func (s *SessionState) Current() (string, bool) {
	if s.cursor >= len(s.ItemIDs) {
		return "", false
	}
	return s.ItemIDs[s.cursor], true
}

// Position is the zero-based cursor.
func (s *SessionState) Position() int { return s.cursor }

// Len is the number of phrases in the session.
func (s *SessionState) Len() int { return len(s.ItemIDs) }

// Advance moves to the next phrase and reports whether one exists.
func (s *SessionState) Advance() bool {
	if s.cursor < len(s.ItemIDs) {
		s.cursor++
	}
	return s.cursor < len(s.ItemIDs)
}

// Done reports whether the cursor has passed the last phrase.
func (s *SessionState) Done() bool {
	return s.cursor >= len(s.ItemIDs)
}

// Tracker returns the counter of a phrase in this session.
func (s *SessionState) Tracker(phraseID string) (*counter.Tracker, error) {
	t, ok := s.trackers[phraseID]
	if !ok {
		return nil, ErrNotInSession
	}
	return t, nil
}

// Trackers returns every tracker in session order.
func (s *SessionState) Trackers() []*counter.Tracker {
	out := make([]*counter.Tracker, 0, len(s.ItemIDs))
	for _, pid := range s.ItemIDs {
		out = append(out, s.trackers[pid])
	}
	return out
}

// Tap counts one repetition made on a phrase at now.
func (s *SessionState) Tap(phraseID string, now time.Time) (counter.TapResult, error) {
	if s.finished {
		return counter.TapResult{}, ErrFinished
	}
	t, err := s.Tracker(phraseID)
	if err != nil {
		return counter.TapResult{}, err
	}
	return t.RecordTap(now), nil
}

// Answer counts one quiz answer on a phrase.
func (s *SessionState) Answer(phraseID string, correct bool, now time.Time) (counter.TapResult, error) {
	if s.finished {
		return counter.TapResult{}, ErrFinished
	}
	t, err := s.Tracker(phraseID)
	if err != nil {
		return counter.TapResult{}, err
	}
	return t.RecordAnswer(correct, now), nil
}

// MarkCompleted flags a phrase as completed in this session.
func (s *SessionState) MarkCompleted(phraseID string) error {
	if _, ok := s.trackers[phraseID]; !ok {
		return ErrNotInSession
	}
	s.completed[phraseID] = true
	return nil
}

// IsCompleted reports whether phraseID was completed in this session.
func (s *SessionState) IsCompleted(phraseID string) bool {
	return s.completed[phraseID]
}

// Completed returns the number of completed phrases.
func (s *SessionState) Completed() int { return len(s.completed) }

// Overlay returns a copy of pool with SessionCompleted set for every phrase
// completed in this session, so selection sees the in-memory state even
// before it is persisted.
func (s *SessionState) Overlay(pool []phrase.Phrase) []phrase.Phrase {
	out := make([]phrase.Phrase, len(pool))
	copy(out, pool)
	for i := range out {
		if s.completed[out[i].ID] {
			out[i].SessionCompleted = true
		}
	}
	return out
}

// Pending returns the unflushed deltas of every phrase, skipping zero ones.
// A phrase tapped on two local days contributes one delta per day.
func (s *SessionState) Pending() []phrase.Delta {
	var out []phrase.Delta
	for _, t := range s.Trackers() {
		out = append(out, t.Unsaved()...)
	}
	return out
}

// Finish closes the session to further taps.
func (s *SessionState) Finish() { s.finished = true }

// Finished reports whether Finish was called.
func (s *SessionState) Finished() bool { return s.finished }
