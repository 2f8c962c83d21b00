package phrase

import (
	"errors"
	"time"

	"github.com/speakloop/backend/internal/domain/calendar"
	"github.com/speakloop/backend/internal/domain/level"
	"github.com/speakloop/backend/internal/id"
)

var (
	ErrEmptyText     = errors.New("phrase text cannot be empty")
	ErrNegativeDelta = errors.New("phrase counters cannot decrease")
)

// Phrase is one learning item owned by a single user.
type Phrase struct {
	ID               string
	UserID           string
	Language         string
	Text             string
	Translation      string
	CorrectCount     int
	TotalRepetitions int
	DailyRepetitions int
	LastActivityAt   *time.Time
	CreatedAt        time.Time
	SessionCompleted bool
}

// Delta is a batch of counter changes written to the item repository.
type Delta struct {
	PhraseID    string
	Repetitions int
	Correct     int // optional; zero leaves CorrectCount untouched
	// At is when the repetitions happened. Zero means the time of writing.
	At time.Time
}

// IsZero reports whether applying d would change nothing.
func (d Delta) IsZero() bool {
	return d.Repetitions == 0 && d.Correct == 0
}

func New(userID, language, text, translation string, now time.Time) (*Phrase, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return &Phrase{
		ID:          id.GenerateID(),
		UserID:      userID,
		Language:    language,
		Text:        text,
		Translation: translation,
		CreatedAt:   now,
	}, nil
}

// Level is the mastery level derived from CorrectCount.
func (p *Phrase) Level() level.Level {
	return level.Classify(p.CorrectCount)
}

// DoneOn reports whether the phrase had activity on the local date of now.
func (p *Phrase) DoneOn(now time.Time, loc *time.Location) bool {
	return p.LastActivityAt != nil && calendar.SameLocalDay(*p.LastActivityAt, now, loc)
}

// Apply records a delta that happened at now. DailyRepetitions restarts from
// zero when the previous activity was on an earlier local day. A delta dated
// before the day of the last activity only adds to the totals.
func (p *Phrase) Apply(d Delta, now time.Time, loc *time.Location) error {
	if d.Repetitions < 0 || d.Correct < 0 {
		return ErrNegativeDelta
	}
	if d.IsZero() {
		return nil
	}

	if p.LastActivityAt != nil && calendar.LocalDate(now, loc).Before(calendar.LocalDate(*p.LastActivityAt, loc)) {
		p.TotalRepetitions += d.Repetitions
		p.CorrectCount += d.Correct
		return nil
	}

	if !p.DoneOn(now, loc) {
		p.DailyRepetitions = 0
	}
	p.TotalRepetitions += d.Repetitions
	p.DailyRepetitions += d.Repetitions
	p.CorrectCount += d.Correct

	at := now
	p.LastActivityAt = &at
	return nil
}

// RecordAnswer applies one answered repetition; correct answers raise CorrectCount.
func (p *Phrase) RecordAnswer(correct bool, now time.Time, loc *time.Location) error {
	d := Delta{PhraseID: p.ID, Repetitions: 1}
	if correct {
		d.Correct = 1
	}
	return p.Apply(d, now, loc)
}

// DailyAsOf returns DailyRepetitions as seen on now's local date.
func (p *Phrase) DailyAsOf(now time.Time, loc *time.Location) int {
	if !p.DoneOn(now, loc) {
		return 0
	}
	return p.DailyRepetitions
}
