package phrase_test

import (
	"testing"
	"time"

	"github.com/speakloop/backend/internal/domain/phrase"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	p, err := phrase.New("u1", "ja", "おはよう", "good morning", base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == "" {
		t.Error("expected non-empty ID")
	}
	if p.Level().Name != "Level 1" {
		t.Errorf("expected Level 1, got %s", p.Level().Name)
	}
}

func TestNew_EmptyText(t *testing.T) {
	if _, err := phrase.New("u1", "ja", "", "", base); err != phrase.ErrEmptyText {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestApply_DailyResetsOnNewLocalDay(t *testing.T) {
	p, _ := phrase.New("u1", "ja", "hi", "", base)

	if err := p.Apply(phrase.Delta{Repetitions: 3}, base, time.UTC); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DailyRepetitions != 3 || p.TotalRepetitions != 3 {
		t.Fatalf("expected 3/3, got %d/%d", p.DailyRepetitions, p.TotalRepetitions)
	}

	next := base.Add(24 * time.Hour)
	if got := p.DailyAsOf(next, time.UTC); got != 0 {
		t.Errorf("expected stale daily count to read as 0, got %d", got)
	}

	if err := p.Apply(phrase.Delta{Repetitions: 2, Correct: 1}, next, time.UTC); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DailyRepetitions != 2 {
		t.Errorf("expected daily 2, got %d", p.DailyRepetitions)
	}
	if p.TotalRepetitions != 5 {
		t.Errorf("expected total 5, got %d", p.TotalRepetitions)
	}
	if p.CorrectCount != 1 {
		t.Errorf("expected correct 1, got %d", p.CorrectCount)
	}
	if p.DailyRepetitions > p.TotalRepetitions {
		t.Error("daily must not exceed total")
	}
}

func TestApply_RejectsNegative(t *testing.T) {
	p, _ := phrase.New("u1", "ja", "hi", "", base)
	if err := p.Apply(phrase.Delta{Correct: -1}, base, time.UTC); err != phrase.ErrNegativeDelta {
		t.Errorf("expected ErrNegativeDelta, got %v", err)
	}
}

func TestApply_ZeroDeltaLeavesActivityUntouched(t *testing.T) {
	p, _ := phrase.New("u1", "ja", "hi", "", base)
	if err := p.Apply(phrase.Delta{}, base, time.UTC); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LastActivityAt != nil {
		t.Error("expected no activity timestamp for zero delta")
	}
}

func TestRecordAnswer(t *testing.T) {
	p, _ := phrase.New("u1", "ja", "hi", "", base)

	p.RecordAnswer(true, base, time.UTC)
	p.RecordAnswer(false, base, time.UTC)

	if p.CorrectCount != 1 || p.TotalRepetitions != 2 {
		t.Errorf("expected correct 1 total 2, got %d/%d", p.CorrectCount, p.TotalRepetitions)
	}
}

func TestUserZone_FallsBack(t *testing.T) {
	u := phrase.NewUser("ann", "Not/AZone", base)
	z := u.Zone()
	if !z.FellBack || z.Location != time.UTC {
		t.Errorf("expected UTC fallback, got %+v", z)
	}
}

func TestApply_LateDeltaKeepsTodaysDailyCount(t *testing.T) {
	p, _ := phrase.New("u1", "ja", "hi", "", base)
	today := base.Add(24 * time.Hour)

	if err := p.Apply(phrase.Delta{Repetitions: 2}, today, time.UTC); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// yesterday's taps written after today's
	if err := p.Apply(phrase.Delta{Repetitions: 3, Correct: 1}, base, time.UTC); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.DailyRepetitions != 2 {
		t.Errorf("expected daily 2, got %d", p.DailyRepetitions)
	}
	if p.TotalRepetitions != 5 {
		t.Errorf("expected total 5, got %d", p.TotalRepetitions)
	}
	if p.CorrectCount != 1 {
		t.Errorf("expected correct 1, got %d", p.CorrectCount)
	}
	if !p.LastActivityAt.Equal(today) {
		t.Errorf("expected last activity %v, got %v", today, *p.LastActivityAt)
	}
}
