package counter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/speakloop/backend/internal/domain/counter"
	"github.com/speakloop/backend/internal/domain/phrase"
)

type fakeRepo struct {
	calls   []phrase.Delta
	err     error
	phrases map[string]*phrase.Phrase
}

func (f *fakeRepo) ApplyDelta(_ context.Context, d phrase.Delta) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, d)
	return nil
}

func (f *fakeRepo) GetPhrase(_ context.Context, id string) (*phrase.Phrase, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.phrases[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

var start = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTracker(t *testing.T, daily, total int, dailyCap int) *counter.Tracker {
	t.Helper()
	last := start.Add(-time.Hour)
	p := phrase.Phrase{ID: "p1", DailyRepetitions: daily, TotalRepetitions: total, LastActivityAt: &last}
	return counter.NewTracker(p, start, time.UTC, dailyCap)
}

func TestRecordTap_IncrementsLocally(t *testing.T) {
	tr := newTracker(t, 2, 10, 0)

	res := tr.RecordTap(start)
	if !res.Accepted {
		t.Fatal("expected tap to be accepted")
	}
	if res.Today != 3 || res.Total != 11 {
		t.Errorf("expected today 3 total 11, got today %d total %d", res.Today, res.Total)
	}

	want := phrase.Delta{PhraseID: "p1", Repetitions: 1, At: start}
	if got := tr.Pending(); got != want {
		t.Errorf("expected pending %+v, got %+v", want, got)
	}
}

func TestRecordTap_WarnsOnceAtCap(t *testing.T) {
	tr := newTracker(t, 98, 98, 100)

	if !tr.RecordTap(start).Accepted { // 99
		t.Fatal("expected tap 99 to be accepted")
	}
	res := tr.RecordTap(start) // 100
	if !res.Accepted || res.CapWarning {
		t.Fatalf("expected tap 100 accepted without warning, got %+v", res)
	}

	first := tr.RecordTap(start)
	if first.Accepted || !first.CapWarning {
		t.Errorf("expected first refused tap to warn, got %+v", first)
	}
	if first.Today != 100 {
		t.Errorf("expected today 100, got %d", first.Today)
	}

	second := tr.RecordTap(start)
	if second.Accepted || second.CapWarning {
		t.Errorf("expected second refused tap without warning, got %+v", second)
	}
	if got := tr.Pending().Repetitions; got != 2 {
		t.Errorf("expected 2 pending, got %d", got)
	}
	if got := tr.Recorded(); got != 2 {
		t.Errorf("expected 2 recorded, got %d", got)
	}
}

func TestFlush_ZeroPendingIsNoop(t *testing.T) {
	tr := newTracker(t, 0, 0, 0)
	repo := &fakeRepo{}

	for i := 0; i < 2; i++ {
		if err := tr.Flush(context.Background(), repo); err != nil {
			t.Fatalf("flush %d: %v", i, err)
		}
	}
	if len(repo.calls) != 0 {
		t.Errorf("expected no writes, got %d", len(repo.calls))
	}
	if tr.HasPending() {
		t.Error("expected nothing pending")
	}
}

func TestFlush_WritesPendingOnce(t *testing.T) {
	tr := newTracker(t, 0, 0, 0)
	repo := &fakeRepo{}

	tr.RecordTap(start)
	tr.RecordAnswer(true, start.Add(time.Minute))
	last := start.Add(2 * time.Minute)
	tr.RecordAnswer(false, last)

	if err := tr.Flush(context.Background(), repo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.calls) != 1 {
		t.Fatalf("expected 1 write, got %d", len(repo.calls))
	}
	want := phrase.Delta{PhraseID: "p1", Repetitions: 3, Correct: 1, At: last}
	if repo.calls[0] != want {
		t.Errorf("expected %+v, got %+v", want, repo.calls[0])
	}
	if tr.HasPending() {
		t.Error("expected nothing pending after flush")
	}

	if err := tr.Flush(context.Background(), repo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.calls) != 1 {
		t.Errorf("expected no second write, got %d writes", len(repo.calls))
	}
	if got := tr.Recorded(); got != 3 {
		t.Errorf("expected 3 recorded, got %d", got)
	}
}

func TestFlush_FailureKeepsPending(t *testing.T) {
	tr := newTracker(t, 0, 0, 0)
	repo := &fakeRepo{err: errors.New("db down")}

	tr.RecordTap(start)
	tr.RecordTap(start)

	err := tr.Flush(context.Background(), repo)
	if !errors.Is(err, counter.ErrFlushFailed) {
		t.Fatalf("expected ErrFlushFailed, got %v", err)
	}
	if got := tr.Pending().Repetitions; got != 2 {
		t.Errorf("expected 2 pending after failure, got %d", got)
	}

	repo.err = nil
	if err := tr.Flush(context.Background(), repo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.calls[len(repo.calls)-1].Repetitions; got != 2 {
		t.Errorf("expected retry to write 2, got %d", got)
	}
	if tr.HasPending() {
		t.Error("expected nothing pending after retry")
	}
}

func TestRecordTap_AfterMidnightSealsPreviousDay(t *testing.T) {
	tr := newTracker(t, 0, 0, 0)
	repo := &fakeRepo{}

	lateEvening := time.Date(2024, 6, 1, 23, 50, 0, 0, time.UTC)
	afterMidnight := time.Date(2024, 6, 2, 0, 10, 0, 0, time.UTC)

	tr.RecordTap(lateEvening)
	tr.RecordTap(lateEvening)
	res := tr.RecordTap(afterMidnight)

	if res.Today != 1 || res.Total != 3 {
		t.Errorf("expected today 1 total 3, got today %d total %d", res.Today, res.Total)
	}
	unsaved := tr.Unsaved()
	if len(unsaved) != 2 {
		t.Fatalf("expected 2 unsaved deltas, got %d", len(unsaved))
	}
	if unsaved[0].Repetitions != 2 || !unsaved[0].At.Equal(lateEvening) {
		t.Errorf("expected 2 reps at %v first, got %+v", lateEvening, unsaved[0])
	}

	if err := tr.Flush(context.Background(), repo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.calls) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(repo.calls))
	}
	if !repo.calls[0].At.Equal(lateEvening) || repo.calls[0].Repetitions != 2 {
		t.Errorf("expected previous day written first, got %+v", repo.calls[0])
	}
	if !repo.calls[1].At.Equal(afterMidnight) || repo.calls[1].Repetitions != 1 {
		t.Errorf("expected current day written second, got %+v", repo.calls[1])
	}
}

func TestFlush_SealedFailureKeepsOrder(t *testing.T) {
	tr := newTracker(t, 0, 0, 0)
	repo := &fakeRepo{err: errors.New("db down")}

	lateEvening := time.Date(2024, 6, 1, 23, 50, 0, 0, time.UTC)
	tr.RecordTap(lateEvening)
	tr.RecordTap(lateEvening.Add(time.Hour))

	if err := tr.Flush(context.Background(), repo); !errors.Is(err, counter.ErrFlushFailed) {
		t.Fatalf("expected ErrFlushFailed, got %v", err)
	}
	if got := len(tr.Unsaved()); got != 2 {
		t.Fatalf("expected both deltas kept, got %d", got)
	}

	repo.err = nil
	if err := tr.Flush(context.Background(), repo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.calls) != 2 || !repo.calls[0].At.Equal(lateEvening) {
		t.Errorf("expected previous day first on retry, got %+v", repo.calls)
	}
}

func TestCheckRollover(t *testing.T) {
	tr := newTracker(t, 100, 150, 100)
	repo := &fakeRepo{phrases: map[string]*phrase.Phrase{
		"p1": {ID: "p1", DailyRepetitions: 100, TotalRepetitions: 150, LastActivityAt: &start},
	}}

	if !tr.RecordTap(start).CapWarning {
		t.Fatal("expected cap warning")
	}

	rolled, err := tr.CheckRollover(context.Background(), start.Add(time.Hour), repo)
	if err != nil || rolled {
		t.Fatalf("expected no rollover, got %v %v", rolled, err)
	}
	if tr.Today() != 100 {
		t.Errorf("expected today 100, got %d", tr.Today())
	}

	next := start.Add(20 * time.Hour)
	rolled, err = tr.CheckRollover(context.Background(), next, repo)
	if err != nil || !rolled {
		t.Fatalf("expected rollover, got %v %v", rolled, err)
	}
	if tr.Today() != 0 || tr.Total() != 150 {
		t.Errorf("expected today 0 total 150, got today %d total %d", tr.Today(), tr.Total())
	}

	res := tr.RecordTap(next)
	if !res.Accepted || res.Today != 1 {
		t.Errorf("expected a fresh day, got %+v", res)
	}
}

func TestCheckRollover_WritesPreviousDayBeforeReset(t *testing.T) {
	tr := newTracker(t, 0, 0, 0)
	lateEvening := time.Date(2024, 6, 1, 23, 50, 0, 0, time.UTC)
	repo := &fakeRepo{phrases: map[string]*phrase.Phrase{
		"p1": {ID: "p1", DailyRepetitions: 3, TotalRepetitions: 3, LastActivityAt: &lateEvening},
	}}

	for i := 0; i < 3; i++ {
		tr.RecordTap(lateEvening)
	}

	rolled, err := tr.CheckRollover(context.Background(), lateEvening.Add(20*time.Minute), repo)
	if err != nil || !rolled {
		t.Fatalf("expected rollover, got %v %v", rolled, err)
	}
	if len(repo.calls) != 1 {
		t.Fatalf("expected previous day written, got %d writes", len(repo.calls))
	}
	if got := repo.calls[0]; got.Repetitions != 3 || !got.At.Equal(lateEvening) {
		t.Errorf("expected 3 reps dated %v, got %+v", lateEvening, got)
	}
	if tr.HasPending() {
		t.Error("expected nothing pending after rollover")
	}
	if tr.Today() != 0 || tr.Total() != 3 {
		t.Errorf("expected today 0 total 3, got today %d total %d", tr.Today(), tr.Total())
	}
}

func TestCheckRollover_WriteErrorKeepsPreviousDay(t *testing.T) {
	tr := newTracker(t, 5, 5, 0)
	repo := &fakeRepo{err: errors.New("timeout")}
	tr.RecordTap(start)

	rolled, err := tr.CheckRollover(context.Background(), start.Add(24*time.Hour), repo)
	if !rolled || err == nil {
		t.Fatalf("expected rollover with error, got %v %v", rolled, err)
	}
	if tr.Today() != 0 {
		t.Errorf("expected today reset to 0, got %d", tr.Today())
	}
	unsaved := tr.Unsaved()
	if len(unsaved) != 1 || !unsaved[0].At.Equal(start) {
		t.Errorf("expected the previous day kept with its timestamp, got %+v", unsaved)
	}
}
