package practicesession_test

import (
	"errors"
	"math/rand"
	"sort"
	"testing"
	"time"

	practicesession "github.com/speakloop/backend/internal/domain/practice_session"
	"github.com/speakloop/backend/internal/domain/phrase"
)

func ids(items []phrase.Phrase) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func at(t time.Time) *time.Time { return &t }

func TestSelectPractice_TokyoDayBoundary(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load Asia/Tokyo: %v", err)
	}
	now := time.Date(2024, 6, 12, 0, 30, 0, 0, tokyo) // 2024-06-11 15:30 UTC
	watermark := now.Add(-10 * 24 * time.Hour)

	mastered := makePhrase("mastered", 7, 40, now.Add(-3*24*time.Hour))

	yesterday := makePhrase("yesterday", 2, 5, now.Add(-5*24*time.Hour))
	yesterday.LastActivityAt = at(time.Date(2024, 6, 11, 23, 30, 0, 0, tokyo))

	today := makePhrase("today", 1, 3, now.Add(-4*24*time.Hour))
	today.LastActivityAt = at(time.Date(2024, 6, 12, 0, 10, 0, 0, tokyo))

	pool := []phrase.Phrase{mastered, yesterday, today}

	cfg := practicesession.DefaultConfig(practicesession.ModePractice, tokyo, now)
	cfg.PracticeStart = &watermark

	res, err := practicesession.SelectPractice(pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != practicesession.OutcomeReady {
		t.Fatalf("expected ready, got %s", res.Outcome)
	}
	if got := ids(res.Items); !equalIDs(got, []string{"yesterday"}) {
		t.Errorf("expected [yesterday], got %v", got)
	}

	cfg.SubMode = practicesession.SubModeReview
	res, err = practicesession.SelectPractice(pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(res.Items); !equalIDs(got, []string{"mastered"}) {
		t.Errorf("expected [mastered] in review, got %v", got)
	}
}

func TestSelectPractice_WatermarkHidesPreexisting(t *testing.T) {
	watermark := utcNow.Add(-24 * time.Hour)
	pool := []phrase.Phrase{
		makePhrase("old", 0, 0, utcNow.Add(-48*time.Hour)),
		makePhrase("new", 0, 0, utcNow.Add(-time.Hour)),
	}

	cfg := practicesession.DefaultConfig(practicesession.ModePractice, time.UTC, utcNow)
	cfg.PracticeStart = &watermark

	res, _ := practicesession.SelectPractice(pool, cfg)
	if got := ids(res.Items); !equalIDs(got, []string{"new"}) {
		t.Errorf("expected [new], got %v", got)
	}

	cfg.IncludePreexisting = true
	res, _ = practicesession.SelectPractice(pool, cfg)
	if got := ids(res.Items); !equalIDs(got, []string{"old", "new"}) {
		t.Errorf("expected [old new], got %v", got)
	}
}

func TestSelectPractice_OrderAndTruncation(t *testing.T) {
	var pool []phrase.Phrase
	for i, name := range []string{"c", "a", "e", "b", "d"} {
		// created order: c, a, e, b, d from oldest
		pool = append(pool, makePhrase(name, i%3, 0, utcNow.Add(time.Duration(i-10)*time.Hour)))
	}

	cfg := practicesession.DefaultConfig(practicesession.ModePractice, time.UTC, utcNow)
	cfg.Count = 3

	res, err := practicesession.SelectPractice(pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(res.Items); !equalIDs(got, []string{"c", "a", "e"}) {
		t.Errorf("expected oldest three [c a e], got %v", got)
	}
	if res.Remaining != 5 {
		t.Errorf("expected 5 remaining, got %d", res.Remaining)
	}
}

func TestSelectPractice_Outcomes(t *testing.T) {
	cfg := practicesession.DefaultConfig(practicesession.ModePractice, time.UTC, utcNow)

	res, err := practicesession.SelectPractice(nil, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != practicesession.OutcomeNoCandidates {
		t.Errorf("expected no_candidates, got %s", res.Outcome)
	}

	mastered := []phrase.Phrase{makePhrase("m", 9, 9, utcNow)}
	res, _ = practicesession.SelectPractice(mastered, cfg)
	if res.Outcome != practicesession.OutcomeFilteredOut {
		t.Errorf("expected filtered_out, got %s", res.Outcome)
	}
}

func TestSelectPractice_ThresholdBoundary(t *testing.T) {
	pool := []phrase.Phrase{
		makePhrase("four", 4, 0, utcNow),
		makePhrase("five", 5, 0, utcNow),
	}
	cfg := practicesession.DefaultConfig(practicesession.ModePractice, time.UTC, utcNow)

	res, _ := practicesession.SelectPractice(pool, cfg)
	if got := ids(res.Items); !equalIDs(got, []string{"four"}) {
		t.Errorf("expected [four] in normal, got %v", got)
	}

	cfg.SubMode = practicesession.SubModeReview
	res, _ = practicesession.SelectPractice(pool, cfg)
	if got := ids(res.Items); !equalIDs(got, []string{"five"}) {
		t.Errorf("expected [five] in review, got %v", got)
	}
}

func TestSelectPractice_MaxRepetitions(t *testing.T) {
	pool := []phrase.Phrase{
		makePhrase("busy", 0, 50, utcNow),
		makePhrase("quiet", 0, 2, utcNow),
	}
	cfg := practicesession.DefaultConfig(practicesession.ModePractice, time.UTC, utcNow)
	ceiling := 50
	cfg.MaxRepetitions = &ceiling

	res, _ := practicesession.SelectPractice(pool, cfg)
	if got := ids(res.Items); !equalIDs(got, []string{"quiet"}) {
		t.Errorf("expected [quiet], got %v", got)
	}
}

func TestSelect_ModeErrors(t *testing.T) {
	speakCfg := practicesession.DefaultConfig(practicesession.ModeSpeak, time.UTC, utcNow)
	if _, err := practicesession.SelectPractice(nil, speakCfg); !errors.Is(err, practicesession.ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}

	bogus := practicesession.DefaultConfig(practicesession.Mode("flashcards"), time.UTC, utcNow)
	if _, err := practicesession.SelectQuiz(nil, bogus, nil); !errors.Is(err, practicesession.ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}

	cfg := practicesession.DefaultConfig(practicesession.ModePractice, time.UTC, utcNow)
	cfg.SubMode = practicesession.SubModeRandom
	if _, err := practicesession.SelectPractice(nil, cfg); !errors.Is(err, practicesession.ErrUnknownSubMode) {
		t.Errorf("expected ErrUnknownSubMode, got %v", err)
	}

	cfg = practicesession.DefaultConfig(practicesession.ModePractice, nil, utcNow)
	if _, err := practicesession.SelectPractice(nil, cfg); !errors.Is(err, practicesession.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for nil location, got %v", err)
	}
}

func TestSelectNextSpeak_LeastPracticedFirst(t *testing.T) {
	pool := []phrase.Phrase{
		makePhrase("five", 0, 5, utcNow.Add(-3*time.Hour)),
		makePhrase("one", 0, 1, utcNow.Add(-2*time.Hour)),
		makePhrase("three", 0, 3, utcNow.Add(-time.Hour)),
	}
	cfg := practicesession.DefaultConfig(practicesession.ModeSpeak, time.UTC, utcNow)

	res, err := practicesession.SelectNextSpeak(pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Item == nil || res.Item.ID != "one" {
		t.Fatalf("expected one, got %+v", res.Item)
	}
	if res.Remaining != 3 {
		t.Errorf("expected 3 remaining, got %d", res.Remaining)
	}

	pool[1].SessionCompleted = true
	res, _ = practicesession.SelectNextSpeak(pool, cfg)
	if res.Item == nil || res.Item.ID != "three" {
		t.Errorf("expected three after completing one, got %+v", res.Item)
	}
}

func TestSelectNextSpeak_TieUsesOrder(t *testing.T) {
	pool := []phrase.Phrase{
		makePhrase("older", 0, 2, utcNow.Add(-2*time.Hour)),
		makePhrase("newer", 0, 2, utcNow.Add(-time.Hour)),
	}
	cfg := practicesession.DefaultConfig(practicesession.ModeSpeak, time.UTC, utcNow)

	res, _ := practicesession.SelectNextSpeak(pool, cfg)
	if res.Item.ID != "older" {
		t.Errorf("expected older first, got %s", res.Item.ID)
	}

	cfg.Order = practicesession.NewestFirst
	res, _ = practicesession.SelectNextSpeak(pool, cfg)
	if res.Item.ID != "newer" {
		t.Errorf("expected newer first, got %s", res.Item.ID)
	}
}

func TestSelectNextSpeak_Outcomes(t *testing.T) {
	cfg := practicesession.DefaultConfig(practicesession.ModeSpeak, time.UTC, utcNow)

	res, _ := practicesession.SelectNextSpeak(nil, cfg)
	if res.Outcome != practicesession.OutcomeNoCandidates {
		t.Errorf("expected no_candidates, got %s", res.Outcome)
	}

	done := []phrase.Phrase{makePhrase("a", 0, 1, utcNow), makePhrase("b", 0, 1, utcNow)}
	for i := range done {
		done[i].SessionCompleted = true
		// completed phrases were also practiced today
		done[i].LastActivityAt = at(utcNow.Add(-time.Minute))
	}
	cfg.ExcludeDoneToday = true
	res, _ = practicesession.SelectNextSpeak(done, cfg)
	if res.Outcome != practicesession.OutcomeAllDone {
		t.Errorf("expected all_done, got %s", res.Outcome)
	}

	touched := []phrase.Phrase{makePhrase("c", 0, 1, utcNow)}
	touched[0].LastActivityAt = at(utcNow.Add(-time.Minute))
	res, _ = practicesession.SelectNextSpeak(touched, cfg)
	if res.Outcome != practicesession.OutcomeFilteredOut {
		t.Errorf("expected filtered_out, got %s", res.Outcome)
	}
	if res.Item != nil {
		t.Error("expected no item when filtered out")
	}
}

func TestSelectQuiz_NormalOrder(t *testing.T) {
	pool := []phrase.Phrase{
		makePhrase("strong", 8, 0, utcNow.Add(-4*time.Hour)),
		makePhrase("weak-new", 1, 0, utcNow.Add(-time.Hour)),
		makePhrase("weak-old", 1, 0, utcNow.Add(-3*time.Hour)),
		makePhrase("zero", 0, 0, utcNow.Add(-2*time.Hour)),
	}
	cfg := practicesession.DefaultConfig(practicesession.ModeQuiz, time.UTC, utcNow)

	res, err := practicesession.SelectQuiz(pool, cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"zero", "weak-old", "weak-new", "strong"}
	if got := ids(res.Items); !equalIDs(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelectQuiz_DefaultCount(t *testing.T) {
	var pool []phrase.Phrase
	for i := 0; i < 15; i++ {
		pool = append(pool, makePhrase(string(rune('a'+i)), 0, 0, utcNow))
	}
	cfg := practicesession.DefaultConfig(practicesession.ModeQuiz, time.UTC, utcNow)

	res, _ := practicesession.SelectQuiz(pool, cfg, nil)
	if len(res.Items) != 10 {
		t.Errorf("expected 10 items, got %d", len(res.Items))
	}

	cfg.Count = 40
	res, _ = practicesession.SelectQuiz(pool, cfg, nil)
	if len(res.Items) != 15 {
		t.Errorf("expected all 15 items, got %d", len(res.Items))
	}
}

func TestSelectQuiz_RandomIsPermutation(t *testing.T) {
	var pool []phrase.Phrase
	for i := 0; i < 8; i++ {
		pool = append(pool, makePhrase(string(rune('a'+i)), i, 0, utcNow))
	}
	cfg := practicesession.DefaultConfig(practicesession.ModeQuiz, time.UTC, utcNow)
	cfg.SubMode = practicesession.SubModeRandom
	cfg.Count = 0

	res, err := practicesession.SelectQuiz(pool, cfg, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ids(res.Items)
	sort.Strings(got)
	if !equalIDs(got, ids(pool)) {
		t.Errorf("expected a permutation of the pool, got %v", ids(res.Items))
	}
}

func TestSelectQuiz_RandomHasNoPositionalBias(t *testing.T) {
	pool := []phrase.Phrase{
		makePhrase("a", 0, 0, utcNow),
		makePhrase("b", 1, 0, utcNow),
		makePhrase("c", 2, 0, utcNow),
		makePhrase("d", 3, 0, utcNow),
	}
	cfg := practicesession.DefaultConfig(practicesession.ModeQuiz, time.UTC, utcNow)
	cfg.SubMode = practicesession.SubModeRandom

	rng := rand.New(rand.NewSource(42))
	first := map[string]int{}
	const rounds = 4000
	for i := 0; i < rounds; i++ {
		res, _ := practicesession.SelectQuiz(pool, cfg, rng)
		first[res.Items[0].ID]++
	}

	// expected 1000 each; 200 is about seven standard deviations
	for _, p := range pool {
		if n := first[p.ID]; n < 800 || n > 1200 {
			t.Errorf("expected %s first about 1000 times, got %d", p.ID, n)
		}
	}
}

func TestSelectQuiz_OptionalExclusions(t *testing.T) {
	played := makePhrase("played", 0, 0, utcNow)
	played.LastActivityAt = at(utcNow.Add(-time.Hour))
	pool := []phrase.Phrase{played, makePhrase("fresh", 0, 0, utcNow)}

	cfg := practicesession.DefaultConfig(practicesession.ModeQuiz, time.UTC, utcNow)
	res, _ := practicesession.SelectQuiz(pool, cfg, nil)
	if len(res.Items) != 2 {
		t.Errorf("expected both phrases without exclusions, got %v", ids(res.Items))
	}

	cfg.ExcludeDoneToday = true
	res, _ = practicesession.SelectQuiz(pool, cfg, nil)
	if got := ids(res.Items); !equalIDs(got, []string{"fresh"}) {
		t.Errorf("expected [fresh], got %v", got)
	}

	res, _ = practicesession.SelectQuiz([]phrase.Phrase{played}, cfg, nil)
	if res.Outcome != practicesession.OutcomeFilteredOut {
		t.Errorf("expected filtered_out, got %s", res.Outcome)
	}
}

func TestSortBy_Deterministic(t *testing.T) {
	pool := []phrase.Phrase{
		makePhrase("b", 1, 0, utcNow),
		makePhrase("a", 1, 0, utcNow),
	}
	out := practicesession.SortBy(pool, practicesession.ByCorrectCount, practicesession.OldestFirst)
	if got := ids(out); !equalIDs(got, []string{"a", "b"}) {
		t.Errorf("expected ID tie-break [a b], got %v", got)
	}
	if pool[0].ID != "b" {
		t.Error("expected SortBy to leave the input untouched")
	}
}
