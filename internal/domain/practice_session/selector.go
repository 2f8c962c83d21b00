package practicesession

import (
	"fmt"
	"math/rand"

	"github.com/speakloop/backend/internal/domain/phrase"
)

// Outcome classifies a selection so empty results are never ambiguous.
type Outcome string

const (
	// OutcomeReady means at least one phrase was selected.
	OutcomeReady Outcome = "ready"
	// OutcomeNoCandidates means the pool was empty before any filtering.
	OutcomeNoCandidates Outcome = "no_candidates"
	// OutcomeAllDone means every eligible phrase was completed in this session.
	OutcomeAllDone Outcome = "all_done"
	// OutcomeFilteredOut means exclusions removed every phrase; a looser
	// filter would return something.
	OutcomeFilteredOut Outcome = "filtered_out"
)

// PracticeResult is the outcome of SelectPractice.
type PracticeResult struct {
	Items     []phrase.Phrase
	Remaining int // eligible phrases before truncation, for "N left"
	Outcome   Outcome
}

// SpeakResult is the outcome of SelectNextSpeak.
type SpeakResult struct {
	Item      *phrase.Phrase
	Remaining int // eligible phrases not yet completed this session
	Outcome   Outcome
}

// QuizResult is the outcome of SelectQuiz.
type QuizResult struct {
	Items   []phrase.Phrase
	Outcome Outcome
}

func checkMode(cfg SessionConfig, want Mode) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Mode != want {
		return fmt.Errorf("%w: %q passed to %s selector", ErrUnknownMode, cfg.Mode, want)
	}
	return nil
}

// SelectPractice picks phrases for a practice session. Normal mode takes
// phrases below the mastery threshold, review mode those at or above it.
// Phrases older than the practice-start watermark and phrases already
// practiced today are left out; the rest are ordered oldest first.
func SelectPractice(pool []phrase.Phrase, cfg SessionConfig) (PracticeResult, error) {
	if err := checkMode(cfg, ModePractice); err != nil {
		return PracticeResult{}, err
	}
	if len(pool) == 0 {
		return PracticeResult{Outcome: OutcomeNoCandidates}, nil
	}

	threshold := cfg.masteryThreshold()
	review := cfg.SubMode == SubModeReview
	eligible := Filter(pool, func(p *phrase.Phrase) bool {
		if review {
			return p.CorrectCount >= threshold
		}
		return p.CorrectCount < threshold
	})

	if cfg.PracticeStart != nil && !cfg.IncludePreexisting {
		start := *cfg.PracticeStart
		eligible = Filter(eligible, func(p *phrase.Phrase) bool {
			return !p.CreatedAt.Before(start)
		})
	}
	eligible = ExcludeDoneToday(eligible, cfg.Now, cfg.Location)
	if cfg.MaxRepetitions != nil {
		eligible = ExcludeAtOrAbove(eligible, ByTotalRepetitions, *cfg.MaxRepetitions)
	}

	if len(eligible) == 0 {
		return PracticeResult{Outcome: OutcomeFilteredOut}, nil
	}

	ordered := SortBy(eligible, ByNothing, OldestFirst)
	return PracticeResult{
		Items:     truncate(ordered, cfg.Count),
		Remaining: len(ordered),
		Outcome:   OutcomeReady,
	}, nil
}

// SelectNextSpeak picks the single least-practiced phrase not yet completed
// in this session. Phrases completed in this session are exempt from the
// transient exclusions, so finishing every phrase reports OutcomeAllDone
// rather than OutcomeFilteredOut.
func SelectNextSpeak(pool []phrase.Phrase, cfg SessionConfig) (SpeakResult, error) {
	if err := checkMode(cfg, ModeSpeak); err != nil {
		return SpeakResult{}, err
	}
	if len(pool) == 0 {
		return SpeakResult{Outcome: OutcomeNoCandidates}, nil
	}

	eligible := Filter(pool, func(p *phrase.Phrase) bool {
		if p.SessionCompleted {
			return true
		}
		if cfg.ExcludeDoneToday && p.DoneOn(cfg.Now, cfg.Location) {
			return false
		}
		if cfg.MaxRepetitions != nil && p.TotalRepetitions >= *cfg.MaxRepetitions {
			return false
		}
		return true
	})
	if len(eligible) == 0 {
		return SpeakResult{Outcome: OutcomeFilteredOut}, nil
	}

	open := Filter(eligible, func(p *phrase.Phrase) bool { return !p.SessionCompleted })
	if len(open) == 0 {
		return SpeakResult{Outcome: OutcomeAllDone}, nil
	}

	order := cfg.Order
	if order == "" {
		order = OldestFirst
	}
	ordered := SortBy(open, ByTotalRepetitions, order)
	next := ordered[0]
	return SpeakResult{Item: &next, Remaining: len(ordered), Outcome: OutcomeReady}, nil
}

// SelectQuiz orders phrases for a quiz. Normal mode surfaces the least
// correct (then oldest) phrases first; random mode is a uniform shuffle.
// rng may be nil to use the package-level source.
func SelectQuiz(pool []phrase.Phrase, cfg SessionConfig, rng *rand.Rand) (QuizResult, error) {
	if err := checkMode(cfg, ModeQuiz); err != nil {
		return QuizResult{}, err
	}
	if len(pool) == 0 {
		return QuizResult{Outcome: OutcomeNoCandidates}, nil
	}

	eligible := pool
	if cfg.ExcludeDoneToday {
		eligible = ExcludeDoneToday(eligible, cfg.Now, cfg.Location)
	}
	if cfg.MaxRepetitions != nil {
		eligible = ExcludeAtOrAbove(eligible, ByTotalRepetitions, *cfg.MaxRepetitions)
	}
	if len(eligible) == 0 {
		return QuizResult{Outcome: OutcomeFilteredOut}, nil
	}

	var ordered []phrase.Phrase
	if cfg.SubMode == SubModeRandom {
		ordered = shufflePhrases(eligible, rng)
	} else {
		ordered = SortBy(eligible, ByCorrectCount, OldestFirst)
	}

	return QuizResult{Items: truncate(ordered, cfg.Count), Outcome: OutcomeReady}, nil
}

// shufflePhrases returns a new slice with phrases in random order.
func shufflePhrases(phrases []phrase.Phrase, rng *rand.Rand) []phrase.Phrase {
	shuffled := make([]phrase.Phrase, len(phrases))
	copy(shuffled, phrases)

	swap := func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	if rng != nil {
		rng.Shuffle(len(shuffled), swap)
	} else {
		rand.Shuffle(len(shuffled), swap)
	}

	return shuffled
}
