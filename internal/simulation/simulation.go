// Package simulation drives scripted learners through practice sessions so
// a fresh database can be seeded and the whole session flow exercised.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/speakloop/backend/internal/domain/phrase"
	practicesession "github.com/speakloop/backend/internal/domain/practice_session"
	"github.com/speakloop/backend/internal/service"
	"github.com/speakloop/backend/internal/worker"
)

// Store is where simulated users and phrases are created.
type Store interface {
	SaveUser(ctx context.Context, u *phrase.User) error
	SavePhrase(ctx context.Context, p *phrase.Phrase) error
}

// Learner is one scripted user.
type Learner struct {
	Name     string
	Timezone string
	Phrases  []string
	Taps     int // taps per phrase
}

// Result is what one learner's session recorded.
type Result struct {
	Name      string                  `json:"name"`
	UserID    string                  `json:"user_id"`
	SessionID string                  `json:"session_id,omitempty"`
	Outcome   practicesession.Outcome `json:"outcome"`
	Summary   *service.FinishSummary  `json:"summary,omitempty"`
	Err       error                   `json:"-"`
}

// Simulator runs learners concurrently on a worker pool.
type Simulator struct {
	svc      *service.ProgressService
	store    Store
	language string
	now      func() time.Time
}

func New(svc *service.ProgressService, store Store, language string) *Simulator {
	return &Simulator{svc: svc, store: store, language: language, now: time.Now}
}

// Run plays every learner and returns results ordered by name. The error
// joins every learner's failure.
func (s *Simulator) Run(ctx context.Context, learners []Learner, workers int) ([]Result, error) {
	pool := worker.NewPool[Result](workers, len(learners))
	for _, l := range learners {
		pool.Submit(l.Name, func() Result {
			return s.play(ctx, l)
		})
	}
	pool.Close()

	var results []Result
	var errs []error
	for r := range pool.Results() {
		results = append(results, r.Output)
		if r.Output.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.JobID, r.Output.Err))
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, errors.Join(errs...)
}

func (s *Simulator) play(ctx context.Context, l Learner) Result {
	res := Result{Name: l.Name}

	created := s.now().Add(-time.Minute)
	u := phrase.NewUser(l.Name, l.Timezone, created)
	u.IncludePreexisting = true
	if res.Err = s.store.SaveUser(ctx, u); res.Err != nil {
		return res
	}
	res.UserID = u.ID

	for _, text := range l.Phrases {
		p, err := phrase.New(u.ID, s.language, text, "", created)
		if err != nil {
			res.Err = err
			return res
		}
		if res.Err = s.store.SavePhrase(ctx, p); res.Err != nil {
			return res
		}
	}

	view, err := s.svc.StartSession(ctx, service.StartRequest{
		UserID:   u.ID,
		Language: s.language,
		Mode:     practicesession.ModePractice,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Outcome = view.Outcome
	if view.ID == "" {
		return res
	}
	res.SessionID = view.ID

	for _, item := range view.Items {
		for i := 0; i < l.Taps; i++ {
			if _, err := s.svc.Tap(ctx, view.ID, item.PhraseID); err != nil {
				res.Err = err
				return res
			}
		}
		if _, err := s.svc.Next(ctx, view.ID); err != nil {
			res.Err = err
			return res
		}
	}

	res.Summary, res.Err = s.svc.Finish(ctx, view.ID)
	return res
}

// Demo returns a small cast spread over several timezones.
func Demo(n, taps int) []Learner {
	zones := []string{"UTC", "Asia/Tokyo", "America/New_York", "Europe/Paris"}
	texts := []string{"hola", "gracias", "buenos dias", "hasta luego", "por favor"}

	learners := make([]Learner, n)
	for i := range learners {
		learners[i] = Learner{
			Name:     fmt.Sprintf("learner-%02d", i+1),
			Timezone: zones[i%len(zones)],
			Phrases:  texts[:1+i%len(texts)],
			Taps:     taps,
		}
	}
	return learners
}
