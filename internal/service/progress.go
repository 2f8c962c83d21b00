// internal/service/progress.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/speakloop/backend/internal/domain/calendar"
	"github.com/speakloop/backend/internal/domain/counter"
	"github.com/speakloop/backend/internal/domain/level"
	"github.com/speakloop/backend/internal/domain/phrase"
	practicesession "github.com/speakloop/backend/internal/domain/practice_session"
	"github.com/speakloop/backend/internal/domain/ranking"
	"github.com/speakloop/backend/internal/domain/rules"
	"github.com/speakloop/backend/internal/metrics"
	"github.com/speakloop/backend/internal/worker"
)

var ErrSessionNotFound = errors.New("session not found")

// Repository is the persistence the service needs. *store.SQLiteStore
// implements it.
type Repository interface {
	counter.Writer
	counter.Fetcher

	GetUser(ctx context.Context, id string) (*phrase.User, error)
	SetPracticeStart(ctx context.Context, userID string, at time.Time) error
	ListPhrases(ctx context.Context, userID, language string) ([]phrase.Phrase, error)
	CorrectCounts(ctx context.Context, userID, language string) ([]int, error)
	ResetSessionFlags(ctx context.Context, userID, language string) error
	MarkSessionCompleted(ctx context.Context, phraseID string) error
	ActivityDates(ctx context.Context, userID string, loc *time.Location) ([]string, error)
	RankingEvents(ctx context.Context, language string, since *time.Time) ([]ranking.Event, error)
}

// ProgressService runs practice, speak and quiz sessions on top of a
// Repository. Sessions live in memory; their counters reach the repository
// only on navigation, finish, abandon or a scheduled retry.
type ProgressService struct {
	repo        Repository
	rules       rules.Table
	logger      *slog.Logger
	metrics     metrics.Recorder
	now         func() time.Time
	rankingZone *time.Location

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	sessions map[string]*liveSession

	flushPool *worker.Pool[error]
	drained   chan struct{}
}

type liveSession struct {
	mu      sync.Mutex
	state   *practicesession.SessionState
	zone    calendar.Zone
	phrases map[string]phrase.Phrase

	// speakRemaining is the eligible count reported by the last speak selection.
	speakRemaining int

	// abandoned is guarded by ProgressService.mu. An abandoned session stays
	// registered until its counters are written but is hidden from callers.
	abandoned bool
}

// Option configures a ProgressService.
type Option func(*ProgressService)

func WithClock(now func() time.Time) Option {
	return func(s *ProgressService) { s.now = now }
}

func WithRules(t rules.Table) Option {
	return func(s *ProgressService) { s.rules = t }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *ProgressService) { s.metrics = m }
}

// WithRankingZone sets the reference zone for daily and weekly cutoffs.
func WithRankingZone(loc *time.Location) Option {
	return func(s *ProgressService) { s.rankingZone = loc }
}

// WithRand seeds quiz shuffles; tests use it for reproducible order.
func WithRand(r *rand.Rand) Option {
	return func(s *ProgressService) { s.rng = r }
}

// NewProgressService creates a ProgressService. Call Close to stop the
// background flush workers.
func NewProgressService(repo Repository, logger *slog.Logger, opts ...Option) *ProgressService {
	s := &ProgressService{
		repo:        repo,
		rules:       rules.Default(),
		logger:      logger,
		metrics:     metrics.Nop{},
		now:         time.Now,
		rankingZone: time.UTC,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sessions:    make(map[string]*liveSession),
		flushPool:   worker.NewPool[error](2, 64),
		drained:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.drainFlushResults()
	return s
}

// Close waits for queued best-effort flushes to finish.
func (s *ProgressService) Close() {
	s.flushPool.Close()
	<-s.drained
}

func (s *ProgressService) drainFlushResults() {
	defer close(s.drained)
	for r := range s.flushPool.Results() {
		if r.Output != nil {
			s.logger.Warn("background flush failed", "session_id", r.JobID, "error", r.Output)
		}
	}
}

// ============================================================================
// Views
// ============================================================================

// StartRequest describes a session to open.
type StartRequest struct {
	UserID           string
	Language         string
	Mode             practicesession.Mode
	SubMode          practicesession.SubMode
	Count            int  // 0 = mode default
	MaxRepetitions   *int // nil = no ceiling
	ExcludeDoneToday bool
	Order            practicesession.Order
}

// ItemView is one phrase as shown during a session.
type ItemView struct {
	PhraseID    string      `json:"phrase_id"`
	Text        string      `json:"text"`
	Translation string      `json:"translation"`
	Level       level.Level `json:"level"`
	Today       int         `json:"today"`
	Total       int         `json:"total"`
	Completed   bool        `json:"completed"`
}

// SessionView is the state of a session after an operation. ID is empty
// when the selection produced nothing to practice; Outcome says why.
type SessionView struct {
	ID               string                  `json:"id,omitempty"`
	Mode             practicesession.Mode    `json:"mode"`
	SubMode          practicesession.SubMode `json:"sub_mode,omitempty"`
	Outcome          practicesession.Outcome `json:"outcome"`
	Items            []ItemView              `json:"items"`
	Current          string                  `json:"current,omitempty"`
	Remaining        int                     `json:"remaining"`
	Timezone         string                  `json:"timezone"`
	TimezoneFellBack bool                    `json:"timezone_fell_back"`
}

// TapView is the result of a tap or answer.
type TapView struct {
	PhraseID   string `json:"phrase_id"`
	Accepted   bool   `json:"accepted"`
	Today      int    `json:"today"`
	Total      int    `json:"total"`
	CapWarning bool   `json:"cap_warning"`
}

// FinishSummary reports what a finished session recorded.
type FinishSummary struct {
	SessionID   string `json:"session_id"`
	Items       int    `json:"items"`
	Completed   int    `json:"completed"`
	Repetitions int    `json:"repetitions"` // accepted taps in this session
}

// ============================================================================
// Session lifecycle
// ============================================================================

// StartSession selects phrases for a new session and, when anything was
// selected, registers it.
func (s *ProgressService) StartSession(ctx context.Context, req StartRequest) (*SessionView, error) {
	user, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", req.UserID, err)
	}
	zone := s.resolveZone(user)
	now := s.now()

	cfg := practicesession.DefaultConfig(req.Mode, zone.Location, now)
	if req.SubMode != "" {
		cfg.SubMode = req.SubMode
	}
	if req.Count > 0 {
		cfg.Count = req.Count
	} else if req.Mode == practicesession.ModeQuiz {
		cfg.Count = s.rules.DefaultQuizCount
	} else if req.Mode == practicesession.ModePractice {
		cfg.Count = s.rules.DefaultPracticeCount
	}
	if req.Order != "" {
		cfg.Order = req.Order
	}
	cfg.MaxRepetitions = req.MaxRepetitions
	cfg.ExcludeDoneToday = req.ExcludeDoneToday
	cfg.MasteryThreshold = s.rules.MasteryThreshold
	cfg.IncludePreexisting = user.IncludePreexisting

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if req.Mode == practicesession.ModePractice {
		watermark, initialized := practicesession.ResolveWatermark(user.PracticeStartAt, now)
		if initialized {
			if err := s.repo.SetPracticeStart(ctx, user.ID, watermark); err != nil {
				return nil, fmt.Errorf("store practice start: %w", err)
			}
			s.logger.Info("practice watermark initialized", "user_id", user.ID, "at", watermark)
		}
		cfg.PracticeStart = &watermark
	}

	if err := s.repo.ResetSessionFlags(ctx, user.ID, req.Language); err != nil {
		return nil, fmt.Errorf("reset session flags: %w", err)
	}
	pool, err := s.repo.ListPhrases(ctx, user.ID, req.Language)
	if err != nil {
		return nil, fmt.Errorf("list phrases: %w", err)
	}
	// flags were just reset in the store; mirror that in the snapshot
	for i := range pool {
		pool[i].SessionCompleted = false
	}

	items, remaining, outcome, err := s.selectFor(pool, cfg)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSessionStarted(string(req.Mode), string(outcome))

	view := &SessionView{
		Mode:             cfg.Mode,
		SubMode:          cfg.SubMode,
		Outcome:          outcome,
		Remaining:        remaining,
		Timezone:         zone.Name,
		TimezoneFellBack: zone.FellBack,
	}
	if outcome != practicesession.OutcomeReady {
		s.logger.Info("session not started", "user_id", user.ID, "mode", req.Mode, "outcome", outcome)
		return view, nil
	}

	live := &liveSession{
		state:   practicesession.New(user.ID, req.Language, cfg, items, s.rules.DailyCap),
		zone:    zone,
		phrases: make(map[string]phrase.Phrase, len(items)),
	}
	for _, p := range items {
		live.phrases[p.ID] = p
	}
	if cfg.Mode == practicesession.ModeSpeak {
		live.speakRemaining = remaining
	}

	s.mu.Lock()
	s.sessions[live.state.ID] = live
	open := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetOpenSessions(open)

	s.logger.Info("session started",
		"session_id", live.state.ID,
		"user_id", user.ID,
		"mode", cfg.Mode,
		"sub_mode", cfg.SubMode,
		"items", len(items),
	)

	live.mu.Lock()
	defer live.mu.Unlock()
	s.fillView(view, live)
	return view, nil
}

func (s *ProgressService) selectFor(pool []phrase.Phrase, cfg practicesession.SessionConfig) ([]phrase.Phrase, int, practicesession.Outcome, error) {
	switch cfg.Mode {
	case practicesession.ModePractice:
		res, err := practicesession.SelectPractice(pool, cfg)
		return res.Items, res.Remaining, res.Outcome, err
	case practicesession.ModeQuiz:
		s.rngMu.Lock()
		res, err := practicesession.SelectQuiz(pool, cfg, s.rng)
		s.rngMu.Unlock()
		return res.Items, len(res.Items), res.Outcome, err
	case practicesession.ModeSpeak:
		res, err := practicesession.SelectNextSpeak(pool, cfg)
		if err != nil || res.Item == nil {
			return nil, res.Remaining, res.Outcome, err
		}
		return []phrase.Phrase{*res.Item}, res.Remaining, res.Outcome, nil
	}
	return nil, 0, "", fmt.Errorf("%w: %q", practicesession.ErrUnknownMode, cfg.Mode)
}

func (s *ProgressService) resolveZone(u *phrase.User) calendar.Zone {
	zone := u.Zone()
	if zone.FellBack {
		s.metrics.RecordTimezoneFallback()
		s.logger.Warn("user timezone fell back to UTC",
			"user_id", u.ID,
			"timezone", u.Timezone,
			"error", zone.Err,
		)
	}
	return zone
}

func (s *ProgressService) session(id string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[id]
	if !ok || live.abandoned {
		return nil, ErrSessionNotFound
	}
	return live, nil
}

func (s *ProgressService) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	open := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetOpenSessions(open)
}

// GetSession returns the current view of an open session.
func (s *ProgressService) GetSession(sessionID string) (*SessionView, error) {
	live, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	view := &SessionView{
		Mode:             live.state.Mode(),
		SubMode:          live.state.Config.SubMode,
		Outcome:          practicesession.OutcomeReady,
		Timezone:         live.zone.Name,
		TimezoneFellBack: live.zone.FellBack,
	}
	s.fillView(view, live)
	return view, nil
}

// fillView must be called with live.mu held.
func (s *ProgressService) fillView(view *SessionView, live *liveSession) {
	st := live.state
	view.ID = st.ID
	view.Items = view.Items[:0]
	for _, t := range st.Trackers() {
		p := live.phrases[t.PhraseID]
		view.Items = append(view.Items, ItemView{
			PhraseID:    p.ID,
			Text:        p.Text,
			Translation: p.Translation,
			Level:       p.Level(),
			Today:       t.Today(),
			Total:       t.Total(),
			Completed:   st.IsCompleted(p.ID),
		})
	}
	if cur, ok := st.Current(); ok {
		view.Current = cur
	} else {
		view.Current = ""
	}
	if st.Mode() == practicesession.ModeSpeak {
		view.Remaining = live.speakRemaining
	} else {
		view.Remaining = st.Len() - st.Position()
	}
}

// Tap records one repetition of a phrase in a session.
func (s *ProgressService) Tap(ctx context.Context, sessionID, phraseID string) (*TapView, error) {
	return s.record(sessionID, phraseID, func(st *practicesession.SessionState) (counter.TapResult, error) {
		return st.Tap(phraseID, s.now())
	})
}

// Answer records one answered repetition; correct answers raise the
// phrase's correct count when flushed.
func (s *ProgressService) Answer(ctx context.Context, sessionID, phraseID string, correct bool) (*TapView, error) {
	return s.record(sessionID, phraseID, func(st *practicesession.SessionState) (counter.TapResult, error) {
		return st.Answer(phraseID, correct, s.now())
	})
}

func (s *ProgressService) record(sessionID, phraseID string, fn func(*practicesession.SessionState) (counter.TapResult, error)) (*TapView, error) {
	live, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	res, err := fn(live.state)
	live.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTap(res.Accepted)
	if res.CapWarning {
		s.metrics.RecordCapWarning()
		s.logger.Warn("daily cap reached",
			"session_id", sessionID,
			"phrase_id", phraseID,
			"today", res.Today,
		)
	}

	return &TapView{
		PhraseID:   phraseID,
		Accepted:   res.Accepted,
		Today:      res.Today,
		Total:      res.Total,
		CapWarning: res.CapWarning,
	}, nil
}

// Next completes the phrase under the cursor, writes its counters and moves
// on. In speak sessions it selects the next least-practiced phrase instead of
// walking a fixed list.
func (s *ProgressService) Next(ctx context.Context, sessionID string) (*SessionView, error) {
	live, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	st := live.state
	if st.Finished() {
		return nil, practicesession.ErrFinished
	}

	view := &SessionView{
		Mode:             st.Mode(),
		SubMode:          st.Config.SubMode,
		Outcome:          practicesession.OutcomeReady,
		Timezone:         live.zone.Name,
		TimezoneFellBack: live.zone.FellBack,
	}

	if cur, ok := st.Current(); ok {
		if err := st.MarkCompleted(cur); err != nil {
			return nil, err
		}
		if err := s.repo.MarkSessionCompleted(ctx, cur); err != nil {
			s.logger.Warn("failed to persist completion", "phrase_id", cur, "error", err)
		}
		t, _ := st.Tracker(cur)
		s.flushTracker(ctx, sessionID, t)
	}

	if st.Mode() == practicesession.ModeSpeak {
		outcome, err := s.nextSpeak(ctx, live)
		if err != nil {
			return nil, err
		}
		view.Outcome = outcome
		s.fillView(view, live)
		return view, nil
	}

	if !st.Advance() {
		view.Outcome = practicesession.OutcomeAllDone
	}
	s.fillView(view, live)
	return view, nil
}

// nextSpeak must be called with live.mu held.
func (s *ProgressService) nextSpeak(ctx context.Context, live *liveSession) (practicesession.Outcome, error) {
	st := live.state
	pool, err := s.repo.ListPhrases(ctx, st.UserID, st.Language)
	if err != nil {
		return "", fmt.Errorf("list phrases: %w", err)
	}

	cfg := st.Config
	cfg.Now = s.now()
	res, err := practicesession.SelectNextSpeak(st.Overlay(pool), cfg)
	if err != nil {
		return "", err
	}
	live.speakRemaining = res.Remaining
	if res.Outcome != practicesession.OutcomeReady {
		st.Advance()
		return res.Outcome, nil
	}

	st.Append(*res.Item, cfg.Now)
	live.phrases[res.Item.ID] = *res.Item
	st.Advance()
	return res.Outcome, nil
}

// flushTracker writes one tracker's pending delta. A failure is logged and
// left pending for RetryPendingFlushes.
func (s *ProgressService) flushTracker(ctx context.Context, sessionID string, t *counter.Tracker) error {
	if !t.HasPending() {
		return nil
	}
	start := time.Now()
	err := t.Flush(ctx, s.repo)
	s.metrics.RecordFlush(err == nil, time.Since(start))
	if err != nil {
		s.logger.Warn("flush failed; will retry",
			"session_id", sessionID,
			"phrase_id", t.PhraseID,
			"error", err,
		)
	}
	return err
}

// flushSession flushes every tracker and joins the failures. Must be called
// with live.mu held.
func (s *ProgressService) flushSession(ctx context.Context, live *liveSession) error {
	var errs []error
	for _, t := range live.state.Trackers() {
		if err := s.flushTracker(ctx, live.state.ID, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Finish writes every pending counter and closes the session. If a write
// fails the session stays registered, closed to taps, until a retry succeeds.
func (s *ProgressService) Finish(ctx context.Context, sessionID string) (*FinishSummary, error) {
	live, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	st := live.state
	st.Finish()
	if cur, ok := st.Current(); ok && st.Mode() == practicesession.ModeSpeak {
		_ = st.MarkCompleted(cur)
	}
	summary := &FinishSummary{
		SessionID: st.ID,
		Items:     st.Len(),
		Completed: st.Completed(),
	}
	for _, t := range st.Trackers() {
		summary.Repetitions += t.Recorded()
	}
	flushErr := s.flushSession(ctx, live)
	live.mu.Unlock()

	if flushErr != nil {
		return summary, flushErr
	}

	s.remove(sessionID)
	s.logger.Info("session finished",
		"session_id", sessionID,
		"items", summary.Items,
		"completed", summary.Completed,
	)
	return summary, nil
}

// Abandon closes a session without waiting for its counters to be written.
// They are flushed in the background. The session is hidden from callers at
// once but stays registered until the write succeeds, so a failed flush is
// picked up by RetryPendingFlushes.
func (s *ProgressService) Abandon(sessionID string) error {
	s.mu.Lock()
	live, ok := s.sessions[sessionID]
	if !ok || live.abandoned {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	live.abandoned = true
	s.mu.Unlock()

	live.mu.Lock()
	live.state.Finish()
	live.mu.Unlock()

	s.flushPool.Submit(sessionID, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		live.mu.Lock()
		err := s.flushSession(ctx, live)
		live.mu.Unlock()
		if err != nil {
			return err
		}
		s.remove(sessionID)
		return nil
	})
	s.logger.Info("session abandoned", "session_id", sessionID)
	return nil
}

// OpenSessions is the number of sessions held in memory.
func (s *ProgressService) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *ProgressService) snapshot() []*liveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*liveSession, 0, len(s.sessions))
	for _, live := range s.sessions {
		out = append(out, live)
	}
	return out
}
