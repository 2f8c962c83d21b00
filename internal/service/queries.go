package service

import (
	"context"
	"fmt"

	"github.com/speakloop/backend/internal/domain/level"
	"github.com/speakloop/backend/internal/domain/ranking"
	"github.com/speakloop/backend/internal/domain/streak"
)

// StreakView is a user's streak as of now in their own timezone.
type StreakView struct {
	streak.Summary
	Timezone         string `json:"timezone"`
	TimezoneFellBack bool   `json:"timezone_fell_back"`
}

func (s *ProgressService) Streak(ctx context.Context, userID string) (*StreakView, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	zone := s.resolveZone(user)

	dates, err := s.repo.ActivityDates(ctx, userID, zone.Location)
	if err != nil {
		return nil, fmt.Errorf("activity dates: %w", err)
	}

	return &StreakView{
		Summary:          streak.Summarize(dates, s.now(), zone.Location),
		Timezone:         zone.Name,
		TimezoneFellBack: zone.FellBack,
	}, nil
}

// LeaderboardView is the visible top-N plus the caller's own position.
type LeaderboardView struct {
	Period     ranking.Period  `json:"period"`
	Entries    []ranking.Entry `json:"entries"`
	Me         *ranking.Entry  `json:"me,omitempty"`
	Percentile float64         `json:"percentile"`
	Total      int             `json:"total"`
}

// Leaderboard ranks users by repetitions in one language over a period.
// When userID is set the caller's rank is reported even outside the top N.
func (s *ProgressService) Leaderboard(ctx context.Context, language string, period ranking.Period, userID string, limit int) (*LeaderboardView, error) {
	cutoff, err := ranking.Cutoff(period, s.now(), s.rankingZone)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.RankingEvents(ctx, language, cutoff)
	if err != nil {
		return nil, fmt.Errorf("ranking events: %w", err)
	}
	board := ranking.Aggregate(events, cutoff)

	view := &LeaderboardView{
		Period:  period,
		Entries: board.Top(s.rules.LeaderboardSize(limit)),
		Total:   board.Len(),
	}
	if view.Entries == nil {
		view.Entries = []ranking.Entry{}
	}
	if userID != "" {
		me, _ := board.Entry(userID)
		me.UserID = userID
		view.Me = &me
		view.Percentile = board.Percentile(userID)
	}
	return view, nil
}

// LevelSummary counts a user's phrases per mastery level.
func (s *ProgressService) LevelSummary(ctx context.Context, userID, language string) ([]level.Bucket, error) {
	counts, err := s.repo.CorrectCounts(ctx, userID, language)
	if err != nil {
		return nil, fmt.Errorf("correct counts: %w", err)
	}
	return level.Summarize(counts), nil
}
