package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/speakloop/backend/internal/domain/calendar"
	"github.com/speakloop/backend/internal/domain/phrase"
	"github.com/speakloop/backend/internal/domain/ranking"
)

const phraseColumns = `id, user_id, language, text, translation, correct_count, total_repetitions,
	daily_repetitions, last_activity_at, created_at, session_completed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhrase(r rowScanner) (*phrase.Phrase, error) {
	var p phrase.Phrase
	var lastActivity sql.NullInt64
	var createdAt int64
	err := r.Scan(&p.ID, &p.UserID, &p.Language, &p.Text, &p.Translation, &p.CorrectCount,
		&p.TotalRepetitions, &p.DailyRepetitions, &lastActivity, &createdAt, &p.SessionCompleted)
	if err != nil {
		return nil, err
	}
	p.LastActivityAt = fromNullUnix(lastActivity)
	p.CreatedAt = fromUnix(createdAt)
	return &p, nil
}

// ============================================================================
// Phrases
// ============================================================================

func (s *SQLiteStore) SavePhrase(ctx context.Context, p *phrase.Phrase) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO phrases ("+phraseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.UserID, p.Language, p.Text, p.Translation, p.CorrectCount, p.TotalRepetitions,
		p.DailyRepetitions, toNullUnix(p.LastActivityAt), toUnix(p.CreatedAt), p.SessionCompleted,
	)
	return err
}

func (s *SQLiteStore) GetPhrase(ctx context.Context, id string) (*phrase.Phrase, error) {
	p, err := scanPhrase(s.db.QueryRowContext(ctx,
		"SELECT "+phraseColumns+" FROM phrases WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// ListPhrases returns a user's phrases in one language, oldest first.
func (s *SQLiteStore) ListPhrases(ctx context.Context, userID, language string) ([]phrase.Phrase, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+phraseColumns+" FROM phrases WHERE user_id = ? AND language = ? ORDER BY created_at, id",
		userID, language,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var phrases []phrase.Phrase
	for rows.Next() {
		p, err := scanPhrase(rows)
		if err != nil {
			return nil, err
		}
		phrases = append(phrases, *p)
	}
	return phrases, rows.Err()
}

// CorrectCounts returns the correct-answer count of every phrase a user owns
// in one language.
func (s *SQLiteStore) CorrectCounts(ctx context.Context, userID, language string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT correct_count FROM phrases WHERE user_id = ? AND language = ?",
		userID, language,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ApplyDelta adds a batch of repetitions to a phrase and logs it as one
// activity row, dated d.At when set. The daily counter restarts when the
// previous activity was on an earlier date in the owner's timezone.
func (s *SQLiteStore) ApplyDelta(ctx context.Context, d phrase.Delta) error {
	if d.IsZero() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := scanPhrase(tx.QueryRowContext(ctx,
		"SELECT "+phraseColumns+" FROM phrases WHERE id = ?", d.PhraseID,
	))
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var tz string
	if err := tx.QueryRowContext(ctx, "SELECT timezone FROM users WHERE id = ?", p.UserID).Scan(&tz); err != nil {
		return fmt.Errorf("load owner of %s: %w", p.ID, err)
	}

	now := s.now()
	if !d.At.IsZero() {
		now = d.At
	}
	if err := p.Apply(d, now, calendar.ResolveTimezone(tz).Location); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE phrases SET correct_count = ?, total_repetitions = ?, daily_repetitions = ?, last_activity_at = ?
		 WHERE id = ?`,
		p.CorrectCount, p.TotalRepetitions, p.DailyRepetitions, toNullUnix(p.LastActivityAt), p.ID,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO activity (user_id, phrase_id, language, at, repetitions, correct) VALUES (?, ?, ?, ?, ?, ?)",
		p.UserID, p.ID, p.Language, toUnix(now), d.Repetitions, d.Correct,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ResetSessionFlags clears the session-completed flag on a user's phrases in
// one language. Called when a session starts.
func (s *SQLiteStore) ResetSessionFlags(ctx context.Context, userID, language string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE phrases SET session_completed = FALSE WHERE user_id = ? AND language = ?",
		userID, language,
	)
	return err
}

func (s *SQLiteStore) MarkSessionCompleted(ctx context.Context, phraseID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE phrases SET session_completed = TRUE WHERE id = ?", phraseID,
	)
	return requireOneRow(result, err)
}

// ============================================================================
// Activity
// ============================================================================

// ActivityDates returns the distinct local dates (YYYY-MM-DD, in loc) on
// which the user recorded any repetition, ascending.
func (s *SQLiteStore) ActivityDates(ctx context.Context, userID string, loc *time.Location) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT at FROM activity WHERE user_id = ? AND repetitions > 0 ORDER BY at", userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	seen := make(map[calendar.Date]bool)
	for rows.Next() {
		var at int64
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		d := calendar.LocalDate(fromUnix(at), loc)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d.String())
		}
	}
	return dates, rows.Err()
}

// RankingEvents returns activity in one language since the given instant
// (nil for all time), each weighted by its repetitions and carrying the
// actor's account creation time.
func (s *SQLiteStore) RankingEvents(ctx context.Context, language string, since *time.Time) ([]ranking.Event, error) {
	query := `SELECT a.user_id, a.at, a.repetitions, u.created_at
		FROM activity a JOIN users u ON u.id = a.user_id
		WHERE a.language = ? AND a.repetitions > 0`
	args := []any{language}
	if since != nil {
		query += " AND a.at >= ?"
		args = append(args, toUnix(*since))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ranking.Event
	for rows.Next() {
		var e ranking.Event
		var at, created int64
		if err := rows.Scan(&e.UserID, &at, &e.Weight, &created); err != nil {
			return nil, err
		}
		e.At = fromUnix(at)
		e.AccountCreated = fromUnix(created)
		events = append(events, e)
	}
	return events, rows.Err()
}
