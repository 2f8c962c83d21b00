// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/speakloop/backend/internal/domain/phrase"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock replaces time.Now for activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

func NewSQLite(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ============================================================================
// Users
// ============================================================================

func (s *SQLiteStore) SaveUser(ctx context.Context, u *phrase.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, timezone, created_at, practice_start_at, include_preexisting)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Timezone, toUnix(u.CreatedAt), toNullUnix(u.PracticeStartAt), u.IncludePreexisting,
	)
	return err
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*phrase.User, error) {
	var u phrase.User
	var createdAt int64
	var practiceStart sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, timezone, created_at, practice_start_at, include_preexisting
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Timezone, &createdAt, &practiceStart, &u.IncludePreexisting)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.CreatedAt = fromUnix(createdAt)
	u.PracticeStartAt = fromNullUnix(practiceStart)
	return &u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*phrase.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, timezone, created_at, practice_start_at, include_preexisting
		 FROM users ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*phrase.User
	for rows.Next() {
		var u phrase.User
		var createdAt int64
		var practiceStart sql.NullInt64
		if err := rows.Scan(&u.ID, &u.Name, &u.Timezone, &createdAt, &practiceStart, &u.IncludePreexisting); err != nil {
			return nil, err
		}
		u.CreatedAt = fromUnix(createdAt)
		u.PracticeStartAt = fromNullUnix(practiceStart)
		users = append(users, &u)
	}
	return users, rows.Err()
}

// UpdateUserSettings changes the timezone and the preexisting-phrases toggle.
func (s *SQLiteStore) UpdateUserSettings(ctx context.Context, userID, timezone string, includePreexisting bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET timezone = ?, include_preexisting = ? WHERE id = ?",
		timezone, includePreexisting, userID,
	)
	return requireOneRow(result, err)
}

// SetPracticeStart stores the practice-start watermark. An existing
// watermark is never moved.
func (s *SQLiteStore) SetPracticeStart(ctx context.Context, userID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET practice_start_at = COALESCE(practice_start_at, ?) WHERE id = ?",
		toUnix(at), userID,
	)
	return requireOneRow(result, err)
}

func requireOneRow(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
