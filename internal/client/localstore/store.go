// Package localstore persists the client's session material (token pair and
// subject) in a small sqlite key/value table, so a restarted CLI can resume
// its session.
package localstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/soundcircle/internal/client/models"

	_ "modernc.org/sqlite"
)

// Well-known keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserID       = "user_id"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at dsn.
// Use ":memory:" in tests.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init local store: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM metadata`)
	if err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

// SaveSession stores the full token pair plus subject.
func (s *Store) SaveSession(ctx context.Context, sess *models.Session) error {
	if err := s.Set(ctx, KeyAccessToken, []byte(sess.AccessToken)); err != nil {
		return err
	}
	if err := s.Set(ctx, KeyRefreshToken, []byte(sess.RefreshToken)); err != nil {
		return err
	}
	return s.Set(ctx, KeyUserID, []byte(sess.UserID))
}

// LoadSession returns the cached session, or nil if no tokens are stored.
func (s *Store) LoadSession(ctx context.Context) (*models.Session, error) {
	access, err := s.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if len(access) == 0 {
		return nil, nil
	}
	refresh, err := s.Get(ctx, KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := s.Get(ctx, KeyUserID)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		UserID:       string(userID),
		AccessToken:  string(access),
		RefreshToken: string(refresh),
	}, nil
}
