package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS user_sessions (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	expires_at    TIMESTAMP NOT NULL,
	last_accessed TIMESTAMP NOT NULL
);
`

// SQLiteStore persists sessions in a SQLite database so they survive
// server restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the session database at the
// given DSN. A leading sqlite:// scheme is accepted and stripped.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	dsn = strings.TrimPrefix(dsn, "sqlite://")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent session creation.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save stores or replaces a session.
func (s *SQLiteStore) Save(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_sessions (id, username, created_at, expires_at, last_accessed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			expires_at = excluded.expires_at,
			last_accessed = excluded.last_accessed`,
		sess.ID, sess.Username, sess.CreatedAt, sess.ExpiresAt, sess.LastAccessed)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// Get returns a session by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, created_at, expires_at, last_accessed
		FROM user_sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.Username, &sess.CreatedAt, &sess.ExpiresAt, &sess.LastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// Delete removes a session. Deleting a missing session is not an
// error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Touch updates a session's last access time.
func (s *SQLiteStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET last_accessed = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("touch session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
