package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists records in a local SQLite database. Expiry times are
// stored as unix milliseconds; zero means the token does not expire.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS auth_records (
			game_id    TEXT PRIMARY KEY,
			token      TEXT NOT NULL,
			token_type TEXT NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS shared_token (
			id    INTEGER PRIMARY KEY CHECK (id = 1),
			token TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, gameID string) (*Record, error) {
	var rec Record
	var expiresMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT token, token_type, expires_at FROM auth_records WHERE game_id = ?`,
		gameID,
	).Scan(&rec.Token, &rec.TokenType, &expiresMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading auth record: %w", err)
	}
	if expiresMs > 0 {
		rec.ExpiresAt = time.UnixMilli(expiresMs)
	}
	return &rec, nil
}

func (s *SQLiteStore) Save(ctx context.Context, gameID string, rec Record) error {
	var expiresMs int64
	if !rec.ExpiresAt.IsZero() {
		expiresMs = rec.ExpiresAt.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_records (game_id, token, token_type, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			token = excluded.token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		gameID, rec.Token, rec.TokenType, expiresMs, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("saving auth record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_records WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("clearing auth record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadShared(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM shared_token WHERE id = 1`).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading shared token: %w", err)
	}
	return token, nil
}

func (s *SQLiteStore) SaveShared(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shared_token (id, token) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token`,
		token)
	if err != nil {
		return fmt.Errorf("saving shared token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_records`); err != nil {
		return fmt.Errorf("clearing auth records: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM shared_token`); err != nil {
		return fmt.Errorf("clearing shared token: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
