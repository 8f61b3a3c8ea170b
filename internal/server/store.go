// Package server hosts the budget server: the append-only budget table,
// the account table, the HTTP API, and the WebSocket event feed.
//
// The budgets table is append-only: every accepted push inserts a new
// row keyed by identity with a server-assigned write timestamp, and
// reads select only the most recent row per identity. History is never
// rewritten, which keeps concurrent pushes from different devices safe;
// the newest row simply wins on the next fetch.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anshumat/budgetbox/internal/budget"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrUserExists is returned by Register for an identity that already
// has an account.
var ErrUserExists = errors.New("server: user already exists")

// ErrInvalidCredentials is returned by Authenticate when the identity
// or secret does not match.
var ErrInvalidCredentials = errors.New("server: invalid credentials")

// Store is the server-side persistence layer.
type Store struct {
	conn *sql.DB
	path string
}

// OpenStore creates or opens the server database at the given path.
//
// The caller MUST call Close() when done.
func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database, checkpointing the WAL first.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS budgets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_email TEXT NOT NULL,
		payload TEXT NOT NULL,  -- JSON amounts
		updated_at INTEGER NOT NULL  -- server write time, ms since epoch
	);

	CREATE INDEX IF NOT EXISTS idx_budgets_email_time
	    ON budgets(user_email, updated_at DESC);

	CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// BudgetRow is one stored budget write.
type BudgetRow struct {
	Email     string
	Amounts   budget.Amounts
	UpdatedAt int64
}

// AppendBudget stores a new row for the identity and returns the
// server-assigned write timestamp. The timestamp is strictly greater
// than any existing row for the identity so that the newest row is
// unambiguous even when writes land within the same millisecond.
func (s *Store) AppendBudget(ctx context.Context, email string, amounts budget.Amounts) (int64, error) {
	payload, err := json.Marshal(amounts)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal amounts: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx,
		"SELECT MAX(updated_at) FROM budgets WHERE user_email = ?", email).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read last write time: %w", err)
	}

	ts := time.Now().UnixMilli()
	if last.Valid && ts <= last.Int64 {
		ts = last.Int64 + 1
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO budgets (user_email, payload, updated_at) VALUES (?, ?, ?)",
		email, string(payload), ts)
	if err != nil {
		return 0, fmt.Errorf("failed to append budget: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit budget write: %w", err)
	}

	return ts, nil
}

// LatestBudget returns the most recent row for the identity, or
// (nil, nil) if the identity has never pushed.
func (s *Store) LatestBudget(ctx context.Context, email string) (*BudgetRow, error) {
	query := `
	SELECT payload, updated_at
	FROM budgets
	WHERE user_email = ?
	ORDER BY updated_at DESC
	LIMIT 1
	`

	var payload string
	row := BudgetRow{Email: email}
	err := s.conn.QueryRowContext(ctx, query, email).Scan(&payload, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest budget: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &row.Amounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal budget payload: %w", err)
	}

	return &row, nil
}

// BudgetCount returns the total number of stored budget rows for the
// identity. Used by the event feed stats and tests.
func (s *Store) BudgetCount(ctx context.Context, email string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM budgets WHERE user_email = ?", email).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count budgets: %w", err)
	}
	return count, nil
}

// Register creates an account. The secret is stored and compared as an
// opaque string; hardening is out of scope for this service.
func (s *Store) Register(ctx context.Context, email, password string) error {
	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO users (email, password, created_at) VALUES (?, ?, ?) ON CONFLICT(email) DO NOTHING",
		email, password, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check user insert: %w", err)
	}
	if n == 0 {
		return ErrUserExists
	}
	return nil
}

// Authenticate checks the identity and secret.
func (s *Store) Authenticate(ctx context.Context, email, password string) error {
	var stored string
	err := s.conn.QueryRowContext(ctx,
		"SELECT password FROM users WHERE email = ?", email).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("failed to query user: %w", err)
	}
	if stored != password {
		return ErrInvalidCredentials
	}
	return nil
}
