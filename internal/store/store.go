// Package store provides the durable local record store for the budget
// snapshot.
//
// The store is the single source of truth on the client: the CLI and the
// sync engine both read and write the same record through the explicit
// mutation API below. It is backed by embedded SQLite with WAL mode so a
// process restart never loses the last known snapshot.
//
// A mutex enforces single-writer discipline. Every mutation is a full
// read-modify-write of the snapshot, applied and flushed before the call
// returns.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anshumat/budgetbox/internal/budget"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// OnlineFunc reports whether the client currently has connectivity.
// The store consults it on every field mutation to decide between
// sync-pending (online) and local-only (offline) status.
type OnlineFunc func() bool

// Store holds the current budget snapshot for one identity.
type Store struct {
	mu       sync.Mutex
	conn     *sql.DB
	path     string
	identity string
	online   OnlineFunc
}

// Open creates or opens the local store at the specified path.
//
// The database is opened in embedded mode with WAL for durability and
// concurrent reads. If no snapshot exists yet for the identity, an
// all-zero local-only snapshot is created.
//
// If online is nil, the store assumes it is always offline.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(".budgetbox/budget.db", "me@example.org", monitor.Online)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path, identity string, online OnlineFunc) (*Store, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity cannot be empty")
	}
	if online == nil {
		online = func() bool { return false }
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	// Single writer; one connection is enough.
	conn.SetMaxOpenConns(1)

	s := &Store{
		conn:     conn,
		path:     path,
		identity: identity,
		online:   online,
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.bootstrap(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the store, checkpointing the WAL first.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.conn = nil
	return nil
}

// Path returns the on-disk location of the store database.
func (s *Store) Path() string {
	return s.path
}

// Identity returns the identity this store is keyed by.
func (s *Store) Identity() string {
	return s.identity
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot (
		identity TEXT PRIMARY KEY,
		income REAL NOT NULL DEFAULT 0,
		bills REAL NOT NULL DEFAULT 0,
		food REAL NOT NULL DEFAULT 0,
		transport REAL NOT NULL DEFAULT 0,
		subs REAL NOT NULL DEFAULT 0,
		misc REAL NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		synced_at INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL
	);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize store schema: %w", err)
	}
	return nil
}

// bootstrap inserts the all-zero local-only snapshot if the identity has
// no row yet.
func (s *Store) bootstrap() error {
	snap := budget.NewSnapshot()
	query := `
	INSERT INTO snapshot (identity, income, bills, food, transport, subs, misc,
		updated_at, synced_at, sync_status)
	VALUES (?, 0, 0, 0, 0, 0, 0, ?, 0, ?)
	ON CONFLICT(identity) DO NOTHING
	`
	if _, err := s.conn.Exec(query, s.identity, snap.UpdatedAt, string(snap.Status)); err != nil {
		return fmt.Errorf("failed to bootstrap snapshot: %w", err)
	}
	return nil
}

// Current returns the stored snapshot.
func (s *Store) Current() (budget.Snapshot, error) {
	return s.CurrentContext(context.Background())
}

// CurrentContext returns the stored snapshot with context support.
func (s *Store) CurrentContext(ctx context.Context) (budget.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

// read loads the snapshot row. Callers must hold s.mu.
func (s *Store) read(ctx context.Context) (budget.Snapshot, error) {
	query := `
	SELECT income, bills, food, transport, subs, misc, updated_at, synced_at, sync_status
	FROM snapshot WHERE identity = ?
	`
	var snap budget.Snapshot
	var status string
	err := s.conn.QueryRowContext(ctx, query, s.identity).Scan(
		&snap.Income,
		&snap.Bills,
		&snap.Food,
		&snap.Transport,
		&snap.Subs,
		&snap.Misc,
		&snap.UpdatedAt,
		&snap.SyncedAt,
		&status,
	)
	if err != nil {
		return budget.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snap.Status = budget.SyncStatus(status)
	return snap, nil
}

// write persists the full snapshot row. Callers must hold s.mu.
func (s *Store) write(ctx context.Context, snap budget.Snapshot) error {
	query := `
	UPDATE snapshot
	SET income = ?, bills = ?, food = ?, transport = ?, subs = ?, misc = ?,
	    updated_at = ?, synced_at = ?, sync_status = ?
	WHERE identity = ?
	`
	_, err := s.conn.ExecContext(ctx, query,
		snap.Income,
		snap.Bills,
		snap.Food,
		snap.Transport,
		snap.Subs,
		snap.Misc,
		snap.UpdatedAt,
		snap.SyncedAt,
		string(snap.Status),
		s.identity,
	)
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// UpdateField sets one category amount.
//
// The value is stored as given, with no clamping or validation.
// UpdatedAt is refreshed (strictly increasing within the process, even
// when the wall clock does not advance between calls) and the sync status
// is recomputed: sync-pending when online, local-only otherwise.
func (s *Store) UpdateField(field budget.Field, value float64) error {
	return s.UpdateFieldContext(context.Background(), field, value)
}

// UpdateFieldContext sets one category amount with context support.
func (s *Store) UpdateFieldContext(ctx context.Context, field budget.Field, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return err
	}

	snap.Set(field, value)

	now := time.Now().UnixMilli()
	if now <= snap.UpdatedAt {
		now = snap.UpdatedAt + 1
	}
	snap.UpdatedAt = now

	if s.online() {
		snap.Status = budget.StatusSyncPending
	} else {
		snap.Status = budget.StatusLocalOnly
	}

	return s.write(ctx, snap)
}

// MarkSynced records a completed reconciliation: SyncedAt is set to the
// server-assigned timestamp and the status becomes synced. Amounts and
// UpdatedAt are untouched.
func (s *Store) MarkSynced(timestamp int64) error {
	return s.MarkSyncedContext(context.Background(), timestamp)
}

// MarkSyncedContext records a completed reconciliation with context support.
func (s *Store) MarkSyncedContext(ctx context.Context, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return err
	}

	snap.SyncedAt = timestamp
	snap.Status = budget.StatusSynced

	return s.write(ctx, snap)
}

// SetSyncPending forces the status to sync-pending without touching
// amounts or UpdatedAt. Callers use it to mark the start of a sync
// attempt so concurrent readers see the in-flight state.
func (s *Store) SetSyncPending() error {
	return s.SetSyncPendingContext(context.Background())
}

// SetSyncPendingContext forces sync-pending status with context support.
func (s *Store) SetSyncPendingContext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return err
	}

	snap.Status = budget.StatusSyncPending

	return s.write(ctx, snap)
}

// Replace overwrites the whole snapshot with server data after a pull
// reconciliation. Local amounts are discarded; UpdatedAt and SyncedAt are
// both stamped with the server timestamp and the status becomes synced.
//
// This is deliberately destructive: the unit of conflict resolution is
// the whole record, last-write-wins by timestamp.
func (s *Store) Replace(amounts budget.Amounts, serverTime int64) error {
	return s.ReplaceContext(context.Background(), amounts, serverTime)
}

// ReplaceContext overwrites the snapshot with context support.
func (s *Store) ReplaceContext(ctx context.Context, amounts budget.Amounts, serverTime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := budget.Snapshot{
		Amounts:   amounts,
		UpdatedAt: serverTime,
		SyncedAt:  serverTime,
		Status:    budget.StatusSynced,
	}

	return s.write(ctx, snap)
}
