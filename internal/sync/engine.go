package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/anshumat/budgetbox/internal/budget"
	"github.com/anshumat/budgetbox/internal/store"
)

// Engine reconciles the local record store with the server.
type Engine struct {
	store     *store.Store
	transport Transport
	conn      Connectivity
	logger    *log.Logger

	// inFlight is the single-slot guard serializing attempts.
	inFlight atomic.Bool
}

// New creates a sync engine.
//
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	engine := sync.New(st, transport.NewClient(serverURL), monitor, nil)
//	result, err := engine.Sync(ctx)
func New(st *store.Store, transport Transport, conn Connectivity, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		store:     st,
		transport: transport,
		conn:      conn,
		logger:    logger,
	}
}

// Sync runs one reconciliation attempt.
//
// The sequence is:
//  1. If offline, abort with ErrOffline. Nothing was read or written.
//  2. Fetch the server's latest snapshot. A missing record is treated as
//     server time zero, making local unconditionally newer.
//  3. Local strictly newer: push the full local snapshot; the server's
//     returned write timestamp becomes SyncedAt.
//     Server strictly newer: discard local amounts and replace the
//     snapshot with the server's data.
//     Equal: stamp SyncedAt with the shared timestamp, no network write.
//
// A transport failure on fetch or push is returned to the caller with
// the store left exactly as it was before the attempt; the store is
// only mutated after a network call fully succeeds.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrSyncInFlight
	}
	defer e.inFlight.Store(false)

	// Hard precondition, re-checked on every attempt.
	if !e.conn.Online() {
		e.logger.Printf("Offline, cannot sync")
		return Result{}, ErrOffline
	}

	local, err := e.store.CurrentContext(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read local snapshot: %w", err)
	}

	remote, err := e.transport.FetchLatest(ctx, e.store.Identity())
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch latest from server: %w", err)
	}

	// Identity never synced: minus-infinity sentinel.
	var serverTime int64
	if remote != nil {
		serverTime = remote.Timestamp
	}

	switch {
	case local.UpdatedAt > serverTime:
		return e.push(ctx, local)

	case serverTime > local.UpdatedAt:
		return e.pull(ctx, remote)

	default:
		// Already consistent; refresh metadata only.
		if err := e.store.MarkSyncedContext(ctx, local.UpdatedAt); err != nil {
			return Result{}, fmt.Errorf("failed to mark snapshot synced: %w", err)
		}
		e.logger.Printf("Already synced, no changes (t=%d)", local.UpdatedAt)
		return Result{Outcome: OutcomeUpToDate, SyncedAt: local.UpdatedAt}, nil
	}
}

// push writes the full local snapshot to the server. Full-record upsert:
// last local writer wins for this branch by construction.
func (e *Engine) push(ctx context.Context, local budget.Snapshot) (Result, error) {
	ts, err := e.transport.PushUpdate(ctx, e.store.Identity(), local.Amounts)
	if err != nil {
		return Result{}, fmt.Errorf("failed to push snapshot to server: %w", err)
	}

	if err := e.store.MarkSyncedContext(ctx, ts); err != nil {
		return Result{}, fmt.Errorf("failed to mark snapshot synced: %w", err)
	}

	e.logger.Printf("Local is newer, pushed to server (syncedAt=%d)", ts)
	return Result{Outcome: OutcomePushed, SyncedAt: ts}, nil
}

// pull replaces the local snapshot wholesale with the server's data.
func (e *Engine) pull(ctx context.Context, remote *Remote) (Result, error) {
	if err := e.store.ReplaceContext(ctx, remote.Amounts, remote.Timestamp); err != nil {
		return Result{}, fmt.Errorf("failed to replace local snapshot: %w", err)
	}

	e.logger.Printf("Server is newer, pulled to local (syncedAt=%d)", remote.Timestamp)
	return Result{Outcome: OutcomePulled, SyncedAt: remote.Timestamp}, nil
}
