// Package sync implements the offline-first reconciliation protocol
// between the local record store and the server.
//
// One sync attempt runs: connectivity check, fetch of the server's latest
// snapshot, timestamp comparison, then push, pull, or no-op. The whole
// record is the unit of reconciliation: last-write-wins by timestamp,
// no field-level merge. Clock skew between client and server is an
// accepted risk of this policy, not something the engine hides.
//
// The engine performs no retries; retry policy belongs to the caller
// (a manual trigger or the daemon scheduler).
package sync

import (
	"context"
	"errors"

	"github.com/anshumat/budgetbox/internal/budget"
)

var (
	// ErrOffline is returned when connectivity is unavailable at the
	// start of a sync attempt. No network call was made and the store
	// was not touched. Not a transport failure: the caller should simply
	// re-invoke sync later.
	ErrOffline = errors.New("sync: offline")

	// ErrSyncInFlight is returned when another sync attempt for this
	// engine is already running. Attempts are serialized via a
	// single-slot guard; the losing caller should not retry immediately.
	ErrSyncInFlight = errors.New("sync: attempt already in flight")
)

// Remote is the server's latest stored snapshot for an identity.
type Remote struct {
	// Amounts is the payload of the most recent row.
	Amounts budget.Amounts

	// Timestamp is the server-assigned write time of that row, in
	// milliseconds since epoch.
	Timestamp int64
}

// Transport issues the two network calls a reconciliation needs.
//
// Implementations must keep "no record" distinguishable from an outage:
// FetchLatest returns (nil, nil) for an identity that has never synced,
// and a non-nil error only for transport or server failures.
type Transport interface {
	// FetchLatest returns the most recently written record for the
	// identity, or (nil, nil) if none exists.
	FetchLatest(ctx context.Context, identity string) (*Remote, error)

	// PushUpdate upserts the full set of amounts for the identity and
	// returns the write timestamp the server assigned. That returned
	// timestamp, not the client clock, becomes the authoritative
	// SyncedAt.
	PushUpdate(ctx context.Context, identity string, amounts budget.Amounts) (int64, error)
}

// Connectivity exposes the online/offline signal. The engine re-checks
// it at the start of every attempt rather than caching a stale reading.
type Connectivity interface {
	Online() bool
}

// Outcome describes how a sync attempt was resolved.
type Outcome string

const (
	// OutcomePushed means local was strictly newer and was written to
	// the server.
	OutcomePushed Outcome = "pushed"

	// OutcomePulled means the server was strictly newer and the local
	// snapshot was replaced wholesale.
	OutcomePulled Outcome = "pulled"

	// OutcomeUpToDate means both timestamps were equal; only SyncedAt
	// and the status were refreshed, with no network write.
	OutcomeUpToDate Outcome = "up-to-date"
)

// Result reports a completed sync attempt.
type Result struct {
	// Outcome is the branch the reconciliation took.
	Outcome Outcome

	// SyncedAt is the timestamp recorded as the new SyncedAt.
	SyncedAt int64
}
