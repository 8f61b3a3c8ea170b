// Package budget provides the data model for the budget snapshot.
//
// A Snapshot is the single unit of reconciliation: six category amounts
// plus sync metadata. The whole record is compared and replaced atomically
// during sync with last-write-wins semantics over the UpdatedAt timestamp.
package budget

import (
	"fmt"
	"time"
)

// SyncStatus describes where a snapshot stands relative to the server.
type SyncStatus string

const (
	// StatusLocalOnly means the snapshot changed while offline and no
	// sync has been attempted since.
	StatusLocalOnly SyncStatus = "local-only"

	// StatusSyncPending means the snapshot changed while online, or a
	// sync attempt is currently in flight.
	StatusSyncPending SyncStatus = "sync-pending"

	// StatusSynced means local and server agreed as of SyncedAt.
	StatusSynced SyncStatus = "synced"
)

// Valid reports whether s is one of the known sync statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusLocalOnly, StatusSyncPending, StatusSynced:
		return true
	}
	return false
}

// Field identifies one of the six budget categories.
//
// Access to amounts goes through this closed enumeration rather than
// string-keyed lookup so an unknown category is a compile-time or
// parse-time error, never a silent no-op.
type Field int

const (
	FieldIncome Field = iota
	FieldBills
	FieldFood
	FieldTransport
	FieldSubs
	FieldMisc
)

// String returns the wire name of the field.
func (f Field) String() string {
	switch f {
	case FieldIncome:
		return "income"
	case FieldBills:
		return "bills"
	case FieldFood:
		return "food"
	case FieldTransport:
		return "transport"
	case FieldSubs:
		return "subs"
	case FieldMisc:
		return "misc"
	default:
		return "unknown"
	}
}

// Fields returns all six category fields in canonical order.
func Fields() []Field {
	return []Field{FieldIncome, FieldBills, FieldFood, FieldTransport, FieldSubs, FieldMisc}
}

// ParseField converts a wire name to a Field.
func ParseField(name string) (Field, error) {
	for _, f := range Fields() {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown budget field %q", name)
}

// Amounts holds the six category amounts. This is the payload pushed to
// and pulled from the server; JSON tags match the server's stored shape.
//
// Amounts are not validated: the store accepts whatever the caller writes,
// including negative numbers.
type Amounts struct {
	Income    float64 `json:"income"`
	Bills     float64 `json:"bills"`
	Food      float64 `json:"food"`
	Transport float64 `json:"transport"`
	Subs      float64 `json:"subs"`
	Misc      float64 `json:"misc"`
}

// Get returns the amount for the given field.
func (a Amounts) Get(f Field) float64 {
	switch f {
	case FieldIncome:
		return a.Income
	case FieldBills:
		return a.Bills
	case FieldFood:
		return a.Food
	case FieldTransport:
		return a.Transport
	case FieldSubs:
		return a.Subs
	case FieldMisc:
		return a.Misc
	default:
		return 0
	}
}

// Set writes the amount for the given field.
func (a *Amounts) Set(f Field, v float64) {
	switch f {
	case FieldIncome:
		a.Income = v
	case FieldBills:
		a.Bills = v
	case FieldFood:
		a.Food = v
	case FieldTransport:
		a.Transport = v
	case FieldSubs:
		a.Subs = v
	case FieldMisc:
		a.Misc = v
	}
}

// Snapshot is the full budget record for one identity.
//
// Timestamps are milliseconds since epoch. SyncedAt is zero until the
// first successful sync.
type Snapshot struct {
	Amounts

	UpdatedAt int64      `json:"updatedAt"`
	SyncedAt  int64      `json:"syncedAt,omitempty"`
	Status    SyncStatus `json:"syncStatus"`
}

// NewSnapshot returns the bootstrap snapshot: all-zero amounts, stamped
// with the current time and local-only status.
func NewSnapshot() Snapshot {
	return Snapshot{
		UpdatedAt: time.Now().UnixMilli(),
		Status:    StatusLocalOnly,
	}
}
