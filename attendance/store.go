/*
store.go - Persistence and audit interfaces consumed by the engine

PURPOSE:
  The engine is storage-agnostic: it takes and returns value objects and
  talks to a keyed record store behind these interfaces. Different
  implementations can use SQLite or in-memory storage.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - attendance/store/memory.go: In-memory for testing

ABSENCE CONVENTION:
  Get* methods return (nil, nil) when the row simply does not exist.
  Errors are reserved for storage failures, which the engine wraps as
  ErrStorageUnavailable.
*/
package attendance

import (
	"context"
	"time"
)

// =============================================================================
// RECORD STORE - Keyed persistence for records and breaks
// =============================================================================

type RecordStore interface {
	// GetRecord returns the record for key, or (nil, nil) when absent.
	GetRecord(ctx context.Context, key RecordKey) (*Record, error)

	// PutRecord upserts by (EmployeeID, Day). The upsert must be atomic so
	// the (employee, day) uniqueness invariant holds under concurrency.
	PutRecord(ctx context.Context, rec Record) error

	// ListBreaks returns all breaks for key ordered by Start ascending.
	ListBreaks(ctx context.Context, key RecordKey) ([]Break, error)

	// PutBreak upserts one break by ID.
	PutBreak(ctx context.Context, b Break) error

	// ListByDay returns every record for a calendar day (admin overview).
	ListByDay(ctx context.Context, day Day) ([]Record, error)

	// ListRange returns one employee's records with from <= Day <= to,
	// ordered by Day ascending.
	ListRange(ctx context.Context, employeeID EmployeeID, from, to Day) ([]Record, error)
}

// =============================================================================
// EMPLOYEE DIRECTORY - Existence checks and listing
// =============================================================================

type EmployeeDirectory interface {
	// GetEmployee returns (nil, nil) when the employee does not exist.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	PutEmployee(ctx context.Context, e Employee) error
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// =============================================================================
// AUDIT LOG - Before/after trail for admin overrides
// =============================================================================

type AuditAction string

const (
	AuditForceCheckIn    AuditAction = "force_check_in"
	AuditForceCheckOut   AuditAction = "force_check_out"
	AuditForceEndBreaks  AuditAction = "force_end_breaks"
	AuditSettingsChanged AuditAction = "settings_changed"
)

// RecordState is a full record-plus-breaks snapshot at one instant.
type RecordState struct {
	Record Record
	Breaks []Break
}

// AuditEntry records who forced what, with the state before and after.
type AuditEntry struct {
	ID         string
	At         time.Time
	ActorID    string
	Action     AuditAction
	EmployeeID EmployeeID
	Day        Day
	Before     RecordState
	After      RecordState
}

// AuditLog persists override trails. The engine treats it as
// fire-and-forget: an append failure never fails the transition.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	EmployeeID *EmployeeID
	Actions    []AuditAction
	Limit      int
}
