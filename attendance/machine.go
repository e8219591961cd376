/*
machine.go - The attendance state machine

PURPOSE:
  Owns one record per (employee, calendar day). Validates and applies the
  CheckIn / StartBreak / EndBreak / CheckOut transitions, consulting the
  policy guard first and the time accountant for every duration.

STATE SET:
  NotStarted -> Working -> {OnBreak <-> Working} -> Completed (terminal).
  Completed has no outgoing transitions except the admin force path
  (admin.go).

CONCURRENCY:
  All transitions for a given (employee, day) key are serialized through a
  per-key mutex, so two near-simultaneous check-ins cannot both succeed.
  The lock table is reference-counted; idle keys are evicted.

INVARIANTS (hold after every transition):
  1. CheckOut is never set while CheckIn is nil
  2. Status == DeriveStatus(record, breaks)
  3. At most one break per record is open; breaks never overlap
  4. At most one record per (employee, day)

SEE ALSO:
  - accountant.go: Duration math used here
  - guard.go: Policy gating consulted here
  - admin.go: Privileged overrides that bypass these preconditions
*/
package attendance

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MinWorkLogLength is the minimum trimmed note length required to check out.
const MinWorkLogLength = 30

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies attendance transitions. Store, Guard and Clock are
// required; Directory and Audit are optional collaborators used by the
// admin force path.
type Engine struct {
	Store     RecordStore
	Guard     *Guard
	Clock     Clock
	Directory EmployeeDirectory
	Audit     AuditLog

	locks keyedLocks
}

func NewEngine(store RecordStore, guard *Guard, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{Store: store, Guard: guard, Clock: clock}
}

// TransitionResult is the updated record after a successful transition,
// with the day's breaks and any non-blocking policy advisory.
type TransitionResult struct {
	Record  Record
	Breaks  []Break
	Warning string
}

// =============================================================================
// CHECK IN
// =============================================================================

// CheckIn opens today's record for the employee. A second check-in on a day
// that already has one is a hard error, not an idempotent retry.
func (e *Engine) CheckIn(ctx context.Context, employeeID EmployeeID) (*TransitionResult, error) {
	now := e.Clock.Now().UTC()
	key := RecordKey{EmployeeID: employeeID, Day: DayOf(now)}

	unlock := e.locks.lock(key)
	defer unlock()

	rec, err := e.Store.GetRecord(ctx, key)
	if err != nil {
		return nil, storageErr(err)
	}
	if rec != nil && rec.CheckIn != nil {
		return nil, ErrAlreadyCheckedIn
	}

	decision, err := e.Guard.Authorize(ctx, ActionCheckIn, rec, nil, key.Day, now)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(ActionCheckIn); err != nil {
		return nil, err
	}

	if rec == nil {
		rec = &Record{
			EmployeeID: employeeID,
			Day:        key.Day,
			CreatedAt:  now,
		}
	}
	rec.CheckIn = &now
	rec.Status = StatusWorking
	rec.UpdatedAt = now

	if err := e.Store.PutRecord(ctx, *rec); err != nil {
		return nil, storageErr(err)
	}
	return &TransitionResult{Record: rec.Clone(), Warning: decision.Warning}, nil
}

// =============================================================================
// START BREAK
// =============================================================================

func (e *Engine) StartBreak(ctx context.Context, employeeID EmployeeID, note string) (*TransitionResult, error) {
	now := e.Clock.Now().UTC()
	key := RecordKey{EmployeeID: employeeID, Day: DayOf(now)}

	unlock := e.locks.lock(key)
	defer unlock()

	rec, breaks, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.CheckIn == nil {
		return nil, ErrNotCheckedIn
	}
	if rec.CheckOut != nil {
		return nil, ErrAlreadyCheckedOut
	}
	if ActiveBreak(breaks) != nil {
		return nil, ErrBreakAlreadyActive
	}

	decision, err := e.Guard.Authorize(ctx, ActionStartBreak, rec, breaks, key.Day, now)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(ActionStartBreak); err != nil {
		return nil, err
	}

	b := Break{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Day:        key.Day,
		Start:      now,
		Note:       strings.TrimSpace(note),
	}
	if err := e.Store.PutBreak(ctx, b); err != nil {
		return nil, storageErr(err)
	}

	rec.Status = StatusOnBreak
	rec.UpdatedAt = now
	if err := e.Store.PutRecord(ctx, *rec); err != nil {
		return nil, storageErr(err)
	}

	breaks = append(breaks, b)
	return &TransitionResult{Record: rec.Clone(), Breaks: CloneBreaks(breaks), Warning: decision.Warning}, nil
}

// =============================================================================
// END BREAK
// =============================================================================

// EndBreak closes a break: the one named by breakID when given, otherwise
// the most recent open break.
func (e *Engine) EndBreak(ctx context.Context, employeeID EmployeeID, breakID string) (*TransitionResult, error) {
	now := e.Clock.Now().UTC()
	key := RecordKey{EmployeeID: employeeID, Day: DayOf(now)}

	unlock := e.locks.lock(key)
	defer unlock()

	rec, breaks, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.CheckIn == nil {
		return nil, ErrNotCheckedIn
	}

	var target *Break
	if breakID != "" {
		for i := range breaks {
			if breaks[i].ID == breakID && breaks[i].Active() {
				target = &breaks[i]
				break
			}
		}
	} else {
		target = ActiveBreak(breaks)
	}
	if target == nil {
		return nil, ErrNoActiveBreak
	}

	target.End = &now
	target.DurationMinutes = BreakDurationMinutes(target.Start, now)
	if err := e.Store.PutBreak(ctx, *target); err != nil {
		return nil, storageErr(err)
	}

	rec.Status = StatusWorking
	rec.UpdatedAt = now
	if err := e.Store.PutRecord(ctx, *rec); err != nil {
		return nil, storageErr(err)
	}
	return &TransitionResult{Record: rec.Clone(), Breaks: CloneBreaks(breaks)}, nil
}

// =============================================================================
// CHECK OUT
// =============================================================================

// CheckOut closes today's record. Notes are mandatory and length-gated;
// total hours are computed from net working seconds over ALL of the day's
// breaks. An open break is closed at the check-out instant so accounting
// is frozen with the record.
func (e *Engine) CheckOut(ctx context.Context, employeeID EmployeeID, notes string) (*TransitionResult, error) {
	now := e.Clock.Now().UTC()
	key := RecordKey{EmployeeID: employeeID, Day: DayOf(now)}

	unlock := e.locks.lock(key)
	defer unlock()

	rec, breaks, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoAttendanceToday
	}
	if rec.CheckIn == nil {
		return nil, ErrNotCheckedIn
	}
	if rec.CheckOut != nil {
		return nil, ErrAlreadyCheckedOut
	}

	trimmed := strings.TrimSpace(notes)
	if trimmed == "" {
		return nil, ErrWorkLogMissing
	}
	if utf8.RuneCountInString(trimmed) < MinWorkLogLength {
		return nil, ErrWorkLogTooShort
	}

	decision, err := e.Guard.Authorize(ctx, ActionCheckOut, rec, breaks, key.Day, now)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(ActionCheckOut); err != nil {
		return nil, err
	}

	if err := e.closeActiveBreaks(ctx, breaks, now); err != nil {
		return nil, err
	}

	elapsed := ElapsedSeconds(rec.CheckIn, &now, now)
	net := NetWorkingSeconds(elapsed, BreakSeconds(breaks, now))
	hours := TotalHours(net)

	rec.CheckOut = &now
	rec.Notes = trimmed
	rec.TotalHours = &hours
	rec.Status = StatusCompleted
	rec.UpdatedAt = now

	if err := e.Store.PutRecord(ctx, *rec); err != nil {
		return nil, storageErr(err)
	}
	return &TransitionResult{Record: rec.Clone(), Breaks: CloneBreaks(breaks), Warning: decision.Warning}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) load(ctx context.Context, key RecordKey) (*Record, []Break, error) {
	rec, err := e.Store.GetRecord(ctx, key)
	if err != nil {
		return nil, nil, storageErr(err)
	}
	if rec == nil {
		return nil, nil, nil
	}
	breaks, err := e.Store.ListBreaks(ctx, key)
	if err != nil {
		return nil, nil, storageErr(err)
	}
	return rec, breaks, nil
}

// closeActiveBreaks ends every open break in-place at the given instant.
func (e *Engine) closeActiveBreaks(ctx context.Context, breaks []Break, at time.Time) error {
	for i := range breaks {
		if !breaks[i].Active() {
			continue
		}
		breaks[i].End = &at
		breaks[i].DurationMinutes = BreakDurationMinutes(breaks[i].Start, at)
		if err := e.Store.PutBreak(ctx, breaks[i]); err != nil {
			return storageErr(err)
		}
	}
	return nil
}

// =============================================================================
// KEYED LOCKS - Per-(employee, day) serialization
// =============================================================================

type keyedLocks struct {
	mu      sync.Mutex
	entries map[RecordKey]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the mutex for key and returns its release func.
func (k *keyedLocks) lock(key RecordKey) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[RecordKey]*lockEntry)
	}
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
