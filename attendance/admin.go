/*
admin.go - Privileged force transitions

PURPOSE:
  Separate entry points that bypass the policy guard and most state-machine
  preconditions. They are not reachable through the normal transition API:
  Completed is terminal for employees, not for admins.

CONTRACT:
  - A non-empty administrative note is a hard precondition
  - Prior state is never silently discarded: overwritten check-ins/outs are
    preserved inside the new notes via an "[ADMIN OVERRIDE: ...]" tag
  - Every override returns both the before and the after state, and emits
    an audit entry; the audit append is fire-and-forget

SEE ALSO:
  - machine.go: The normal (guarded) transitions
  - store.go: AuditLog interface
*/
package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Override is the before/after pair a force action returns so the caller
// (and the audit trail) can see exactly what changed.
type Override struct {
	Before RecordState
	After  RecordState
}

// =============================================================================
// FORCE CHECK-IN
// =============================================================================

// ForceCheckIn (re)opens today's record, even if it was Completed. Any
// prior check-out and hours are preserved in the notes tag.
func (e *Engine) ForceCheckIn(ctx context.Context, employeeID EmployeeID, actorID, notes string) (*Override, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, ErrNotesRequired
	}
	if err := e.requireEmployee(ctx, employeeID); err != nil {
		return nil, err
	}

	now := e.Clock.Now().UTC()
	key := RecordKey{EmployeeID: employeeID, Day: DayOf(now)}

	unlock := e.locks.lock(key)
	defer unlock()

	rec, breaks, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	before := stateOf(rec, breaks, key)

	if rec == nil {
		rec = &Record{EmployeeID: employeeID, Day: key.Day, CreatedAt: now}
	}
	rec.Notes = joinNotes(preservationTag(rec), notes)
	rec.CheckIn = &now
	rec.CheckOut = nil
	rec.TotalHours = nil
	rec.Status = StatusWorking
	rec.UpdatedAt = now

	if err := e.Store.PutRecord(ctx, *rec); err != nil {
		return nil, storageErr(err)
	}

	after := RecordState{Record: rec.Clone(), Breaks: CloneBreaks(breaks)}
	e.emitAudit(ctx, AuditForceCheckIn, actorID, key, now, before, after)
	return &Override{Before: before, After: after}, nil
}

// =============================================================================
// FORCE CHECK-OUT
// =============================================================================

// ForceCheckOut closes today's record. When no record (or no check-in)
// exists, a default check-in at the configured start of the workday is
// synthesized first so the closed record has sensible hours.
func (e *Engine) ForceCheckOut(ctx context.Context, employeeID EmployeeID, actorID, notes string) (*Override, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, ErrNotesRequired
	}
	if err := e.requireEmployee(ctx, employeeID); err != nil {
		return nil, err
	}

	now := e.Clock.Now().UTC()
	key := RecordKey{EmployeeID: employeeID, Day: DayOf(now)}

	unlock := e.locks.lock(key)
	defer unlock()

	rec, breaks, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	before := stateOf(rec, breaks, key)

	tag := preservationTag(rec)
	if rec == nil {
		rec = &Record{EmployeeID: employeeID, Day: key.Day, CreatedAt: now}
	}
	if rec.CheckIn == nil {
		start := e.defaultCheckIn(ctx, key.Day)
		rec.CheckIn = &start
	}

	if err := e.closeActiveBreaks(ctx, breaks, now); err != nil {
		return nil, err
	}

	elapsed := ElapsedSeconds(rec.CheckIn, &now, now)
	net := NetWorkingSeconds(elapsed, BreakSeconds(breaks, now))
	hours := TotalHours(net)

	rec.Notes = joinNotes(tag, notes)
	rec.CheckOut = &now
	rec.TotalHours = &hours
	rec.Status = StatusCompleted
	rec.UpdatedAt = now

	if err := e.Store.PutRecord(ctx, *rec); err != nil {
		return nil, storageErr(err)
	}

	after := RecordState{Record: rec.Clone(), Breaks: CloneBreaks(breaks)}
	e.emitAudit(ctx, AuditForceCheckOut, actorID, key, now, before, after)
	return &Override{Before: before, After: after}, nil
}

// =============================================================================
// FORCE END ALL BREAKS
// =============================================================================

// ForceEndAllBreaks closes every open break for today and puts the record
// back to Working. Fails ErrNoActiveBreaks when nothing was open.
func (e *Engine) ForceEndAllBreaks(ctx context.Context, employeeID EmployeeID, actorID, notes string) (*Override, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, ErrNotesRequired
	}
	if err := e.requireEmployee(ctx, employeeID); err != nil {
		return nil, err
	}

	now := e.Clock.Now().UTC()
	key := RecordKey{EmployeeID: employeeID, Day: DayOf(now)}

	unlock := e.locks.lock(key)
	defer unlock()

	rec, breaks, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil || ActiveBreak(breaks) == nil {
		return nil, ErrNoActiveBreaks
	}
	before := stateOf(rec, breaks, key)

	if err := e.closeActiveBreaks(ctx, breaks, now); err != nil {
		return nil, err
	}

	rec.Notes = joinNotes(rec.Notes, notes)
	rec.Status = StatusWorking
	rec.UpdatedAt = now
	if err := e.Store.PutRecord(ctx, *rec); err != nil {
		return nil, storageErr(err)
	}

	after := RecordState{Record: rec.Clone(), Breaks: CloneBreaks(breaks)}
	e.emitAudit(ctx, AuditForceEndBreaks, actorID, key, now, before, after)
	return &Override{Before: before, After: after}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) requireEmployee(ctx context.Context, id EmployeeID) error {
	if e.Directory == nil {
		return nil
	}
	emp, err := e.Directory.GetEmployee(ctx, id)
	if err != nil {
		return storageErr(err)
	}
	if emp == nil {
		return ErrEmployeeNotFound
	}
	return nil
}

// defaultCheckIn is the synthetic check-in used when force-closing a day
// that was never opened: the configured start of the workday.
func (e *Engine) defaultCheckIn(ctx context.Context, day Day) time.Time {
	st, err := e.Guard.Policies.Current(ctx)
	if err != nil {
		return day.At(9, 0)
	}
	return st.WorkStart.OnDate(day.Year, day.Month, day.Day)
}

// preservationTag renders the machine-readable trail of the state being
// overwritten, empty when there is nothing to preserve.
func preservationTag(rec *Record) string {
	if rec == nil {
		return ""
	}
	if rec.CheckOut != nil {
		hours := "0"
		if rec.TotalHours != nil {
			hours = rec.TotalHours.String()
		}
		return fmt.Sprintf("[ADMIN OVERRIDE: previous checkout at %s, %sh worked]",
			rec.CheckOut.Format("15:04:05"), hours)
	}
	if rec.CheckIn != nil {
		return fmt.Sprintf("[ADMIN OVERRIDE: previous check-in at %s]",
			rec.CheckIn.Format("15:04:05"))
	}
	return ""
}

func joinNotes(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func stateOf(rec *Record, breaks []Break, key RecordKey) RecordState {
	if rec == nil {
		return RecordState{
			Record: Record{EmployeeID: key.EmployeeID, Day: key.Day, Status: StatusNotStarted},
		}
	}
	return RecordState{Record: rec.Clone(), Breaks: CloneBreaks(breaks)}
}

// emitAudit is fire-and-forget: an audit append failure never fails the
// override, the trail is already in the returned Override value.
func (e *Engine) emitAudit(ctx context.Context, action AuditAction, actorID string, key RecordKey, at time.Time, before, after RecordState) {
	if e.Audit == nil {
		return
	}
	_ = e.Audit.Append(ctx, AuditEntry{
		ID:         uuid.NewString(),
		At:         at,
		ActorID:    actorID,
		Action:     action,
		EmployeeID: key.EmployeeID,
		Day:        key.Day,
		Before:     before,
		After:      after,
	})
}
