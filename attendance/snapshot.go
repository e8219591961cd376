/*
snapshot.go - Read-only projection for presentation layers

PURPOSE:
  A Snapshot is everything a status page needs for one employee and one
  day: the record, its breaks, and live durations as of "now", all computed
  through the time accountant so every display agrees.
*/
package attendance

import (
	"context"
	"time"
)

// Snapshot is a point-in-time, read-only view. Durations tick while the
// session is open and freeze once it completes.
type Snapshot struct {
	Record Record
	Breaks []Break

	ElapsedSeconds    int64
	BreakSeconds      int64
	NetWorkingSeconds int64
	BreakMinutes      int64

	Mode Mode
	AsOf time.Time

	// AutoCheckoutAt is the configured auto-checkout instant for the day,
	// set only in Configured mode while the session is still open.
	AutoCheckoutAt *time.Time
}

// Snapshot projects one employee's day. When no record exists, the snapshot
// carries a NotStarted placeholder so callers need no nil checks.
func (e *Engine) Snapshot(ctx context.Context, employeeID EmployeeID, day Day) (*Snapshot, error) {
	now := e.Clock.Now().UTC()
	key := RecordKey{EmployeeID: employeeID, Day: day}

	rec, breaks, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &Record{EmployeeID: employeeID, Day: day, Status: StatusNotStarted}
	}

	mode, err := e.Guard.Mode(ctx)
	if err != nil {
		return nil, err
	}

	elapsed := ElapsedSeconds(rec.CheckIn, rec.CheckOut, now)
	brkSecs := BreakSeconds(breaks, now)

	snap := &Snapshot{
		Record:            rec.Clone(),
		Breaks:            CloneBreaks(breaks),
		ElapsedSeconds:    elapsed,
		BreakSeconds:      brkSecs,
		NetWorkingSeconds: NetWorkingSeconds(elapsed, brkSecs),
		BreakMinutes:      brkSecs / 60,
		Mode:              mode,
		AsOf:              now,
	}

	if mode == ModeConfigured && rec.CheckIn != nil && rec.CheckOut == nil {
		if st, err := e.Guard.Policies.Current(ctx); err == nil {
			at := st.AutoCheckout.OnDate(day.Year, day.Month, day.Day)
			snap.AutoCheckoutAt = &at
		}
	}
	return snap, nil
}
