/*
Package attendance implements the attendance state machine and
time-accounting engine.

PURPOSE:
  This package contains the rules governing how a single employee's daily
  attendance record and its break sub-records transition between states,
  and how elapsed/working/break durations are computed, including "live"
  durations for sessions still in progress.

KEY CONCEPTS IN THIS FILE (types.go):
  - Day: A calendar day (organization-local, UTC-normalized)
  - Record: One employee's attendance for one Day
  - Break: A pause inside a Record; at most one may be open at a time
  - Status: NotStarted -> Working -> {OnBreak <-> Working} -> Completed

DESIGN PRINCIPLES:
  1. Value objects: the engine takes and returns plain values; persistence
     is behind the RecordStore interface
  2. Precision: decimal.Decimal for reported hours, whole seconds as the
     canonical duration unit
  3. One writer per (employee, day): all transitions for a key are
     serialized inside the Engine

USAGE:
  eng := attendance.NewEngine(store, guard, attendance.SystemClock())
  res, err := eng.CheckIn(ctx, "emp-123")

SEE ALSO:
  - accountant.go: Duration arithmetic (single source of truth)
  - machine.go: Transition validation and application
  - guard.go: Policy mode gating
  - admin.go: Privileged force transitions
*/
package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string

// RecordKey uniquely identifies one attendance record: one employee, one day.
type RecordKey struct {
	EmployeeID EmployeeID
	Day        Day
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s@%s", k.EmployeeID, k.Day)
}

// =============================================================================
// DAY - Calendar day (organization-local, normalized to UTC)
// =============================================================================

// Day is a civil date. It is comparable and safe to use as a map key.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDay(year int, month time.Month, day int) Day {
	// Round-trip through time.Date to normalize out-of-range values
	// (e.g. Jan 32 becomes Feb 1).
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Day{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DayOf returns the calendar day containing t, in UTC.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return Day{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Time returns midnight UTC on this day.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// At returns the instant at hh:mm on this day (UTC).
func (d Day) At(hour, minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, time.UTC)
}

func (d Day) AddDays(n int) Day { return DayOf(d.Time().AddDate(0, 0, n)) }

func (d Day) Weekday() time.Weekday { return d.Time().Weekday() }

func (d Day) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Day) IsZero() bool { return d == Day{} }

func (d Day) Before(other Day) bool { return d.Time().Before(other.Time()) }

func (d Day) After(other Day) bool { return d.Time().After(other.Time()) }

func (d Day) String() string { return d.Time().Format("2006-01-02") }

// =============================================================================
// STATUS - Lifecycle of a daily record
// =============================================================================

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusWorking    Status = "working"
	StatusOnBreak    Status = "on_break"
	StatusCompleted  Status = "completed"
)

// =============================================================================
// RECORD - One employee's attendance for one day
// =============================================================================

// Record is the daily attendance record. CheckIn/CheckOut are UTC instants;
// nil means the event has not happened. TotalHours is nil until checkout.
type Record struct {
	EmployeeID EmployeeID
	Day        Day
	CheckIn    *time.Time
	CheckOut   *time.Time
	Notes      string
	Status     Status
	TotalHours *decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r *Record) Key() RecordKey {
	return RecordKey{EmployeeID: r.EmployeeID, Day: r.Day}
}

// Clone returns a deep copy. Stores return clones so callers can mutate
// freely; the admin path keeps a pre-mutation clone for the audit trail.
func (r *Record) Clone() Record {
	out := *r
	if r.CheckIn != nil {
		t := *r.CheckIn
		out.CheckIn = &t
	}
	if r.CheckOut != nil {
		t := *r.CheckOut
		out.CheckOut = &t
	}
	if r.TotalHours != nil {
		h := *r.TotalHours
		out.TotalHours = &h
	}
	return out
}

// =============================================================================
// BREAK - A pause inside a record
// =============================================================================

// Break belongs to exactly one Record. End == nil means the break is still
// running; DurationMinutes is filled in (whole-minute floor) when it ends.
type Break struct {
	ID              string
	EmployeeID      EmployeeID
	Day             Day
	Start           time.Time
	End             *time.Time
	DurationMinutes int64
	Note            string
}

func (b *Break) Key() RecordKey {
	return RecordKey{EmployeeID: b.EmployeeID, Day: b.Day}
}

func (b *Break) Active() bool { return b.End == nil }

func (b *Break) Clone() Break {
	out := *b
	if b.End != nil {
		t := *b.End
		out.End = &t
	}
	return out
}

// CloneBreaks deep-copies a break slice.
func CloneBreaks(breaks []Break) []Break {
	if breaks == nil {
		return nil
	}
	out := make([]Break, len(breaks))
	for i := range breaks {
		out[i] = breaks[i].Clone()
	}
	return out
}

// ActiveBreak returns the most recent break with no end, or nil.
func ActiveBreak(breaks []Break) *Break {
	for i := len(breaks) - 1; i >= 0; i-- {
		if breaks[i].Active() {
			return &breaks[i]
		}
	}
	return nil
}

// =============================================================================
// EMPLOYEE - Directory entry
// =============================================================================

type Employee struct {
	ID        EmployeeID
	Name      string
	Email     string
	CreatedAt time.Time
}
