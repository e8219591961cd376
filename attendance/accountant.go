/*
accountant.go - Time accounting (the single source of truth for durations)

PURPOSE:
  Pure, stateless duration arithmetic over a record, its breaks, and "now".
  Every display and report path must use these functions; recomputing
  durations elsewhere is how the minutes-vs-seconds drift happens.

CANONICAL UNIT:
  Whole seconds, floored, never negative. Minutes and hours are derived:
  - BreakMinutes = BreakSeconds / 60 (floor)
  - TotalHours   = NetWorkingSeconds / 3600, rounded to 2 decimals

LIVE PROJECTIONS:
  An unfinished session or open break contributes up to "now", so totals
  tick while the employee is working. Once the session/break closes, its
  contribution is frozen.

SEE ALSO:
  - machine.go: Calls these at every transition
  - snapshot.go: Read-only projection built on these
*/
package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

var secondsPerHour = decimal.NewFromInt(3600)

// =============================================================================
// ELAPSED / BREAK / NET SECONDS
// =============================================================================

// ElapsedSeconds returns whole seconds between check-in and check-out, or
// between check-in and now while the session is open. Zero if not checked in.
func ElapsedSeconds(checkIn, checkOut *time.Time, now time.Time) int64 {
	if checkIn == nil {
		return 0
	}
	end := now
	if checkOut != nil {
		end = *checkOut
	}
	return clampSeconds(end.Sub(*checkIn))
}

// BreakSeconds sums whole seconds across all breaks. A finished break
// contributes End-Start; an active break contributes now-Start (live).
func BreakSeconds(breaks []Break, now time.Time) int64 {
	var total int64
	for i := range breaks {
		b := &breaks[i]
		end := now
		if b.End != nil {
			end = *b.End
		}
		total += clampSeconds(end.Sub(b.Start))
	}
	return total
}

// NetWorkingSeconds is elapsed minus break time, floored at zero.
func NetWorkingSeconds(elapsedSeconds, breakSeconds int64) int64 {
	net := elapsedSeconds - breakSeconds
	if net < 0 {
		return 0
	}
	return net
}

// =============================================================================
// DERIVED UNITS - minutes and hours come from seconds, never the reverse
// =============================================================================

// BreakMinutes is the day's break total in whole minutes (floor).
// Used for display and for the break_duration_limit check.
func BreakMinutes(breaks []Break, now time.Time) int64 {
	return BreakSeconds(breaks, now) / 60
}

// BreakDurationMinutes is the stored per-break duration: whole-minute floor
// of the interval, set once when the break ends.
func BreakDurationMinutes(start, end time.Time) int64 {
	return clampSeconds(end.Sub(start)) / 60
}

// TotalHours converts net working seconds to hours rounded to 2 decimals.
func TotalHours(netWorkingSeconds int64) decimal.Decimal {
	return decimal.NewFromInt(netWorkingSeconds).Div(secondsPerHour).Round(2)
}

// =============================================================================
// STATUS DERIVATION
// =============================================================================

// DeriveStatus computes the status implied by a record's fields. The stored
// Status must always agree with this after every transition.
func DeriveStatus(rec *Record, breaks []Break) Status {
	if rec == nil || rec.CheckIn == nil {
		return StatusNotStarted
	}
	if rec.CheckOut != nil {
		return StatusCompleted
	}
	if ActiveBreak(breaks) != nil {
		return StatusOnBreak
	}
	return StatusWorking
}

func clampSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
