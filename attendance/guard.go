/*
guard.go - Policy gating for attendance transitions

PURPOSE:
  Consults the policy settings and the clock to allow, deny, or annotate a
  requested transition.

MODES:
  Flexible   (system_configuration_enabled = false):
    every transition is allowed unconditionally.
  Configured (true, or key absent):
    - CheckIn before work_start_time:  hard block, NextAllowedAt set
    - CheckIn on a weekend when weekend work is off: hard block
    - CheckOut before work_end_time:   hard block, NextAllowedAt set
    - StartBreak once accumulated break minutes reach the limit: hard block
    - Overtime past the threshold: warning attached to the decision,
      never a block

  Check-in gating is a hard block, matching the check-out rule. The two
  rules are symmetric on purpose; see DESIGN.md for the rationale.

SEE ALSO:
  - policy/settings.go: The values consulted here
  - machine.go: Converts denials into typed errors
*/
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/policy"
)

// =============================================================================
// ACTIONS AND MODES
// =============================================================================

type Action string

const (
	ActionCheckIn    Action = "check_in"
	ActionStartBreak Action = "start_break"
	ActionEndBreak   Action = "end_break"
	ActionCheckOut   Action = "check_out"
)

type Mode string

const (
	ModeConfigured Mode = "configured"
	ModeFlexible   Mode = "flexible"
)

// =============================================================================
// DECISION
// =============================================================================

// Decision is the guard's verdict on one transition attempt.
type Decision struct {
	Allowed bool

	// Reason and NextAllowedAt are set on denial.
	Reason        string
	NextAllowedAt *time.Time

	// LimitMinutes/UsedMinutes are set when the break limit denied the action.
	LimitMinutes int
	UsedMinutes  int64

	// Warning is an informational annotation on an allowed action
	// (currently only the overtime advisory on check-out).
	Warning string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string, next *time.Time) Decision {
	return Decision{Reason: reason, NextAllowedAt: next}
}

// Err converts a denial into the engine's typed error. Nil when allowed.
func (d Decision) Err(action Action) error {
	if d.Allowed {
		return nil
	}
	if d.LimitMinutes > 0 || d.UsedMinutes > 0 {
		return &BreakLimitError{LimitMinutes: d.LimitMinutes, UsedMinutes: d.UsedMinutes}
	}
	return &PolicyViolationError{Action: action, Reason: d.Reason, NextAllowedAt: d.NextAllowedAt}
}

// =============================================================================
// GUARD
// =============================================================================

type Guard struct {
	Policies policy.Provider
}

func NewGuard(p policy.Provider) *Guard {
	return &Guard{Policies: p}
}

// Mode reports which mode the guard is operating in right now.
func (g *Guard) Mode(ctx context.Context) (Mode, error) {
	st, err := g.Policies.Current(ctx)
	if err != nil {
		return "", storageErr(err)
	}
	if !st.ConfigurationEnabled {
		return ModeFlexible, nil
	}
	return ModeConfigured, nil
}

// Authorize evaluates one transition attempt. rec may be nil (first
// check-in of the day); breaks are all of the day's breaks so far.
func (g *Guard) Authorize(ctx context.Context, action Action, rec *Record, breaks []Break, day Day, now time.Time) (Decision, error) {
	st, err := g.Policies.Current(ctx)
	if err != nil {
		return Decision{}, storageErr(err)
	}
	if !st.ConfigurationEnabled {
		return allow(), nil
	}

	switch action {
	case ActionCheckIn:
		if day.IsWeekend() && !st.WeekendWorkAllowed {
			return deny("weekend work is not allowed", nil), nil
		}
		start := st.WorkStart.OnDate(day.Year, day.Month, day.Day)
		if now.Before(start) {
			return deny(fmt.Sprintf("Check-in only allowed after %s", st.WorkStart), &start), nil
		}

	case ActionStartBreak:
		used := BreakMinutes(breaks, now)
		if used >= int64(st.BreakLimitMinutes) {
			return Decision{
				Reason:       "daily break limit reached",
				LimitMinutes: st.BreakLimitMinutes,
				UsedMinutes:  used,
			}, nil
		}

	case ActionCheckOut:
		end := st.WorkEnd.OnDate(day.Year, day.Month, day.Day)
		if now.Before(end) {
			return deny(fmt.Sprintf("Check-out only allowed after %s", st.WorkEnd), &end), nil
		}
		return Decision{Allowed: true, Warning: g.overtimeWarning(st, rec, breaks, now)}, nil
	}

	return allow(), nil
}

// overtimeWarning annotates a check-out whose net hours exceed the
// threshold. Informational only.
func (g *Guard) overtimeWarning(st policy.Settings, rec *Record, breaks []Break, now time.Time) string {
	if rec == nil {
		return ""
	}
	elapsed := ElapsedSeconds(rec.CheckIn, rec.CheckOut, now)
	net := NetWorkingSeconds(elapsed, BreakSeconds(breaks, now))
	hours := TotalHours(net)
	if hours.GreaterThan(st.OvertimeThresholdHours) {
		return fmt.Sprintf("overtime: %s hours worked exceeds the %s hour threshold",
			hours, st.OvertimeThresholdHours)
	}
	return ""
}
