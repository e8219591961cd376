package attendance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/policy"
)

func configuredSettings() policy.Settings {
	// Defaults: configured mode, 09:00-17:00, 60 min breaks, 8h overtime,
	// no weekend work.
	return policy.Defaults()
}

// =============================================================================
// MODE GATING
// =============================================================================

func TestFlexibleMode_AllowsEverything(t *testing.T) {
	// GIVEN: Flexible mode and a 6 AM Saturday
	// WHEN: Checking in and out far outside configured hours
	// THEN: Everything is allowed
	saturday := time.Date(2025, time.March, 8, 6, 0, 0, 0, time.UTC)
	eng, _, clock := newTestEngine(t, flexibleSettings(), saturday)
	ctx := context.Background()

	if _, err := eng.CheckIn(ctx, "emp-1"); err != nil {
		t.Fatalf("flexible check-in blocked: %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := eng.CheckOut(ctx, "emp-1", validNotes); err != nil {
		t.Fatalf("flexible check-out blocked: %v", err)
	}
}

func TestConfiguredMode_BlocksEarlyCheckIn(t *testing.T) {
	early := time.Date(2025, time.March, 10, 8, 59, 0, 0, time.UTC)
	eng, _, _ := newTestEngine(t, configuredSettings(), early)

	_, err := eng.CheckIn(context.Background(), "emp-1")
	if !errors.Is(err, attendance.ErrPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}

	var pv *attendance.PolicyViolationError
	if !errors.As(err, &pv) {
		t.Fatalf("expected PolicyViolationError, got %T", err)
	}
	want := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	if pv.NextAllowedAt == nil || !pv.NextAllowedAt.Equal(want) {
		t.Errorf("expected next allowed at 09:00, got %v", pv.NextAllowedAt)
	}
}

func TestConfiguredMode_CheckInAtWorkStartExactly(t *testing.T) {
	eng, _, _ := newTestEngine(t, configuredSettings(), monday) // 09:00:00
	if _, err := eng.CheckIn(context.Background(), "emp-1"); err != nil {
		t.Fatalf("check-in at work start should succeed: %v", err)
	}
}

func TestConfiguredMode_CheckOutBoundary(t *testing.T) {
	// GIVEN: work_end_time = 17:00 and a checked-in employee
	// WHEN: Checking out at 16:59, then at 17:00:00 exactly
	// THEN: 16:59 fails PolicyViolation, 17:00:00 succeeds
	eng, _, clock := newTestEngine(t, configuredSettings(), monday)
	ctx := context.Background()

	mustCheckIn(t, eng, "emp-1")

	clock.Set(time.Date(2025, time.March, 10, 16, 59, 0, 0, time.UTC))
	_, err := eng.CheckOut(ctx, "emp-1", validNotes)
	if !errors.Is(err, attendance.ErrPolicyViolation) {
		t.Fatalf("expected policy violation at 16:59, got %v", err)
	}
	var pv *attendance.PolicyViolationError
	if errors.As(err, &pv) {
		want := time.Date(2025, time.March, 10, 17, 0, 0, 0, time.UTC)
		if pv.NextAllowedAt == nil || !pv.NextAllowedAt.Equal(want) {
			t.Errorf("expected next allowed at 17:00, got %v", pv.NextAllowedAt)
		}
	}

	clock.Set(time.Date(2025, time.March, 10, 17, 0, 0, 0, time.UTC))
	if _, err := eng.CheckOut(ctx, "emp-1", validNotes); err != nil {
		t.Fatalf("check-out at 17:00:00 exactly should succeed: %v", err)
	}
}

func TestConfiguredMode_WeekendBlocked(t *testing.T) {
	saturday := time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC)
	eng, _, _ := newTestEngine(t, configuredSettings(), saturday)

	_, err := eng.CheckIn(context.Background(), "emp-1")
	if !errors.Is(err, attendance.ErrPolicyViolation) {
		t.Fatalf("expected weekend block, got %v", err)
	}
}

func TestConfiguredMode_WeekendAllowedWhenEnabled(t *testing.T) {
	st := configuredSettings()
	st.WeekendWorkAllowed = true
	saturday := time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC)
	eng, _, _ := newTestEngine(t, st, saturday)

	if _, err := eng.CheckIn(context.Background(), "emp-1"); err != nil {
		t.Fatalf("weekend check-in should be allowed: %v", err)
	}
}

// =============================================================================
// BREAK LIMIT
// =============================================================================

func TestBreakLimit_BlocksOnceReached(t *testing.T) {
	// GIVEN: break_duration_limit = 30 and 30 minutes already taken
	// WHEN: Starting another break
	// THEN: BreakLimitReached
	st := configuredSettings()
	st.BreakLimitMinutes = 30
	eng, _, clock := newTestEngine(t, st, monday)
	ctx := context.Background()

	mustCheckIn(t, eng, "emp-1")
	clock.Advance(time.Hour)
	if _, err := eng.StartBreak(ctx, "emp-1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(30 * time.Minute)
	if _, err := eng.EndBreak(ctx, "emp-1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := eng.StartBreak(ctx, "emp-1", "")
	if !errors.Is(err, attendance.ErrBreakLimitReached) {
		t.Fatalf("expected ErrBreakLimitReached, got %v", err)
	}

	var bl *attendance.BreakLimitError
	if !errors.As(err, &bl) {
		t.Fatalf("expected BreakLimitError, got %T", err)
	}
	if bl.LimitMinutes != 30 || bl.UsedMinutes != 30 {
		t.Errorf("expected 30/30, got %d/%d", bl.UsedMinutes, bl.LimitMinutes)
	}
}

func TestBreakLimit_JustUnderAllowsAnother(t *testing.T) {
	// 29m59s of break floors to 29 whole minutes, still under a 30 min
	// limit, so another break may start.
	st := configuredSettings()
	st.BreakLimitMinutes = 30
	eng, _, clock := newTestEngine(t, st, monday)
	ctx := context.Background()

	mustCheckIn(t, eng, "emp-1")
	clock.Advance(time.Hour)
	if _, err := eng.StartBreak(ctx, "emp-1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(29*time.Minute + 59*time.Second)
	if _, err := eng.EndBreak(ctx, "emp-1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := eng.StartBreak(ctx, "emp-1", ""); err != nil {
		t.Fatalf("expected another break under the limit, got %v", err)
	}
}

// =============================================================================
// OVERTIME WARNING
// =============================================================================

func TestOvertime_WarnsButNeverBlocks(t *testing.T) {
	// GIVEN: overtime_threshold = 8h and a 10-hour session
	// WHEN: Checking out
	// THEN: Success with a warning attached
	eng, _, clock := newTestEngine(t, configuredSettings(), monday)
	ctx := context.Background()

	mustCheckIn(t, eng, "emp-1")
	clock.Set(monday.Add(10 * time.Hour)) // 19:00, past work end

	res, err := eng.CheckOut(ctx, "emp-1", validNotes)
	if err != nil {
		t.Fatalf("overtime must not block checkout: %v", err)
	}
	if res.Warning == "" {
		t.Errorf("expected an overtime warning")
	}
	if res.Record.Status != attendance.StatusCompleted {
		t.Errorf("expected completed, got %s", res.Record.Status)
	}
}

func TestOvertime_NoWarningUnderThreshold(t *testing.T) {
	st := configuredSettings()
	st.OvertimeThresholdHours = decimal.NewFromInt(9)
	eng, _, clock := newTestEngine(t, st, monday)
	ctx := context.Background()

	mustCheckIn(t, eng, "emp-1")
	clock.Set(monday.Add(8*time.Hour + 30*time.Minute))

	res, err := eng.CheckOut(ctx, "emp-1", validNotes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Warning != "" {
		t.Errorf("unexpected warning: %s", res.Warning)
	}
}
