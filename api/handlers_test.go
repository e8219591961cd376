package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/policy"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

var monday = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

const validNotes = "Implemented the quarterly report pipeline and fixed two bugs."

type testAPI struct {
	router   http.Handler
	mem      *store.Memory
	clock    *attendance.FakeClock
	settings *policy.MemoryStore
}

// newTestAPI wires the full stack (memory store, cached policy provider,
// engine, router) the way cmd/server does, minus sqlite.
func newTestAPI(t *testing.T, start time.Time, raw map[string]string) *testAPI {
	t.Helper()
	ctx := context.Background()

	settings := policy.NewMemoryStore()
	for k, v := range raw {
		require.NoError(t, settings.Put(ctx, policy.Setting{Key: k, Value: v, UpdatedAt: start}))
	}

	mem := store.NewMemory()
	clock := attendance.NewFakeClock(start)
	provider := policy.NewCachedProvider(settings, time.Minute)
	guard := attendance.NewGuard(provider)
	eng := attendance.NewEngine(mem, guard, clock)
	eng.Directory = mem
	eng.Audit = mem

	h := api.NewHandler(eng, settings)
	h.PolicyCache = provider

	return &testAPI{
		router:   api.NewRouter(h, "test"),
		mem:      mem,
		clock:    clock,
		settings: settings,
	}
}

func flexible() map[string]string {
	return map[string]string{policy.KeyConfigurationEnabled: "false"}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestAttendance_FullDayOverHTTP(t *testing.T) {
	a := newTestAPI(t, monday, flexible())

	rec := a.do(t, "POST", "/api/attendance/emp-1/check-in", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[api.TransitionDTO](t, rec)
	assert.Equal(t, "working", res.Record.Status)
	assert.NotNil(t, res.Record.CheckIn)

	a.clock.Advance(time.Hour)
	rec = a.do(t, "POST", "/api/attendance/emp-1/break/start", api.StartBreakRequest{Note: "lunch"})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[api.TransitionDTO](t, rec)
	assert.Equal(t, "on_break", res.Record.Status)

	a.clock.Advance(30 * time.Minute)
	rec = a.do(t, "POST", "/api/attendance/emp-1/break/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[api.TransitionDTO](t, rec)
	assert.Equal(t, "working", res.Record.Status)
	require.Len(t, res.Record.Breaks, 1)
	assert.Equal(t, int64(30), res.Record.Breaks[0].DurationMinutes)

	a.clock.Set(monday.Add(8 * time.Hour)) // 17:00
	rec = a.do(t, "POST", "/api/attendance/emp-1/check-out", api.CheckOutRequest{Notes: validNotes})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[api.TransitionDTO](t, rec)
	assert.Equal(t, "completed", res.Record.Status)
	require.NotNil(t, res.Record.TotalHours)
	assert.Equal(t, "7.50", *res.Record.TotalHours)
}

func TestCheckOut_NotCheckedIn_Conflict(t *testing.T) {
	a := newTestAPI(t, monday, flexible())

	rec := a.do(t, "POST", "/api/attendance/emp-1/check-out", api.CheckOutRequest{Notes: validNotes})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckOut_ShortWorkLog_BadRequest(t *testing.T) {
	a := newTestAPI(t, monday, flexible())

	require.Equal(t, http.StatusOK, a.do(t, "POST", "/api/attendance/emp-1/check-in", nil).Code)
	a.clock.Advance(8 * time.Hour)

	rec := a.do(t, "POST", "/api/attendance/emp-1/check-out", api.CheckOutRequest{Notes: "too short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEarlyCheckIn_ForbiddenWithNextAllowedAt(t *testing.T) {
	// Configured mode defaults: work starts at 09:00. The clock says 08:00.
	a := newTestAPI(t, monday.Add(-time.Hour), nil)

	rec := a.do(t, "POST", "/api/attendance/emp-1/check-in", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	body := decode[api.ErrorResponse](t, rec)
	assert.NotEmpty(t, body.Reason)
	require.NotNil(t, body.NextAllowedAt)
	assert.Equal(t, monday.Format(time.RFC3339), *body.NextAllowedAt)
}

func TestToday_PlaceholderSnapshot(t *testing.T) {
	a := newTestAPI(t, monday, flexible())

	rec := a.do(t, "GET", "/api/attendance/emp-1/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decode[api.SnapshotDTO](t, rec)
	assert.Equal(t, "not_started", snap.Record.Status)
	assert.Equal(t, int64(0), snap.ElapsedSeconds)
	assert.Equal(t, "flexible", snap.Mode)
	assert.Equal(t, "2025-03-10", snap.Record.Date)
}

func TestRecords_RequiresRange(t *testing.T) {
	a := newTestAPI(t, monday, flexible())

	assert.Equal(t, http.StatusBadRequest, a.do(t, "GET", "/api/attendance/emp-1/records", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, "GET", "/api/attendance/emp-1/records?from=bogus&to=2025-03-10", nil).Code)

	require.Equal(t, http.StatusOK, a.do(t, "POST", "/api/attendance/emp-1/check-in", nil).Code)
	rec := a.do(t, "GET", "/api/attendance/emp-1/records?from=2025-03-09&to=2025-03-11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]api.RecordDTO](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "emp-1", records[0].EmployeeID)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees_CreateAndFetch(t *testing.T) {
	a := newTestAPI(t, monday, flexible())

	rec := a.do(t, "POST", "/api/employees/", api.CreateEmployeeRequest{ID: "emp-1", Name: "Dana", Email: "dana@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, "GET", "/api/employees/emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	e := decode[api.EmployeeDTO](t, rec)
	assert.Equal(t, "Dana", e.Name)

	assert.Equal(t, http.StatusNotFound, a.do(t, "GET", "/api/employees/emp-ghost", nil).Code)

	rec = a.do(t, "GET", "/api/employees/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.EmployeeDTO](t, rec), 1)
}

func TestEmployees_CreateRejectsBlankFields(t *testing.T) {
	a := newTestAPI(t, monday, flexible())
	rec := a.do(t, "POST", "/api/employees/", api.CreateEmployeeRequest{ID: " ", Name: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_ListReportsDefaultsForUnsetKeys(t *testing.T) {
	a := newTestAPI(t, monday, nil)

	rec := a.do(t, "GET", "/api/admin/settings/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	settings := decode[[]api.SettingDTO](t, rec)
	require.Len(t, settings, 9)

	byKey := make(map[string]string, len(settings))
	for _, s := range settings {
		byKey[s.Key] = s.Value
	}
	assert.Equal(t, "09:00", byKey[policy.KeyWorkStartTime])
	assert.Equal(t, "60", byKey[policy.KeyBreakDurationLimit])
	assert.Equal(t, "true", byKey[policy.KeyConfigurationEnabled])
}

func TestUpdateSetting_RejectsInvalidValue(t *testing.T) {
	a := newTestAPI(t, monday, nil)

	rec := a.do(t, "PUT", "/api/admin/settings/"+policy.KeyWorkStartTime, api.UpdateSettingRequest{Value: "25:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, "PUT", "/api/admin/settings/no_such_key", api.UpdateSettingRequest{Value: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSetting_TakesEffectImmediately(t *testing.T) {
	// GIVEN: Configured mode, clock at 08:00, check-in forbidden
	// WHEN: An admin moves work_start_time to 08:00
	// THEN: The very next check-in succeeds (cache invalidated)
	a := newTestAPI(t, monday.Add(-time.Hour), nil)

	require.Equal(t, http.StatusForbidden, a.do(t, "POST", "/api/attendance/emp-1/check-in", nil).Code)

	rec := a.do(t, "PUT", "/api/admin/settings/"+policy.KeyWorkStartTime,
		api.UpdateSettingRequest{Value: "08:00", UpdatedBy: "admin-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, a.do(t, "POST", "/api/attendance/emp-1/check-in", nil).Code)

	// The settings write itself lands in the audit trail.
	rec = a.do(t, "GET", "/api/admin/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]api.AuditEntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "settings_changed", entries[0].Action)
	assert.Equal(t, "admin-1", entries[0].ActorID)
}

// =============================================================================
// ADMIN OVERRIDES AND AUDIT
// =============================================================================

func TestForceCheckIn_OverHTTP(t *testing.T) {
	a := newTestAPI(t, monday, flexible())

	require.Equal(t, http.StatusCreated,
		a.do(t, "POST", "/api/employees/", api.CreateEmployeeRequest{ID: "emp-1", Name: "Dana"}).Code)

	// Missing notes is a validation failure.
	rec := a.do(t, "POST", "/api/admin/attendance/emp-1/force-check-in", api.ForceRequest{ActorID: "admin-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, "POST", "/api/admin/attendance/emp-1/force-check-in",
		api.ForceRequest{ActorID: "admin-1", Notes: "badge reader outage"})
	require.Equal(t, http.StatusOK, rec.Code)

	override := decode[api.OverrideDTO](t, rec)
	assert.Equal(t, "not_started", override.Before.Status)
	assert.Equal(t, "working", override.After.Status)

	// Unknown employee on the force path is a 404.
	rec = a.do(t, "POST", "/api/admin/attendance/emp-ghost/force-check-in",
		api.ForceRequest{ActorID: "admin-1", Notes: "typo in the id"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditTrail_OverHTTP(t *testing.T) {
	a := newTestAPI(t, monday, flexible())

	require.Equal(t, http.StatusCreated,
		a.do(t, "POST", "/api/employees/", api.CreateEmployeeRequest{ID: "emp-1", Name: "Dana"}).Code)
	require.Equal(t, http.StatusOK,
		a.do(t, "POST", "/api/admin/attendance/emp-1/force-check-in",
			api.ForceRequest{ActorID: "admin-7", Notes: "badge reader outage"}).Code)

	rec := a.do(t, "GET", "/api/admin/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]api.AuditEntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "admin-7", entries[0].ActorID)
	assert.Equal(t, "force_check_in", entries[0].Action)

	// Filtered to a different employee: empty.
	rec = a.do(t, "GET", "/api/admin/audit?employeeId=emp-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.AuditEntryDTO](t, rec))

	assert.Equal(t, http.StatusBadRequest, a.do(t, "GET", "/api/admin/audit?limit=nope", nil).Code)
}

func TestDayOverview(t *testing.T) {
	a := newTestAPI(t, monday, flexible())

	require.Equal(t, http.StatusOK, a.do(t, "POST", "/api/attendance/emp-1/check-in", nil).Code)
	require.Equal(t, http.StatusOK, a.do(t, "POST", "/api/attendance/emp-2/check-in", nil).Code)
	a.clock.Advance(time.Hour)

	rec := a.do(t, "GET", "/api/admin/attendance/?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	snaps := decode[[]api.SnapshotDTO](t, rec)
	require.Len(t, snaps, 2)
	for _, s := range snaps {
		assert.Equal(t, int64(3600), s.ElapsedSeconds)
		assert.Equal(t, "working", s.Record.Status)
	}
}
