/*
handlers.go - HTTP handlers for the attendance engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response and JSON
  serialization, delegates every rule to the engine; no duration math or
  state checks happen here.

ENDPOINTS:
  Attendance (employee-facing):
    POST /api/attendance/{employeeID}/check-in
    POST /api/attendance/{employeeID}/break/start
    POST /api/attendance/{employeeID}/break/end
    POST /api/attendance/{employeeID}/check-out
    GET  /api/attendance/{employeeID}/today
    GET  /api/attendance/{employeeID}/records?from=&to=

  Employees:
    GET/POST /api/employees, GET /api/employees/{id}

  Admin:
    POST /api/admin/attendance/{employeeID}/force-check-in
    POST /api/admin/attendance/{employeeID}/force-check-out
    POST /api/admin/attendance/{employeeID}/force-end-breaks
    GET  /api/admin/attendance?date=YYYY-MM-DD
    GET  /api/admin/settings, PUT /api/admin/settings/{key}
    GET  /api/admin/audit?employeeId=&limit=

ERROR HANDLING:
  Engine error kinds map to status codes:
  - precondition violations -> 409
  - validation failures     -> 400
  - policy denials          -> 403 (body carries reason + nextAllowedAt)
  - lookups                 -> 404
  - storage                 -> 503

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/policy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *attendance.Engine
	Directory attendance.EmployeeDirectory
	Audit     attendance.AuditLog
	Settings  policy.Store

	// PolicyCache, when set, is invalidated after a settings write so the
	// next transition sees the new values immediately.
	PolicyCache *policy.CachedProvider
}

func NewHandler(engine *attendance.Engine, settings policy.Store) *Handler {
	return &Handler{
		Engine:    engine,
		Directory: engine.Directory,
		Audit:     engine.Audit,
		Settings:  settings,
	}
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "employeeID"))

	res, err := h.Engine.CheckIn(r.Context(), employeeID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionDTO(res))
}

func (h *Handler) StartBreak(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "employeeID"))

	var req StartBreakRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	res, err := h.Engine.StartBreak(r.Context(), employeeID, req.Note)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionDTO(res))
}

func (h *Handler) EndBreak(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "employeeID"))

	var req EndBreakRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	res, err := h.Engine.EndBreak(r.Context(), employeeID, req.BreakID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionDTO(res))
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "employeeID"))

	var req CheckOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Engine.CheckOut(r.Context(), employeeID, req.Notes)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionDTO(res))
}

// Today returns the live snapshot for the employee's current day.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "employeeID"))
	day := attendance.DayOf(h.Engine.Clock.Now())

	snap, err := h.Engine.Snapshot(r.Context(), employeeID, day)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// Records lists one employee's records over a day range (inclusive).
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "employeeID"))

	from, err := parseDayParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'from' date", err)
		return
	}
	to, err := parseDayParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'to' date", err)
		return
	}
	if from.IsZero() || to.IsZero() {
		writeError(w, http.StatusBadRequest, "'from' and 'to' dates are required", nil)
		return
	}

	records, err := h.Engine.Store.ListRange(r.Context(), employeeID, from, to)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list records", err)
		return
	}

	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		breaks, err := h.Engine.Store.ListBreaks(r.Context(), rec.Key())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "Failed to list breaks", err)
			return
		}
		dtos = append(dtos, toRecordDTO(rec, breaks))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Directory.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{
			ID:        string(e.ID),
			Name:      e.Name,
			Email:     e.Email,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := attendance.EmployeeID(chi.URLParam(r, "id"))

	e, err := h.Directory.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to get employee", err)
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, EmployeeDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Email:     e.Email,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	e := attendance.Employee{
		ID:        attendance.EmployeeID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: h.Engine.Clock.Now(),
	}
	if err := h.Directory.PutEmployee(r.Context(), e); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, EmployeeDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Email:     e.Email,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) ForceCheckIn(w http.ResponseWriter, r *http.Request) {
	h.force(w, r, h.Engine.ForceCheckIn)
}

func (h *Handler) ForceCheckOut(w http.ResponseWriter, r *http.Request) {
	h.force(w, r, h.Engine.ForceCheckOut)
}

func (h *Handler) ForceEndAllBreaks(w http.ResponseWriter, r *http.Request) {
	h.force(w, r, h.Engine.ForceEndAllBreaks)
}

type forceFunc func(ctx context.Context, employeeID attendance.EmployeeID, actorID, notes string) (*attendance.Override, error)

func (h *Handler) force(w http.ResponseWriter, r *http.Request, op forceFunc) {

	employeeID := attendance.EmployeeID(chi.URLParam(r, "employeeID"))

	var req ForceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	override, err := op(r.Context(), employeeID, req.ActorID, req.Notes)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverrideDTO(override))
}

// DayOverview lists every record for a calendar day with live durations.
func (h *Handler) DayOverview(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'date'", err)
		return
	}
	if day.IsZero() {
		day = attendance.DayOf(h.Engine.Clock.Now())
	}

	records, err := h.Engine.Store.ListByDay(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list records", err)
		return
	}

	dtos := make([]SnapshotDTO, 0, len(records))
	for _, rec := range records {
		snap, err := h.Engine.Snapshot(r.Context(), rec.EmployeeID, day)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		dtos = append(dtos, toSnapshotDTO(snap))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	raw, err := h.Settings.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to load settings", err)
		return
	}

	stored := make(map[string]policy.Setting, len(raw))
	for _, s := range raw {
		stored[s.Key] = s
	}

	// Every known key is reported; unset keys show their effective default.
	defaults := defaultValues()
	dtos := make([]SettingDTO, 0, len(defaults))
	for _, key := range policy.KnownKeys() {
		if s, ok := stored[key]; ok {
			dtos = append(dtos, SettingDTO{
				Key:       s.Key,
				Value:     s.Value,
				UpdatedBy: s.UpdatedBy,
				UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
			})
			continue
		}
		dtos = append(dtos, SettingDTO{Key: key, Value: defaults[key]})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req UpdateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := policy.Validate(key, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid setting", err)
		return
	}

	setting := policy.Setting{
		Key:       key,
		Value:     req.Value,
		UpdatedBy: req.UpdatedBy,
		UpdatedAt: h.Engine.Clock.Now(),
	}
	if err := h.Settings.Put(r.Context(), setting); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to save setting", err)
		return
	}
	if h.PolicyCache != nil {
		h.PolicyCache.Invalidate()
	}
	if h.Audit != nil {
		// Fire-and-forget, same as the force path.
		_ = h.Audit.Append(r.Context(), attendance.AuditEntry{
			ID:      uuid.NewString(),
			At:      setting.UpdatedAt,
			ActorID: setting.UpdatedBy,
			Action:  attendance.AuditSettingsChanged,
		})
	}
	writeJSON(w, http.StatusOK, SettingDTO{
		Key:       setting.Key,
		Value:     setting.Value,
		UpdatedBy: setting.UpdatedBy,
		UpdatedAt: setting.UpdatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeJSON(w, http.StatusOK, []AuditEntryDTO{})
		return
	}

	var filter attendance.AuditFilter
	if v := r.URL.Query().Get("employeeId"); v != "" {
		id := attendance.EmployeeID(v)
		filter.EmployeeID = &id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid 'limit'", err)
			return
		}
		filter.Limit = n
	}

	entries, err := h.Audit.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, entry := range entries {
		dtos[i] = toAuditEntryDTO(entry)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDayParam(r *http.Request, name string) (attendance.Day, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return attendance.Day{}, nil
	}
	return attendance.ParseDay(v)
}

func defaultValues() map[string]string {
	d := policy.Defaults()
	return map[string]string{
		policy.KeyConfigurationEnabled: strconv.FormatBool(d.ConfigurationEnabled),
		policy.KeyWorkStartTime:        d.WorkStart.String(),
		policy.KeyWorkEndTime:          d.WorkEnd.String(),
		policy.KeyBreakDurationLimit:   strconv.Itoa(d.BreakLimitMinutes),
		policy.KeyOvertimeThreshold:    d.OvertimeThresholdHours.String(),
		policy.KeyAutoCheckoutTime:     d.AutoCheckout.String(),
		policy.KeyWeekendWorkAllowed:   strconv.FormatBool(d.WeekendWorkAllowed),
		policy.KeyBreakReminders:       strconv.FormatBool(d.BreakRemindersEnabled),
		policy.KeyAutoRefreshInterval:  strconv.Itoa(d.AutoRefreshSeconds),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps an engine error kind to a status code and body.
func writeEngineError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var pv *attendance.PolicyViolationError
	if errors.As(err, &pv) {
		resp.Reason = pv.Reason
		resp.NextAllowedAt = formatTimePtr(pv.NextAllowedAt)
	}

	status := http.StatusInternalServerError
	switch {
	case attendance.IsValidation(err):
		status = http.StatusBadRequest
	case attendance.IsPrecondition(err):
		status = http.StatusConflict
	case attendance.IsPolicy(err):
		status = http.StatusForbidden
	case attendance.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, attendance.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
