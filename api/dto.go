/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the engine's value
  objects from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and in the engine; DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type StartBreakRequest struct {
	Note string `json:"note"`
}

type EndBreakRequest struct {
	BreakID string `json:"breakId"`
}

type CheckOutRequest struct {
	Notes string `json:"notes"`
}

type ForceRequest struct {
	ActorID string `json:"actorId"`
	Notes   string `json:"notes"`
}

type CreateEmployeeRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UpdateSettingRequest struct {
	Value     string `json:"value"`
	UpdatedBy string `json:"updatedBy"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type BreakDTO struct {
	ID              string  `json:"id"`
	BreakStart      string  `json:"breakStart"`
	BreakEnd        *string `json:"breakEnd,omitempty"`
	DurationMinutes int64   `json:"durationMinutes"`
	Note            string  `json:"note,omitempty"`
}

type RecordDTO struct {
	EmployeeID string     `json:"employeeId"`
	Date       string     `json:"date"`
	CheckIn    *string    `json:"checkIn,omitempty"`
	CheckOut   *string    `json:"checkOut,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Status     string     `json:"status"`
	TotalHours *string    `json:"totalHours,omitempty"`
	Breaks     []BreakDTO `json:"breaks,omitempty"`
}

// TransitionDTO wraps a successful transition with any policy advisory.
type TransitionDTO struct {
	Record  RecordDTO `json:"record"`
	Warning string    `json:"warning,omitempty"`
}

type SnapshotDTO struct {
	Record            RecordDTO `json:"record"`
	ElapsedSeconds    int64     `json:"elapsedSeconds"`
	BreakSeconds      int64     `json:"breakSeconds"`
	NetWorkingSeconds int64     `json:"netWorkingSeconds"`
	BreakMinutes      int64     `json:"breakMinutes"`
	Mode              string    `json:"mode"`
	AsOf              string    `json:"asOf"`
	AutoCheckoutAt    *string   `json:"autoCheckoutAt,omitempty"`
}

type OverrideDTO struct {
	Before RecordDTO `json:"before"`
	After  RecordDTO `json:"after"`
}

type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type SettingDTO struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedBy string `json:"updatedBy,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type AuditEntryDTO struct {
	ID         string    `json:"id"`
	At         string    `json:"at"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	EmployeeID string    `json:"employeeId"`
	Date       string    `json:"date"`
	Before     RecordDTO `json:"before"`
	After      RecordDTO `json:"after"`
}

// ErrorResponse is the uniform error body. Reason and NextAllowedAt are
// present for policy denials.
type ErrorResponse struct {
	Error         string  `json:"error"`
	Details       string  `json:"details,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	NextAllowedAt *string `json:"nextAllowedAt,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toRecordDTO(rec attendance.Record, breaks []attendance.Break) RecordDTO {
	dto := RecordDTO{
		EmployeeID: string(rec.EmployeeID),
		CheckIn:    formatTimePtr(rec.CheckIn),
		CheckOut:   formatTimePtr(rec.CheckOut),
		Notes:      rec.Notes,
		Status:     string(rec.Status),
	}
	if !rec.Day.IsZero() {
		dto.Date = rec.Day.String()
	}
	if rec.TotalHours != nil {
		s := rec.TotalHours.StringFixed(2)
		dto.TotalHours = &s
	}
	for _, b := range breaks {
		dto.Breaks = append(dto.Breaks, toBreakDTO(b))
	}
	return dto
}

func toBreakDTO(b attendance.Break) BreakDTO {
	return BreakDTO{
		ID:              b.ID,
		BreakStart:      b.Start.Format(time.RFC3339),
		BreakEnd:        formatTimePtr(b.End),
		DurationMinutes: b.DurationMinutes,
		Note:            b.Note,
	}
}

func toTransitionDTO(res *attendance.TransitionResult) TransitionDTO {
	return TransitionDTO{
		Record:  toRecordDTO(res.Record, res.Breaks),
		Warning: res.Warning,
	}
}

func toSnapshotDTO(snap *attendance.Snapshot) SnapshotDTO {
	return SnapshotDTO{
		Record:            toRecordDTO(snap.Record, snap.Breaks),
		ElapsedSeconds:    snap.ElapsedSeconds,
		BreakSeconds:      snap.BreakSeconds,
		NetWorkingSeconds: snap.NetWorkingSeconds,
		BreakMinutes:      snap.BreakMinutes,
		Mode:              string(snap.Mode),
		AsOf:              snap.AsOf.Format(time.RFC3339),
		AutoCheckoutAt:    formatTimePtr(snap.AutoCheckoutAt),
	}
}

func toOverrideDTO(o *attendance.Override) OverrideDTO {
	return OverrideDTO{
		Before: toRecordDTO(o.Before.Record, o.Before.Breaks),
		After:  toRecordDTO(o.After.Record, o.After.Breaks),
	}
}

func toAuditEntryDTO(entry attendance.AuditEntry) AuditEntryDTO {
	dto := AuditEntryDTO{
		ID:         entry.ID,
		At:         entry.At.Format(time.RFC3339),
		ActorID:    entry.ActorID,
		Action:     string(entry.Action),
		EmployeeID: string(entry.EmployeeID),
		Before:     toRecordDTO(entry.Before.Record, entry.Before.Breaks),
		After:      toRecordDTO(entry.After.Record, entry.After.Breaks),
	}
	// Settings changes are not tied to an employee's day.
	if !entry.Day.IsZero() {
		dto.Date = entry.Day.String()
	}
	return dto
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
