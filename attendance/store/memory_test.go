package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

var monday = attendance.Day{Year: 2025, Month: time.March, Day: 10}

func TestGetRecord_AbsentIsNilNil(t *testing.T) {
	m := store.NewMemory()
	rec, err := m.GetRecord(context.Background(), attendance.RecordKey{EmployeeID: "emp-1", Day: monday})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil for absent record, got %+v", rec)
	}
}

func TestPutRecord_UpsertsByKey(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	in := monday.At(9, 0)
	rec := attendance.Record{EmployeeID: "emp-1", Day: monday, CheckIn: &in, Status: attendance.StatusWorking}
	if err := m.PutRecord(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec.Status = attendance.StatusCompleted
	if err := m.PutRecord(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.GetRecord(ctx, rec.Key())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != attendance.StatusCompleted {
		t.Errorf("upsert did not replace: %s", got.Status)
	}

	day, err := m.ListByDay(ctx, monday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(day) != 1 {
		t.Errorf("expected 1 record for the day, got %d", len(day))
	}
}

func TestPutBreak_UpdatesInPlaceAndSortsByStart(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	key := attendance.RecordKey{EmployeeID: "emp-1", Day: monday}

	late := attendance.Break{ID: "b-2", EmployeeID: "emp-1", Day: monday, Start: monday.At(14, 0)}
	early := attendance.Break{ID: "b-1", EmployeeID: "emp-1", Day: monday, Start: monday.At(10, 0)}
	for _, b := range []attendance.Break{late, early} {
		if err := m.PutBreak(ctx, b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Close b-1: same ID must update, not append.
	end := monday.At(10, 30)
	early.End = &end
	early.DurationMinutes = 30
	if err := m.PutBreak(ctx, early); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	breaks, err := m.ListBreaks(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(breaks) != 2 {
		t.Fatalf("expected 2 breaks, got %d", len(breaks))
	}
	if breaks[0].ID != "b-1" || breaks[1].ID != "b-2" {
		t.Errorf("breaks not sorted by start: %s, %s", breaks[0].ID, breaks[1].ID)
	}
	if breaks[0].End == nil || breaks[0].DurationMinutes != 30 {
		t.Errorf("b-1 update lost: %+v", breaks[0])
	}
}

func TestListRange_InclusiveBounds(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	for d := 9; d <= 12; d++ {
		day := attendance.Day{Year: 2025, Month: time.March, Day: d}
		if err := m.PutRecord(ctx, attendance.Record{EmployeeID: "emp-1", Day: day, Status: attendance.StatusNotStarted}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := m.PutRecord(ctx, attendance.Record{EmployeeID: "emp-2", Day: monday, Status: attendance.StatusNotStarted}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	from := attendance.Day{Year: 2025, Month: time.March, Day: 10}
	to := attendance.Day{Year: 2025, Month: time.March, Day: 11}
	got, err := m.ListRange(ctx, "emp-1", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if !got[0].Day.Before(got[1].Day) {
		t.Errorf("records not sorted ascending")
	}
}

func TestAuditQuery_NewestFirstWithFilterAndLimit(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	at := monday.At(9, 0)
	entries := []attendance.AuditEntry{
		{ID: "a-1", At: at, EmployeeID: "emp-1", Action: attendance.AuditForceCheckIn},
		{ID: "a-2", At: at.Add(time.Minute), EmployeeID: "emp-2", Action: attendance.AuditForceCheckOut},
		{ID: "a-3", At: at.Add(2 * time.Minute), EmployeeID: "emp-1", Action: attendance.AuditForceEndBreaks},
	}
	for _, e := range entries {
		if err := m.Append(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, err := m.Query(ctx, attendance.AuditFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a-3" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	id := attendance.EmployeeID("emp-1")
	filtered, err := m.Query(ctx, attendance.AuditFilter{EmployeeID: &id, Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "a-3" {
		t.Fatalf("filter+limit wrong: %+v", filtered)
	}
}
