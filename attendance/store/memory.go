// Package store provides in-memory implementations of the attendance
// persistence interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// MEMORY STORE - RecordStore + EmployeeDirectory + AuditLog in maps
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	records   map[attendance.RecordKey]attendance.Record
	breaks    map[attendance.RecordKey][]attendance.Break
	employees map[attendance.EmployeeID]attendance.Employee
	audit     []attendance.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		records:   make(map[attendance.RecordKey]attendance.Record),
		breaks:    make(map[attendance.RecordKey][]attendance.Break),
		employees: make(map[attendance.EmployeeID]attendance.Employee),
	}
}

// Compile-time interface checks.
var (
	_ attendance.RecordStore       = (*Memory)(nil)
	_ attendance.EmployeeDirectory = (*Memory)(nil)
	_ attendance.AuditLog          = (*Memory)(nil)
)

// =============================================================================
// RECORD STORE
// =============================================================================

func (m *Memory) GetRecord(_ context.Context, key attendance.RecordKey) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (m *Memory) PutRecord(_ context.Context, rec attendance.Record) error {
	m.mu.Lock()
	m.records[rec.Key()] = rec.Clone()
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListBreaks(_ context.Context, key attendance.RecordKey) ([]attendance.Break, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := attendance.CloneBreaks(m.breaks[key])
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) PutBreak(_ context.Context, b attendance.Break) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := b.Key()
	existing := m.breaks[key]
	for i := range existing {
		if existing[i].ID == b.ID {
			existing[i] = b.Clone()
			return nil
		}
	}
	m.breaks[key] = append(existing, b.Clone())
	return nil
}

func (m *Memory) ListByDay(_ context.Context, day attendance.Day) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.Record
	for key, rec := range m.records {
		if key.Day == day {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (m *Memory) ListRange(_ context.Context, employeeID attendance.EmployeeID, from, to attendance.Day) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.Record
	for key, rec := range m.records {
		if key.EmployeeID != employeeID {
			continue
		}
		if key.Day.Before(from) || key.Day.After(to) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) PutEmployee(_ context.Context, e attendance.Employee) error {
	m.mu.Lock()
	m.employees[e.ID] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]attendance.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]attendance.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) Append(_ context.Context, entry attendance.AuditEntry) error {
	m.mu.Lock()
	m.audit = append(m.audit, entry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Query(_ context.Context, filter attendance.AuditFilter) ([]attendance.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.AuditEntry
	// Newest first.
	for i := len(m.audit) - 1; i >= 0; i-- {
		entry := m.audit[i]
		if filter.EmployeeID != nil && entry.EmployeeID != *filter.EmployeeID {
			continue
		}
		if len(filter.Actions) > 0 && !containsAction(filter.Actions, entry.Action) {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func containsAction(actions []attendance.AuditAction, a attendance.AuditAction) bool {
	for _, v := range actions {
		if v == a {
			return true
		}
	}
	return false
}
