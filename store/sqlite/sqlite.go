/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements attendance.RecordStore, attendance.EmployeeDirectory,
  attendance.AuditLog and policy.Store on SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  attendance_records: One row per (employee_id, day)
  attendance_breaks:  Breaks owned by a record, cascade-deleted with it
  employees:          Directory entries
  policy_settings:    Singleton-per-key configuration
  audit_log:          Before/after snapshots of admin overrides

INVARIANT ENFORCEMENT AT THE SCHEMA LEVEL:
  - PRIMARY KEY (employee_id, day) plus upsert writes make record creation
    idempotent per (employee, day) even without the engine's per-key lock
  - A partial unique index allows at most one open break per record

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, a single writer at a time.

USAGE:
  st, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - attendance/store.go: Interface definitions
  - attendance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/policy"
)

const timeLayout = time.RFC3339Nano

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Compile-time interface checks.
var (
	_ attendance.RecordStore       = (*Store)(nil)
	_ attendance.EmployeeDirectory = (*Store)(nil)
	_ attendance.AuditLog          = (*Store)(nil)
	_ policy.Store                 = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Daily attendance records, one per (employee, day)
	CREATE TABLE IF NOT EXISTS attendance_records (
		employee_id TEXT NOT NULL,
		day TEXT NOT NULL,
		check_in TEXT,
		check_out TEXT,
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		total_hours TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_records_day
		ON attendance_records(day);

	-- Breaks owned by a record
	CREATE TABLE IF NOT EXISTS attendance_breaks (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		day TEXT NOT NULL,
		break_start TEXT NOT NULL,
		break_end TEXT,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (employee_id, day)
			REFERENCES attendance_records(employee_id, day)
			ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_breaks_record
		ON attendance_breaks(employee_id, day);

	-- CRITICAL: at most one open break per record
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_break
		ON attendance_breaks(employee_id, day)
		WHERE break_end IS NULL;

	-- Employee directory
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	-- Global settings, singleton per key
	CREATE TABLE IF NOT EXISTS policy_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_by TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	-- Admin override trail
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		day TEXT NOT NULL,
		before_json TEXT NOT NULL,
		after_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_employee
		ON audit_log(employee_id, at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (s *Store) GetRecord(ctx context.Context, key attendance.RecordKey) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, day, check_in, check_out, notes, status, total_hours, created_at, updated_at
		FROM attendance_records
		WHERE employee_id = ? AND day = ?`,
		string(key.EmployeeID), key.Day.String())

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) PutRecord(ctx context.Context, rec attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_records
			(employee_id, day, check_in, check_out, notes, status, total_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, day) DO UPDATE SET
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			notes = excluded.notes,
			status = excluded.status,
			total_hours = excluded.total_hours,
			updated_at = excluded.updated_at`,
		string(rec.EmployeeID), rec.Day.String(),
		formatTimePtr(rec.CheckIn), formatTimePtr(rec.CheckOut),
		rec.Notes, string(rec.Status), formatDecimalPtr(rec.TotalHours),
		rec.CreatedAt.UTC().Format(timeLayout), rec.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func (s *Store) ListBreaks(ctx context.Context, key attendance.RecordKey) ([]attendance.Break, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, day, break_start, break_end, duration_minutes, note
		FROM attendance_breaks
		WHERE employee_id = ? AND day = ?
		ORDER BY break_start ASC`,
		string(key.EmployeeID), key.Day.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.Break
	for rows.Next() {
		var (
			b               attendance.Break
			employeeID, day string
			startStr        string
			endStr          sql.NullString
		)
		if err := rows.Scan(&b.ID, &employeeID, &day, &startStr, &endStr, &b.DurationMinutes, &b.Note); err != nil {
			return nil, err
		}
		b.EmployeeID = attendance.EmployeeID(employeeID)
		if b.Day, err = attendance.ParseDay(day); err != nil {
			return nil, err
		}
		if b.Start, err = time.Parse(timeLayout, startStr); err != nil {
			return nil, err
		}
		if b.End, err = parseTimePtr(endStr); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) PutBreak(ctx context.Context, b attendance.Break) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_breaks
			(id, employee_id, day, break_start, break_end, duration_minutes, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			break_end = excluded.break_end,
			duration_minutes = excluded.duration_minutes,
			note = excluded.note`,
		b.ID, string(b.EmployeeID), b.Day.String(),
		b.Start.UTC().Format(timeLayout), formatTimePtr(b.End),
		b.DurationMinutes, b.Note)
	return err
}

func (s *Store) ListByDay(ctx context.Context, day attendance.Day) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, day, check_in, check_out, notes, status, total_hours, created_at, updated_at
		FROM attendance_records
		WHERE day = ?
		ORDER BY employee_id ASC`, day.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Store) ListRange(ctx context.Context, employeeID attendance.EmployeeID, from, to attendance.Day) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, day, check_in, check_out, notes, status, total_hours, created_at, updated_at
		FROM attendance_records
		WHERE employee_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC`,
		string(employeeID), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		e         attendance.Employee
		idStr     string
		email     sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM employees WHERE id = ?`,
		string(id)).Scan(&idStr, &e.Name, &email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ID = attendance.EmployeeID(idStr)
	e.Email = email.String
	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) PutEmployee(ctx context.Context, e attendance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email`,
		string(e.ID), e.Name, e.Email, e.CreatedAt.UTC().Format(timeLayout))
	return err
}

func (s *Store) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM employees ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.Employee
	for rows.Next() {
		var (
			e         attendance.Employee
			idStr     string
			email     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&idStr, &e.Name, &email, &createdAt); err != nil {
			return nil, err
		}
		e.ID = attendance.EmployeeID(idStr)
		e.Email = email.String
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// POLICY SETTINGS
// =============================================================================

func (s *Store) GetAll(ctx context.Context) ([]policy.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_by, updated_at FROM policy_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []policy.Setting
	for rows.Next() {
		var (
			st        policy.Setting
			updatedAt string
		)
		if err := rows.Scan(&st.Key, &st.Value, &st.UpdatedBy, &updatedAt); err != nil {
			return nil, err
		}
		if st.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) Put(ctx context.Context, st policy.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policy_settings (key, value, updated_by, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		st.Key, st.Value, st.UpdatedBy, st.UpdatedAt.UTC().Format(timeLayout))
	return err
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, entry attendance.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	beforeJSON, err := json.Marshal(entry.Before)
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(entry.After)
	if err != nil {
		return err
	}

	// Settings changes carry no day; store it empty rather than a bogus date.
	day := ""
	if !entry.Day.IsZero() {
		day = entry.Day.String()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, employee_id, day, before_json, after_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.At.UTC().Format(timeLayout), entry.ActorID,
		string(entry.Action), string(entry.EmployeeID), day,
		string(beforeJSON), string(afterJSON))
	return err
}

func (s *Store) Query(ctx context.Context, filter attendance.AuditFilter) ([]attendance.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, at, actor_id, action, employee_id, day, before_json, after_json FROM audit_log`
	var (
		conds []string
		args  []any
	)
	if filter.EmployeeID != nil {
		conds = append(conds, "employee_id = ?")
		args = append(args, string(*filter.EmployeeID))
	}
	if len(filter.Actions) > 0 {
		placeholders := ""
		for i, a := range filter.Actions {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, string(a))
		}
		conds = append(conds, "action IN ("+placeholders+")")
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.AuditEntry
	for rows.Next() {
		var (
			entry                 attendance.AuditEntry
			atStr, action         string
			employeeID, dayStr    string
			beforeJSON, afterJSON string
		)
		if err := rows.Scan(&entry.ID, &atStr, &entry.ActorID, &action, &employeeID, &dayStr, &beforeJSON, &afterJSON); err != nil {
			return nil, err
		}
		entry.Action = attendance.AuditAction(action)
		entry.EmployeeID = attendance.EmployeeID(employeeID)
		if entry.At, err = time.Parse(timeLayout, atStr); err != nil {
			return nil, err
		}
		if dayStr != "" {
			if entry.Day, err = attendance.ParseDay(dayStr); err != nil {
				return nil, err
			}
		}
		if err := json.Unmarshal([]byte(beforeJSON), &entry.Before); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(afterJSON), &entry.After); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*attendance.Record, error) {
	var (
		rec                  attendance.Record
		employeeID, dayStr   string
		checkIn, checkOut    sql.NullString
		totalHours           sql.NullString
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&employeeID, &dayStr, &checkIn, &checkOut, &rec.Notes,
		&status, &totalHours, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.EmployeeID = attendance.EmployeeID(employeeID)
	rec.Status = attendance.Status(status)
	if rec.Day, err = attendance.ParseDay(dayStr); err != nil {
		return nil, err
	}
	if rec.CheckIn, err = parseTimePtr(checkIn); err != nil {
		return nil, err
	}
	if rec.CheckOut, err = parseTimePtr(checkOut); err != nil {
		return nil, err
	}
	if totalHours.Valid {
		d, err := decimal.NewFromString(totalHours.String)
		if err != nil {
			return nil, err
		}
		rec.TotalHours = &d
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]attendance.Record, error) {
	var out []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDecimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
