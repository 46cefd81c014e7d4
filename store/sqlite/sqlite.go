/*
Package sqlite provides the SQLite-backed store for the workforce app.

PURPOSE:
  Implements every persistence interface the domain packages define
  (billing.GenerationStore, billing.AdjustmentStore, attendance.Store,
  leave.Store, messaging.Store) plus the plain CRUD the web screens
  need. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  employees           Directory entries
  admin_users         Credential check for the admin surface
  projects            Billable projects with their billing method
  work_reports        Employee submissions of hours or units
  attendance          Clock-in/clock-out intervals
  leave_requests      Pending/approved/rejected workflow rows
  messages            Internal mail (actors are kind+id pairs)
  calendar_events     Shared calendar
  billing_records     Generated invoice lines (amount + version)
  billing_adjustments Append-only correction ledger

INVARIANT ENFORCEMENT:
  - idx_attendance_open: at most one open interval per employee
  - idx_billing_records_range: no duplicate (project, employee, range)
  - billing_adjustments has INSERT only - no UPDATE, no DELETE, ever
  - amount moves only through UpdateRecordAmount's version-checked
    UPDATE, inside WithTx together with the ledger append

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block and there's a single writer at a time.

DATE STORAGE:
  Day-granular values (report dates, billing ranges) are stored as
  YYYY-MM-DD text so lexicographic comparison matches date order.
  Timestamps are RFC3339 text.

SEE ALSO:
  - billing/engine.go, billing/adjust.go: The store's main consumers
  - cmd/server/main.go: Store lifecycle
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/workforce/attendance"
	"github.com/warp/workforce/billing"
	"github.com/warp/workforce/calendar"
	"github.com/warp/workforce/leave"
	"github.com/warp/workforce/messaging"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite allows one writer, and a ":memory:"
	// database exists per connection.
	db.SetMaxOpenConns(1)

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
	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		department TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS admin_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		billing_method TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS work_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL REFERENCES employees(id),
		project_id INTEGER NOT NULL REFERENCES projects(id),
		date TEXT NOT NULL,
		hours_worked REAL,
		units_completed INTEGER,
		description TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_work_reports_project_date
		ON work_reports(project_id, date);
	CREATE INDEX IF NOT EXISTS idx_work_reports_employee
		ON work_reports(employee_id);

	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL REFERENCES employees(id),
		clock_in_time TEXT NOT NULL,
		clock_out_time TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee
		ON attendance(employee_id, clock_in_time DESC);

	-- CRITICAL: one open interval per employee; clocking in twice fails
	-- here even if the application-level check races.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_open
		ON attendance(employee_id)
		WHERE clock_out_time IS NULL;

	CREATE TABLE IF NOT EXISTS leave_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL REFERENCES employees(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		request_date TEXT NOT NULL,
		admin_notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_kind TEXT NOT NULL,
		sender_id INTEGER NOT NULL,
		recipient_kind TEXT,
		recipient_id INTEGER,
		subject TEXT,
		body TEXT NOT NULL,
		attachment_name TEXT,
		sent_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_recipient
		ON messages(recipient_kind, recipient_id, sent_at DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_sender
		ON messages(sender_kind, sender_id, sent_at DESC);

	CREATE TABLE IF NOT EXISTS calendar_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		event_type TEXT NOT NULL,
		created_by INTEGER REFERENCES admin_users(id)
	);

	CREATE TABLE IF NOT EXISTS billing_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id),
		employee_id INTEGER NOT NULL REFERENCES employees(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		hours_billed REAL,
		units_billed INTEGER,
		amount TEXT NOT NULL,
		base_amount TEXT NOT NULL,
		generation_ref TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		generated_at TEXT NOT NULL
	);

	-- Backstop for the engine's overlap guard: the exact same range can
	-- never be billed twice for an (employee, project) pair.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_billing_records_range
		ON billing_records(project_id, employee_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_billing_records_generated
		ON billing_records(generated_at DESC);

	CREATE TABLE IF NOT EXISTS billing_adjustments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		billing_record_id INTEGER NOT NULL REFERENCES billing_records(id),
		admin_id INTEGER NOT NULL,
		delta TEXT NOT NULL,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_billing_adjustments_record
		ON billing_adjustments(billing_record_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the row-level helpers
// below work inside and outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// Employee is a directory entry.
type Employee struct {
	ID         int64
	FirstName  string
	LastName   string
	Email      string
	Department string
	Active     bool
}

func (e Employee) FullName() string { return e.FirstName + " " + e.LastName }

// SaveEmployee inserts (ID zero) or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp Employee) (*Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if emp.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO employees (first_name, last_name, email, department, is_active)
			 VALUES (?, ?, ?, ?, ?)`,
			emp.FirstName, emp.LastName, emp.Email, emp.Department, emp.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert employee: %w", err)
		}
		emp.ID, _ = res.LastInsertId()
		return &emp, nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE employees SET first_name = ?, last_name = ?, email = ?, department = ?, is_active = ?
		 WHERE id = ?`,
		emp.FirstName, emp.LastName, emp.Email, emp.Department, emp.Active, emp.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update employee: %w", err)
	}
	return &emp, nil
}

// GetEmployee retrieves an employee by ID, or (nil, nil) when absent.
func (s *Store) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var emp Employee
	err := s.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, email, department, is_active FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.FirstName, &emp.LastName, &emp.Email, &emp.Department, &emp.Active)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployees returns employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, first_name, last_name, email, department, is_active FROM employees"
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY last_name, first_name"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var emp Employee
		if err := rows.Scan(&emp.ID, &emp.FirstName, &emp.LastName, &emp.Email, &emp.Department, &emp.Active); err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// CountActiveEmployees returns the number of active directory entries.
func (s *Store) CountActiveEmployees(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM employees WHERE is_active").Scan(&n)
	return n, err
}

// =============================================================================
// ADMIN USERS
// =============================================================================

// AdminUser is a credential row for the admin surface.
type AdminUser struct {
	ID           int64
	Username     string
	PasswordHash string
}

// SaveAdminUser upserts an admin by username.
func (s *Store) SaveAdminUser(ctx context.Context, u AdminUser) (*AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_users (username, password_hash) VALUES (?, ?)
		 ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash`,
		u.Username, u.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save admin user: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM admin_users WHERE username = ?", u.Username,
	).Scan(&u.ID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetAdminByUsername returns the admin, or (nil, nil) when absent.
func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u AdminUser
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash FROM admin_users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// =============================================================================
// PROJECTS
// =============================================================================

// SaveProject inserts (ID zero) or updates a project.
func (s *Store) SaveProject(ctx context.Context, p billing.Project) (*billing.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO projects (name, description, billing_method, is_active)
			 VALUES (?, ?, ?, ?)`,
			p.Name, p.Description, string(p.Method), p.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert project: %w", err)
		}
		p.ID, _ = res.LastInsertId()
		return &p, nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, billing_method = ?, is_active = ?
		 WHERE id = ?`,
		p.Name, p.Description, string(p.Method), p.Active, p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return &p, nil
}

// GetProject retrieves a project, or (nil, nil) when absent.
// Part of billing.GenerationStore.
func (s *Store) GetProject(ctx context.Context, id int64) (*billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p billing.Project
	var method string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, COALESCE(description, ''), billing_method, is_active FROM projects WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Name, &p.Description, &method, &p.Active)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Method = billing.Method(method)
	return &p, nil
}

// ListProjects returns projects ordered by name.
func (s *Store) ListProjects(ctx context.Context, activeOnly bool) ([]billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, name, COALESCE(description, ''), billing_method, is_active FROM projects"
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []billing.Project
	for rows.Next() {
		var p billing.Project
		var method string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &method, &p.Active); err != nil {
			return nil, err
		}
		p.Method = billing.Method(method)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

// CountActiveProjects returns the number of active projects.
func (s *Store) CountActiveProjects(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE is_active").Scan(&n)
	return n, err
}

// =============================================================================
// WORK REPORTS
// =============================================================================

// InsertWorkReport persists a work report and returns it with an ID.
// Measure validation against the project's billing method happens in
// the caller, before this write.
func (s *Store) InsertWorkReport(ctx context.Context, r billing.WorkReport) (*billing.WorkReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO work_reports (employee_id, project_id, date, hours_worked, units_completed, description)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.EmployeeID, r.ProjectID, r.Date.Format(dateLayout),
		nullFloat(r.Hours), nullInt(r.Units), r.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert work report: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return &r, nil
}

// WorkReportsInRange returns all reports for the project with date in
// [start, end]. Part of billing.GenerationStore.
func (s *Store) WorkReportsInRange(ctx context.Context, projectID int64, start, end time.Time) ([]billing.WorkReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee_id, project_id, date, hours_worked, units_completed, COALESCE(description, '')
		 FROM work_reports
		 WHERE project_id = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC, id ASC`,
		projectID, start.Format(dateLayout), end.Format(dateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWorkReports(rows)
}

// WorkReportFilter narrows ListWorkReports. Nil fields match everything.
type WorkReportFilter struct {
	EmployeeID *int64
	ProjectID  *int64
	Start      *time.Time
	End        *time.Time
}

// ListWorkReports returns reports matching the filter, newest first.
func (s *Store) ListWorkReports(ctx context.Context, f WorkReportFilter) ([]billing.WorkReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, employee_id, project_id, date, hours_worked, units_completed, COALESCE(description, '')
		FROM work_reports`
	var conds []string
	var args []any

	if f.EmployeeID != nil {
		conds = append(conds, "employee_id = ?")
		args = append(args, *f.EmployeeID)
	}
	if f.ProjectID != nil {
		conds = append(conds, "project_id = ?")
		args = append(args, *f.ProjectID)
	}
	if f.Start != nil {
		conds = append(conds, "date >= ?")
		args = append(args, f.Start.Format(dateLayout))
	}
	if f.End != nil {
		conds = append(conds, "date <= ?")
		args = append(args, f.End.Format(dateLayout))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWorkReports(rows)
}

func scanWorkReports(rows *sql.Rows) ([]billing.WorkReport, error) {
	var reports []billing.WorkReport
	for rows.Next() {
		var (
			r     billing.WorkReport
			date  string
			hours sql.NullFloat64
			units sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.ProjectID, &date, &hours, &units, &r.Description); err != nil {
			return nil, err
		}
		r.Date, _ = time.Parse(dateLayout, date)
		if hours.Valid {
			v := hours.Float64
			r.Hours = &v
		}
		if units.Valid {
			v := units.Int64
			r.Units = &v
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// =============================================================================
// ATTENDANCE (attendance.Store interface)
// =============================================================================

// OpenInterval returns the most recent open interval for the employee,
// or (nil, nil) when there is none.
func (s *Store) OpenInterval(ctx context.Context, employeeID int64) (*attendance.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		iv      attendance.Interval
		clockIn string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, employee_id, clock_in_time FROM attendance
		 WHERE employee_id = ? AND clock_out_time IS NULL
		 ORDER BY clock_in_time DESC LIMIT 1`,
		employeeID,
	).Scan(&iv.ID, &iv.EmployeeID, &clockIn)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	iv.ClockIn, _ = time.Parse(time.RFC3339, clockIn)
	return &iv, nil
}

// InsertInterval persists a new open interval. The partial unique index
// converts a racing double clock-in into ErrAlreadyClockedIn.
func (s *Store) InsertInterval(ctx context.Context, iv attendance.Interval) (*attendance.Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO attendance (employee_id, clock_in_time) VALUES (?, ?)",
		iv.EmployeeID, iv.ClockIn.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, attendance.ErrAlreadyClockedIn
		}
		return nil, fmt.Errorf("failed to insert attendance: %w", err)
	}
	iv.ID, _ = res.LastInsertId()
	return &iv, nil
}

// CloseInterval sets the clock-out time on an interval.
func (s *Store) CloseInterval(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE attendance SET clock_out_time = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), id,
	)
	return err
}

// LatestInterval returns the most recent interval for an employee, open
// or closed, or (nil, nil) when the employee never clocked in.
func (s *Store) LatestInterval(ctx context.Context, employeeID int64) (*attendance.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		iv       attendance.Interval
		clockIn  string
		clockOut sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, employee_id, clock_in_time, clock_out_time FROM attendance
		 WHERE employee_id = ?
		 ORDER BY clock_in_time DESC LIMIT 1`,
		employeeID,
	).Scan(&iv.ID, &iv.EmployeeID, &clockIn, &clockOut)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	iv.ClockIn, _ = time.Parse(time.RFC3339, clockIn)
	if clockOut.Valid {
		t, _ := time.Parse(time.RFC3339, clockOut.String)
		iv.ClockOut = &t
	}
	return &iv, nil
}

// CountClockedIn returns the number of currently open intervals.
func (s *Store) CountClockedIn(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance WHERE clock_out_time IS NULL",
	).Scan(&n)
	return n, err
}

// =============================================================================
// LEAVE REQUESTS (leave.Store interface)
// =============================================================================

// InsertRequest persists a new leave request.
func (s *Store) InsertRequest(ctx context.Context, req leave.Request) (*leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leave_requests (employee_id, start_date, end_date, leave_type, status, request_date, admin_notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.EmployeeID, req.Start.Format(dateLayout), req.End.Format(dateLayout),
		req.Type, string(req.Status), req.RequestedAt.UTC().Format(time.RFC3339), req.AdminNotes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert leave request: %w", err)
	}
	req.ID, _ = res.LastInsertId()
	return &req, nil
}

// GetRequest returns the request, or (nil, nil) when absent.
func (s *Store) GetRequest(ctx context.Context, id int64) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, employee_id, start_date, end_date, leave_type, status, request_date, COALESCE(admin_notes, '')
		 FROM leave_requests WHERE id = ?`, id)

	req, err := scanLeaveRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// DecideRequest moves a request out of pending. The WHERE clause makes
// the decision conditional, so a decided request can never be flipped.
func (s *Store) DecideRequest(ctx context.Context, id int64, status leave.Status, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE leave_requests SET status = ?, admin_notes = ? WHERE id = ? AND status = ?",
		string(status), notes, id, string(leave.StatusPending),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM leave_requests WHERE id = ?", id,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return leave.ErrRequestNotFound
		}
		return leave.ErrAlreadyDecided
	}
	return nil
}

// ListLeaveRequests returns all requests, newest first.
func (s *Store) ListLeaveRequests(ctx context.Context) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee_id, start_date, end_date, leave_type, status, request_date, COALESCE(admin_notes, '')
		 FROM leave_requests ORDER BY request_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []leave.Request
	for rows.Next() {
		req, err := scanLeaveRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// CountPendingLeave returns the number of undecided requests.
func (s *Store) CountPendingLeave(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leave_requests WHERE status = ?", string(leave.StatusPending),
	).Scan(&n)
	return n, err
}

func scanLeaveRequest(scan func(...any) error) (*leave.Request, error) {
	var (
		req               leave.Request
		start, end        string
		status, requested string
	)
	err := scan(&req.ID, &req.EmployeeID, &start, &end, &req.Type, &status, &requested, &req.AdminNotes)
	if err != nil {
		return nil, err
	}
	req.Start, _ = time.Parse(dateLayout, start)
	req.End, _ = time.Parse(dateLayout, end)
	req.Status = leave.Status(status)
	req.RequestedAt, _ = time.Parse(time.RFC3339, requested)
	return &req, nil
}

// =============================================================================
// MESSAGES (messaging.Store interface)
// =============================================================================

// InsertMessage persists a message.
func (s *Store) InsertMessage(ctx context.Context, m messaging.Message) (*messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recipientKind, recipientID any
	if m.Recipient != nil {
		recipientKind = string(m.Recipient.Kind)
		recipientID = m.Recipient.ID
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender_kind, sender_id, recipient_kind, recipient_id, subject, body, attachment_name, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(m.Sender.Kind), m.Sender.ID, recipientKind, recipientID,
		m.Subject, m.Body, m.AttachmentName, m.SentAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return &m, nil
}

// Inbox returns direct messages to the actor plus broadcasts, newest first.
func (s *Store) Inbox(ctx context.Context, actor messaging.Actor) ([]messaging.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_kind, sender_id, recipient_kind, recipient_id, COALESCE(subject, ''), body, COALESCE(attachment_name, ''), sent_at
		 FROM messages
		 WHERE (recipient_kind = ? AND recipient_id = ?) OR recipient_kind IS NULL
		 ORDER BY sent_at DESC, id DESC`,
		string(actor.Kind), actor.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Outbox returns messages sent by the actor, newest first.
func (s *Store) Outbox(ctx context.Context, actor messaging.Actor) ([]messaging.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_kind, sender_id, recipient_kind, recipient_id, COALESCE(subject, ''), body, COALESCE(attachment_name, ''), sent_at
		 FROM messages
		 WHERE sender_kind = ? AND sender_id = ?
		 ORDER BY sent_at DESC, id DESC`,
		string(actor.Kind), actor.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]messaging.Message, error) {
	var messages []messaging.Message
	for rows.Next() {
		var (
			m             messaging.Message
			senderKind    string
			recipientKind sql.NullString
			recipientID   sql.NullInt64
			sentAt        string
		)
		if err := rows.Scan(&m.ID, &senderKind, &m.Sender.ID, &recipientKind, &recipientID,
			&m.Subject, &m.Body, &m.AttachmentName, &sentAt); err != nil {
			return nil, err
		}
		m.Sender.Kind = messaging.ActorKind(senderKind)
		if recipientKind.Valid {
			m.Recipient = &messaging.Actor{
				Kind: messaging.ActorKind(recipientKind.String),
				ID:   recipientID.Int64,
			}
		}
		m.SentAt, _ = time.Parse(time.RFC3339, sentAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// =============================================================================
// CALENDAR EVENTS
// =============================================================================

// SaveEvent inserts (ID zero) or updates a calendar event.
func (s *Store) SaveEvent(ctx context.Context, e calendar.Event) (*calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO calendar_events (title, description, start_time, end_time, event_type, created_by)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.Title, e.Description,
			e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339),
			string(e.Type), nullInt(e.CreatedBy),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert event: %w", err)
		}
		e.ID, _ = res.LastInsertId()
		return &e, nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE calendar_events SET title = ?, description = ?, start_time = ?, end_time = ?, event_type = ?
		 WHERE id = ?`,
		e.Title, e.Description,
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339),
		string(e.Type), e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return &e, nil
}

// GetEvent returns an event, or (nil, nil) when absent.
func (s *Store) GetEvent(ctx context.Context, id int64) (*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		e          calendar.Event
		start, end string
		eventType  string
		createdBy  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, COALESCE(description, ''), start_time, end_time, event_type, created_by
		 FROM calendar_events WHERE id = ?`, id,
	).Scan(&e.ID, &e.Title, &e.Description, &start, &end, &eventType, &createdBy)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Start, _ = time.Parse(time.RFC3339, start)
	e.End, _ = time.Parse(time.RFC3339, end)
	e.Type = calendar.EventType(eventType)
	if createdBy.Valid {
		v := createdBy.Int64
		e.CreatedBy = &v
	}
	return &e, nil
}

// ListEvents returns all events ordered by start time.
func (s *Store) ListEvents(ctx context.Context) ([]calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, COALESCE(description, ''), start_time, end_time, event_type, created_by
		 FROM calendar_events ORDER BY start_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []calendar.Event
	for rows.Next() {
		var (
			e          calendar.Event
			start, end string
			eventType  string
			createdBy  sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &start, &end, &eventType, &createdBy); err != nil {
			return nil, err
		}
		e.Start, _ = time.Parse(time.RFC3339, start)
		e.End, _ = time.Parse(time.RFC3339, end)
		e.Type = calendar.EventType(eventType)
		if createdBy.Valid {
			v := createdBy.Int64
			e.CreatedBy = &v
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM calendar_events WHERE id = ?", id)
	return err
}

// =============================================================================
// BILLING RECORDS (billing.GenerationStore interface)
// =============================================================================

// OverlappingRecord returns an existing record whose range overlaps
// [start, end] for the (project, employee) pair, or (nil, nil).
func (s *Store) OverlappingRecord(ctx context.Context, projectID, employeeID int64, start, end time.Time) (*billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		recordSelect+`
		 WHERE project_id = ? AND employee_id = ? AND start_date <= ? AND end_date >= ?
		 LIMIT 1`,
		projectID, employeeID, end.Format(dateLayout), start.Format(dateLayout),
	)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveRecords persists all records of one generation pass atomically.
func (s *Store) SaveRecords(ctx context.Context, records []billing.Record) ([]billing.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	saved := make([]billing.Record, 0, len(records))
	for _, rec := range records {
		res, err := sqlTx.ExecContext(ctx,
			`INSERT INTO billing_records
			 (project_id, employee_id, start_date, end_date, hours_billed, units_billed,
			  amount, base_amount, generation_ref, version, generated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ProjectID, rec.EmployeeID,
			rec.Start.Format(dateLayout), rec.End.Format(dateLayout),
			nullFloat(rec.HoursBilled), nullInt(rec.UnitsBilled),
			rec.Amount.String(), rec.BaseAmount.String(),
			rec.GenerationRef, rec.Version,
			rec.GeneratedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return nil, &billing.OverlapError{
					ProjectID:  rec.ProjectID,
					EmployeeID: rec.EmployeeID,
				}
			}
			return nil, fmt.Errorf("failed to insert billing record: %w", err)
		}
		rec.ID, _ = res.LastInsertId()
		saved = append(saved, rec)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

// GetRecord returns the record, or (nil, nil) when absent.
// Part of billing.AdjustmentStore.
func (s *Store) GetRecord(ctx context.Context, id int64) (*billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecord(ctx, s.db, id)
}

// UpdateRecordAmount applies the version-checked amount update.
// Part of billing.AdjustmentStore.
func (s *Store) UpdateRecordAmount(ctx context.Context, id int64, amount decimal.Decimal, expectVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRecordAmount(ctx, s.db, id, amount, expectVersion)
}

// AppendAdjustment inserts a ledger row. Part of billing.AdjustmentStore.
func (s *Store) AppendAdjustment(ctx context.Context, adj billing.Adjustment) (*billing.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAdjustment(ctx, s.db, adj)
}

// ListRecords returns all billing records, newest first.
func (s *Store) ListRecords(ctx context.Context) ([]billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, recordSelect+" ORDER BY generated_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []billing.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ListAdjustments returns the ledger for a record, oldest first.
func (s *Store) ListAdjustments(ctx context.Context, recordID int64) ([]billing.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, billing_record_id, admin_id, delta, COALESCE(reason, ''), created_at
		 FROM billing_adjustments WHERE billing_record_id = ?
		 ORDER BY created_at ASC, id ASC`,
		recordID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []billing.Adjustment
	for rows.Next() {
		var (
			adj       billing.Adjustment
			delta     string
			createdAt string
		)
		if err := rows.Scan(&adj.ID, &adj.RecordID, &adj.AdminID, &delta, &adj.Reason, &createdAt); err != nil {
			return nil, err
		}
		adj.Delta = mustDecimal(delta)
		adj.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (billing.AdjustmentStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The callback store
// runs every statement on the transaction, so the amount update and the
// ledger append commit together or not at all.
func (s *Store) WithTx(ctx context.Context, fn func(billing.AdjustmentStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs billing adjustment operations on an open transaction.
// It does not touch the parent's mutex; WithTx already holds it.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) WithTx(ctx context.Context, fn func(billing.AdjustmentStore) error) error {
	// Already inside a transaction.
	return fn(ts)
}

func (ts *txStore) GetRecord(ctx context.Context, id int64) (*billing.Record, error) {
	return getRecord(ctx, ts.tx, id)
}

func (ts *txStore) UpdateRecordAmount(ctx context.Context, id int64, amount decimal.Decimal, expectVersion int64) error {
	return updateRecordAmount(ctx, ts.tx, id, amount, expectVersion)
}

func (ts *txStore) AppendAdjustment(ctx context.Context, adj billing.Adjustment) (*billing.Adjustment, error) {
	return appendAdjustment(ctx, ts.tx, adj)
}

// =============================================================================
// BILLING ROW HELPERS - shared between Store and txStore
// =============================================================================

const recordSelect = `SELECT id, project_id, employee_id, start_date, end_date,
	hours_billed, units_billed, amount, base_amount, generation_ref, version, generated_at
	FROM billing_records`

func getRecord(ctx context.Context, q dbtx, id int64) (*billing.Record, error) {
	row := q.QueryRowContext(ctx, recordSelect+" WHERE id = ?", id)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func updateRecordAmount(ctx context.Context, q dbtx, id int64, amount decimal.Decimal, expectVersion int64) error {
	res, err := q.ExecContext(ctx,
		"UPDATE billing_records SET amount = ?, version = version + 1 WHERE id = ? AND version = ?",
		amount.String(), id, expectVersion,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrConcurrentAdjustment
	}
	return nil
}

func appendAdjustment(ctx context.Context, q dbtx, adj billing.Adjustment) (*billing.Adjustment, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO billing_adjustments (billing_record_id, admin_id, delta, reason, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		adj.RecordID, adj.AdminID, adj.Delta.String(), adj.Reason,
		adj.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append adjustment: %w", err)
	}
	adj.ID, _ = res.LastInsertId()
	return &adj, nil
}

func scanRecord(scan func(...any) error) (*billing.Record, error) {
	var (
		rec         billing.Record
		start, end  string
		hours       sql.NullFloat64
		units       sql.NullInt64
		amount      string
		baseAmount  string
		generatedAt string
	)
	err := scan(&rec.ID, &rec.ProjectID, &rec.EmployeeID, &start, &end,
		&hours, &units, &amount, &baseAmount, &rec.GenerationRef, &rec.Version, &generatedAt)
	if err != nil {
		return nil, err
	}
	rec.Start, _ = time.Parse(dateLayout, start)
	rec.End, _ = time.Parse(dateLayout, end)
	if hours.Valid {
		v := hours.Float64
		rec.HoursBilled = &v
	}
	if units.Valid {
		v := units.Int64
		rec.UnitsBilled = &v
	}
	rec.Amount = mustDecimal(amount)
	rec.BaseAmount = mustDecimal(baseAmount)
	rec.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
	return &rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
