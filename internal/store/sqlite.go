// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: School records persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS invoices (
			id           TEXT PRIMARY KEY,
			student_id   TEXT NOT NULL,
			description  TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			paid_cents   INTEGER NOT NULL DEFAULT 0,
			currency     TEXT NOT NULL DEFAULT 'EUR',
			status       TEXT NOT NULL,
			issued_at    TEXT NOT NULL,
			due_at       TEXT NOT NULL,

			CHECK (status IN ('open', 'partial', 'paid')),
			CHECK (amount_cents >= 0),
			CHECK (paid_cents >= 0)
		);

		CREATE INDEX IF NOT EXISTS idx_invoices_student ON invoices(student_id);
		CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);

		CREATE TABLE IF NOT EXISTS payments (
			id           TEXT PRIMARY KEY,
			invoice_id   TEXT NOT NULL REFERENCES invoices(id),
			amount_cents INTEGER NOT NULL,
			method       TEXT NOT NULL,
			reference    TEXT,
			received_at  TEXT NOT NULL,

			CHECK (amount_cents > 0)
		);

		CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id);

		CREATE TABLE IF NOT EXISTS programmes (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			level       TEXT NOT NULL,
			description TEXT,
			weeks       INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS courses (
			id           TEXT PRIMARY KEY,
			programme_id TEXT NOT NULL REFERENCES programmes(id),
			name         TEXT NOT NULL,
			level        TEXT NOT NULL,
			teacher_id   TEXT NOT NULL,
			room         TEXT NOT NULL,
			capacity     INTEGER NOT NULL DEFAULT 0,
			start_date   TEXT NOT NULL,
			end_date     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_courses_programme ON courses(programme_id);
		CREATE INDEX IF NOT EXISTS idx_courses_teacher ON courses(teacher_id);

		CREATE TABLE IF NOT EXISTS attendance (
			id         TEXT PRIMARY KEY,
			course_id  TEXT NOT NULL REFERENCES courses(id),
			student_id TEXT NOT NULL,
			date       TEXT NOT NULL,
			status     TEXT NOT NULL,
			marked_by  TEXT NOT NULL,
			marked_at  TEXT NOT NULL,

			UNIQUE (course_id, student_id, date),
			CHECK (status IN ('present', 'absent', 'late'))
		);

		CREATE INDEX IF NOT EXISTS idx_attendance_course_date ON attendance(course_id, date);
		CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance(student_id);

		CREATE TABLE IF NOT EXISTS timetable_slots (
			id          TEXT PRIMARY KEY,
			student_id  TEXT NOT NULL,
			course_id   TEXT NOT NULL REFERENCES courses(id),
			course_name TEXT NOT NULL,
			weekday     TEXT NOT NULL,
			start_time  TEXT NOT NULL,
			end_time    TEXT NOT NULL,
			room        TEXT NOT NULL,

			CHECK (weekday IN ('monday', 'tuesday', 'wednesday', 'thursday', 'friday', 'saturday', 'sunday'))
		);

		CREATE INDEX IF NOT EXISTS idx_timetable_student ON timetable_slots(student_id);

		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id    TEXT PRIMARY KEY,
			actor       TEXT NOT NULL,
			role        TEXT NOT NULL,
			method      TEXT NOT NULL,
			params_json TEXT,
			ts          TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks for a SQLite UNIQUE constraint violation.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateInvoice inserts a new invoice. Returns ErrDuplicate if an invoice
// with the same ID exists.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if inv.Status == "" {
		inv.Status = InvoiceStatusOpen
	}
	query := `
		INSERT INTO invoices (id, student_id, description, amount_cents, paid_cents, currency, status, issued_at, due_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.StudentID,
		inv.Description,
		inv.AmountCents,
		inv.PaidCents,
		inv.Currency,
		inv.Status,
		inv.IssuedAt.UTC().Format(time.RFC3339),
		inv.DueAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: invoice %s", ErrDuplicate, inv.ID)
		}
		return fmt.Errorf("inserting invoice: %w", err)
	}

	s.logger.Debug("created invoice", "id", inv.ID, "student", inv.StudentID)
	return nil
}

const invoiceColumns = `id, student_id, description, amount_cents, paid_cents, currency, status, issued_at, due_at`

func scanInvoice(scanner interface{ Scan(dest ...any) error }) (*Invoice, error) {
	var inv Invoice
	var issuedAtStr, dueAtStr string

	err := scanner.Scan(
		&inv.ID,
		&inv.StudentID,
		&inv.Description,
		&inv.AmountCents,
		&inv.PaidCents,
		&inv.Currency,
		&inv.Status,
		&issuedAtStr,
		&dueAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning invoice: %w", err)
	}

	if inv.IssuedAt, err = time.Parse(time.RFC3339, issuedAtStr); err != nil {
		return nil, fmt.Errorf("parsing issued_at: %w", err)
	}
	if inv.DueAt, err = time.Parse(time.RFC3339, dueAtStr); err != nil {
		return nil, fmt.Errorf("parsing due_at: %w", err)
	}
	return &inv, nil
}

// GetInvoice retrieves an invoice by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	return scanInvoice(row)
}

// ListInvoices returns invoices newest first, optionally filtered by
// status. If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListInvoices(ctx context.Context, status string, limit int) ([]*Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE (? = '' OR status = ?)
		ORDER BY issued_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, status, status, limit)
	if err != nil {
		return nil, fmt.Errorf("querying invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice rows: %w", err)
	}
	return invoices, nil
}

// RecordPayment inserts a payment and updates the invoice's paid total and
// status in one transaction. Returns the updated invoice, or ErrNotFound
// if the invoice doesn't exist.
func (s *SQLiteStore) RecordPayment(ctx context.Context, p *Payment) (*Invoice, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inv, err := scanInvoice(tx.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, p.InvoiceID))
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount_cents, method, reference, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.InvoiceID, p.AmountCents, p.Method, nullString(p.Reference),
		p.ReceivedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: payment %s", ErrDuplicate, p.ID)
		}
		return nil, fmt.Errorf("inserting payment: %w", err)
	}

	inv.PaidCents += p.AmountCents
	switch {
	case inv.PaidCents >= inv.AmountCents:
		inv.Status = InvoiceStatusPaid
	case inv.PaidCents > 0:
		inv.Status = InvoiceStatusPartial
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE invoices SET paid_cents = ?, status = ? WHERE id = ?`,
		inv.PaidCents, inv.Status, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("updating invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing payment: %w", err)
	}

	s.logger.Debug("recorded payment",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"amount_cents", p.AmountCents,
		"invoice_status", inv.Status,
	)
	return inv, nil
}

// ListPayments returns payments for an invoice, oldest first.
func (s *SQLiteStore) ListPayments(ctx context.Context, invoiceID string) ([]*Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, amount_cents, method, reference, received_at
		FROM payments
		WHERE invoice_id = ?
		ORDER BY received_at ASC
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		var reference sql.NullString
		var receivedAtStr string

		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.AmountCents, &p.Method, &reference, &receivedAtStr); err != nil {
			return nil, fmt.Errorf("scanning payment row: %w", err)
		}
		if reference.Valid {
			p.Reference = reference.String
		}
		if p.ReceivedAt, err = time.Parse(time.RFC3339, receivedAtStr); err != nil {
			return nil, fmt.Errorf("parsing received_at: %w", err)
		}
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment rows: %w", err)
	}
	return payments, nil
}

// nullString returns nil for empty strings, otherwise the string itself.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateProgramme inserts a new programme.
func (s *SQLiteStore) CreateProgramme(ctx context.Context, p *Programme) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO programmes (id, name, level, description, weeks)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Level, nullString(p.Description), p.Weeks)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: programme %s", ErrDuplicate, p.Name)
		}
		return fmt.Errorf("inserting programme: %w", err)
	}
	s.logger.Debug("created programme", "id", p.ID, "name", p.Name)
	return nil
}

// GetProgramme retrieves a programme by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetProgramme(ctx context.Context, id string) (*Programme, error) {
	var p Programme
	var description sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, level, description, weeks FROM programmes WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Level, &description, &p.Weeks)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying programme: %w", err)
	}
	if description.Valid {
		p.Description = description.String
	}
	return &p, nil
}

// ListProgrammes returns all programmes ordered by name.
func (s *SQLiteStore) ListProgrammes(ctx context.Context) ([]*Programme, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, level, description, weeks FROM programmes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying programmes: %w", err)
	}
	defer rows.Close()

	var programmes []*Programme
	for rows.Next() {
		var p Programme
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Level, &description, &p.Weeks); err != nil {
			return nil, fmt.Errorf("scanning programme row: %w", err)
		}
		if description.Valid {
			p.Description = description.String
		}
		programmes = append(programmes, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating programme rows: %w", err)
	}
	return programmes, nil
}

// CreateCourse inserts a new course.
func (s *SQLiteStore) CreateCourse(ctx context.Context, c *Course) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courses (id, programme_id, name, level, teacher_id, room, capacity, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ProgrammeID, c.Name, c.Level, c.TeacherID, c.Room, c.Capacity,
		c.StartDate.UTC().Format(time.RFC3339),
		c.EndDate.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: course %s", ErrDuplicate, c.ID)
		}
		return fmt.Errorf("inserting course: %w", err)
	}
	s.logger.Debug("created course", "id", c.ID, "name", c.Name, "teacher", c.TeacherID)
	return nil
}

const courseColumns = `id, programme_id, name, level, teacher_id, room, capacity, start_date, end_date`

func scanCourse(scanner interface{ Scan(dest ...any) error }) (*Course, error) {
	var c Course
	var startStr, endStr string

	err := scanner.Scan(
		&c.ID,
		&c.ProgrammeID,
		&c.Name,
		&c.Level,
		&c.TeacherID,
		&c.Room,
		&c.Capacity,
		&startStr,
		&endStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning course: %w", err)
	}

	if c.StartDate, err = time.Parse(time.RFC3339, startStr); err != nil {
		return nil, fmt.Errorf("parsing start_date: %w", err)
	}
	if c.EndDate, err = time.Parse(time.RFC3339, endStr); err != nil {
		return nil, fmt.Errorf("parsing end_date: %w", err)
	}
	return &c, nil
}

// GetCourse retrieves a course by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetCourse(ctx context.Context, id string) (*Course, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	return scanCourse(row)
}

// ListCourses returns courses ordered by name, optionally filtered to one
// teacher.
func (s *SQLiteStore) ListCourses(ctx context.Context, teacherID string) ([]*Course, error) {
	query := `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE (? = '' OR teacher_id = ?)
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query, teacherID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("querying courses: %w", err)
	}
	defer rows.Close()

	var courses []*Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating course rows: %w", err)
	}
	return courses, nil
}

// MarkAttendance records a student's attendance for a course on a date.
// Marking the same student/course/date again replaces the earlier record,
// so corrections are a straight re-mark.
func (s *SQLiteStore) MarkAttendance(ctx context.Context, rec *AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (id, course_id, student_id, date, status, marked_by, marked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (course_id, student_id, date) DO UPDATE SET
			status = excluded.status,
			marked_by = excluded.marked_by,
			marked_at = excluded.marked_at
	`, rec.ID, rec.CourseID, rec.StudentID, rec.Date, rec.Status, rec.MarkedBy,
		rec.MarkedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("marking attendance: %w", err)
	}

	s.logger.Debug("marked attendance",
		"course", rec.CourseID,
		"student", rec.StudentID,
		"date", rec.Date,
		"status", rec.Status,
	)
	return nil
}

// AttendanceForCourse returns attendance records for a course, optionally
// restricted to one date, ordered by date then student.
func (s *SQLiteStore) AttendanceForCourse(ctx context.Context, courseID, date string) ([]*AttendanceRecord, error) {
	query := `
		SELECT id, course_id, student_id, date, status, marked_by, marked_at
		FROM attendance
		WHERE course_id = ? AND (? = '' OR date = ?)
		ORDER BY date, student_id
	`
	rows, err := s.db.QueryContext(ctx, query, courseID, date, date)
	if err != nil {
		return nil, fmt.Errorf("querying attendance: %w", err)
	}
	defer rows.Close()

	var records []*AttendanceRecord
	for rows.Next() {
		var rec AttendanceRecord
		var markedAtStr string
		if err := rows.Scan(&rec.ID, &rec.CourseID, &rec.StudentID, &rec.Date, &rec.Status, &rec.MarkedBy, &markedAtStr); err != nil {
			return nil, fmt.Errorf("scanning attendance row: %w", err)
		}
		if rec.MarkedAt, err = time.Parse(time.RFC3339, markedAtStr); err != nil {
			return nil, fmt.Errorf("parsing marked_at: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attendance rows: %w", err)
	}
	return records, nil
}

// SummarizeAttendance aggregates attendance counts for a course. A course
// with no records yields a zero summary, not an error.
func (s *SQLiteStore) SummarizeAttendance(ctx context.Context, courseID string) (*AttendanceSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'present' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'absent' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'late' THEN 1 ELSE 0 END), 0)
		FROM attendance
		WHERE course_id = ?
	`
	summary := &AttendanceSummary{CourseID: courseID}
	err := s.db.QueryRowContext(ctx, query, courseID).Scan(
		&summary.Total,
		&summary.Present,
		&summary.Absent,
		&summary.Late,
	)
	if err != nil {
		return nil, fmt.Errorf("summarizing attendance: %w", err)
	}
	if summary.Total > 0 {
		summary.PresentRate = float64(summary.Present) / float64(summary.Total)
	}
	return summary, nil
}

// AddTimetableSlot inserts a timetable slot.
func (s *SQLiteStore) AddTimetableSlot(ctx context.Context, slot *TimetableSlot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timetable_slots (id, student_id, course_id, course_name, weekday, start_time, end_time, room)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, slot.ID, slot.StudentID, slot.CourseID, slot.CourseName, slot.Weekday, slot.StartTime, slot.EndTime, slot.Room)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: timetable slot %s", ErrDuplicate, slot.ID)
		}
		return fmt.Errorf("inserting timetable slot: %w", err)
	}
	return nil
}

// TimetableForStudent returns a student's timetable slots ordered by
// weekday position then start time.
func (s *SQLiteStore) TimetableForStudent(ctx context.Context, studentID string) ([]*TimetableSlot, error) {
	query := `
		SELECT id, student_id, course_id, course_name, weekday, start_time, end_time, room
		FROM timetable_slots
		WHERE student_id = ?
		ORDER BY
			CASE weekday
				WHEN 'monday' THEN 1
				WHEN 'tuesday' THEN 2
				WHEN 'wednesday' THEN 3
				WHEN 'thursday' THEN 4
				WHEN 'friday' THEN 5
				WHEN 'saturday' THEN 6
				WHEN 'sunday' THEN 7
			END,
			start_time
	`
	rows, err := s.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("querying timetable: %w", err)
	}
	defer rows.Close()

	var slots []*TimetableSlot
	for rows.Next() {
		var slot TimetableSlot
		if err := rows.Scan(&slot.ID, &slot.StudentID, &slot.CourseID, &slot.CourseName, &slot.Weekday, &slot.StartTime, &slot.EndTime, &slot.Room); err != nil {
			return nil, fmt.Errorf("scanning timetable row: %w", err)
		}
		slots = append(slots, &slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating timetable rows: %w", err)
	}
	return slots, nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
