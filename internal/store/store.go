// ABOUTME: Domain entities and the Store interface for school records
// ABOUTME: Finance, academic, attendance, and timetable persistence contracts

package store

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Invoice statuses.
const (
	InvoiceStatusOpen    = "open"
	InvoiceStatusPartial = "partial"
	InvoiceStatusPaid    = "paid"
)

// Invoice is a bill issued to a student.
type Invoice struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	PaidCents   int64     `json:"paid_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	IssuedAt    time.Time `json:"issued_at"`
	DueAt       time.Time `json:"due_at"`
}

// Outstanding returns the unpaid balance in cents.
func (i *Invoice) Outstanding() int64 {
	if i.PaidCents >= i.AmountCents {
		return 0
	}
	return i.AmountCents - i.PaidCents
}

// Payment is one payment received against an invoice.
type Payment struct {
	ID          string    `json:"id"`
	InvoiceID   string    `json:"invoice_id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Programme is a course of study (e.g. General English B2).
type Programme struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Level       string `json:"level"`
	Description string `json:"description,omitempty"`
	Weeks       int    `json:"weeks"`
}

// Course is a scheduled delivery of a programme with a teacher and room.
type Course struct {
	ID          string    `json:"id"`
	ProgrammeID string    `json:"programme_id"`
	Name        string    `json:"name"`
	Level       string    `json:"level"`
	TeacherID   string    `json:"teacher_id"`
	Room        string    `json:"room"`
	Capacity    int       `json:"capacity"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
)

// AttendanceRecord marks one student's attendance for a course on a date.
// Date is a calendar day, "2006-01-02".
type AttendanceRecord struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	StudentID string    `json:"student_id"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	MarkedAt  time.Time `json:"marked_at"`
}

// AttendanceSummary aggregates a course's attendance records.
type AttendanceSummary struct {
	CourseID    string  `json:"course_id"`
	Total       int     `json:"total"`
	Present     int     `json:"present"`
	Absent      int     `json:"absent"`
	Late        int     `json:"late"`
	PresentRate float64 `json:"present_rate"`
}

// TimetableSlot is one recurring lesson slot on a student's timetable.
type TimetableSlot struct {
	ID         string `json:"id"`
	StudentID  string `json:"student_id"`
	CourseID   string `json:"course_id"`
	CourseName string `json:"course_name"`
	Weekday    string `json:"weekday"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Room       string `json:"room"`
}

// Store is the persistence contract the capability providers build on.
type Store interface {
	// Finance
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoices(ctx context.Context, status string, limit int) ([]*Invoice, error)
	RecordPayment(ctx context.Context, p *Payment) (*Invoice, error)
	ListPayments(ctx context.Context, invoiceID string) ([]*Payment, error)

	// Academic
	CreateProgramme(ctx context.Context, p *Programme) error
	GetProgramme(ctx context.Context, id string) (*Programme, error)
	ListProgrammes(ctx context.Context) ([]*Programme, error)
	CreateCourse(ctx context.Context, c *Course) error
	GetCourse(ctx context.Context, id string) (*Course, error)
	ListCourses(ctx context.Context, teacherID string) ([]*Course, error)

	// Attendance
	MarkAttendance(ctx context.Context, rec *AttendanceRecord) error
	AttendanceForCourse(ctx context.Context, courseID, date string) ([]*AttendanceRecord, error)
	SummarizeAttendance(ctx context.Context, courseID string) (*AttendanceSummary, error)

	// Timetable
	AddTimetableSlot(ctx context.Context, slot *TimetableSlot) error
	TimetableForStudent(ctx context.Context, studentID string) ([]*TimetableSlot, error)

	Close() error
}
