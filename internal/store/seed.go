// ABOUTME: Demo dataset for a freshly initialized database
// ABOUTME: Idempotent; only populates when the programmes table is empty

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Seed populates an empty database with a small demo dataset so the
// gateway is explorable right after init. Running Seed against a
// populated database is a no-op.
func (s *SQLiteStore) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM programmes`).Scan(&count); err != nil {
		return fmt.Errorf("checking for existing data: %w", err)
	}
	if count > 0 {
		s.logger.Debug("seed skipped, database already populated")
		return nil
	}

	now := time.Now().UTC()

	genEnglish := &Programme{
		ID:          uuid.New().String(),
		Name:        "General English",
		Level:       "B2",
		Description: "20 hours per week of general English",
		Weeks:       12,
	}
	examPrep := &Programme{
		ID:          uuid.New().String(),
		Name:        "IELTS Exam Preparation",
		Level:       "C1",
		Description: "Intensive preparation for the IELTS academic exam",
		Weeks:       8,
	}
	for _, p := range []*Programme{genEnglish, examPrep} {
		if err := s.CreateProgramme(ctx, p); err != nil {
			return err
		}
	}

	morning := &Course{
		ID:          uuid.New().String(),
		ProgrammeID: genEnglish.ID,
		Name:        "General English B2 Morning",
		Level:       "B2",
		TeacherID:   "teacher-001",
		Room:        "Room 3",
		Capacity:    14,
		StartDate:   now.AddDate(0, 0, -30),
		EndDate:     now.AddDate(0, 0, 54),
	}
	ielts := &Course{
		ID:          uuid.New().String(),
		ProgrammeID: examPrep.ID,
		Name:        "IELTS Prep Evening",
		Level:       "C1",
		TeacherID:   "teacher-002",
		Room:        "Room 1",
		Capacity:    10,
		StartDate:   now.AddDate(0, 0, -14),
		EndDate:     now.AddDate(0, 0, 42),
	}
	for _, c := range []*Course{morning, ielts} {
		if err := s.CreateCourse(ctx, c); err != nil {
			return err
		}
	}

	invoice := &Invoice{
		ID:          uuid.New().String(),
		StudentID:   "student-001",
		Description: "General English B2, 12 weeks",
		AmountCents: 198000,
		Currency:    "EUR",
		Status:      InvoiceStatusOpen,
		IssuedAt:    now.AddDate(0, 0, -7),
		DueAt:       now.AddDate(0, 0, 23),
	}
	if err := s.CreateInvoice(ctx, invoice); err != nil {
		return err
	}

	slots := []*TimetableSlot{
		{
			ID:         uuid.New().String(),
			StudentID:  "student-001",
			CourseID:   morning.ID,
			CourseName: morning.Name,
			Weekday:    "monday",
			StartTime:  "09:00",
			EndTime:    "13:00",
			Room:       morning.Room,
		},
		{
			ID:         uuid.New().String(),
			StudentID:  "student-001",
			CourseID:   morning.ID,
			CourseName: morning.Name,
			Weekday:    "wednesday",
			StartTime:  "09:00",
			EndTime:    "13:00",
			Room:       morning.Room,
		},
	}
	for _, slot := range slots {
		if err := s.AddTimetableSlot(ctx, slot); err != nil {
			return err
		}
	}

	record := &AttendanceRecord{
		ID:        uuid.New().String(),
		CourseID:  morning.ID,
		StudentID: "student-001",
		Date:      now.AddDate(0, 0, -2).Format("2006-01-02"),
		Status:    AttendancePresent,
		MarkedBy:  "teacher-001",
		MarkedAt:  now.AddDate(0, 0, -2),
	}
	if err := s.MarkAttendance(ctx, record); err != nil {
		return err
	}

	s.logger.Info("seeded demo dataset",
		"programmes", 2,
		"courses", 2,
		"invoices", 1,
	)
	return nil
}
