// ABOUTME: Attendance provider: register marking and course summaries
// ABOUTME: Marking is audited; re-marking the same lesson is a correction

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
	"github.com/jojopeligroso/MyCastle-sub007/internal/store"
)

type attendanceHandlers struct {
	store store.Store
}

// RegisterAttendance adds the attendance capabilities and resources.
func RegisterAttendance(reg *registry.Registry, st store.Store) error {
	h := &attendanceHandlers{store: st}

	tools := []*registry.Descriptor{
		{
			Name:           "attendance:mark_attendance",
			Description:    "Mark a student's attendance for a course on a date",
			RequiredScopes: []string{"attendance:mark"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"course_id":{"type":"string"},"student_id":{"type":"string"},"date":{"type":"string","format":"date"},"status":{"type":"string","enum":["present","absent","late"]}},"required":["course_id","student_id","date","status"]}`),
			Mutating:       true,
			Handler:        h.markAttendance,
		},
		{
			Name:           "attendance:summary",
			Description:    "Summarize attendance counts and rate for a course",
			RequiredScopes: []string{"attendance:registers"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"course_id":{"type":"string"}},"required":["course_id"]}`),
			Handler:        h.summary,
		},
		{
			Name:           "attendance:list_register",
			Description:    "List attendance records for a course, optionally for one date",
			RequiredScopes: []string{"attendance:registers"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"course_id":{"type":"string"},"date":{"type":"string","format":"date"}},"required":["course_id"]}`),
			Handler:        h.listRegister,
		},
	}
	for _, d := range tools {
		if err := reg.Register(d); err != nil {
			return err
		}
	}

	return reg.RegisterResource(&registry.Resource{
		URI:            "mycastle://attendance/registers",
		Name:           "Attendance registers",
		Description:    "Per-course attendance summaries",
		MimeType:       "application/json",
		RequiredScopes: []string{"attendance:registers"},
		Fetch:          h.registersResource,
	})
}

func (h *attendanceHandlers) markAttendance(ctx context.Context, input json.RawMessage, ident *auth.Identity) (any, error) {
	var in struct {
		CourseID  string `json:"course_id"`
		StudentID string `json:"student_id"`
		Date      string `json:"date"`
		Status    string `json:"status"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.CourseID == "" || in.StudentID == "" {
		return nil, fmt.Errorf("%w: course_id and student_id are required", registry.ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", registry.ErrInvalidInput)
	}
	switch in.Status {
	case store.AttendancePresent, store.AttendanceAbsent, store.AttendanceLate:
	default:
		return nil, fmt.Errorf("%w: unknown attendance status %q", registry.ErrInvalidInput, in.Status)
	}

	// The course must exist; attendance against a phantom course is a
	// client error, not a silent insert.
	if _, err := h.store.GetCourse(ctx, in.CourseID); err != nil {
		return nil, storeErr(err)
	}

	rec := &store.AttendanceRecord{
		ID:        uuid.New().String(),
		CourseID:  in.CourseID,
		StudentID: in.StudentID,
		Date:      in.Date,
		Status:    in.Status,
		MarkedBy:  ident.Actor,
		MarkedAt:  time.Now().UTC(),
	}
	if err := h.store.MarkAttendance(ctx, rec); err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{"record": rec}, nil
}

func (h *attendanceHandlers) summary(ctx context.Context, input json.RawMessage, _ *auth.Identity) (any, error) {
	var in struct {
		CourseID string `json:"course_id"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.CourseID == "" {
		return nil, fmt.Errorf("%w: course_id is required", registry.ErrInvalidInput)
	}

	summary, err := h.store.SummarizeAttendance(ctx, in.CourseID)
	if err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{"summary": summary}, nil
}

func (h *attendanceHandlers) listRegister(ctx context.Context, input json.RawMessage, _ *auth.Identity) (any, error) {
	var in struct {
		CourseID string `json:"course_id"`
		Date     string `json:"date"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.CourseID == "" {
		return nil, fmt.Errorf("%w: course_id is required", registry.ErrInvalidInput)
	}

	records, err := h.store.AttendanceForCourse(ctx, in.CourseID, in.Date)
	if err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{"records": records, "count": len(records)}, nil
}

func (h *attendanceHandlers) registersResource(ctx context.Context, _ *auth.Identity) (*registry.ResourceContent, error) {
	courses, err := h.store.ListCourses(ctx, "")
	if err != nil {
		return nil, err
	}

	summaries := make([]*store.AttendanceSummary, 0, len(courses))
	for _, c := range courses {
		summary, err := h.store.SummarizeAttendance(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	text, err := jsonText(map[string]any{"summaries": summaries})
	if err != nil {
		return nil, err
	}
	return &registry.ResourceContent{
		URI:      "mycastle://attendance/registers",
		MimeType: "application/json",
		Text:     text,
	}, nil
}
