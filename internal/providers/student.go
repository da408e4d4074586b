// ABOUTME: Student provider: timetable access and the ask-tutor assistant
// ABOUTME: ask_tutor folds the caller's context bundle into a completion call

package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jojopeligroso/MyCastle-sub007/internal/aggregate"
	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/completion"
	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
	"github.com/jojopeligroso/MyCastle-sub007/internal/store"
)

const tutorSystemPrompt = "You are a helpful study assistant for an English language school. " +
	"Answer using only the school records provided below. If the records do not " +
	"contain the answer, say so."

type studentHandlers struct {
	store      store.Store
	aggregator *aggregate.Aggregator
	completer  *completion.Client
}

// RegisterStudent adds the student capabilities and resources. The
// aggregator and completion client back the ask_tutor assistant.
func RegisterStudent(reg *registry.Registry, st store.Store, agg *aggregate.Aggregator, compl *completion.Client) error {
	h := &studentHandlers{store: st, aggregator: agg, completer: compl}

	tools := []*registry.Descriptor{
		{
			Name:           "student:view_timetable",
			Description:    "View a student's weekly timetable",
			RequiredScopes: []string{"student:timetable"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"student_id":{"type":"string"}}}`),
			Handler:        h.viewTimetable,
		},
		{
			Name:           "student:ask_tutor",
			Description:    "Ask the study assistant a question about your courses and timetable",
			RequiredScopes: []string{"student:tutor"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"question":{"type":"string"}},"required":["question"]}`),
			Handler:        h.askTutor,
		},
	}
	for _, d := range tools {
		if err := reg.Register(d); err != nil {
			return err
		}
	}

	return reg.RegisterResource(&registry.Resource{
		URI:            "mycastle://student/timetable",
		Name:           "Student timetable",
		Description:    "The calling student's weekly timetable",
		MimeType:       "application/json",
		RequiredScopes: []string{"student:timetable"},
		Fetch:          h.timetableResource,
	})
}

func (h *studentHandlers) viewTimetable(ctx context.Context, input json.RawMessage, ident *auth.Identity) (any, error) {
	var in struct {
		StudentID string `json:"student_id"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	// Students see their own timetable; staff may name any student.
	studentID := in.StudentID
	if studentID == "" || ident.Role == auth.RoleStudent {
		studentID = ident.Actor
	}

	slots, err := h.store.TimetableForStudent(ctx, studentID)
	if err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{"student_id": studentID, "slots": slots}, nil
}

func (h *studentHandlers) askTutor(ctx context.Context, input json.RawMessage, ident *auth.Identity) (any, error) {
	var in struct {
		Question string `json:"question"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.Question == "" {
		return nil, fmt.Errorf("%w: question is required", registry.ErrInvalidInput)
	}

	bundle := h.aggregator.Aggregate(ctx, ident)
	contextDoc := aggregate.Render(aggregate.ResourceSet(ident.Role), bundle)

	messages := []completion.Message{
		{Role: "system", Content: tutorSystemPrompt + "\n\n" + contextDoc},
		{Role: "user", Content: in.Question},
	}
	result, err := h.completer.Invoke(ctx, messages, completion.Options{})
	if err != nil {
		return nil, fmt.Errorf("asking tutor: %w", err)
	}

	return map[string]any{
		"answer":     result.Content,
		"cached":     result.Cached,
		"latency_ms": result.Latency.Milliseconds(),
	}, nil
}

func (h *studentHandlers) timetableResource(ctx context.Context, ident *auth.Identity) (*registry.ResourceContent, error) {
	slots, err := h.store.TimetableForStudent(ctx, ident.Actor)
	if err != nil {
		return nil, err
	}
	text, err := jsonText(map[string]any{"student_id": ident.Actor, "slots": slots})
	if err != nil {
		return nil, err
	}
	return &registry.ResourceContent{
		URI:      "mycastle://student/timetable",
		MimeType: "application/json",
		Text:     text,
	}, nil
}
