// ABOUTME: Academic provider: programmes and scheduled courses
// ABOUTME: Read-only queries over the academic catalogue

package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
	"github.com/jojopeligroso/MyCastle-sub007/internal/store"
)

type academicHandlers struct {
	store store.Store
}

// RegisterAcademic adds the academic capabilities and resources.
func RegisterAcademic(reg *registry.Registry, st store.Store) error {
	a := &academicHandlers{store: st}

	tools := []*registry.Descriptor{
		{
			Name:           "academic:list_courses",
			Description:    "List scheduled courses, optionally for one teacher",
			RequiredScopes: []string{"academic:courses"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"teacher_id":{"type":"string"}}}`),
			Handler:        a.listCourses,
		},
		{
			Name:           "academic:list_programmes",
			Description:    "List all programmes of study",
			RequiredScopes: []string{"academic:programmes"},
			InputSchema:    json.RawMessage(`{"type":"object"}`),
			Handler:        a.listProgrammes,
		},
		{
			Name:           "academic:get_programme",
			Description:    "Fetch one programme by ID",
			RequiredScopes: []string{"academic:programmes"},
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"programme_id":{"type":"string"}},"required":["programme_id"]}`),
			Handler:        a.getProgramme,
		},
	}
	for _, d := range tools {
		if err := reg.Register(d); err != nil {
			return err
		}
	}

	resources := []*registry.Resource{
		{
			URI:            "mycastle://academic/courses",
			Name:           "Courses",
			Description:    "All scheduled courses",
			MimeType:       "application/json",
			RequiredScopes: []string{"academic:courses"},
			Fetch:          a.coursesResource,
		},
		{
			URI:            "mycastle://academic/programmes",
			Name:           "Programmes",
			Description:    "All programmes of study",
			MimeType:       "application/json",
			RequiredScopes: []string{"academic:programmes"},
			Fetch:          a.programmesResource,
		},
	}
	for _, r := range resources {
		if err := reg.RegisterResource(r); err != nil {
			return err
		}
	}
	return nil
}

func (a *academicHandlers) listCourses(ctx context.Context, input json.RawMessage, _ *auth.Identity) (any, error) {
	var in struct {
		TeacherID string `json:"teacher_id"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	courses, err := a.store.ListCourses(ctx, in.TeacherID)
	if err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{"courses": courses, "count": len(courses)}, nil
}

func (a *academicHandlers) listProgrammes(ctx context.Context, _ json.RawMessage, _ *auth.Identity) (any, error) {
	programmes, err := a.store.ListProgrammes(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{"programmes": programmes, "count": len(programmes)}, nil
}

func (a *academicHandlers) getProgramme(ctx context.Context, input json.RawMessage, _ *auth.Identity) (any, error) {
	var in struct {
		ProgrammeID string `json:"programme_id"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.ProgrammeID == "" {
		return nil, fmt.Errorf("%w: programme_id is required", registry.ErrInvalidInput)
	}

	programme, err := a.store.GetProgramme(ctx, in.ProgrammeID)
	if err != nil {
		return nil, storeErr(err)
	}
	return map[string]any{"programme": programme}, nil
}

func (a *academicHandlers) coursesResource(ctx context.Context, _ *auth.Identity) (*registry.ResourceContent, error) {
	courses, err := a.store.ListCourses(ctx, "")
	if err != nil {
		return nil, err
	}
	text, err := jsonText(map[string]any{"courses": courses})
	if err != nil {
		return nil, err
	}
	return &registry.ResourceContent{
		URI:      "mycastle://academic/courses",
		MimeType: "application/json",
		Text:     text,
	}, nil
}

func (a *academicHandlers) programmesResource(ctx context.Context, _ *auth.Identity) (*registry.ResourceContent, error) {
	programmes, err := a.store.ListProgrammes(ctx)
	if err != nil {
		return nil, err
	}
	text, err := jsonText(map[string]any{"programmes": programmes})
	if err != nil {
		return nil, err
	}
	return &registry.ResourceContent{
		URI:      "mycastle://academic/programmes",
		MimeType: "application/json",
		Text:     text,
	}, nil
}
