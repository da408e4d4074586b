// ABOUTME: System provider: liveness, capability listing, and resource reads
// ABOUTME: Listing is scope-filtered per caller; ping requires no credential

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
)

type systemHandlers struct {
	registry *registry.Registry
	started  time.Time
	version  string
}

// RegisterSystem adds the system capabilities: ping, whoami, capability
// listing, and resource reads.
func RegisterSystem(reg *registry.Registry, version string) error {
	h := &systemHandlers{registry: reg, started: time.Now().UTC(), version: version}

	tools := []*registry.Descriptor{
		{
			Name:        "system:ping",
			Description: "Liveness probe; requires no credential",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			ScopeExempt: true,
			AuthExempt:  true,
			Handler:     h.ping,
		},
		{
			Name:        "system:whoami",
			Description: "Echo the verified identity for the supplied credential",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			ScopeExempt: true,
			Handler:     h.whoami,
		},
		{
			Name:        "system:capabilities",
			Description: "List the capabilities and resources the caller may use",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			ScopeExempt: true,
			Handler:     h.capabilities,
		},
		{
			Name:        "resources:read",
			Description: "Read one resource by URI",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"uri":{"type":"string"}},"required":["uri"]}`),
			ScopeExempt: true, // per-URI scopes are checked in the handler
			Handler:     h.readResource,
		},
	}
	for _, d := range tools {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (h *systemHandlers) ping(_ context.Context, _ json.RawMessage, _ *auth.Identity) (any, error) {
	return map[string]any{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}, nil
}

func (h *systemHandlers) whoami(_ context.Context, _ json.RawMessage, ident *auth.Identity) (any, error) {
	return map[string]any{
		"actor":  ident.Actor,
		"role":   ident.Role,
		"scopes": ident.Scopes,
	}, nil
}

func (h *systemHandlers) capabilities(_ context.Context, _ json.RawMessage, ident *auth.Identity) (any, error) {
	type toolInfo struct {
		Name           string          `json:"name"`
		Description    string          `json:"description"`
		RequiredScopes []string        `json:"required_scopes,omitempty"`
		InputSchema    json.RawMessage `json:"input_schema,omitempty"`
		Mutating       bool            `json:"mutating,omitempty"`
	}
	type resourceInfo struct {
		URI            string   `json:"uri"`
		Name           string   `json:"name"`
		Description    string   `json:"description"`
		MimeType       string   `json:"mime_type"`
		RequiredScopes []string `json:"required_scopes,omitempty"`
	}

	var tools []toolInfo
	for _, d := range h.registry.ToolsFor(ident) {
		tools = append(tools, toolInfo{
			Name:           d.Name,
			Description:    d.Description,
			RequiredScopes: d.RequiredScopes,
			InputSchema:    d.InputSchema,
			Mutating:       d.Mutating,
		})
	}

	var resources []resourceInfo
	for _, r := range h.registry.ResourcesFor(ident) {
		resources = append(resources, resourceInfo{
			URI:            r.URI,
			Name:           r.Name,
			Description:    r.Description,
			MimeType:       r.MimeType,
			RequiredScopes: r.RequiredScopes,
		})
	}

	return map[string]any{
		"tools":     tools,
		"resources": resources,
	}, nil
}

func (h *systemHandlers) readResource(ctx context.Context, input json.RawMessage, ident *auth.Identity) (any, error) {
	var in struct {
		URI string `json:"uri"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.URI == "" {
		return nil, fmt.Errorf("%w: uri is required", registry.ErrInvalidInput)
	}

	res := h.registry.LookupResource(in.URI)
	if res == nil {
		return nil, fmt.Errorf("%w: resource %s", registry.ErrNotFound, in.URI)
	}
	if err := auth.RequireAll(ident, res.RequiredScopes); err != nil {
		return nil, err
	}

	content, err := res.Fetch(ctx, ident)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", in.URI, err)
	}
	return map[string]any{"contents": []*registry.ResourceContent{content}}, nil
}
