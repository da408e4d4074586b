// ABOUTME: Thread-safe catalogue of capability descriptors (tools and resources)
// ABOUTME: Manages registration, lookup, and scope-based filtering

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
)

// Registration and lookup errors.
var (
	ErrDuplicateName = errors.New("capability name already registered")
	ErrNoScopes      = errors.New("capability requires at least one scope or the scope-exempt mark")
)

// Sentinel errors for capability handlers. The dispatcher maps these to
// protocol error codes; handlers wrap them with detail.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// HandlerFunc executes a capability with validated input and the verified
// identity. Any returned error or panic is caught at the dispatcher
// boundary, never propagated to the transport.
type HandlerFunc func(ctx context.Context, input json.RawMessage, ident *auth.Identity) (any, error)

// Descriptor describes one invocable capability.
type Descriptor struct {
	Name           string          // unique within the registry, "family:name"
	Description    string
	RequiredScopes []string        // minimal scopes to invoke
	InputSchema    json.RawMessage // JSON schema describing accepted input
	ScopeExempt    bool            // no scope check (e.g. capability listing)
	AuthExempt     bool            // no credential required (liveness probe only)
	Mutating       bool            // successful calls are audited
	Handler        HandlerFunc
}

// ResourceContent is a fetched resource wrapped in its transport encoding.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// FetchFunc reads a resource for the given identity.
type FetchFunc func(ctx context.Context, ident *auth.Identity) (*ResourceContent, error)

// Resource describes one readable resource.
type Resource struct {
	URI            string // unique, "mycastle://family/name"
	Name           string
	Description    string
	MimeType       string
	RequiredScopes []string
	Fetch          FetchFunc
}

// Registry maintains the catalogue of capabilities and resources
// contributed by providers. Registration happens at startup; lookups are
// concurrent.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*Descriptor
	resources map[string]*Resource
	logger    *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:     make(map[string]*Descriptor),
		resources: make(map[string]*Resource),
		logger:    logger,
	}
}

// Register adds a capability descriptor. It rejects duplicate names, nil
// handlers, and descriptors that neither require a scope nor carry the
// scope-exempt mark.
func (r *Registry) Register(d *Descriptor) error {
	if d.Name == "" || d.Handler == nil {
		return fmt.Errorf("descriptor needs a name and a handler")
	}
	if len(d.RequiredScopes) == 0 && !d.ScopeExempt {
		return fmt.Errorf("%w: %s", ErrNoScopes, d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, d.Name)
	}
	r.tools[d.Name] = d

	r.logger.Debug("capability registered",
		"name", d.Name,
		"scopes", d.RequiredScopes,
		"mutating", d.Mutating,
	)
	return nil
}

// RegisterResource adds a resource. Duplicate URIs are rejected.
func (r *Registry) RegisterResource(res *Resource) error {
	if res.URI == "" || res.Fetch == nil {
		return fmt.Errorf("resource needs a URI and a fetch function")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[res.URI]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, res.URI)
	}
	r.resources[res.URI] = res

	r.logger.Debug("resource registered", "uri", res.URI, "scopes", res.RequiredScopes)
	return nil
}

// Lookup returns the descriptor for a capability name, or nil.
func (r *Registry) Lookup(name string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// LookupResource returns the resource for a URI, or nil.
func (r *Registry) LookupResource(uri string) *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resources[uri]
}

// ToolsFor returns the descriptors the identity is allowed to invoke.
// Scope-exempt capabilities are always included.
func (r *Registry) ToolsFor(ident *auth.Identity) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		if d.ScopeExempt || auth.HasAll(ident, d.RequiredScopes) {
			result = append(result, d)
		}
	}
	return result
}

// ResourcesFor returns the resources the identity is allowed to read.
func (r *Registry) ResourcesFor(ident *auth.Identity) []*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Resource, 0, len(r.resources))
	for _, res := range r.resources {
		if auth.HasAll(ident, res.RequiredScopes) {
			result = append(result, res)
		}
	}
	return result
}

// Counts returns the number of registered capabilities and resources.
func (r *Registry) Counts() (tools, resources int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools), len(r.resources)
}
