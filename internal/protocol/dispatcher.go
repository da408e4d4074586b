// ABOUTME: Transport-independent request state machine: parse, identify, authorize, invoke, respond
// ABOUTME: Maps the error taxonomy onto reserved protocol codes at this boundary only

package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
)

// MaxRequestSize is the maximum allowed size for a request envelope (1MB).
const MaxRequestSize = 1 << 20

// AuditEvent records one successful mutating capability call.
type AuditEvent struct {
	Actor  string
	Role   string
	Method string
	Params json.RawMessage
}

// AuditRecorder persists audit events. Failures are logged, never allowed
// to abort the capability's success response.
type AuditRecorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// Config holds configuration for the Dispatcher.
type Config struct {
	Registry          *registry.Registry
	Verifier          auth.Verifier
	Audit             AuditRecorder // optional
	DefaultCredential string        // process-wide credential fallback
	Logger            *slog.Logger
}

// Dispatcher runs the request/response state machine for every inbound
// envelope. It is safe for concurrent use; all per-request state lives on
// the stack.
type Dispatcher struct {
	registry          *registry.Registry
	verifier          auth.Verifier
	audit             AuditRecorder
	defaultCredential string
	logger            *slog.Logger
}

// NewDispatcher creates a Dispatcher from the given configuration.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("verifier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:          cfg.Registry,
		verifier:          cfg.Verifier,
		audit:             cfg.Audit,
		defaultCredential: cfg.DefaultCredential,
		logger:            logger,
	}, nil
}

// Dispatch handles one raw envelope and returns the response, or nil for
// blank input (line transports tolerate keep-alive blank lines).
// Exactly one of Result or Error is set on a non-nil response.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) *Response {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if len(raw) > MaxRequestSize {
		return NewError(nil, CodeInvalidRequest, "request too large", nil)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewError(nil, CodeParseError, "parse error", nil)
	}
	if req.Method == "" {
		return NewError(req.ID, CodeInvalidRequest, "method is required", nil)
	}

	desc := d.registry.Lookup(req.Method)
	if desc == nil {
		d.logger.Debug("method not found", "method", req.Method)
		return NewError(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	ident, errResp := d.resolveIdentity(&req, desc)
	if errResp != nil {
		return errResp
	}

	if !desc.ScopeExempt {
		if err := auth.RequireAll(ident, desc.RequiredScopes); err != nil {
			var scopeErr *auth.ScopeError
			errors.As(err, &scopeErr)
			d.logger.Info("authorization denied",
				"method", req.Method,
				"actor", ident.Actor,
				"missing", scopeErr.Missing,
			)
			return NewError(req.ID, CodeAuthorization, err.Error(), map[string]any{
				"actor":          scopeErr.Actor,
				"missing_scopes": scopeErr.Missing,
			})
		}
	}

	start := time.Now()
	result, err := d.invoke(ctx, desc, req.Params, ident)
	if err != nil {
		return d.errorResponse(req.ID, req.Method, ident, err)
	}

	d.logger.Debug("request complete",
		"method", req.Method,
		"actor", ident.Actor,
		"duration", time.Since(start),
	)

	if desc.Mutating && d.audit != nil {
		d.recordAudit(ctx, ident, req.Method, req.Params)
	}

	return NewResult(req.ID, result)
}

// resolveIdentity resolves the request credential and verifies it.
// Resolution order: per-request metadata, then the process-wide default.
// Only auth-exempt methods may proceed without a credential, with a
// minimal anonymous identity.
func (d *Dispatcher) resolveIdentity(req *Request, desc *registry.Descriptor) (*auth.Identity, *Response) {
	credential := d.defaultCredential
	if req.Meta != nil && req.Meta.Authorization != "" {
		credential = req.Meta.Authorization
	}

	if credential == "" {
		if desc.AuthExempt {
			return auth.Anonymous(), nil
		}
		return nil, NewError(req.ID, CodeAuthentication, auth.ErrCredentialMissing.Error(), nil)
	}

	ident, err := d.verifier.Verify(credential)
	if err != nil {
		d.logger.Info("authentication failed", "method", req.Method, "error", err)
		return nil, NewError(req.ID, CodeAuthentication, err.Error(), nil)
	}
	return ident, nil
}

// invoke runs the capability handler. Panics are caught and surfaced as
// internal errors.
func (d *Dispatcher) invoke(ctx context.Context, desc *registry.Descriptor, params json.RawMessage, ident *auth.Identity) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked", "method", desc.Name, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return desc.Handler(ctx, params, ident)
}

// errorResponse maps a handler error onto the protocol taxonomy.
func (d *Dispatcher) errorResponse(id json.RawMessage, method string, ident *auth.Identity, err error) *Response {
	var scopeErr *auth.ScopeError
	switch {
	case errors.Is(err, registry.ErrInvalidInput):
		return NewError(id, CodeInvalidParams, err.Error(), nil)
	case errors.Is(err, registry.ErrNotFound):
		return NewError(id, CodeMethodNotFound, err.Error(), nil)
	case errors.As(err, &scopeErr):
		return NewError(id, CodeAuthorization, err.Error(), map[string]any{
			"actor":          scopeErr.Actor,
			"missing_scopes": scopeErr.Missing,
		})
	default:
		d.logger.Error("internal error", "method", method, "actor", ident.Actor, "error", err)
		return NewError(id, CodeInternalError, "internal error", map[string]any{"detail": err.Error()})
	}
}

// recordAudit persists an audit event best-effort. Runs detached from the
// request lifecycle so recorder failures or latency never touch the
// response.
func (d *Dispatcher) recordAudit(ctx context.Context, ident *auth.Identity, method string, params json.RawMessage) {
	event := &AuditEvent{
		Actor:  ident.Actor,
		Role:   string(ident.Role),
		Method: method,
		Params: params,
	}
	go func() {
		if err := d.audit.Record(context.WithoutCancel(ctx), event); err != nil {
			d.logger.Warn("audit record failed", "method", method, "error", err)
		}
	}()
}
