// ABOUTME: HTTP transport: POST /rpc envelope handling plus health probes
// ABOUTME: Bridges the Authorization header into the envelope credential slot

package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jojopeligroso/MyCastle-sub007/internal/protocol"
)

// HTTPConfig holds configuration for the HTTP handler.
type HTTPConfig struct {
	Dispatcher *protocol.Dispatcher
	// Ready reports whether dependencies (the database) are reachable.
	// nil means always ready.
	Ready  func() error
	Logger *slog.Logger
}

// NewHTTPHandler builds the gateway's HTTP surface: POST /rpc for
// envelopes, GET /health/live and /health/ready for probes.
func NewHTTPHandler(cfg HTTPConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandler{
		dispatcher: cfg.Dispatcher,
		ready:      cfg.Ready,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc", h.handleRPC)
	mux.HandleFunc("GET /health/live", h.handleLive)
	mux.HandleFunc("GET /health/ready", h.handleReady)
	return mux
}

type httpHandler struct {
	dispatcher *protocol.Dispatcher
	ready      func() error
	logger     *slog.Logger
}

func (h *httpHandler) handleRPC(w http.ResponseWriter, r *http.Request) {
	// One past the limit so the dispatcher sees oversize input and
	// produces the protocol-level error itself.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, protocol.MaxRequestSize+1))
	if err != nil {
		h.writeResponse(w, protocol.NewError(nil, protocol.CodeInvalidRequest, "unable to read request body", nil))
		return
	}

	if token := bearerToken(r); token != "" {
		body = injectCredential(body, token)
	}

	resp := h.dispatcher.Dispatch(r.Context(), body)
	if resp == nil {
		resp = protocol.NewError(nil, protocol.CodeInvalidRequest, "empty request body", nil)
	}
	h.writeResponse(w, resp)
}

// writeResponse writes the envelope with HTTP 200; failures live in the
// envelope's error member, not the status line.
func (h *httpHandler) writeResponse(w http.ResponseWriter, resp *protocol.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("writing response", "error", err)
	}
}

func (h *httpHandler) handleLive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func (h *httpHandler) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.ready != nil {
		if err := h.ready(); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ready"}` + "\n"))
}

// bearerToken extracts the credential from an Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// injectCredential copies a header-supplied credential into the envelope's
// meta slot unless the envelope already carries one. Malformed envelopes
// pass through untouched so the dispatcher reports the parse error.
func injectCredential(raw []byte, token string) []byte {
	var req protocol.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return raw
	}
	if req.Meta != nil && req.Meta.Authorization != "" {
		return raw
	}
	if req.Meta == nil {
		req.Meta = &protocol.Meta{}
	}
	req.Meta.Authorization = token

	out, err := json.Marshal(&req)
	if err != nil {
		return raw
	}
	return out
}
