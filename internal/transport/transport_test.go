// ABOUTME: Tests for the HTTP and stdio transports
// ABOUTME: Header credential bridging, health probes, and line framing

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/protocol"
	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
)

var testSecret = []byte("transport-test-secret-key")

func newTestDispatcher(t *testing.T) (*protocol.Dispatcher, *auth.JWTVerifier) {
	t.Helper()

	reg := registry.New(nil)
	require.NoError(t, reg.Register(&registry.Descriptor{
		Name:        "system:ping",
		Description: "liveness",
		ScopeExempt: true,
		AuthExempt:  true,
		Handler: func(_ context.Context, _ json.RawMessage, _ *auth.Identity) (any, error) {
			return map[string]string{"status": "ok"}, nil
		},
	}))
	require.NoError(t, reg.Register(&registry.Descriptor{
		Name:           "system:whoami",
		Description:    "identity echo",
		RequiredScopes: []string{"student:timetable"},
		Handler: func(_ context.Context, _ json.RawMessage, ident *auth.Identity) (any, error) {
			return map[string]any{"actor": ident.Actor}, nil
		},
	}))

	verifier := auth.NewJWTVerifier(testSecret)
	d, err := protocol.NewDispatcher(protocol.Config{Registry: reg, Verifier: verifier})
	require.NoError(t, err)
	return d, verifier
}

func decodeBody(t *testing.T, body *bytes.Buffer) *protocol.Response {
	t.Helper()
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return &resp
}

func TestHTTP_PingWithoutCredential(t *testing.T) {
	d, _ := newTestDispatcher(t)
	handler := NewHTTPHandler(HTTPConfig{Dispatcher: d})

	req := httptest.NewRequest(http.MethodPost, "/rpc",
		strings.NewReader(`{"id":1,"method":"system:ping"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec.Body)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "1", string(resp.ID))
}

func TestHTTP_BearerHeaderBridgesIntoEnvelope(t *testing.T) {
	d, verifier := newTestDispatcher(t)
	handler := NewHTTPHandler(HTTPConfig{Dispatcher: d})

	token, err := verifier.Generate("student-001", auth.RoleStudent, nil, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc",
		strings.NewReader(`{"id":"a1","method":"system:whoami"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeBody(t, rec.Body)
	require.Nil(t, resp.Error)

	var result map[string]any
	require.NoError(t, json.Unmarshal(mustMarshal(t, resp.Result), &result))
	assert.Equal(t, "student-001", result["actor"])
}

func TestHTTP_EnvelopeCredentialWinsOverHeader(t *testing.T) {
	d, verifier := newTestDispatcher(t)
	handler := NewHTTPHandler(HTTPConfig{Dispatcher: d})

	good, err := verifier.Generate("student-001", auth.RoleStudent, nil, time.Hour)
	require.NoError(t, err)

	body := `{"id":2,"method":"system:whoami","meta":{"authorization":"` + good + `"}}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeBody(t, rec.Body)
	assert.Nil(t, resp.Error, "envelope credential must take precedence")
}

func TestHTTP_MissingCredentialRejected(t *testing.T) {
	d, _ := newTestDispatcher(t)
	handler := NewHTTPHandler(HTTPConfig{Dispatcher: d})

	req := httptest.NewRequest(http.MethodPost, "/rpc",
		strings.NewReader(`{"id":3,"method":"system:whoami"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeBody(t, rec.Body)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeAuthentication, resp.Error.Code)
}

func TestHTTP_ParseErrorNullID(t *testing.T) {
	d, _ := newTestDispatcher(t)
	handler := NewHTTPHandler(HTTPConfig{Dispatcher: d})

	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(`{"id":`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeBody(t, rec.Body)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeParseError, resp.Error.Code)
	assert.Contains(t, rec.Body.String(), `"id":null`)
}

func TestHTTP_EmptyBody(t *testing.T) {
	d, _ := newTestDispatcher(t)
	handler := NewHTTPHandler(HTTPConfig{Dispatcher: d})

	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(""))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeBody(t, rec.Body)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidRequest, resp.Error.Code)
}

func TestHTTP_HealthProbes(t *testing.T) {
	d, _ := newTestDispatcher(t)

	t.Run("live", func(t *testing.T) {
		handler := NewHTTPHandler(HTTPConfig{Dispatcher: d})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ready ok", func(t *testing.T) {
		handler := NewHTTPHandler(HTTPConfig{Dispatcher: d, Ready: func() error { return nil }})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ready failing dependency", func(t *testing.T) {
		handler := NewHTTPHandler(HTTPConfig{Dispatcher: d, Ready: func() error { return errors.New("db down") }})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "db down")
	})
}

func TestStdio_RequestResponse(t *testing.T) {
	d, _ := newTestDispatcher(t)

	in := strings.NewReader(`{"id":1,"method":"system:ping"}` + "\n")
	var out bytes.Buffer
	srv := NewStdioServer(d, in, &out, nil)

	require.NoError(t, srv.Run(context.Background()))

	resp := decodeBody(t, &out)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "1", string(resp.ID))
}

func TestStdio_BlankLinesIgnored(t *testing.T) {
	d, _ := newTestDispatcher(t)

	input := "\n" + `{"id":1,"method":"system:ping"}` + "\n\n"
	var out bytes.Buffer
	srv := NewStdioServer(d, strings.NewReader(input), &out, nil)

	require.NoError(t, srv.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 1, "blank lines produce no response")
}

func TestStdio_MultipleRequestsAllAnswered(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var input strings.Builder
	for i := 1; i <= 5; i++ {
		input.WriteString(`{"id":`)
		input.WriteString(string(rune('0' + i)))
		input.WriteString(`,"method":"system:ping"}`)
		input.WriteString("\n")
	}
	var out bytes.Buffer
	srv := NewStdioServer(d, strings.NewReader(input.String()), &out, nil)

	require.NoError(t, srv.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)

	// Concurrent handling may reorder lines; collect the ids.
	seen := map[string]bool{}
	for _, line := range lines {
		var resp protocol.Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		assert.Nil(t, resp.Error)
		seen[string(resp.ID)] = true
	}
	assert.Len(t, seen, 5)
}

func TestStdio_MalformedLineGetsParseError(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var out bytes.Buffer
	srv := NewStdioServer(d, strings.NewReader("{oops\n"), &out, nil)

	require.NoError(t, srv.Run(context.Background()))

	resp := decodeBody(t, &out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeParseError, resp.Error.Code)
}

func TestStdio_OversizedLineAnsweredAndLoopContinues(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var input strings.Builder
	input.WriteString(`{"id":9,"method":"system:ping","params":{"pad":"`)
	input.WriteString(strings.Repeat("x", protocol.MaxRequestSize))
	input.WriteString(`"}}` + "\n")
	input.WriteString(`{"id":1,"method":"system:ping"}` + "\n")

	var out bytes.Buffer
	srv := NewStdioServer(d, strings.NewReader(input.String()), &out, nil)

	require.NoError(t, srv.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "both requests get a response")

	var rejected, served bool
	for _, line := range lines {
		var resp protocol.Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		if resp.Error != nil {
			assert.Equal(t, protocol.CodeInvalidRequest, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "too large")
			rejected = true
			continue
		}
		assert.Equal(t, "1", string(resp.ID))
		served = true
	}
	assert.True(t, rejected, "oversized request is rejected, not dropped")
	assert.True(t, served, "requests after the oversized line still run")
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
