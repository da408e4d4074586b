// ABOUTME: Wire-level request/response envelope types and reserved error codes
// ABOUTME: Closed types validated once at the transport boundary

package protocol

import "encoding/json"

// Reserved error codes. Parse and internal errors follow JSON-RPC; the
// -32000 family is used for gateway-specific conditions.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAuthentication = -32001
	CodeAuthorization  = -32002
)

// Meta carries out-of-band request metadata.
type Meta struct {
	Authorization string `json:"authorization,omitempty"`
}

// Request is the inbound envelope. ID may be a string, a number, or
// absent; it is held raw and echoed verbatim on the response.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	Meta   *Meta           `json:"meta,omitempty"`
}

// Error is the structured error payload of a failed response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Response is the outbound envelope: exactly one of Result or Error is
// set. A nil ID marshals as null, used only when the request identifier
// could not be determined.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// NewResult builds a success response echoing the request id.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{ID: id, Result: result}
}

// NewError builds an error response. Pass a nil id when the request
// identifier is unknown (malformed input).
func NewError(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{ID: id, Error: &Error{Code: code, Message: message, Data: data}}
}
