// Package protocol implements the request/response state machine shared
// by every transport.
//
// For each inbound envelope the dispatcher moves through a fixed sequence:
// parse, identify method, resolve and verify the credential, authorize
// against the capability's required scopes, invoke the handler, respond.
// Every request gets exactly one response; handler errors and panics are
// mapped to structured error payloads at this boundary, never propagated
// to the transport.
//
// Reserved error codes follow JSON-RPC where they exist (-32700 parse,
// -32601 method not found, -32602 invalid params, -32603 internal) with
// the -32000 family for authentication (-32001) and authorization
// (-32002) failures.
package protocol
