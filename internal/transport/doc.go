// Package transport adapts the dispatcher to concrete transports. The
// HTTP handler serves POST /rpc plus liveness and readiness probes and
// bridges Authorization headers into envelope credentials; the stdio
// server speaks one envelope per line for local tooling. Both delegate
// every protocol decision to the dispatcher.
package transport
