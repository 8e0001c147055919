// Package ipc exposes the daemon over a JSON-RPC Unix socket and ships the
// matching client used by the loom CLI.
//
// It owns socket lifecycle management, the request/response DTOs, and the
// conversions between queue jobs and their lightweight wire representations.
// New RPC endpoints should reuse these types so the protocol stays compatible
// with existing command implementations.
package ipc
