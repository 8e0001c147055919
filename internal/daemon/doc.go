// Package daemon coordinates the long-running loom process.
//
// It wires configuration, queue storage, the workflow manager, notifications,
// and the event publisher into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon validates submissions before any job
// row exists, exposes queue maintenance helpers, and reports preflight results
// in its status.
//
// Keep orchestration logic here: individual pipeline stages live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
