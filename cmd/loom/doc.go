// Package main hosts the loom CLI entrypoint and command graph.
//
// The cobra command tree translates terminal invocations into IPC calls
// against the daemon: document submission, queue inspection, log tailing,
// health diagnostics, and configuration scaffolding. Configuration resolution
// and socket discovery live in commandContext so subcommands stay
// declarative.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
