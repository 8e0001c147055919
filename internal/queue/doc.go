// Package queue persists generation jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, and startup reconciliation. Jobs capture
// submission parameters, stage progress, and completion artifacts; source
// documents live in a child table so the pipeline can reload them without
// holding text in memory between stages.
//
// Job mutators enforce two invariants the rest of the system leans on:
// progress never moves backward while a job is processing, and a terminal
// status (completed or failed) is written exactly once. The HandoffBoard
// extends the second invariant across goroutines: workers post terminal
// results there and the status-polling path merges them into the persisted
// record only when the record is not already terminal.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
