// Package workflow runs queued jobs through the generation pipeline.
//
// The Manager owns the job lifecycle: it fails jobs interrupted by a previous
// shutdown at startup, polls for pending work, and hands every accepted job to
// its own worker goroutine with a per-job cancellable context. The worker
// claims the job, walks the ten pipeline stages in order while a heartbeat
// ticker keeps the record visibly alive, persists progress after every stage,
// and records the terminal state: the finalization stage marks success, any
// stage error fails the job with the error text verbatim, and no stage is
// ever retried.
//
// Terminal results travel three ways at once: the Outcome channel returned by
// Dispatch, the handoff board that status reads merge before reporting, and
// the persisted job row. Cancellation goes the other direction: Cancel writes
// the terminal state first (guarded against racing a finishing worker) and
// then cancels the worker's context, so a late worker can never resurrect a
// cancelled job.
package workflow
