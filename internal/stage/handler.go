package stage

import (
	"context"

	"loom/internal/queue"
)

// Handler describes the contract the workflow manager needs from each
// pipeline stage. Prepare validates inputs and mutates the job record before
// the heavy work; Execute performs the stage; HealthCheck reports readiness
// for daemon status output.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}
