// Package events publishes job progress over Redis pub/sub.
//
// Each job gets its own channel (<prefix>:<job-id>, default loom:jobs:<id>)
// carrying a JSON snapshot of the job's status, stage, and progress after
// every stage transition and on terminal states. External consumers such as
// web frontends subscribe to follow a job live without polling the daemon.
//
// When [events] redis_addr is not configured the publisher degrades to a
// no-op, so the workflow never needs to know whether eventing is enabled.
package events
