// Package intake consumes job submissions from an AMQP queue.
//
// Messages are JSON descriptors naming source documents on disk; the consumer
// extracts their text through internal/ingest and hands the result to the
// daemon's submit path, so queued submissions pass the same validation as CLI
// ones. Malformed or invalid messages are dropped, transient failures are
// requeued. The consumer is optional and stays disabled until an AMQP URL is
// configured.
package intake
