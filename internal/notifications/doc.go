// Package notifications delivers job lifecycle events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Enumerated event types cover the job milestones so the workflow manager can
// emit consistent, user-friendly messages without duplicating HTTP glue, and
// per-event toggles in the [notifications] config section suppress the ones a
// user does not want.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
