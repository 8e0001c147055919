// Package generation wraps the external content generation endpoint.
//
// The Client speaks the OpenAI-compatible chat completions protocol and layers
// on the concerns every caller needs: pacing and daily token accounting via a
// shared ratelimit.Budget, per-call timeouts surfaced as services.ErrTimeout,
// endpoint faults surfaced as services.ErrExternal, retry with backoff for
// transient statuses, and tolerant JSON decoding for structured responses.
package generation
