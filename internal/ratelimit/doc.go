// Package ratelimit paces outbound generation calls against upstream quotas.
//
// A single Budget is shared across every worker in the process. Acquire hands
// out call slots spaced to the per-minute quota and RecordUsage tracks the
// daily token spend, warning as the budget runs down and optionally refusing
// calls once it is gone. Counters reset when the UTC day changes.
package ratelimit
