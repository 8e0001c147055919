// Package textutil provides small text helpers shared by the pipeline and
// the CLI: filesystem-safe name tokens for output artifacts and word counting
// for narration pacing summaries.
package textutil
