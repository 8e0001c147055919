// Package profiles provides the channel-profile catalog that shapes script
// tone, pacing, and visual styling per submission.
package profiles
