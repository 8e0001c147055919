// Package render draws the presentation frames that become the visual track:
// a phase-shifting gradient background, a sliding concept title, a concept
// counter, and a bottom progress bar.
//
// Rendering is fully deterministic: the same FrameSpec always produces the
// same pixels, so re-running a job yields byte-identical frames.
package render
