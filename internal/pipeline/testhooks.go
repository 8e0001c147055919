package pipeline

import (
	"context"

	"loom/internal/media/ffprobe"
)

// audioProbe is the ffprobe function used to measure synthesized narration.
// It is a package-level variable so tests can override it.
var audioProbe = ffprobe.Inspect

// SetProbeForTests overrides the ffprobe runner during tests.
func SetProbeForTests(fn func(context.Context, string, string) (ffprobe.Result, error)) func() {
	previous := audioProbe
	audioProbe = fn
	return func() {
		audioProbe = previous
	}
}
