package ffprobe_test

import (
	"context"
	"math"
	"testing"

	"loom/internal/media/ffprobe"
)

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := ffprobe.Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDurationSeconds(t *testing.T) {
	cases := []struct {
		name   string
		result ffprobe.Result
		want   float64
	}{
		{
			name:   "container duration",
			result: ffprobe.Result{Format: ffprobe.Format{Duration: "125.40"}},
			want:   125.40,
		},
		{
			name: "falls back to audio stream",
			result: ffprobe.Result{
				Streams: []ffprobe.Stream{
					{CodecType: "video", Duration: "999"},
					{CodecType: "audio", Duration: "63.2"},
				},
			},
			want: 63.2,
		},
		{
			name:   "unparseable",
			result: ffprobe.Result{Format: ffprobe.Format{Duration: "N/A"}},
			want:   0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.result.DurationSeconds(); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("DurationSeconds = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAudioStream(t *testing.T) {
	result := ffprobe.Result{Streams: []ffprobe.Stream{
		{CodecType: "video"},
		{CodecType: "audio", SampleRate: "24000", Channels: 1},
	}}
	stream, ok := result.AudioStream()
	if !ok {
		t.Fatal("expected an audio stream")
	}
	if stream.SampleRate != "24000" || stream.Channels != 1 {
		t.Fatalf("unexpected stream: %+v", stream)
	}

	if _, ok := (ffprobe.Result{}).AudioStream(); ok {
		t.Fatal("expected no audio stream in empty result")
	}
}

func TestSizeBytes(t *testing.T) {
	result := ffprobe.Result{Format: ffprobe.Format{Size: "170000"}}
	if got := result.SizeBytes(); got != 170000 {
		t.Fatalf("SizeBytes = %d, want 170000", got)
	}
	if got := (ffprobe.Result{}).SizeBytes(); got != 0 {
		t.Fatalf("SizeBytes of empty = %d, want 0", got)
	}
}
