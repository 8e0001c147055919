package textutil_test

import (
	"math"
	"testing"

	"loom/internal/textutil"
)

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases and keeps digits", "Deep Learning 101", "deep_learning_101"},
		{"collapses punctuation", "Q3: Results (Draft)", "q3__results__draft"},
		{"keeps hyphens and underscores", "intro-to_go", "intro-to_go"},
		{"empty input", "   ", "unknown"},
		{"only punctuation", "!!!", "unknown"},
		{"trims edge separators", "--title--", "title"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.SanitizeToken(tc.input); got != tc.want {
				t.Fatalf("SanitizeToken(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestWordCount(t *testing.T) {
	if got := textutil.WordCount("  one two\nthree\t"); got != 3 {
		t.Fatalf("WordCount = %d, want 3", got)
	}
	if got := textutil.WordCount(""); got != 0 {
		t.Fatalf("WordCount of empty = %d, want 0", got)
	}
}

func TestEstimateSpokenSeconds(t *testing.T) {
	if got := textutil.EstimateSpokenSeconds(150, 150); math.Abs(got-60) > 1e-9 {
		t.Fatalf("150 words at 150 wpm = %v, want 60", got)
	}
	if got := textutil.EstimateSpokenSeconds(75, 0); math.Abs(got-30) > 1e-9 {
		t.Fatalf("default speed estimate = %v, want 30", got)
	}
	if got := textutil.EstimateSpokenSeconds(0, 150); got != 0 {
		t.Fatalf("zero words = %v, want 0", got)
	}
}
