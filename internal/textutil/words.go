package textutil

import "strings"

// WordCount reports the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateSpokenSeconds converts a word count into expected narration time at
// the given reading speed. A non-positive speed falls back to 150 words per
// minute, the pacing the script stage also assumes.
func EstimateSpokenSeconds(words, wordsPerMinute int) float64 {
	if words <= 0 {
		return 0
	}
	if wordsPerMinute <= 0 {
		wordsPerMinute = 150
	}
	return float64(words) * 60 / float64(wordsPerMinute)
}
