package pipeline

import (
	"strings"
	"testing"
)

func TestExcerptCutsAtWordBoundary(t *testing.T) {
	text := "one two three four five"
	got := excerpt(text, 14)
	if got != "one two three" {
		t.Fatalf("excerpt = %q, want %q", got, "one two three")
	}
	if excerpt("short", 100) != "short" {
		t.Fatal("excerpt should return short text unchanged")
	}
	if excerpt("  padded  ", 0) != "padded" {
		t.Fatal("excerpt with zero limit should only trim")
	}
}

func TestCleanGeneratedLines(t *testing.T) {
	items := []string{
		"- First point",
		"2) Second   point",
		"• first POINT",
		"   ",
		"* Third point with rather many words attached",
	}
	got := cleanGeneratedLines(items, 20)
	want := []string{"First point", "Second point", "Third point with"}
	if len(got) != len(want) {
		t.Fatalf("cleanGeneratedLines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cleanGeneratedLines[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitSentencesKeepsTrailingFragment(t *testing.T) {
	got := splitSentences("First. Second! Third? trailing fragment")
	want := []string{"First.", "Second!", "Third?", "trailing fragment"}
	if len(got) != len(want) {
		t.Fatalf("splitSentences = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitSentences[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBulletList(t *testing.T) {
	got := bulletList([]string{"alpha", "beta"})
	if got != "- alpha\n- beta" {
		t.Fatalf("bulletList = %q", got)
	}
	if !strings.HasPrefix(got, "- ") {
		t.Fatal("bulletList items must carry markers")
	}
}
