package main

import (
	"strings"
	"testing"
)

func TestRunRejectsUnknownFlag(t *testing.T) {
	err := run([]string{"--definitely-not-a-flag"})
	if err == nil {
		t.Fatal("expected flag parse error")
	}
	if !strings.Contains(err.Error(), "definitely-not-a-flag") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunRejectsUnreadableConfig(t *testing.T) {
	dir := t.TempDir()
	err := run([]string{"--config", dir})
	if err == nil {
		t.Fatal("expected error for directory config path")
	}
}
