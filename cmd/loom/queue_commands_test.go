package main

import (
	"context"
	"strings"
	"testing"

	"loom/internal/queue"
	"loom/internal/testsupport"
)

func TestListAndStatusCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	testsupport.NewJob(t, env.store, "Alpha Notes")
	beta := testsupport.NewJob(t, env.store, "Beta Notes")
	beta.MarkFailed("generation timeout")
	if err := env.store.Update(ctx, beta); err != nil {
		t.Fatalf("mark beta failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Alpha Notes")
	requireContains(t, out, "Beta Notes")
	requireContains(t, out, "Failed")

	out, _, err = runCLI(t, []string{"list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list --status failed: %v", err)
	}
	requireContains(t, out, "Beta Notes")
	if containsLine(out, "Alpha Notes") {
		t.Fatalf("expected failed filter to exclude Alpha Notes, got:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Queue")
	requireContains(t, out, "Pending")
	requireContains(t, out, "Failed")
}

func TestCancelAndClearCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	job := testsupport.NewJob(t, env.store, "Cancel Me")

	out, _, err := runCLI(t, []string{"cancel", job.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Cancelled job")

	updated, err := env.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("lookup job: %v", err)
	}
	if updated.Status != queue.StatusFailed {
		t.Fatalf("expected cancelled job to be failed, got %s", updated.Status)
	}

	out, _, err = runCLI(t, []string{"clear", "--failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("clear --failed: %v", err)
	}
	requireContains(t, out, "Removed 1 failed jobs")

	if _, _, err := runCLI(t, []string{"clear"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected clear without a target flag to fail")
	}
}

func TestShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	job := testsupport.NewJob(t, env.store, "Quarterly Update")

	out, _, err := runCLI(t, []string{"show", job.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, job.ID)
	requireContains(t, out, "Quarterly Update")
	requireContains(t, out, "Pending")
}

func TestHealthCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	testsupport.NewJob(t, env.store, "Alpha Notes")

	out, _, err := runCLI(t, []string{"health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "Queue")
	requireContains(t, out, "Database")
	requireContains(t, out, "1 jobs")
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := appendLine(env.logPath, "first entry"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	if err := appendLine(env.logPath, "second entry"); err != nil {
		t.Fatalf("append log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--lines", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "second entry")
	if containsLine(out, "first entry") {
		t.Fatalf("expected only the last line, got:\n%s", out)
	}
}

func containsLine(output, substr string) bool {
	return strings.Contains(output, substr)
}
