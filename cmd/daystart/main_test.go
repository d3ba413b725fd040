package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
data_dir = %q
audio_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "audio"),
		filepath.Join(base, "logs"),
	)
	path := filepath.Join(base, "daystart.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEnqueueAndQueueList(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t,
		"--config", cfgPath,
		"enqueue", "--identity", "cli-user", "--date", "2026-03-02", "--timezone", "America/Chicago")
	if err != nil {
		t.Fatalf("enqueue failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Queued briefing") {
		t.Fatalf("unexpected enqueue output:\n%s", out)
	}

	out, err = runCommand(t, "--config", cfgPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2026-03-02") || !strings.Contains(out, "queued") {
		t.Fatalf("expected job row in list output:\n%s", out)
	}
}

func TestEnqueueRejectsOverlongAnonymous(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t,
		"--config", cfgPath,
		"enqueue", "--identity", "cli-anon", "--length", "10", "--timezone", "UTC")
	if err == nil {
		t.Fatalf("expected validation error, got output:\n%s", out)
	}
}

func TestQueueStatusEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
}

func TestQueueRetryWithNoFailures(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Retried 0 failed jobs") {
		t.Fatalf("unexpected retry output:\n%s", out)
	}
}

func TestQueueClear(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := runCommand(t,
		"--config", cfgPath,
		"enqueue", "--identity", "cli-clear", "--date", "2026-03-02", "--timezone", "UTC"); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	out, err := runCommand(t, "--config", cfgPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Cleared 1 jobs") {
		t.Fatalf("unexpected clear output:\n%s", out)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config at %s: %v", target, err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestSweepReportsCounts(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath, "sweep")
	if err != nil {
		t.Fatalf("sweep failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Artifacts removed") {
		t.Fatalf("unexpected sweep output:\n%s", out)
	}

	out, err = runCommand(t, "--config", cfgPath, "sweep")
	if err != nil {
		t.Fatalf("second sweep failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Sweep skipped") {
		t.Fatalf("expected second sweep skipped:\n%s", out)
	}
}
