package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPassesValidation(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be reported missing")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Jobs.LeaseSeconds != defaultLeaseSeconds {
		t.Fatalf("expected default lease, got %d", cfg.Jobs.LeaseSeconds)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `"

[jobs]
batch_size = 2
lease_seconds = 600

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Jobs.BatchSize != 2 {
		t.Fatalf("expected batch size 2, got %d", cfg.Jobs.BatchSize)
	}
	if cfg.Jobs.LeaseSeconds != 600 {
		t.Fatalf("expected lease 600, got %d", cfg.Jobs.LeaseSeconds)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if cfg.Paths.DataDir != dir {
		t.Fatalf("expected data dir %q, got %q", dir, cfg.Paths.DataDir)
	}
}

func TestValidateRejectsLeaseShorterThanJobTimeout(t *testing.T) {
	cfg := Default()
	cfg.Jobs.LeaseSeconds = 60
	cfg.Jobs.JobTimeoutSeconds = 120
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected lease/timeout validation error")
	} else if !strings.Contains(err.Error(), "lease_seconds") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected log format validation error")
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got, err := expandPath("~/daystart")
	if err != nil {
		t.Fatalf("expandPath failed: %v", err)
	}
	if got != filepath.Join(home, "daystart") {
		t.Fatalf("unexpected expansion: %q", got)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[jobs]") {
		t.Fatal("sample config missing jobs section")
	}
}
