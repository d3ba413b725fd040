package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	AudioDir string `toml:"audio_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
}

// Auth contains the bearer tokens accepted by scheduler-facing endpoints.
// The worker token authorizes job processing and content refresh triggers;
// the admin token is required for cleanup.
type Auth struct {
	WorkerToken string `toml:"worker_token"`
	AdminToken  string `toml:"admin_token"`
}

// Jobs contains queue and worker tuning.
type Jobs struct {
	LeaseSeconds            int `toml:"lease_seconds"`
	MaxAttempts             int `toml:"max_attempts"`
	BatchSize               int `toml:"batch_size"`
	RetryBackoffSeconds     int `toml:"retry_backoff_seconds"`
	JobTimeoutSeconds       int `toml:"job_timeout_seconds"`
	DuplicateLockoutMinutes int `toml:"duplicate_lockout_minutes"`
	PollIntervalSeconds     int `toml:"poll_interval_seconds"`
	MaxMinutes              int `toml:"max_minutes"`
	MaxAnonymousMinutes     int `toml:"max_anonymous_minutes"`
}

// Cache contains content cache freshness settings.
type Cache struct {
	TTLHours               int `toml:"ttl_hours"`
	StaleGraceHours        int `toml:"stale_grace_hours"`
	RefreshIntervalMinutes int `toml:"refresh_interval_minutes"`
}

// Source configures one upstream content provider.
type Source struct {
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	FeedURLs       []string `toml:"feed_urls"`
	DailyBudget    int      `toml:"daily_budget"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Sources groups the upstream content providers by content type.
type Sources struct {
	News    Source `toml:"news"`
	Sports  Source `toml:"sports"`
	Weather Source `toml:"weather"`
	Stocks  Source `toml:"stocks"`
	Quotes  Source `toml:"quotes"`
}

// LLM contains settings for the script-polishing model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTSProvider configures one speech synthesis provider.
type TTSProvider struct {
	Name           string `toml:"name"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains the primary and fallback speech providers plus the mapping
// from user-facing voice options to provider voice identifiers.
type TTS struct {
	Primary  TTSProvider       `toml:"primary"`
	Fallback TTSProvider       `toml:"fallback"`
	Voices   map[string]string `toml:"voices"`
}

// Cleanup contains artifact retention settings.
type Cleanup struct {
	RetentionDays    int `toml:"retention_days"`
	MinIntervalHours int `toml:"min_interval_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the DayStart backend.
//
// Configuration sections by subsystem:
//   - Paths: data/audio/log directories and API bind address
//   - Auth: scheduler (worker) and cleanup (admin) bearer tokens
//   - Jobs: lease duration, attempts, batch size, timeouts
//   - Cache: content freshness window and refresh cadence
//   - Sources: per-provider endpoints, credentials, and request budgets
//   - LLM: script generation model connection settings
//   - TTS: primary/fallback narration providers and voice map
//   - Cleanup: artifact retention and sweep throttle
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Auth    Auth    `toml:"auth"`
	Jobs    Jobs    `toml:"jobs"`
	Cache   Cache   `toml:"cache"`
	Sources Sources `toml:"sources"`
	LLM     LLM     `toml:"llm"`
	TTS     TTS     `toml:"tts"`
	Cleanup Cleanup `toml:"cleanup"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/daystart/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("daystart.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.AudioDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "daystart.db")
}

// LockFilePath returns the daemon singleton lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "daystartd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
