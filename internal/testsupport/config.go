package testsupport

import (
	"path/filepath"
	"testing"

	"daystart/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.AudioDir = filepath.Join(base, "audio")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Auth.WorkerToken = "test-worker-token"
	cfgVal.Auth.AdminToken = "test-admin-token"
	cfgVal.LLM.APIKey = "test"
	cfgVal.TTS.Primary.APIKey = "test"
	cfgVal.TTS.Fallback.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLease sets the processing lease and job timeout in seconds. The lease
// always stays strictly longer than the timeout, matching validation rules.
func WithLease(leaseSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.LeaseSeconds = leaseSeconds
		if b.cfg.Jobs.JobTimeoutSeconds >= leaseSeconds {
			b.cfg.Jobs.JobTimeoutSeconds = leaseSeconds - 1
			if b.cfg.Jobs.JobTimeoutSeconds < 1 {
				b.cfg.Jobs.JobTimeoutSeconds = 1
			}
		}
	}
}

// WithMaxAttempts sets the retry ceiling on the test config.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.MaxAttempts = attempts
	}
}

// WithRetryBackoff sets the requeue delay in seconds.
func WithRetryBackoff(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.RetryBackoffSeconds = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
