package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAuth()
	c.normalizeJobs()
	c.normalizeCache()
	c.normalizeSources()
	c.normalizeLLM()
	c.normalizeTTS()
	c.normalizeCleanup()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AudioDir) == "" {
		c.Paths.AudioDir = defaultAudioDir
	}
	if c.Paths.AudioDir, err = expandPath(c.Paths.AudioDir); err != nil {
		return fmt.Errorf("paths.audio_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeAuth() {
	c.Auth.WorkerToken = strings.TrimSpace(c.Auth.WorkerToken)
	c.Auth.AdminToken = strings.TrimSpace(c.Auth.AdminToken)
	if c.Auth.WorkerToken == "" {
		c.Auth.WorkerToken = strings.TrimSpace(os.Getenv("DAYSTART_WORKER_TOKEN"))
	}
	if c.Auth.AdminToken == "" {
		c.Auth.AdminToken = strings.TrimSpace(os.Getenv("DAYSTART_ADMIN_TOKEN"))
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.LeaseSeconds <= 0 {
		c.Jobs.LeaseSeconds = defaultLeaseSeconds
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = defaultMaxAttempts
	}
	if c.Jobs.BatchSize <= 0 {
		c.Jobs.BatchSize = defaultBatchSize
	}
	if c.Jobs.RetryBackoffSeconds <= 0 {
		c.Jobs.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Jobs.JobTimeoutSeconds <= 0 {
		c.Jobs.JobTimeoutSeconds = defaultJobTimeoutSeconds
	}
	if c.Jobs.DuplicateLockoutMinutes <= 0 {
		c.Jobs.DuplicateLockoutMinutes = defaultDuplicateLockoutMinutes
	}
	if c.Jobs.PollIntervalSeconds <= 0 {
		c.Jobs.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Jobs.MaxMinutes <= 0 {
		c.Jobs.MaxMinutes = defaultMaxMinutes
	}
	if c.Jobs.MaxAnonymousMinutes <= 0 {
		c.Jobs.MaxAnonymousMinutes = defaultMaxAnonymousMinutes
	}
}

func (c *Config) normalizeCache() {
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = defaultCacheTTLHours
	}
	if c.Cache.StaleGraceHours <= 0 {
		c.Cache.StaleGraceHours = defaultCacheStaleGraceHours
	}
	if c.Cache.RefreshIntervalMinutes <= 0 {
		c.Cache.RefreshIntervalMinutes = defaultCacheRefreshMinutes
	}
}

func (c *Config) normalizeSources() {
	normalizeSource(&c.Sources.News, "")
	normalizeSource(&c.Sources.Sports, "")
	normalizeSource(&c.Sources.Weather, defaultWeatherBaseURL)
	normalizeSource(&c.Sources.Stocks, defaultStocksBaseURL)
	normalizeSource(&c.Sources.Quotes, defaultQuotesBaseURL)
	if c.Sources.Stocks.APIKey == "" {
		c.Sources.Stocks.APIKey = strings.TrimSpace(os.Getenv("DAYSTART_STOCKS_API_KEY"))
	}
}

func normalizeSource(src *Source, defaultBaseURL string) {
	src.BaseURL = strings.TrimSpace(src.BaseURL)
	if src.BaseURL == "" {
		src.BaseURL = defaultBaseURL
	}
	src.APIKey = strings.TrimSpace(src.APIKey)
	if src.DailyBudget <= 0 {
		src.DailyBudget = defaultSourceDailyBudget
	}
	if src.TimeoutSeconds <= 0 {
		src.TimeoutSeconds = defaultSourceTimeoutSeconds
	}
	feeds := src.FeedURLs[:0]
	for _, feed := range src.FeedURLs {
		if trimmed := strings.TrimSpace(feed); trimmed != "" {
			feeds = append(feeds, trimmed)
		}
	}
	src.FeedURLs = feeds
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("DAYSTART_LLM_API_KEY"))
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTTS() {
	normalizeTTSProvider(&c.TTS.Primary, defaultTTSPrimaryName, defaultTTSPrimaryBaseURL, "DAYSTART_TTS_API_KEY")
	normalizeTTSProvider(&c.TTS.Fallback, defaultTTSFallbackName, defaultTTSFallbackBaseURL, "DAYSTART_TTS_FALLBACK_API_KEY")
	if len(c.TTS.Voices) == 0 {
		c.TTS.Voices = Default().TTS.Voices
	}
}

func normalizeTTSProvider(p *TTSProvider, defaultName, defaultBaseURL, envKey string) {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Name == "" {
		p.Name = defaultName
	}
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	if p.BaseURL == "" {
		p.BaseURL = defaultBaseURL
	}
	p.APIKey = strings.TrimSpace(p.APIKey)
	if p.APIKey == "" {
		p.APIKey = strings.TrimSpace(os.Getenv(envKey))
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
}

func (c *Config) normalizeCleanup() {
	if c.Cleanup.RetentionDays <= 0 {
		c.Cleanup.RetentionDays = defaultCleanupRetentionDays
	}
	if c.Cleanup.MinIntervalHours <= 0 {
		c.Cleanup.MinIntervalHours = defaultCleanupIntervalHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
