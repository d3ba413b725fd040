package config

const (
	defaultDataDir  = "~/.local/share/daystart"
	defaultAudioDir = "~/.local/share/daystart/audio"
	defaultLogDir   = "~/.local/share/daystart/logs"
	defaultAPIBind  = "127.0.0.1:8321"

	defaultLeaseSeconds            = 300
	defaultMaxAttempts             = 3
	defaultBatchSize               = 5
	defaultRetryBackoffSeconds     = 120
	defaultJobTimeoutSeconds       = 240
	defaultDuplicateLockoutMinutes = 30
	defaultPollIntervalSeconds     = 60
	defaultMaxMinutes              = 10
	defaultMaxAnonymousMinutes     = 3

	defaultCacheTTLHours          = 12
	defaultCacheStaleGraceHours   = 24
	defaultCacheRefreshMinutes    = 60
	defaultSourceDailyBudget      = 500
	defaultSourceTimeoutSeconds   = 20
	defaultWeatherBaseURL         = "https://api.open-meteo.com/v1"
	defaultStocksBaseURL          = "https://query1.finance.yahoo.com/v8/finance"
	defaultQuotesBaseURL          = "https://zenquotes.io/api"
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-3-flash-preview"
	defaultLLMReferer             = "https://github.com/daystart/daystart"
	defaultLLMTitle               = "DayStart Script Composer"
	defaultLLMTimeoutSeconds      = 60
	defaultTTSPrimaryName         = "elevenlabs"
	defaultTTSPrimaryBaseURL      = "https://api.elevenlabs.io/v1"
	defaultTTSFallbackName        = "openai"
	defaultTTSFallbackBaseURL     = "https://api.openai.com/v1"
	defaultTTSFallbackModel       = "tts-1"
	defaultTTSTimeoutSeconds      = 120
	defaultCleanupRetentionDays   = 10
	defaultCleanupIntervalHours   = 20
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			AudioDir: defaultAudioDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Jobs: Jobs{
			LeaseSeconds:            defaultLeaseSeconds,
			MaxAttempts:             defaultMaxAttempts,
			BatchSize:               defaultBatchSize,
			RetryBackoffSeconds:     defaultRetryBackoffSeconds,
			JobTimeoutSeconds:       defaultJobTimeoutSeconds,
			DuplicateLockoutMinutes: defaultDuplicateLockoutMinutes,
			PollIntervalSeconds:     defaultPollIntervalSeconds,
			MaxMinutes:              defaultMaxMinutes,
			MaxAnonymousMinutes:     defaultMaxAnonymousMinutes,
		},
		Cache: Cache{
			TTLHours:               defaultCacheTTLHours,
			StaleGraceHours:        defaultCacheStaleGraceHours,
			RefreshIntervalMinutes: defaultCacheRefreshMinutes,
		},
		Sources: Sources{
			News: Source{
				FeedURLs:       []string{"https://feeds.bbci.co.uk/news/rss.xml"},
				DailyBudget:    defaultSourceDailyBudget,
				TimeoutSeconds: defaultSourceTimeoutSeconds,
			},
			Sports: Source{
				FeedURLs:       []string{"https://www.espn.com/espn/rss/news"},
				DailyBudget:    defaultSourceDailyBudget,
				TimeoutSeconds: defaultSourceTimeoutSeconds,
			},
			Weather: Source{
				BaseURL:        defaultWeatherBaseURL,
				DailyBudget:    defaultSourceDailyBudget,
				TimeoutSeconds: defaultSourceTimeoutSeconds,
			},
			Stocks: Source{
				BaseURL:        defaultStocksBaseURL,
				DailyBudget:    defaultSourceDailyBudget,
				TimeoutSeconds: defaultSourceTimeoutSeconds,
			},
			Quotes: Source{
				BaseURL:        defaultQuotesBaseURL,
				DailyBudget:    defaultSourceDailyBudget,
				TimeoutSeconds: defaultSourceTimeoutSeconds,
			},
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		TTS: TTS{
			Primary: TTSProvider{
				Name:           defaultTTSPrimaryName,
				BaseURL:        defaultTTSPrimaryBaseURL,
				TimeoutSeconds: defaultTTSTimeoutSeconds,
			},
			Fallback: TTSProvider{
				Name:           defaultTTSFallbackName,
				BaseURL:        defaultTTSFallbackBaseURL,
				Model:          defaultTTSFallbackModel,
				TimeoutSeconds: defaultTTSTimeoutSeconds,
			},
			Voices: map[string]string{
				"morning_calm":   "aria",
				"bright_start":   "river",
				"evening_anchor": "atlas",
			},
		},
		Cleanup: Cleanup{
			RetentionDays:    defaultCleanupRetentionDays,
			MinIntervalHours: defaultCleanupIntervalHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
