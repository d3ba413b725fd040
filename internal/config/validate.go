package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateCleanup()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.AudioDir == "" {
		return errors.New("paths.audio_dir must be set")
	}
	return nil
}

func (c *Config) validateJobs() error {
	// The lease must outlive the worst-case job so a live worker never has
	// its job reclaimed underneath it.
	if c.Jobs.LeaseSeconds <= c.Jobs.JobTimeoutSeconds {
		return fmt.Errorf("jobs.lease_seconds (%d) must exceed jobs.job_timeout_seconds (%d)",
			c.Jobs.LeaseSeconds, c.Jobs.JobTimeoutSeconds)
	}
	if c.Jobs.MaxAttempts > 10 {
		return errors.New("jobs.max_attempts must be 10 or fewer")
	}
	if c.Jobs.MaxAnonymousMinutes > c.Jobs.MaxMinutes {
		return fmt.Errorf("jobs.max_anonymous_minutes (%d) must not exceed jobs.max_minutes (%d)",
			c.Jobs.MaxAnonymousMinutes, c.Jobs.MaxMinutes)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.StaleGraceHours < c.Cache.TTLHours {
		return fmt.Errorf("cache.stale_grace_hours (%d) must be at least cache.ttl_hours (%d)",
			c.Cache.StaleGraceHours, c.Cache.TTLHours)
	}
	return nil
}

func (c *Config) validateSources() error {
	if len(c.Sources.News.FeedURLs) == 0 {
		return errors.New("sources.news.feed_urls must list at least one feed")
	}
	if c.Sources.Weather.BaseURL == "" {
		return errors.New("sources.weather.base_url must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if c.Cleanup.RetentionDays > 365 {
		return errors.New("cleanup.retention_days must be 365 or fewer")
	}
	return nil
}
