// Package config loads, normalizes, and validates DayStart configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for
// provider API keys. The Config type centralizes every knob the daemon and
// CLI need: storage directories, queue tuning, content source credentials and
// budgets, LLM and speech provider settings, and cleanup retention.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
