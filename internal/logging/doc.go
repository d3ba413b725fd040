// Package logging assembles structured slog loggers shared by the DayStart
// daemon, worker, and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job IDs, stages, and correlation IDs without repeating the
// wiring. The package also provides a no-op logger for tests.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
