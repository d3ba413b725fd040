// Package queue persists briefing jobs in SQLite and owns every status
// transition.
//
// The jobs table is the single source of truth for coordination between
// concurrent worker invocations: claiming uses guarded conditional updates so
// at most one worker holds a live lease on a job, and expired leases make the
// job eligible for reclaim. The same database also carries the content cache,
// provider usage counters, and cleanup audit rows so all shared state
// survives process restarts.
package queue
