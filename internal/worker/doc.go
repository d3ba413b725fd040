// Package worker drives briefing jobs from claim to completion: resolve the
// enabled content through the cache, compose the script, synthesize the
// narration, and record the outcome with transient failures requeued.
package worker
