// Package content caches normalized upstream payloads in SQLite and meters
// upstream requests against per-provider daily budgets. Briefing sections
// read through the cache; a fresh row never triggers an upstream fetch, an
// expired row is refetched with the stale copy served when the fetch fails.
package content
