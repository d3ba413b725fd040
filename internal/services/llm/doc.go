// Package llm wraps an OpenRouter-compatible chat completion API used to
// polish briefing scripts into natural narration. Requests retry with
// exponential backoff and honor Retry-After on throttled responses.
package llm
