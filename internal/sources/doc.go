// Package sources adapts upstream providers (RSS feeds, forecast, market
// data, quote APIs) to the normalized payloads the content cache stores.
// Every adapter draws from the shared request budget before going upstream.
package sources
