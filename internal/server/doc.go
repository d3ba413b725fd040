// Package server exposes the HTTP API: briefing enqueue and status polling
// for clients, plus bearer-token triggers for the external scheduler (job
// processing, content refresh, cleanup).
package server
