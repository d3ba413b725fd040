// Package daemon wires the backend together for long-running operation: it
// enforces single-instance execution through a lock file, hosts the HTTP
// API, and drives the poll and refresh loops.
package daemon
