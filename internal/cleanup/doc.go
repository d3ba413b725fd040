// Package cleanup reclaims storage: aged audio artifacts, expired cache
// rows, and terminal jobs past retention. Sweeps self-throttle through the
// cleanup_log table so frequent triggers cost nothing.
package cleanup
