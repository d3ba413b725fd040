// Command daystart is the operator CLI: enqueue briefings, inspect and
// manage the queue, refresh cached content, run retention sweeps, and run
// the daemon in the foreground.
package main
