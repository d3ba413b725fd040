package queue

import "errors"

var (
	// ErrDuplicateJob is returned when an active job already exists for the
	// same identity token and local date. Duplicate enqueues are a hard
	// error, not a silent coalesce; the client reschedules explicitly.
	ErrDuplicateJob = errors.New("duplicate active job")

	// ErrLeaseLost is returned when a transition is attempted by a caller
	// whose lease is no longer current. The loser skips the job quietly.
	ErrLeaseLost = errors.New("job lease lost")

	// ErrNotFound is returned when a job lookup matches nothing.
	ErrNotFound = errors.New("job not found")
)
