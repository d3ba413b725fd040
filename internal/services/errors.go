package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrValidation marks malformed caller input; the request is rejected and no job runs.
	ErrValidation = errors.New("validation error")
	// ErrRateLimited marks an exhausted provider budget; callers skip the section this cycle.
	ErrRateLimited = errors.New("rate limited")
	// ErrPermanent marks failures that retrying cannot fix (provider content rejection,
	// invalid persisted state). Jobs fail terminally.
	ErrPermanent = errors.New("permanent failure")
	// ErrTransient marks upstream or network failures worth retrying.
	ErrTransient = errors.New("transient failure")
	// ErrNoContent signals that no cached or live content is available for a source.
	ErrNoContent = errors.New("no content available")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPermanent reports whether the job worker should fail the job terminally
// instead of requeueing it. Unclassified errors default to transient so a
// flaky provider never permanently fails a job.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) || errors.Is(err, ErrValidation) {
		return true
	}
	return false
}

// IsTransient reports whether an error is worth retrying. Context
// cancellation counts as transient: the lease expires and the job is
// reclaimed by a later invocation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNoContent) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
