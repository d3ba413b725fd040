package queue

import (
	"context"
	"fmt"
	"time"
)

// Complete transitions a processing job to completed and records the
// artifact. The update is guarded by the caller's lease; a stale caller
// gets ErrLeaseLost and must not touch the artifact further.
func (s *Store) Complete(ctx context.Context, owner string, id int64, artifactPath string, durationSeconds float64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, artifact_path = ?, artifact_duration = ?,
             lease_owner = NULL, lease_expires_at = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND lease_owner = ?`,
		StatusCompleted, artifactPath, durationSeconds, now,
		id, StatusProcessing, owner,
	)
	if err != nil {
		return fmt.Errorf("complete job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Fail records a failure for a processing job held under the caller's lease.
// Transient failures with attempts remaining requeue the job with a backoff
// delay; permanent failures and exhausted retries fail terminally.
func (s *Store) Fail(ctx context.Context, owner string, id int64, message string, permanent bool) error {
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	if !permanent {
		runAfter := now.Add(s.retryBackoff).Format(time.RFC3339Nano)
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
             SET status = ?, error_message = ?, run_after = ?,
                 lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
             WHERE id = ? AND status = ? AND lease_owner = ? AND attempts < ?`,
			StatusQueued, message, runAfter, nowStr,
			id, StatusProcessing, owner, s.maxAttempts,
		)
		if err != nil {
			return fmt.Errorf("requeue job %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("requeue rows affected: %w", err)
		}
		if affected > 0 {
			return nil
		}
		// Attempts exhausted (or lease lost); fall through to terminal failure.
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?,
             lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND lease_owner = ?`,
		StatusFailed, message, nowStr,
		id, StatusProcessing, owner,
	)
	if err != nil {
		return fmt.Errorf("fail job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// RetryFailed moves failed jobs back to queued for reprocessing, resetting
// the attempt counter. Operator escape hatch, not part of the worker path.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
             SET status = ?, attempts = 0, error_message = NULL, run_after = ?, updated_at = ?
             WHERE status = ?`,
			StatusQueued, now, now, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+4)
	args = append(args, StatusQueued, now, now)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed)
	query := `UPDATE jobs
        SET status = ?, attempts = 0, error_message = NULL, run_after = ?, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}
