package queue

import (
	"context"
	"fmt"
	"time"
)

// Claim atomically selects up to max eligible jobs and transitions them to
// processing under the caller's lease. Eligible jobs are queued jobs whose
// run_after has passed, plus processing jobs whose lease has expired
// (crashed worker). Welcome jobs claim first, then earliest scheduled time.
//
// SQLite serializes writers, so the per-row guarded UPDATE is the mutual
// exclusion primitive: two concurrent callers racing for the same row see
// exactly one RowsAffected() == 1. The loser skips the row, which is the
// portable equivalent of FOR UPDATE SKIP LOCKED.
func (s *Store) Claim(ctx context.Context, owner string, max int) ([]*Job, error) {
	if owner == "" {
		return nil, fmt.Errorf("claim: owner required")
	}
	if max <= 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	// Over-select candidates; concurrent claimers thin the list via the
	// guarded update below.
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM jobs
         WHERE (status = ? AND run_after <= ?)
            OR (status = ? AND (lease_expires_at IS NULL OR lease_expires_at <= ?))
         ORDER BY welcome DESC, scheduled_at ASC
         LIMIT ?`,
		StatusQueued, nowStr,
		StatusProcessing, nowStr,
		max*2,
	)
	if err != nil {
		return nil, fmt.Errorf("select claim candidates: %w", err)
	}
	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan claim candidate: %w", err)
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim candidates: %w", err)
	}

	leaseExpiry := now.Add(s.leaseDuration).Format(time.RFC3339Nano)
	claimed := make([]*Job, 0, max)
	for _, id := range candidates {
		if len(claimed) >= max {
			break
		}
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
             SET status = ?, lease_owner = ?, lease_expires_at = ?,
                 attempts = attempts + 1, error_message = NULL, updated_at = ?
             WHERE id = ?
               AND ((status = ? AND run_after <= ?)
                 OR (status = ? AND (lease_expires_at IS NULL OR lease_expires_at <= ?)))`,
			StatusProcessing, owner, leaseExpiry, nowStr,
			id,
			StatusQueued, nowStr,
			StatusProcessing, nowStr,
		)
		if err != nil {
			return claimed, fmt.Errorf("claim job %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return claimed, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Another worker won the race; skip quietly.
			continue
		}
		job, err := s.GetByID(ctx, id)
		if err != nil {
			return claimed, err
		}
		if job != nil {
			claimed = append(claimed, job)
		}
	}
	return claimed, nil
}

// ReclaimStale returns processing jobs with expired leases back to queued so
// a later claim can pick them up. Jobs that have exhausted their attempts
// fail terminally instead of looping forever.
func (s *Store) ReclaimStale(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = 'processing lease expired; job failed permanently',
             lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?
           AND attempts >= ?`,
		StatusFailed, now,
		StatusProcessing, now,
		s.maxAttempts,
	)
	if err != nil {
		return 0, fmt.Errorf("fail exhausted stale jobs: %w", err)
	}
	failed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale rows affected: %w", err)
	}

	res, err = s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = 'processing lease expired; reclaimed',
             lease_owner = NULL, lease_expires_at = NULL, run_after = ?, updated_at = ?
         WHERE status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?`,
		StatusQueued, now, now,
		StatusProcessing, now,
	)
	if err != nil {
		return failed, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	requeued, err := res.RowsAffected()
	if err != nil {
		return failed, fmt.Errorf("reclaim rows affected: %w", err)
	}
	return failed + requeued, nil
}
