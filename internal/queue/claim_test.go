package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"daystart/internal/queue"
	"daystart/internal/testsupport"
)

func TestClaimLeasesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "identity-claim", "2026-03-02")

	claimed, err := store.Claim(ctx, "worker-a", 1)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != job.ID {
		t.Fatalf("unexpected claim result: %#v", claimed)
	}
	got := claimed[0]
	if got.Status != queue.StatusProcessing {
		t.Fatalf("expected processing, got %s", got.Status)
	}
	if got.LeaseOwner != "worker-a" {
		t.Fatalf("expected lease owner worker-a, got %q", got.LeaseOwner)
	}
	if got.LeaseExpiresAt == nil || !got.LeaseExpiresAt.After(time.Now()) {
		t.Fatalf("expected future lease expiry, got %v", got.LeaseExpiresAt)
	}
	if got.Attempts != 1 {
		t.Fatalf("expected attempts 1, got %d", got.Attempts)
	}

	// The job is leased; a second caller sees nothing.
	other, err := store.Claim(ctx, "worker-b", 1)
	if err != nil {
		t.Fatalf("second Claim failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no jobs for second claimer, got %d", len(other))
	}
}

func TestClaimOrdersWelcomeFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "identity-regular", "2026-03-02")

	req := testsupport.JobRequest("identity-welcome", "2026-03-02")
	req.Welcome = true
	welcome, err := store.Enqueue(ctx, req)
	if err != nil {
		t.Fatalf("Enqueue welcome failed: %v", err)
	}

	claimed, err := store.Claim(ctx, "worker-a", 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("Claim failed: %v (%d claimed)", err, len(claimed))
	}
	if claimed[0].ID != welcome.ID {
		t.Fatalf("expected welcome job claimed first, got job %d", claimed[0].ID)
	}
}

func TestClaimRespectsRunAfter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "identity-deferred", "2026-03-02")

	future := time.Now().UTC().Add(time.Hour)
	if _, err := store.DB().ExecContext(ctx,
		`UPDATE jobs SET run_after = ? WHERE id = ?`,
		future.Format(time.RFC3339Nano), job.ID,
	); err != nil {
		t.Fatalf("defer job: %v", err)
	}

	claimed, err := store.Claim(ctx, "worker-a", 1)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("expected deferred job to stay queued, got %d claimed", len(claimed))
	}
}

func TestClaimConcurrentPartitionsJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const jobCount = 20
	for i := 0; i < jobCount; i++ {
		testsupport.NewJob(t, store, fmt.Sprintf("identity-race-%d", i), "2026-03-02")
	}

	const workers = 4
	results := make([][]*queue.Job, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			owner := fmt.Sprintf("worker-%d", w)
			for {
				claimed, err := store.Claim(ctx, owner, 3)
				if err != nil {
					t.Errorf("%s: Claim failed: %v", owner, err)
					return
				}
				if len(claimed) == 0 {
					return
				}
				results[w] = append(results[w], claimed...)
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[int64]string, jobCount)
	total := 0
	for w, claimed := range results {
		owner := fmt.Sprintf("worker-%d", w)
		for _, job := range claimed {
			if prev, dup := seen[job.ID]; dup {
				t.Fatalf("job %d claimed by both %s and %s", job.ID, prev, owner)
			}
			seen[job.ID] = owner
			total++
		}
	}
	if total != jobCount {
		t.Fatalf("expected %d jobs claimed exactly once, got %d", jobCount, total)
	}

	processing, err := store.List(ctx, queue.StatusProcessing)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(processing) != jobCount {
		t.Fatalf("expected %d processing jobs, got %d", jobCount, len(processing))
	}
}

func TestClaimPicksUpExpiredLease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "identity-expired", "2026-03-02")

	if _, err := store.Claim(ctx, "worker-crashed", 1); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	expired := time.Now().UTC().Add(-time.Minute)
	if _, err := store.DB().ExecContext(ctx,
		`UPDATE jobs SET lease_expires_at = ? WHERE id = ?`,
		expired.Format(time.RFC3339Nano), job.ID,
	); err != nil {
		t.Fatalf("expire lease: %v", err)
	}

	claimed, err := store.Claim(ctx, "worker-rescue", 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("rescue Claim failed: %v (%d claimed)", err, len(claimed))
	}
	if claimed[0].LeaseOwner != "worker-rescue" {
		t.Fatalf("expected rescue worker to hold lease, got %q", claimed[0].LeaseOwner)
	}
	if claimed[0].Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", claimed[0].Attempts)
	}

	// The crashed worker's lease is gone; its completion attempt must fail.
	if err := store.Complete(ctx, "worker-crashed", job.ID, "/tmp/stale.mp3", 60); err == nil {
		t.Fatal("expected stale completion to be rejected")
	}
}

func TestReclaimStaleRequeuesExpiredLeases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "identity-reclaim", "2026-03-02")

	if _, err := store.Claim(ctx, "worker-a", 1); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	// An active lease is left alone.
	count, err := store.ReclaimStale(ctx)
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no reclaims for active lease, got %d", count)
	}

	expired := time.Now().UTC().Add(-time.Minute)
	if _, err := store.DB().ExecContext(ctx,
		`UPDATE jobs SET lease_expires_at = ? WHERE id = ?`,
		expired.Format(time.RFC3339Nano), job.ID,
	); err != nil {
		t.Fatalf("expire lease: %v", err)
	}

	count, err = store.ReclaimStale(ctx)
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaim, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Status != queue.StatusQueued {
		t.Fatalf("expected queued after reclaim, got %s", reclaimed.Status)
	}
	if reclaimed.LeaseOwner != "" || reclaimed.LeaseExpiresAt != nil {
		t.Fatalf("expected lease cleared, got %#v", reclaimed)
	}
}

func TestReclaimStaleFailsExhaustedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(1))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "identity-reclaim-exhausted", "2026-03-02")

	if _, err := store.Claim(ctx, "worker-a", 1); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	expired := time.Now().UTC().Add(-time.Minute)
	if _, err := store.DB().ExecContext(ctx,
		`UPDATE jobs SET lease_expires_at = ? WHERE id = ?`,
		expired.Format(time.RFC3339Nano), job.ID,
	); err != nil {
		t.Fatalf("expire lease: %v", err)
	}

	if _, err := store.ReclaimStale(ctx); err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("expected terminal failure, got %s", final.Status)
	}
}
