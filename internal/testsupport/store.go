package testsupport

import (
	"context"
	"testing"
	"time"

	"daystart/internal/config"
	"daystart/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// JobRequest returns a valid enqueue request for the given identity and
// local date. Tests adjust fields as needed before enqueueing.
func JobRequest(identity, localDate string) queue.NewJobRequest {
	return queue.NewJobRequest{
		IdentityToken: identity,
		Tier:          queue.TierPurchased,
		LocalDate:     localDate,
		ScheduledAt:   time.Now().UTC(),
		Timezone:      "UTC",
		PreferredName: "Taylor",
		Voice:         "morning_calm",
		LengthMinutes: 3,
		IncludeNews:   true,
	}
}

// NewJob enqueues a job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, identity, localDate string) *queue.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), JobRequest(identity, localDate))
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
