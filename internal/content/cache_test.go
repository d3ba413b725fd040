package content_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"daystart/internal/content"
	"daystart/internal/logging"
	"daystart/internal/testsupport"
)

type stubFetcher struct {
	contentType string
	calls       int
	err         error
	payload     content.Payload
}

func (s *stubFetcher) ContentType() string { return s.contentType }

func (s *stubFetcher) Fetch(ctx context.Context, scope string) (content.Payload, error) {
	s.calls++
	if s.err != nil {
		return content.Payload{}, s.err
	}
	return s.payload, nil
}

// blockingFetcher holds every Fetch call until release closes, so a test can
// pile up concurrent readers behind one in-flight fetch.
type blockingFetcher struct {
	contentType string
	release     chan struct{}
	calls       atomic.Int32
	payload     content.Payload
}

func (b *blockingFetcher) ContentType() string { return b.contentType }

func (b *blockingFetcher) Fetch(ctx context.Context, scope string) (content.Payload, error) {
	b.calls.Add(1)
	<-b.release
	return b.payload, nil
}

func newsPayload(title string) content.Payload {
	return content.Payload{Headlines: []content.Headline{{Title: title, Source: "stub"}}}
}

func TestGetFreshDoesNotRefetch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := &stubFetcher{contentType: content.TypeNews, payload: newsPayload("first")}
	manager := content.NewManager(store.DB(), time.Hour, 2*time.Hour, logging.NewNop())
	manager.Register(fetcher)

	ctx := context.Background()
	first, err := manager.Get(ctx, content.TypeNews, "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if first.Freshness != content.Fresh {
		t.Fatalf("expected fresh result, got %s", first.Freshness)
	}
	if len(first.Payload.Headlines) != 1 || first.Payload.Headlines[0].Title != "first" {
		t.Fatalf("unexpected payload: %#v", first.Payload)
	}

	// A second read inside the window is served from the cache.
	fetcher.payload = newsPayload("second")
	again, err := manager.Get(ctx, content.TypeNews, "")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if again.Payload.Headlines[0].Title != "first" {
		t.Fatalf("expected cached payload, got %q", again.Payload.Headlines[0].Title)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", fetcher.calls)
	}
}

func TestGetConcurrentMissesCollapseToOneFetch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := &blockingFetcher{
		contentType: content.TypeNews,
		release:     make(chan struct{}),
		payload:     newsPayload("shared"),
	}
	manager := content.NewManager(store.DB(), time.Hour, 2*time.Hour, logging.NewNop())
	manager.Register(fetcher)

	ctx := context.Background()
	const readers = 6
	results := make([]content.Result, readers)
	errs := make([]error, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = manager.Get(ctx, content.TypeNews, "")
		}(i)
	}

	// Let every reader join the in-flight fetch before it returns.
	time.Sleep(100 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	for i := 0; i < readers; i++ {
		if errs[i] != nil {
			t.Fatalf("reader %d: Get failed: %v", i, errs[i])
		}
		if len(results[i].Payload.Headlines) != 1 || results[i].Payload.Headlines[0].Title != "shared" {
			t.Fatalf("reader %d: unexpected payload: %#v", i, results[i].Payload)
		}
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected a single upstream fetch for concurrent misses, got %d", got)
	}
}

func TestGetExpiredRefetches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := &stubFetcher{contentType: content.TypeNews, payload: newsPayload("first")}
	manager := content.NewManager(store.DB(), time.Hour, 2*time.Hour, logging.NewNop())
	manager.Register(fetcher)

	ctx := context.Background()
	if _, err := manager.Get(ctx, content.TypeNews, ""); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	expireCacheRow(t, store.DB(), content.TypeNews, "", 90*time.Minute)

	fetcher.payload = newsPayload("refetched")
	result, err := manager.Get(ctx, content.TypeNews, "")
	if err != nil {
		t.Fatalf("Get after expiry failed: %v", err)
	}
	if result.Freshness != content.Fresh {
		t.Fatalf("expected fresh result, got %s", result.Freshness)
	}
	if result.Payload.Headlines[0].Title != "refetched" {
		t.Fatalf("expected refetched payload, got %q", result.Payload.Headlines[0].Title)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected 2 upstream fetches, got %d", fetcher.calls)
	}
}

func TestGetServesStaleOnFetchFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := &stubFetcher{contentType: content.TypeNews, payload: newsPayload("original")}
	manager := content.NewManager(store.DB(), time.Hour, 24*time.Hour, logging.NewNop())
	manager.Register(fetcher)

	ctx := context.Background()
	if _, err := manager.Get(ctx, content.TypeNews, ""); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	expireCacheRow(t, store.DB(), content.TypeNews, "", 2*time.Hour)

	fetcher.err = errors.New("upstream down")
	result, err := manager.Get(ctx, content.TypeNews, "")
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if result.Freshness != content.Stale {
		t.Fatalf("expected stale result, got %s", result.Freshness)
	}
	if result.Payload.Headlines[0].Title != "original" {
		t.Fatalf("expected original payload, got %q", result.Payload.Headlines[0].Title)
	}
}

func TestGetMissingWhenFetchFailsWithoutCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := &stubFetcher{contentType: content.TypeNews, err: errors.New("upstream down")}
	manager := content.NewManager(store.DB(), time.Hour, 2*time.Hour, logging.NewNop())
	manager.Register(fetcher)

	result, err := manager.Get(context.Background(), content.TypeNews, "")
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if result.Freshness != content.Missing {
		t.Fatalf("expected missing result, got %s", result.Freshness)
	}
}

func TestGetStaleBeyondGraceIsMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := &stubFetcher{contentType: content.TypeNews, payload: newsPayload("ancient")}
	manager := content.NewManager(store.DB(), time.Hour, 2*time.Hour, logging.NewNop())
	manager.Register(fetcher)

	ctx := context.Background()
	if _, err := manager.Get(ctx, content.TypeNews, ""); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	expireCacheRow(t, store.DB(), content.TypeNews, "", 3*time.Hour)

	fetcher.err = errors.New("upstream down")
	result, err := manager.Get(ctx, content.TypeNews, "")
	if err == nil {
		t.Fatal("expected error past grace window")
	}
	if result.Freshness != content.Missing {
		t.Fatalf("expected missing result, got %s", result.Freshness)
	}
}

func TestRefreshAllRefetchesCachedScopes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	news := &stubFetcher{contentType: content.TypeNews, payload: newsPayload("news")}
	quotes := &stubFetcher{
		contentType: content.TypeQuotes,
		payload:     content.Payload{Quote: &content.Quote{Text: "carpe diem"}},
	}
	manager := content.NewManager(store.DB(), time.Hour, 2*time.Hour, logging.NewNop())
	manager.Register(news)
	manager.Register(quotes)

	ctx := context.Background()
	results := manager.RefreshAll(ctx)
	if len(results) != 2 {
		t.Fatalf("expected 2 refresh results, got %d", len(results))
	}
	for contentType, err := range results {
		if err != nil {
			t.Fatalf("refresh %s failed: %v", contentType, err)
		}
	}
	if news.calls != 1 || quotes.calls != 1 {
		t.Fatalf("expected one fetch per type, got news=%d quotes=%d", news.calls, quotes.calls)
	}

	// Failures surface per type without aborting the others.
	news.err = errors.New("feed down")
	results = manager.RefreshAll(ctx)
	if results[content.TypeNews] == nil {
		t.Fatal("expected news refresh error")
	}
	if results[content.TypeQuotes] != nil {
		t.Fatalf("expected quotes refresh to succeed, got %v", results[content.TypeQuotes])
	}
}

func TestPurgeExpired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := &stubFetcher{contentType: content.TypeNews, payload: newsPayload("old")}
	manager := content.NewManager(store.DB(), time.Hour, 2*time.Hour, logging.NewNop())
	manager.Register(fetcher)

	ctx := context.Background()
	if _, err := manager.Get(ctx, content.TypeNews, ""); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	expireCacheRow(t, store.DB(), content.TypeNews, "", 3*time.Hour)

	removed, err := manager.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 row purged, got %d", removed)
	}
}

// expireCacheRow backdates a cache row so both fetched_at and expires_at sit
// age in the past.
func expireCacheRow(t *testing.T, db *sql.DB, contentType, scope string, age time.Duration) {
	t.Helper()
	backdated := time.Now().UTC().Add(-age)
	_, err := db.Exec(
		`UPDATE content_cache SET fetched_at = ?, expires_at = ? WHERE content_type = ? AND scope = ?`,
		backdated.Format(time.RFC3339Nano),
		backdated.Add(time.Minute).Format(time.RFC3339Nano),
		contentType, scope,
	)
	if err != nil {
		t.Fatalf("backdate cache row: %v", err)
	}
}
