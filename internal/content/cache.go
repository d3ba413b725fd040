package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"daystart/internal/logging"
)

// Freshness tags how a cache read was satisfied.
type Freshness string

const (
	// Fresh payloads are within the expiry window (possibly just fetched).
	Fresh Freshness = "fresh"
	// Stale payloads are past expiry but within the grace window, served
	// because the upstream refetch failed.
	Stale Freshness = "stale"
	// Missing means no payload could be produced at all.
	Missing Freshness = "missing"
)

// Result is a tagged cache read.
type Result struct {
	Payload   Payload
	Freshness Freshness
	FetchedAt time.Time
}

// Fetcher produces a normalized payload for one content type. Implementations
// live in internal/sources; the scope narrows the fetch (lat/lon, symbols).
type Fetcher interface {
	ContentType() string
	Fetch(ctx context.Context, scope string) (Payload, error)
}

// Manager serves content reads through the SQLite cache. Fresh rows never
// touch upstream; expired rows are refetched with the stale copy as the
// failure fallback. A singleflight group collapses concurrent misses for the
// same key into one upstream request.
type Manager struct {
	db         *sql.DB
	ttl        time.Duration
	staleGrace time.Duration
	fetchers   map[string]Fetcher
	group      singleflight.Group
	logger     *slog.Logger
}

// NewManager builds a cache manager over the shared database connection.
func NewManager(db *sql.DB, ttl, staleGrace time.Duration, logger *slog.Logger) *Manager {
	if staleGrace < ttl {
		staleGrace = ttl
	}
	return &Manager{
		db:         db,
		ttl:        ttl,
		staleGrace: staleGrace,
		fetchers:   make(map[string]Fetcher),
		logger:     logging.NewComponentLogger(logger, "content"),
	}
}

// Register adds a fetcher for its content type, replacing any previous one.
func (m *Manager) Register(f Fetcher) {
	m.fetchers[f.ContentType()] = f
}

// ContentTypes returns the registered content types.
func (m *Manager) ContentTypes() []string {
	types := make([]string, 0, len(m.fetchers))
	for contentType := range m.fetchers {
		types = append(types, contentType)
	}
	return types
}

// Get returns the payload for (contentType, scope). A fresh cached row is
// returned immediately. An expired or absent row goes upstream; if that
// fails, a row still inside the grace window is served stale, otherwise the
// fetch error is returned with a Missing result.
func (m *Manager) Get(ctx context.Context, contentType, scope string) (Result, error) {
	now := time.Now().UTC()

	cached, err := m.read(ctx, contentType, scope)
	if err != nil {
		return Result{Freshness: Missing}, err
	}
	if cached != nil && now.Before(cached.expiresAt) {
		return Result{Payload: cached.payload, Freshness: Fresh, FetchedAt: cached.fetchedAt}, nil
	}

	fetched, fetchErr := m.fetchShared(ctx, contentType, scope)
	if fetchErr == nil {
		return Result{Payload: fetched, Freshness: Fresh, FetchedAt: now}, nil
	}

	if cached != nil && now.Before(cached.fetchedAt.Add(m.staleGrace)) {
		m.logger.Warn("serving stale content after fetch failure",
			logging.String(logging.FieldContentType, contentType),
			logging.String("scope", scope),
			logging.Error(fetchErr))
		return Result{Payload: cached.payload, Freshness: Stale, FetchedAt: cached.fetchedAt}, nil
	}

	return Result{Freshness: Missing}, fetchErr
}

// RefreshAll refetches every cached scope for the given content types (all
// registered types when none are named). Types with no cached scopes are
// fetched once with an empty scope so the singleton feeds warm up. Returns
// per-type errors; a nil map value means the refresh succeeded.
func (m *Manager) RefreshAll(ctx context.Context, types ...string) map[string]error {
	if len(types) == 0 {
		types = m.ContentTypes()
	}

	results := make(map[string]error, len(types))
	for _, contentType := range types {
		if _, ok := m.fetchers[contentType]; !ok {
			results[contentType] = fmt.Errorf("no fetcher registered for %s", contentType)
			continue
		}
		scopes, err := m.cachedScopes(ctx, contentType)
		if err != nil {
			results[contentType] = err
			continue
		}
		if len(scopes) == 0 {
			scopes = []string{""}
		}

		var firstErr error
		for _, scope := range scopes {
			if _, err := m.fetchShared(ctx, contentType, scope); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		results[contentType] = firstErr
	}
	return results
}

// PurgeExpired deletes rows whose grace window has lapsed. The sweeper calls
// this; returns the number of rows removed.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-m.staleGrace).Format(time.RFC3339Nano)
	res, err := m.db.ExecContext(ctx, `DELETE FROM content_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired cache rows: %w", err)
	}
	return res.RowsAffected()
}

type cachedRow struct {
	payload   Payload
	fetchedAt time.Time
	expiresAt time.Time
}

func (m *Manager) read(ctx context.Context, contentType, scope string) (*cachedRow, error) {
	var (
		payloadJSON string
		fetchedRaw  string
		expiresRaw  string
	)
	err := m.db.QueryRowContext(
		ctx,
		`SELECT payload_json, fetched_at, expires_at FROM content_cache
         WHERE content_type = ? AND scope = ?`,
		contentType, scope,
	).Scan(&payloadJSON, &fetchedRaw, &expiresRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache row %s/%s: %w", contentType, scope, err)
	}

	row := &cachedRow{}
	if err := json.Unmarshal([]byte(payloadJSON), &row.payload); err != nil {
		// Corrupt rows behave like misses; the next fetch overwrites them.
		m.logger.Warn("dropping corrupt cache row",
			logging.String(logging.FieldContentType, contentType),
			logging.String("scope", scope),
			logging.Error(err))
		return nil, nil
	}
	if row.fetchedAt, err = time.Parse(time.RFC3339Nano, fetchedRaw); err != nil {
		return nil, nil
	}
	if row.expiresAt, err = time.Parse(time.RFC3339Nano, expiresRaw); err != nil {
		return nil, nil
	}
	return row, nil
}

func (m *Manager) fetchShared(ctx context.Context, contentType, scope string) (Payload, error) {
	key := contentType + "\x00" + scope
	value, err, _ := m.group.Do(key, func() (any, error) {
		return m.fetchAndStore(ctx, contentType, scope)
	})
	if err != nil {
		return Payload{}, err
	}
	return value.(Payload), nil
}

func (m *Manager) fetchAndStore(ctx context.Context, contentType, scope string) (Payload, error) {
	fetcher, ok := m.fetchers[contentType]
	if !ok {
		return Payload{}, fmt.Errorf("no fetcher registered for %s", contentType)
	}

	payload, err := fetcher.Fetch(ctx, scope)
	if err != nil {
		return Payload{}, err
	}
	payload.ContentType = contentType

	encoded, err := json.Marshal(payload)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal payload %s/%s: %w", contentType, scope, err)
	}

	now := time.Now().UTC()
	_, err = m.db.ExecContext(
		ctx,
		`INSERT INTO content_cache (content_type, scope, payload_json, fetched_at, expires_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(content_type, scope) DO UPDATE SET
             payload_json = excluded.payload_json,
             fetched_at = excluded.fetched_at,
             expires_at = excluded.expires_at`,
		contentType, scope, string(encoded),
		now.Format(time.RFC3339Nano),
		now.Add(m.ttl).Format(time.RFC3339Nano),
	)
	if err != nil {
		return Payload{}, fmt.Errorf("store cache row %s/%s: %w", contentType, scope, err)
	}

	m.logger.Debug("cached upstream payload",
		logging.String(logging.FieldContentType, contentType),
		logging.String("scope", scope))
	return payload, nil
}

func (m *Manager) cachedScopes(ctx context.Context, contentType string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT scope FROM content_cache WHERE content_type = ?`, contentType)
	if err != nil {
		return nil, fmt.Errorf("list cached scopes for %s: %w", contentType, err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}
