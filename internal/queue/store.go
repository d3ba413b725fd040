package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"daystart/internal/config"
	"daystart/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string

	leaseDuration    time.Duration
	retryBackoff     time.Duration
	maxAttempts      int
	duplicateLockout time.Duration
	maxMinutes       int
	maxAnonMinutes   int
}

// Open initializes or connects to the database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	// Pragmas ride in the DSN so every pooled connection gets them, not just
	// the one that happens to execute a PRAGMA statement.
	dbPath := cfg.DatabasePath()
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{
		db:               db,
		path:             dbPath,
		leaseDuration:    time.Duration(cfg.Jobs.LeaseSeconds) * time.Second,
		retryBackoff:     time.Duration(cfg.Jobs.RetryBackoffSeconds) * time.Second,
		maxAttempts:      cfg.Jobs.MaxAttempts,
		duplicateLockout: time.Duration(cfg.Jobs.DuplicateLockoutMinutes) * time.Minute,
		maxMinutes:       cfg.Jobs.MaxMinutes,
		maxAnonMinutes:   cfg.Jobs.MaxAnonymousMinutes,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the shared connection for sibling stores (content cache,
// usage counters, cleanup log) that live in the same database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// MaxAttempts returns the configured retry ceiling.
func (s *Store) MaxAttempts() int {
	return s.maxAttempts
}

// Enqueue validates the request and inserts a new queued job. An active job
// (queued or processing) for the same identity token and local date, or a
// job completed within the duplicate lockout window, rejects the request
// with ErrDuplicateJob.
func (s *Store) Enqueue(ctx context.Context, req NewJobRequest) (*Job, error) {
	if err := req.Validate(s.maxMinutes, s.maxAnonMinutes); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	symbolsJSON, err := marshalNullable(req.StockSymbols)
	if err != nil {
		return nil, fmt.Errorf("marshal stock symbols: %w", err)
	}
	eventsJSON, err := marshalNullable(req.CalendarEvents)
	if err != nil {
		return nil, fmt.Errorf("marshal calendar events: %w", err)
	}
	locationJSON, err := marshalNullable(req.Location)
	if err != nil {
		return nil, fmt.Errorf("marshal location: %w", err)
	}

	tier := req.Tier
	if tier != TierPurchased {
		tier = TierAnonymous
	}

	// The duplicate check and the insert are one statement so two concurrent
	// enqueues for the same identity and date cannot both pass the check.
	timestamp := now.Format(time.RFC3339Nano)
	lockoutCutoff := now.Add(-s.duplicateLockout).Format(time.RFC3339Nano)
	publicID := uuid.NewString()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            public_id, identity_token, tier, local_date, scheduled_at, timezone,
            preferred_name, voice, length_minutes, welcome,
            include_weather, include_news, include_sports, include_stocks,
            include_calendar, include_quotes,
            stock_symbols_json, calendar_events_json, location_json,
            status, run_after, created_at, updated_at
        ) SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
         WHERE NOT EXISTS (
             SELECT 1 FROM jobs
              WHERE identity_token = ? AND local_date = ?
                AND (status IN (?, ?) OR (status = ? AND updated_at >= ?))
         )`,
		publicID,
		req.IdentityToken,
		string(tier),
		req.LocalDate,
		req.ScheduledAt.UTC().Format(time.RFC3339Nano),
		req.Timezone,
		nullableString(req.PreferredName),
		nullableString(req.Voice),
		req.LengthMinutes,
		boolToInt(req.Welcome),
		boolToInt(req.IncludeWeather),
		boolToInt(req.IncludeNews),
		boolToInt(req.IncludeSports),
		boolToInt(req.IncludeStocks),
		boolToInt(req.IncludeCalendar),
		boolToInt(req.IncludeQuotes),
		symbolsJSON,
		eventsJSON,
		locationJSON,
		StatusQueued,
		timestamp,
		timestamp,
		timestamp,
		req.IdentityToken,
		req.LocalDate,
		StatusQueued,
		StatusProcessing,
		StatusCompleted,
		lockoutCutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert job rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrDuplicateJob
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by internal identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByPublicID fetches a job by the identifier handed to clients.
func (s *Store) GetByPublicID(ctx context.Context, publicID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE public_id = ?`, publicID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by public id: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

const jobColumns = "id, public_id, identity_token, tier, local_date, scheduled_at, timezone, " +
	"preferred_name, voice, length_minutes, welcome, " +
	"include_weather, include_news, include_sports, include_stocks, include_calendar, include_quotes, " +
	"stock_symbols_json, calendar_events_json, location_json, " +
	"status, lease_owner, lease_expires_at, run_after, attempts, " +
	"artifact_path, artifact_duration, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		publicID        string
		identityToken   string
		tier            string
		localDate       string
		scheduledRaw    string
		timezone        string
		preferredName   sql.NullString
		voice           sql.NullString
		lengthMinutes   int
		welcome         int
		incWeather      int
		incNews         int
		incSports       int
		incStocks       int
		incCalendar     int
		incQuotes       int
		symbolsJSON     sql.NullString
		eventsJSON      sql.NullString
		locationJSON    sql.NullString
		statusStr       string
		leaseOwner      sql.NullString
		leaseExpiresRaw sql.NullString
		runAfterRaw     string
		attempts        int
		artifactPath    sql.NullString
		artifactDur     float64
		errorMessage    sql.NullString
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id, &publicID, &identityToken, &tier, &localDate, &scheduledRaw, &timezone,
		&preferredName, &voice, &lengthMinutes, &welcome,
		&incWeather, &incNews, &incSports, &incStocks, &incCalendar, &incQuotes,
		&symbolsJSON, &eventsJSON, &locationJSON,
		&statusStr, &leaseOwner, &leaseExpiresRaw, &runAfterRaw, &attempts,
		&artifactPath, &artifactDur, &errorMessage, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		PublicID:         publicID,
		IdentityToken:    identityToken,
		Tier:             Tier(tier),
		LocalDate:        localDate,
		Timezone:         timezone,
		PreferredName:    preferredName.String,
		Voice:            voice.String,
		LengthMinutes:    lengthMinutes,
		Welcome:          welcome != 0,
		IncludeWeather:   incWeather != 0,
		IncludeNews:      incNews != 0,
		IncludeSports:    incSports != 0,
		IncludeStocks:    incStocks != 0,
		IncludeCalendar:  incCalendar != 0,
		IncludeQuotes:    incQuotes != 0,
		Status:           Status(statusStr),
		LeaseOwner:       leaseOwner.String,
		Attempts:         attempts,
		ArtifactPath:     artifactPath.String,
		ArtifactDuration: artifactDur,
		ErrorMessage:     errorMessage.String,
	}

	if symbolsJSON.Valid && symbolsJSON.String != "" {
		if err := json.Unmarshal([]byte(symbolsJSON.String), &job.StockSymbols); err != nil {
			return nil, services.Wrap(services.ErrPermanent, "queue", "scan job", "corrupt stock symbols", err)
		}
	}
	if eventsJSON.Valid && eventsJSON.String != "" {
		if err := json.Unmarshal([]byte(eventsJSON.String), &job.CalendarEvents); err != nil {
			return nil, services.Wrap(services.ErrPermanent, "queue", "scan job", "corrupt calendar events", err)
		}
	}
	if locationJSON.Valid && locationJSON.String != "" {
		var loc Location
		if err := json.Unmarshal([]byte(locationJSON.String), &loc); err != nil {
			return nil, services.Wrap(services.ErrPermanent, "queue", "scan job", "corrupt location", err)
		}
		job.Location = &loc
	}

	if scheduled, err := parseTimeString(scheduledRaw); err == nil {
		job.ScheduledAt = scheduled
	}
	if runAfter, err := parseTimeString(runAfterRaw); err == nil {
		job.RunAfter = runAfter
	}
	if leaseExpiresRaw.Valid {
		if expires, err := parseTimeString(leaseExpiresRaw.String); err == nil {
			job.LeaseExpiresAt = &expires
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func marshalNullable(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
	case []CalendarEvent:
		if len(v) == 0 {
			return nil, nil
		}
	case *Location:
		if v == nil {
			return nil, nil
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
