package queue

import (
	"strconv"
	"strings"
	"time"

	"daystart/internal/services"
)

// Status represents the lifecycle of a briefing job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Tier distinguishes purchased from anonymous identity tokens.
type Tier string

const (
	TierPurchased Tier = "purchased"
	TierAnonymous Tier = "anonymous"
)

// CalendarEvent is a client-supplied calendar entry narrated in the briefing.
// Calendar data never transits a source adapter; the device owns it.
type CalendarEvent struct {
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
}

// Location narrows the weather fetch scope.
type Location struct {
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Job represents one briefing generation request persisted in SQLite.
type Job struct {
	ID            int64
	PublicID      string
	IdentityToken string
	Tier          Tier
	LocalDate     string
	ScheduledAt   time.Time
	Timezone      string
	PreferredName string
	Voice         string
	LengthMinutes int
	Welcome       bool

	IncludeWeather  bool
	IncludeNews     bool
	IncludeSports   bool
	IncludeStocks   bool
	IncludeCalendar bool
	IncludeQuotes   bool

	StockSymbols   []string
	CalendarEvents []CalendarEvent
	Location       *Location

	Status         Status
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	RunAfter       time.Time
	Attempts       int

	ArtifactPath     string
	ArtifactDuration float64
	ErrorMessage     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeaseExpired reports whether a processing job's lease has lapsed.
func (j *Job) LeaseExpired(now time.Time) bool {
	if j.Status != StatusProcessing {
		return false
	}
	return j.LeaseExpiresAt == nil || !now.Before(*j.LeaseExpiresAt)
}

// EnabledSections returns the content types requested by the job, in
// narration priority order.
func (j *Job) EnabledSections() []string {
	sections := make([]string, 0, 6)
	if j.IncludeCalendar {
		sections = append(sections, "calendar")
	}
	if j.IncludeWeather {
		sections = append(sections, "weather")
	}
	if j.IncludeNews {
		sections = append(sections, "news")
	}
	if j.IncludeSports {
		sections = append(sections, "sports")
	}
	if j.IncludeStocks {
		sections = append(sections, "stocks")
	}
	if j.IncludeQuotes {
		sections = append(sections, "quotes")
	}
	return sections
}

// NewJobRequest carries the fields accepted by the enqueue operation.
type NewJobRequest struct {
	IdentityToken   string
	Tier            Tier
	LocalDate       string
	ScheduledAt     time.Time
	Timezone        string
	PreferredName   string
	Voice           string
	LengthMinutes   int
	Welcome         bool
	IncludeWeather  bool
	IncludeNews     bool
	IncludeSports   bool
	IncludeStocks   bool
	IncludeCalendar bool
	IncludeQuotes   bool
	StockSymbols    []string
	CalendarEvents  []CalendarEvent
	Location        *Location
}

// Validate checks request fields against the configured bounds. Returned
// errors carry the validation marker so the API layer maps them to 400s.
func (r *NewJobRequest) Validate(maxMinutes, maxAnonymousMinutes int) error {
	if strings.TrimSpace(r.IdentityToken) == "" {
		return services.Wrap(services.ErrValidation, "enqueue", "", "identity token required", nil)
	}
	if _, err := time.Parse("2006-01-02", r.LocalDate); err != nil {
		return services.Wrap(services.ErrValidation, "enqueue", "", "local_date must be YYYY-MM-DD", err)
	}
	if r.ScheduledAt.IsZero() {
		return services.Wrap(services.ErrValidation, "enqueue", "", "scheduled_at required", nil)
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return services.Wrap(services.ErrValidation, "enqueue", "", "unknown timezone "+r.Timezone, err)
	}
	limit := maxMinutes
	if r.Tier != TierPurchased {
		limit = maxAnonymousMinutes
	}
	if r.LengthMinutes < 1 || r.LengthMinutes > limit {
		return services.Wrap(services.ErrValidation, "enqueue", "",
			"daystart_length must be between 1 and "+strconv.Itoa(limit)+" minutes", nil)
	}
	if r.IncludeStocks && len(r.StockSymbols) == 0 {
		return services.Wrap(services.ErrValidation, "enqueue", "", "stock_symbols required when stocks enabled", nil)
	}
	if r.IncludeWeather && r.Location == nil {
		return services.Wrap(services.ErrValidation, "enqueue", "", "location required when weather enabled", nil)
	}
	return nil
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
}

// BatchSummary reports the outcome of one worker invocation.
type BatchSummary struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Requeued  int `json:"requeued"`
	Failed    int `json:"failed"`
	Reclaimed int `json:"reclaimed"`
}
