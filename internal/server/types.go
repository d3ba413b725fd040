package server

import (
	"time"

	"daystart/internal/queue"
)

// identityHeader carries the opaque client identity token. A "purchased:"
// prefix marks the paid tier; any other value is anonymous.
const identityHeader = "X-Client-Info"

type createJobRequest struct {
	LocalDate       string                `json:"local_date"`
	ScheduledAt     time.Time             `json:"scheduled_at"`
	Timezone        string                `json:"timezone"`
	PreferredName   string                `json:"preferred_name"`
	VoiceOption     string                `json:"voice_option"`
	DaystartLength  int                   `json:"daystart_length"`
	Welcome         bool                  `json:"welcome"`
	IncludeWeather  bool                  `json:"include_weather"`
	IncludeNews     bool                  `json:"include_news"`
	IncludeSports   bool                  `json:"include_sports"`
	IncludeStocks   bool                  `json:"include_stocks"`
	IncludeCalendar bool                  `json:"include_calendar"`
	IncludeQuotes   bool                  `json:"include_quotes"`
	StockSymbols    []string              `json:"stock_symbols"`
	CalendarEvents  []queue.CalendarEvent `json:"calendar_events"`
	Location        *queue.Location       `json:"location"`
}

type createJobResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type jobStatusResponse struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	Attempts        int     `json:"attempts"`
	AudioURL        string  `json:"audio_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Error           string  `json:"error,omitempty"`
	UpdatedAt       string  `json:"updated_at"`
}

type processResponse struct {
	Status   string `json:"status"`
	BatchMax int    `json:"batch_max"`
}

type refreshResponse struct {
	Results map[string]string `json:"results"`
}

type healthResponse struct {
	Healthy    bool   `json:"healthy"`
	Queued     int    `json:"queued"`
	Processing int    `json:"processing"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Detail     string `json:"detail,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
