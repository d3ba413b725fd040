package compose

import (
	"strings"

	"daystart/internal/content"
	"daystart/internal/queue"
)

// wordsPerMinute is the narration pace the word budget is derived from.
const wordsPerMinute = 150

// SectionCalendar names the client-supplied calendar section; the other
// section names reuse the content type constants.
const SectionCalendar = "calendar"

// Resolved carries the content available to one briefing, already filtered
// to the sections the job enabled. Nil or empty fields mean the section is
// skipped and its share of the word budget flows to the others.
type Resolved struct {
	Calendar []queue.CalendarEvent
	Weather  *content.WeatherReport
	News     []content.Headline
	Sports   []content.Headline
	Stocks   []content.StockQuote
	Quote    *content.Quote
}

// Sections returns the non-empty section names in narration priority order.
func (r Resolved) Sections() []string {
	sections := make([]string, 0, 6)
	if len(r.Calendar) > 0 {
		sections = append(sections, SectionCalendar)
	}
	if r.Weather != nil {
		sections = append(sections, content.TypeWeather)
	}
	if len(r.News) > 0 {
		sections = append(sections, content.TypeNews)
	}
	if len(r.Sports) > 0 {
		sections = append(sections, content.TypeSports)
	}
	if len(r.Stocks) > 0 {
		sections = append(sections, content.TypeStocks)
	}
	if r.Quote != nil {
		sections = append(sections, content.TypeQuotes)
	}
	return sections
}

// Script is a composed briefing ready for synthesis.
type Script struct {
	Text             string
	WordCount        int
	EstimatedSeconds float64
	Sections         []string
	Polished         bool
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func estimateSeconds(wordCount int) float64 {
	return float64(wordCount) / wordsPerMinute * 60
}
