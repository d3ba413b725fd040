package compose

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"daystart/internal/content"
	"daystart/internal/queue"
)

var (
	titleCaser = cases.Title(language.AmericanEnglish)
	tagPattern = regexp.MustCompile(`<[^>]*>`)
)

// Heading converts a section name into its outline heading.
func Heading(section string) string {
	return titleCaser.String(section)
}

func renderGreeting(job *queue.Job, now time.Time) string {
	name := strings.TrimSpace(job.PreferredName)
	date := now
	if parsed, err := time.Parse("2006-01-02", job.LocalDate); err == nil {
		date = parsed
	}
	day := date.Format("Monday, January 2")

	var b strings.Builder
	if job.Welcome {
		b.WriteString("Welcome to DayStart")
		if name != "" {
			b.WriteString(", " + name)
		}
		b.WriteString(". From here on out, this is how your mornings begin. ")
	} else {
		b.WriteString("Good morning")
		if name != "" {
			b.WriteString(", " + name)
		}
		b.WriteString(". ")
	}
	b.WriteString("It's " + day + ", and this is your briefing.")
	return b.String()
}

func renderClosing(job *queue.Job) string {
	if job.Welcome {
		return "That's your first DayStart. Tomorrow's will be waiting when you wake up. Have a great day."
	}
	return "That's everything for this morning. Go make it a good one."
}

func renderCalendar(events []queue.CalendarEvent, allowance int) string {
	if len(events) == 0 {
		return ""
	}
	var b strings.Builder
	if len(events) == 1 {
		b.WriteString("You have one thing on the calendar today. ")
	} else {
		b.WriteString(fmt.Sprintf("You have %d things on the calendar today. ", len(events)))
	}
	for i, event := range events {
		if countWords(b.String()) >= allowance && i > 0 {
			break
		}
		when := ""
		if !event.StartsAt.IsZero() {
			when = " at " + event.StartsAt.Format("3:04 PM")
		}
		switch i {
		case 0:
			b.WriteString(fmt.Sprintf("First, %s%s. ", event.Title, when))
		case len(events) - 1:
			b.WriteString(fmt.Sprintf("And finally, %s%s. ", event.Title, when))
		default:
			b.WriteString(fmt.Sprintf("Then %s%s. ", event.Title, when))
		}
	}
	return strings.TrimSpace(b.String())
}

func renderWeather(report *content.WeatherReport) string {
	if report == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Checking the weather")
	if report.City != "" {
		b.WriteString(" in " + report.City)
	}
	b.WriteString(fmt.Sprintf(", it's %.0f degrees right now with %s. ", report.TemperatureC, report.Condition))
	b.WriteString(fmt.Sprintf("Expect a high of %.0f and a low of %.0f. ", report.HighC, report.LowC))
	switch {
	case report.PrecipChance >= 60:
		b.WriteString(fmt.Sprintf("There's a %d percent chance of precipitation, so plan around it. ", report.PrecipChance))
	case report.PrecipChance >= 20:
		b.WriteString(fmt.Sprintf("There's a %d percent chance of precipitation later on. ", report.PrecipChance))
	default:
		b.WriteString("No rain worth mentioning. ")
	}
	if report.WindSpeedKPH >= 30 {
		b.WriteString(fmt.Sprintf("Winds are up around %.0f kilometers an hour. ", report.WindSpeedKPH))
	}
	return strings.TrimSpace(b.String())
}

func renderHeadlines(intro string, headlines []content.Headline, allowance int) string {
	if len(headlines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(intro + " ")
	for i, headline := range headlines {
		if i > 0 && countWords(b.String()) >= allowance {
			break
		}
		b.WriteString(sentence(headline.Title))
		b.WriteString(" ")
		if summary := cleanSummary(headline.Summary); summary != "" && countWords(b.String())+countWords(summary) <= allowance {
			b.WriteString(sentence(summary))
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

func renderStocks(quotes []content.StockQuote, allowance int) string {
	if len(quotes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("On the markets. ")
	for i, quote := range quotes {
		if i > 0 && countWords(b.String()) >= allowance {
			break
		}
		direction := "up"
		if quote.ChangePercent < 0 {
			direction = "down"
		}
		b.WriteString(fmt.Sprintf("%s is trading at %.2f, %s %.1f percent. ",
			quote.Symbol, quote.Price, direction, abs(quote.ChangePercent)))
	}
	return strings.TrimSpace(b.String())
}

func renderQuote(quote *content.Quote) string {
	if quote == nil || quote.Text == "" {
		return ""
	}
	text := "And here's a thought to carry with you. " + sentence(quote.Text)
	if quote.Author != "" {
		text += " That's from " + quote.Author + "."
	}
	return text
}

// fillerLines pad a short script toward its target length. They read as
// natural sign-off material, so appending a few does not feel like padding.
var fillerLines = []string{
	"Take a breath before the day picks up speed, it tends to go better that way.",
	"If something on that list feels heavy, start with the small piece of it.",
	"Remember, you don't have to do the whole day at once, just the next hour.",
	"Whatever the morning throws at you, you've handled worse and you know it.",
	"Keep some water nearby and step outside at least once if you can.",
}

// sentence normalizes a fragment into one terminated sentence.
func sentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if !strings.ContainsAny(text[len(text)-1:], ".!?") {
		text += "."
	}
	return text
}

// cleanSummary strips markup from feed descriptions and keeps the first
// sentence only.
func cleanSummary(summary string) string {
	summary = tagPattern.ReplaceAllString(summary, " ")
	summary = strings.Join(strings.Fields(summary), " ")
	if idx := strings.IndexAny(summary, ".!?"); idx >= 0 {
		summary = summary[:idx+1]
	}
	return strings.TrimSpace(summary)
}

func abs(value float64) float64 {
	if value < 0 {
		return -value
	}
	return value
}
