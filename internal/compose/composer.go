package compose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"daystart/internal/content"
	"daystart/internal/logging"
	"daystart/internal/queue"
)

const polishSystemPrompt = `You polish morning audio briefing scripts. You receive a draft script.
Rewrite it into smooth, warm, spoken-word narration for text to speech.
Keep every fact, name, number, and section. Keep roughly the same length.
Return only the narration text, no headings, no markup, no commentary.`

// sectionWeights skew the word budget toward the sections that carry the
// most narration value. Missing sections surrender their share.
var sectionWeights = map[string]float64{
	SectionCalendar:     1.2,
	content.TypeWeather: 1.0,
	content.TypeNews:    1.5,
	content.TypeSports:  1.0,
	content.TypeStocks:  0.8,
	content.TypeQuotes:  0.5,
}

// TextCompleter is the slice of the llm client the composer needs.
type TextCompleter interface {
	Configured() bool
	CompleteText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Composer turns resolved content into a narration script.
type Composer struct {
	llm    TextCompleter
	logger *slog.Logger
	now    func() time.Time
}

// NewComposer builds a composer. The completer may be nil or unconfigured;
// composition then stays fully deterministic.
func NewComposer(completer TextCompleter, logger *slog.Logger) *Composer {
	return &Composer{
		llm:    completer,
		logger: logging.NewComponentLogger(logger, "compose"),
		now:    time.Now,
	}
}

// Compose assembles the script for a job from its resolved content. The word
// count targets length_minutes at the standard narration pace; sections
// follow the fixed priority order and empty sections surrender their budget.
func (c *Composer) Compose(ctx context.Context, job *queue.Job, resolved Resolved) (Script, error) {
	if job.LengthMinutes < 1 {
		return Script{}, fmt.Errorf("compose: invalid length %d", job.LengthMinutes)
	}

	target := job.LengthMinutes * wordsPerMinute
	greeting := renderGreeting(job, c.now())
	closing := renderClosing(job)

	sections := resolved.Sections()
	if len(sections) == 0 {
		text := greeting + "\n\nI don't have any briefing content for you this morning, so today is what you make of it.\n\n" + closing
		words := countWords(text)
		return Script{
			Text:             text,
			WordCount:        words,
			EstimatedSeconds: estimateSeconds(words),
		}, nil
	}

	remaining := target - countWords(greeting) - countWords(closing)
	paragraphs := []string{greeting}
	for i, section := range sections {
		allowance := sectionAllowance(sections[i:], remaining)
		rendered := c.renderSection(section, resolved, allowance)
		if rendered == "" {
			continue
		}
		remaining -= countWords(rendered)
		paragraphs = append(paragraphs, rendered)
	}

	// Pad a short assembly toward the target so the narration does not end
	// abruptly ahead of schedule.
	for _, filler := range fillerLines {
		if wordTotal(paragraphs)+countWords(closing) >= target*85/100 {
			break
		}
		paragraphs = append(paragraphs, filler)
	}
	paragraphs = append(paragraphs, closing)

	text := strings.Join(paragraphs, "\n\n")
	script := Script{
		Text:             text,
		WordCount:        countWords(text),
		EstimatedSeconds: estimateSeconds(countWords(text)),
		Sections:         sections,
	}

	if c.llm != nil && c.llm.Configured() {
		if polished, ok := c.polish(ctx, script); ok {
			return polished, nil
		}
	}
	return script, nil
}

// polish runs the assembled script through the language model. A polished
// result that drifts too far from the draft length is discarded.
func (c *Composer) polish(ctx context.Context, draft Script) (Script, bool) {
	polished, err := c.llm.CompleteText(ctx, polishSystemPrompt, draft.Text)
	if err != nil {
		c.logger.Warn("script polish failed, using draft", logging.Error(err))
		return Script{}, false
	}
	polished = strings.TrimSpace(polished)
	words := countWords(polished)
	if words < draft.WordCount*80/100 || words > draft.WordCount*120/100 {
		c.logger.Warn("polished script length drifted, using draft",
			logging.Int("draft_words", draft.WordCount),
			logging.Int("polished_words", words))
		return Script{}, false
	}
	return Script{
		Text:             polished,
		WordCount:        words,
		EstimatedSeconds: estimateSeconds(words),
		Sections:         draft.Sections,
		Polished:         true,
	}, true
}

func (c *Composer) renderSection(section string, resolved Resolved, allowance int) string {
	switch section {
	case SectionCalendar:
		return renderCalendar(resolved.Calendar, allowance)
	case content.TypeWeather:
		return renderWeather(resolved.Weather)
	case content.TypeNews:
		return renderHeadlines("In the news.", resolved.News, allowance)
	case content.TypeSports:
		return renderHeadlines("Turning to sports.", resolved.Sports, allowance)
	case content.TypeStocks:
		return renderStocks(resolved.Stocks, allowance)
	case content.TypeQuotes:
		return renderQuote(resolved.Quote)
	default:
		return ""
	}
}

// sectionAllowance splits the remaining budget across the sections still to
// be rendered, weighted by section.
func sectionAllowance(pending []string, remaining int) int {
	if remaining <= 0 || len(pending) == 0 {
		return 0
	}
	var total float64
	for _, section := range pending {
		total += sectionWeights[section]
	}
	if total <= 0 {
		return remaining / len(pending)
	}
	return int(float64(remaining) * sectionWeights[pending[0]] / total)
}

func wordTotal(paragraphs []string) int {
	total := 0
	for _, paragraph := range paragraphs {
		total += countWords(paragraph)
	}
	return total
}
