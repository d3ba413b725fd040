package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/mmcdole/gofeed"

	"daystart/internal/config"
	"daystart/internal/content"
	"daystart/internal/logging"
	"daystart/internal/services"
)

const headlinesPerFeed = 5

// FeedAdapter fetches RSS/Atom category feeds and normalizes them to
// headlines. News and sports share the implementation; only the feed list
// and content type differ.
type FeedAdapter struct {
	contentType string
	feedURLs    []string
	client      *http.Client
	parser      *gofeed.Parser
	budget      requestBudget
	logger      *slog.Logger
}

// NewNewsAdapter builds the news feed adapter from configuration.
func NewNewsAdapter(cfg config.Source, budget *content.Budget, logger *slog.Logger) *FeedAdapter {
	return newFeedAdapter(content.TypeNews, cfg, budget, logger)
}

// NewSportsAdapter builds the sports feed adapter from configuration.
func NewSportsAdapter(cfg config.Source, budget *content.Budget, logger *slog.Logger) *FeedAdapter {
	return newFeedAdapter(content.TypeSports, cfg, budget, logger)
}

func newFeedAdapter(contentType string, cfg config.Source, budget *content.Budget, logger *slog.Logger) *FeedAdapter {
	return &FeedAdapter{
		contentType: contentType,
		feedURLs:    cfg.FeedURLs,
		client:      newHTTPClient(cfg.TimeoutSeconds),
		parser:      gofeed.NewParser(),
		budget:      requestBudget{budget: budget, provider: contentType, limit: cfg.DailyBudget},
		logger:      logging.NewComponentLogger(logger, "sources."+contentType),
	}
}

func (a *FeedAdapter) ContentType() string { return a.contentType }

// Fetch pulls every configured feed, newest items first. A single failing
// feed is logged and skipped; all feeds failing surfaces the last error.
func (a *FeedAdapter) Fetch(ctx context.Context, scope string) (content.Payload, error) {
	if len(a.feedURLs) == 0 {
		return content.Payload{}, services.Wrap(services.ErrNoContent, "sources", a.contentType, "no feeds configured", nil)
	}

	var (
		headlines []content.Headline
		lastErr   error
	)
	for _, feedURL := range a.feedURLs {
		items, err := a.fetchFeed(ctx, feedURL)
		if err != nil {
			lastErr = err
			a.logger.Warn("feed fetch failed",
				logging.String("feed_url", feedURL),
				logging.Error(err))
			continue
		}
		headlines = append(headlines, items...)
	}

	if len(headlines) == 0 {
		if lastErr != nil {
			return content.Payload{}, lastErr
		}
		return content.Payload{}, services.Wrap(services.ErrNoContent, "sources", a.contentType, "feeds returned no items", nil)
	}

	sort.SliceStable(headlines, func(i, j int) bool {
		return headlines[i].PublishedAt.After(headlines[j].PublishedAt)
	})
	return content.Payload{Headlines: headlines}, nil
}

func (a *FeedAdapter) fetchFeed(ctx context.Context, feedURL string) ([]content.Headline, error) {
	if err := a.budget.take(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "sources", a.contentType, "fetch feed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError(a.contentType, resp.StatusCode)
	}

	feed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	source := feed.Title
	count := len(feed.Items)
	if count > headlinesPerFeed {
		count = headlinesPerFeed
	}
	headlines := make([]content.Headline, 0, count)
	for _, item := range feed.Items[:count] {
		headline := content.Headline{
			Title:   item.Title,
			Summary: item.Description,
			Source:  source,
		}
		if item.PublishedParsed != nil {
			headline.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			headline.PublishedAt = *item.UpdatedParsed
		}
		headlines = append(headlines, headline)
	}
	return headlines, nil
}
