package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"daystart/internal/config"
	"daystart/internal/content"
	"daystart/internal/services"
)

// QuotesAdapter fetches the quote of the day. The scope is unused; there is
// one quote per cache window.
type QuotesAdapter struct {
	baseURL string
	client  *http.Client
	budget  requestBudget
}

// NewQuotesAdapter builds the quote-of-the-day adapter from configuration.
func NewQuotesAdapter(cfg config.Source, budget *content.Budget) *QuotesAdapter {
	return &QuotesAdapter{
		baseURL: cfg.BaseURL,
		client:  newHTTPClient(cfg.TimeoutSeconds),
		budget:  requestBudget{budget: budget, provider: content.TypeQuotes, limit: cfg.DailyBudget},
	}
}

func (a *QuotesAdapter) ContentType() string { return content.TypeQuotes }

type dailyQuote struct {
	Text   string `json:"q"`
	Author string `json:"a"`
}

// Fetch requests today's quote.
func (a *QuotesAdapter) Fetch(ctx context.Context, scope string) (content.Payload, error) {
	if err := a.budget.take(ctx); err != nil {
		return content.Payload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/today", nil)
	if err != nil {
		return content.Payload{}, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return content.Payload{}, services.Wrap(services.ErrTransient, "sources", content.TypeQuotes, "fetch quote", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return content.Payload{}, statusError(content.TypeQuotes, resp.StatusCode)
	}

	var decoded []dailyQuote
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return content.Payload{}, fmt.Errorf("decode quote: %w", err)
	}
	if len(decoded) == 0 || decoded[0].Text == "" {
		return content.Payload{}, services.Wrap(services.ErrNoContent, "sources", content.TypeQuotes, "no quote returned", nil)
	}

	return content.Payload{
		Quote: &content.Quote{Text: decoded[0].Text, Author: decoded[0].Author},
	}, nil
}
