package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"daystart/internal/config"
	"daystart/internal/content"
	"daystart/internal/services"
)

// StocksAdapter fetches market snapshots for a symbol list. The scope is the
// normalized comma-joined symbol list.
type StocksAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	budget  requestBudget
}

// NewStocksAdapter builds the market data adapter from configuration.
func NewStocksAdapter(cfg config.Source, budget *content.Budget) *StocksAdapter {
	return &StocksAdapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.TimeoutSeconds),
		budget:  requestBudget{budget: budget, provider: content.TypeStocks, limit: cfg.DailyBudget},
	}
}

func (a *StocksAdapter) ContentType() string { return content.TypeStocks }

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol        string  `json:"symbol"`
			Price         float64 `json:"regularMarketPrice"`
			Change        float64 `json:"regularMarketChange"`
			ChangePercent float64 `json:"regularMarketChangePercent"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// Fetch requests one batch quote for all scoped symbols.
func (a *StocksAdapter) Fetch(ctx context.Context, scope string) (content.Payload, error) {
	symbols := parseStocksScope(scope)
	if len(symbols) == 0 {
		return content.Payload{}, services.Wrap(services.ErrPermanent, "sources", content.TypeStocks, "empty symbol scope", nil)
	}

	if err := a.budget.take(ctx); err != nil {
		return content.Payload{}, err
	}

	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/quote?"+query.Encode(), nil)
	if err != nil {
		return content.Payload{}, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return content.Payload{}, services.Wrap(services.ErrTransient, "sources", content.TypeStocks, "fetch quotes", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return content.Payload{}, statusError(content.TypeStocks, resp.StatusCode)
	}

	var decoded quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return content.Payload{}, fmt.Errorf("decode quotes: %w", err)
	}

	quotes := make([]content.StockQuote, 0, len(decoded.QuoteResponse.Result))
	for _, result := range decoded.QuoteResponse.Result {
		quotes = append(quotes, content.StockQuote{
			Symbol:        result.Symbol,
			Price:         result.Price,
			Change:        result.Change,
			ChangePercent: result.ChangePercent,
		})
	}
	if len(quotes) == 0 {
		return content.Payload{}, services.Wrap(services.ErrNoContent, "sources", content.TypeStocks, "no quotes returned", nil)
	}
	return content.Payload{Stocks: quotes}, nil
}
