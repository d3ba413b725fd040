package sources

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"daystart/internal/content"
	"daystart/internal/services"
)

const userAgent = "daystart/1.0 (briefing backend; github.com/daystart/daystart)"

// requestBudget is the slice of the shared budget an adapter consumes.
type requestBudget struct {
	budget   *content.Budget
	provider string
	limit    int
}

func (b requestBudget) take(ctx context.Context) error {
	if b.budget == nil {
		return nil
	}
	return b.budget.Take(ctx, b.provider, b.limit)
}

func newHTTPClient(timeoutSeconds int) *http.Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}
	return &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
}

// statusError maps an upstream HTTP status to the error taxonomy: 429 is
// rate-limited, 5xx transient, other 4xx permanent.
func statusError(provider string, status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "sources", provider,
			fmt.Sprintf("upstream returned %d", status), nil)
	case status >= 500:
		return services.Wrap(services.ErrTransient, "sources", provider,
			fmt.Sprintf("upstream returned %d", status), nil)
	default:
		return services.Wrap(services.ErrPermanent, "sources", provider,
			fmt.Sprintf("upstream returned %d", status), nil)
	}
}

// WeatherScope encodes a location into a cache scope key. Coordinates are
// rounded so nearby requests share a cache row.
func WeatherScope(latitude, longitude float64, city string) string {
	scope := strconv.FormatFloat(latitude, 'f', 2, 64) + "," + strconv.FormatFloat(longitude, 'f', 2, 64)
	if city != "" {
		scope += "|" + city
	}
	return scope
}

func parseWeatherScope(scope string) (latitude, longitude float64, city string, err error) {
	coords := scope
	if idx := strings.IndexByte(scope, '|'); idx >= 0 {
		coords = scope[:idx]
		city = scope[idx+1:]
	}
	parts := strings.SplitN(coords, ",", 2)
	if len(parts) != 2 {
		return 0, 0, "", fmt.Errorf("bad weather scope %q", scope)
	}
	if latitude, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return 0, 0, "", fmt.Errorf("bad latitude in scope %q", scope)
	}
	if longitude, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return 0, 0, "", fmt.Errorf("bad longitude in scope %q", scope)
	}
	return latitude, longitude, city, nil
}

// StocksScope encodes a symbol list into a cache scope key. Symbols are
// upper-cased and sorted so equivalent lists share a cache row.
func StocksScope(symbols []string) string {
	normalized := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol != "" {
			normalized = append(normalized, symbol)
		}
	}
	sort.Strings(normalized)
	return strings.Join(normalized, ",")
}

func parseStocksScope(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Split(scope, ",")
}
