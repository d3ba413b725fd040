package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"daystart/internal/services"
)

// ErrBudgetExhausted is returned when a provider's daily request budget is
// spent. It carries the rate-limited marker so callers classify it transient.
var ErrBudgetExhausted = fmt.Errorf("daily request budget exhausted: %w", services.ErrRateLimited)

// Budget meters upstream requests per provider against a daily window. The
// counter lives in the shared database so every process draws from the same
// allowance.
type Budget struct {
	db *sql.DB
}

// NewBudget wraps the shared database connection.
func NewBudget(db *sql.DB) *Budget {
	return &Budget{db: db}
}

// Take reserves one request from the provider's daily budget. The increment
// and the limit check are a single statement, so concurrent callers cannot
// overdraw. A limit <= 0 disables metering for the provider.
func (b *Budget) Take(ctx context.Context, provider string, dailyLimit int) error {
	window := time.Now().UTC().Format("2006-01-02")
	if dailyLimit <= 0 {
		_, err := b.db.ExecContext(
			ctx,
			`INSERT INTO api_usage (provider, window_start, request_count) VALUES (?, ?, 1)
             ON CONFLICT(provider, window_start) DO UPDATE SET request_count = request_count + 1`,
			provider, window,
		)
		if err != nil {
			return fmt.Errorf("record api usage for %s: %w", provider, err)
		}
		return nil
	}

	res, err := b.db.ExecContext(
		ctx,
		`INSERT INTO api_usage (provider, window_start, request_count) VALUES (?, ?, 1)
         ON CONFLICT(provider, window_start) DO UPDATE SET request_count = request_count + 1
         WHERE api_usage.request_count < ?`,
		provider, window, dailyLimit,
	)
	if err != nil {
		return fmt.Errorf("take budget for %s: %w", provider, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("budget rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("provider %s: %w", provider, ErrBudgetExhausted)
	}
	return nil
}

// Usage returns the request count consumed by the provider today.
func (b *Budget) Usage(ctx context.Context, provider string) (int, error) {
	window := time.Now().UTC().Format("2006-01-02")
	var count int
	err := b.db.QueryRowContext(
		ctx,
		`SELECT request_count FROM api_usage WHERE provider = ? AND window_start = ?`,
		provider, window,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read api usage for %s: %w", provider, err)
	}
	return count, nil
}
