package content_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"daystart/internal/content"
	"daystart/internal/services"
	"daystart/internal/testsupport"
)

func TestBudgetTakeUntilExhausted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	budget := content.NewBudget(store.DB())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := budget.Take(ctx, "weather", 3); err != nil {
			t.Fatalf("take %d failed: %v", i+1, err)
		}
	}

	err := budget.Take(ctx, "weather", 3)
	if !errors.Is(err, content.ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate-limited marker, got %v", err)
	}
	if !services.IsTransient(err) {
		t.Fatal("expected exhausted budget to classify transient")
	}

	count, err := budget.Usage(ctx, "weather")
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected usage 3, got %d", count)
	}
}

func TestBudgetProvidersAreIndependent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	budget := content.NewBudget(store.DB())

	ctx := context.Background()
	if err := budget.Take(ctx, "news", 1); err != nil {
		t.Fatalf("take news failed: %v", err)
	}
	if err := budget.Take(ctx, "news", 1); !errors.Is(err, content.ErrBudgetExhausted) {
		t.Fatalf("expected news budget exhausted, got %v", err)
	}
	if err := budget.Take(ctx, "stocks", 1); err != nil {
		t.Fatalf("expected stocks budget untouched, got %v", err)
	}
}

func TestBudgetUnlimitedWhenNoLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	budget := content.NewBudget(store.DB())

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := budget.Take(ctx, "quotes", 0); err != nil {
			t.Fatalf("take %d failed: %v", i+1, err)
		}
	}
	count, err := budget.Usage(ctx, "quotes")
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if count != 10 {
		t.Fatalf("expected usage 10, got %d", count)
	}
}

func TestBudgetConcurrentTakesNeverOverdraw(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	budget := content.NewBudget(store.DB())

	const limit = 8
	const callers = 4
	const perCaller = 5

	ctx := context.Background()
	granted := make([]int, callers)
	var wg sync.WaitGroup
	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for i := 0; i < perCaller; i++ {
				err := budget.Take(ctx, "sports", limit)
				if err == nil {
					granted[c]++
					continue
				}
				if !errors.Is(err, content.ErrBudgetExhausted) {
					t.Errorf("caller %d: unexpected error: %v", c, err)
					return
				}
			}
		}(c)
	}
	wg.Wait()

	total := 0
	for c, n := range granted {
		total += n
		if n > perCaller {
			t.Fatalf("caller %d granted %d takes, more than requested", c, n)
		}
	}
	if total != limit {
		t.Fatalf("expected exactly %d grants across callers, got %d", limit, total)
	}
}
