package llm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"daystart/internal/services/llm"
)

func newTestClient(t *testing.T, serverURL string) *llm.Client {
	t.Helper()
	return llm.NewClient(llm.Config{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Model:   "test-model",
	}, llm.WithSleeper(func(time.Duration) {}))
}

func TestCompleteTextReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Good morning, Taylor."}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	content, err := client.CompleteText(context.Background(), "You narrate briefings.", "Polish this outline.")
	if err != nil {
		t.Fatalf("CompleteText failed: %v", err)
	}
	if content != "Good morning, Taylor." {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestCompleteTextRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"recovered"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	content, err := client.CompleteText(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteText failed: %v", err)
	}
	if content != "recovered" {
		t.Fatalf("unexpected content %q", content)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 requests, got %d", calls.Load())
	}
}

func TestCompleteTextHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"after wait"}}]}`))
	}))
	defer server.Close()

	var slept time.Duration
	client := llm.NewClient(llm.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
	}, llm.WithSleeper(func(d time.Duration) { slept += d }))

	content, err := client.CompleteText(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteText failed: %v", err)
	}
	if content != "after wait" {
		t.Fatalf("unexpected content %q", content)
	}
	if slept != 3*time.Second {
		t.Fatalf("expected a 3s Retry-After sleep, got %s", slept)
	}
}

func TestCompleteTextDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.CompleteText(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single request, got %d", calls.Load())
	}
}

func TestCompleteTextToleratesDeltaSchema(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"delta":{"content":"streamed anyway"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	content, err := client.CompleteText(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteText failed: %v", err)
	}
	if content != "streamed anyway" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestCompleteTextRequiresAPIKey(t *testing.T) {
	client := llm.NewClient(llm.Config{BaseURL: "http://unused", Model: "m"})
	if client.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if _, err := client.CompleteText(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error without api key")
	}
}
