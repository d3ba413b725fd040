package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(ErrPermanent, "synthesize", "primary provider", "rejected input", base)
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected permanent marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause to survive")
	}
	if !strings.Contains(err.Error(), "synthesize: primary provider: rejected input") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "compose", "", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		permanent bool
		transient bool
	}{
		{"validation", Wrap(ErrValidation, "enqueue", "", "bad timezone", nil), true, false},
		{"permanent", Wrap(ErrPermanent, "synthesize", "", "", nil), true, false},
		{"rate limited", Wrap(ErrRateLimited, "news", "", "", nil), false, true},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), false, true},
		{"plain", errors.New("mystery"), false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPermanent(tc.err); got != tc.permanent {
				t.Fatalf("IsPermanent = %v, want %v", got, tc.permanent)
			}
			if got := IsTransient(tc.err); got != tc.transient {
				t.Fatalf("IsTransient = %v, want %v", got, tc.transient)
			}
		})
	}
}
