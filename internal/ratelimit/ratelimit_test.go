package ratelimit

import (
	"context"
	"testing"
	"time"

	"sketchy/internal/domain"
)

// countStub implements domain.JobRepository with a canned per-key count of
// jobs created within the window.
type countStub struct {
	domain.JobRepository
	counts map[string]int
}

func (s *countStub) CountSince(ctx context.Context, apiKey string, since time.Time) (int, error) {
	return s.counts[apiKey], nil
}

func TestQuotasForTier(t *testing.T) {
	q := DefaultQuotas()
	tests := []struct {
		tier string
		want int
	}{
		{"free", 5},
		{"pro", 50},
		{"enterprise", 500},
		{"", 5},
		{"platinum", 5},
	}
	for _, tc := range tests {
		if got := q.ForTier(tc.tier); got != tc.want {
			t.Errorf("ForTier(%q) = %d, want %d", tc.tier, got, tc.want)
		}
	}
}

func TestLimiterCheck(t *testing.T) {
	now := time.Now()
	stub := &countStub{counts: map[string]int{"k-full": 5, "k-fresh": 0, "k-other": 2}}
	l := NewLimiter(stub, DefaultQuotas())

	usage, err := l.Check(context.Background(), "k-full", "free", now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if usage.Allowed() {
		t.Fatalf("key with 5/5 used was allowed: %+v", usage)
	}
	if usage.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", usage.Remaining())
	}

	// Same usage, higher tier.
	usage, err = l.Check(context.Background(), "k-full", "pro", now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !usage.Allowed() || usage.Limit != 50 {
		t.Fatalf("pro tier denied: %+v", usage)
	}

	// A different caller is unaffected.
	usage, err = l.Check(context.Background(), "k-other", "free", now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !usage.Allowed() || usage.Remaining() != 3 {
		t.Fatalf("unexpected usage for separate key: %+v", usage)
	}

	if got := usage.ResetAt; !got.Equal(now) {
		t.Fatalf("ResetAt = %v, want %v", got, now)
	}
}
