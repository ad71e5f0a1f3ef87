package ratelimit

import (
	"context"
	"time"

	"sketchy/internal/domain"
)

// Window is the trailing interval over which submissions are counted. It is
// recomputed on every check, so bursts at the boundary are neither double nor
// under penalized.
const Window = time.Hour

// Quotas is the per-tier submission budget for one Window.
type Quotas struct {
	Free       int
	Pro        int
	Enterprise int
}

// DefaultQuotas returns the stock tier budgets.
func DefaultQuotas() Quotas {
	return Quotas{Free: 5, Pro: 50, Enterprise: 500}
}

// ForTier resolves a tier name to its quota. Unknown tiers get the free quota.
func (q Quotas) ForTier(tier string) int {
	switch tier {
	case "pro":
		return q.Pro
	case "enterprise":
		return q.Enterprise
	default:
		return q.Free
	}
}

// Usage is the outcome of one rate-limit check.
type Usage struct {
	Tier    string
	Used    int
	Limit   int
	ResetAt time.Time
}

// Allowed reports whether one more submission fits the window.
func (u Usage) Allowed() bool {
	return u.Used < u.Limit
}

// Remaining returns the submissions left in the window, never negative.
func (u Usage) Remaining() int {
	if u.Limit <= u.Used {
		return 0
	}
	return u.Limit - u.Used
}

// Limiter derives allow/deny decisions from the job store's windowed count.
// It keeps no state of its own, so limiter correctness is exactly store
// correctness.
type Limiter struct {
	jobs   domain.JobRepository
	quotas Quotas
}

func NewLimiter(jobs domain.JobRepository, quotas Quotas) *Limiter {
	return &Limiter{jobs: jobs, quotas: quotas}
}

// Check computes current usage for the caller at now.
func (l *Limiter) Check(ctx context.Context, apiKey, tier string, now time.Time) (Usage, error) {
	since := now.Add(-Window)
	used, err := l.jobs.CountSince(ctx, apiKey, since)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Tier:    tier,
		Used:    used,
		Limit:   l.quotas.ForTier(tier),
		ResetAt: since.Add(Window),
	}, nil
}
