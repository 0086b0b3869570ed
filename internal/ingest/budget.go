// Package ingest produces condition snapshots for active beaches and
// feeds them to the alert pipeline. Providers sit behind a Source seam
// so polling, simulation and stream consumption share one pipeline.
package ingest

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shorewatch/shorewatch/internal/metrics"
)

// ErrBudgetExhausted is returned when an upstream call would exceed the
// provider's daily or monthly allowance.
var ErrBudgetExhausted = fmt.Errorf("upstream call budget exhausted")

// Budget guards calls to one upstream provider. A token bucket smooths
// the short-term request rate while daily and monthly counters cap the
// absolute spend against the provider's plan.
type Budget struct {
	source  string
	limiter *rate.Limiter

	mu           sync.Mutex
	dailyLimit   int
	monthlyLimit int
	dailyUsed    int
	monthlyUsed  int
	day          time.Time
	month        time.Time
	now          func() time.Time
}

// NewBudget creates a budget for the named source. Zero limits mean
// unlimited for that window.
func NewBudget(source string, perSecond float64, burst, dailyLimit, monthlyLimit int) *Budget {
	return &Budget{
		source:       source,
		limiter:      rate.NewLimiter(rate.Limit(perSecond), burst),
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		now:          time.Now,
	}
}

// Allow reserves one upstream call. It fails fast on an exhausted window
// budget; the rate limiter only delays, it never rejects.
func (b *Budget) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll(b.now())
	if (b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit) ||
		(b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit) {
		metrics.UpstreamCallsBudgeted.WithLabelValues(b.source, "denied").Inc()
		return ErrBudgetExhausted
	}
	// Throttled calls never reach the provider, so they do not spend
	// window budget.
	if !b.limiter.Allow() {
		metrics.UpstreamCallsBudgeted.WithLabelValues(b.source, "throttled").Inc()
		return fmt.Errorf("upstream rate limit for %s", b.source)
	}
	b.dailyUsed++
	b.monthlyUsed++
	metrics.UpstreamCallsBudgeted.WithLabelValues(b.source, "allowed").Inc()
	return nil
}

// Remaining reports the unused portion of the daily window, -1 when
// unlimited.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll(b.now())
	if b.dailyLimit == 0 {
		return -1
	}
	return b.dailyLimit - b.dailyUsed
}

// roll resets exhausted windows. Caller holds b.mu.
func (b *Budget) roll(now time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !day.Equal(b.day) {
		b.day = day
		b.dailyUsed = 0
	}
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if !month.Equal(b.month) {
		b.month = month
		b.monthlyUsed = 0
	}
}
