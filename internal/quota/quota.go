// Package quota enforces tier-dependent usage ceilings over time windows:
// daily notification sends, live active-rule counts, and hourly/daily API
// call budgets.
package quota

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	gateerrors "github.com/shorewatch/shorewatch/internal/errors"
	"github.com/shorewatch/shorewatch/internal/metrics"
	"github.com/shorewatch/shorewatch/pkg/tiers"
)

// Kind identifies one usage counter.
type Kind string

const (
	KindDailyNotifications Kind = "dailyNotifications"
	KindActiveRuleCount    Kind = "activeRuleCount"
	KindHourlyAPICalls     Kind = "hourlyApiCalls"
	KindDailyAPICalls      Kind = "dailyApiCalls"
)

// Result is the answer to a quota check. ResetAt is set only for
// time-windowed counters so callers can render "try again after X".
type Result struct {
	Allowed   bool       `json:"allowed"`
	Kind      Kind       `json:"kind"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	Unlimited bool       `json:"unlimited,omitempty"`
	ResetAt   *time.Time `json:"resetAt,omitempty"`
}

// CounterStore persists windowed usage counts. RecordCall must be an
// atomic add in the store itself, not an application-level
// read-modify-write: concurrent requests for the same user race, and a
// lost update would admit more than the limit.
type CounterStore interface {
	RecordCall(ctx context.Context, userID string, kind Kind, at time.Time) error
	CountSince(ctx context.Context, userID string, kind Kind, since time.Time) (int, error)

	// Prune discards buckets entirely before the cutoff. Both window kinds
	// look back at most 24h, so anything older is dead weight.
	Prune(ctx context.Context, before time.Time) error
}

// RuleCounter supplies the live active-rule count. activeRuleCount is not
// a windowed counter: it is recomputed on every check, never incremented.
type RuleCounter interface {
	ActiveRuleCount(ctx context.Context, userID string) (int, error)
}

// Tracker answers allow/deny queries against the tier limit table.
type Tracker struct {
	store CounterStore
	rules RuleCounter

	mu       sync.RWMutex
	limitsFn func(tiers.Tier) tiers.Limits

	loc *time.Location
	now func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source. Used by tests to cross window
// boundaries deterministically.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the timezone whose midnight bounds the daily windows.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

// NewTracker creates a quota tracker over the given store and rule counter.
func NewTracker(store CounterStore, rules RuleCounter, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		rules:    rules,
		limitsFn: tiers.LimitsFor,
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetLimits swaps the limit lookup, used when a limits override file is
// hot-reloaded.
func (t *Tracker) SetLimits(fn func(tiers.Tier) tiers.Limits) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.limitsFn = fn
	t.mu.Unlock()
}

func (t *Tracker) limits(tier tiers.Tier) tiers.Limits {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.limitsFn(tier)
}

// Check answers whether one more unit of the given counter kind is allowed
// for the user at their effective tier. The current instant is computed
// once per call so every sub-check observes the same window boundary.
func (t *Tracker) Check(ctx context.Context, userID string, tier tiers.Tier, kind Kind) (Result, error) {
	now := t.now()
	res, err := t.check(ctx, userID, tier, kind, now)
	if err != nil {
		return res, err
	}
	t.observe(res, tier)
	return res, nil
}

func (t *Tracker) check(ctx context.Context, userID string, tier tiers.Tier, kind Kind, now time.Time) (Result, error) {
	l := t.limits(tier)

	switch kind {
	case KindActiveRuleCount:
		return t.checkActiveRules(ctx, userID, l)
	case KindDailyNotifications:
		return t.checkWindow(ctx, userID, kind, l.DailyNotifications, t.midnight(now), t.nextMidnight(now))
	case KindDailyAPICalls:
		return t.checkWindow(ctx, userID, kind, l.DailyAPICalls, t.midnight(now), t.nextMidnight(now))
	case KindHourlyAPICalls:
		// Rolling one-hour lookback, not an aligned clock-hour bucket.
		return t.checkWindow(ctx, userID, kind, l.HourlyAPICalls, now.Add(-time.Hour), now.Add(time.Hour))
	default:
		return Result{Kind: kind}, nil
	}
}

func (t *Tracker) checkActiveRules(ctx context.Context, userID string, l tiers.Limits) (Result, error) {
	res := Result{Kind: KindActiveRuleCount, Limit: l.ActiveRules}
	if l.ActiveRules == 0 {
		res.Allowed = true
		res.Unlimited = true
		return res, nil
	}

	count, err := t.rules.ActiveRuleCount(ctx, userID)
	if err != nil {
		return res, err
	}
	res.Allowed = count < l.ActiveRules
	res.Remaining = max(0, l.ActiveRules-count)
	return res, nil
}

func (t *Tracker) checkWindow(ctx context.Context, userID string, kind Kind, limit int, since, resetAt time.Time) (Result, error) {
	res := Result{Kind: kind, Limit: limit}
	if limit == 0 {
		res.Allowed = true
		res.Unlimited = true
		return res, nil
	}

	count, err := t.store.CountSince(ctx, userID, kind, since)
	if err != nil {
		return res, err
	}
	res.Allowed = count < limit
	res.Remaining = max(0, limit-count)
	if !res.Allowed {
		reset := resetAt
		res.ResetAt = &reset
	}
	return res, nil
}

// CheckAPI runs the ordered API gate: feature flag first (no counter is
// consulted or incremented for tiers without API access), then the daily
// ceiling, then the hourly ceiling where one applies. The reported
// remaining quota is the minimum of the applicable ceilings.
func (t *Tracker) CheckAPI(ctx context.Context, userID string, tier tiers.Tier) (Result, error) {
	now := t.now()
	l := t.limits(tier)

	if !l.APIAccess {
		res := Result{Kind: KindDailyAPICalls, Allowed: false}
		metrics.QuotaDenials.WithLabelValues("apiAccess", string(tier)).Inc()
		return res, gateerrors.NewFeatureUnavailable("quota.api", tiers.TierBusiness)
	}

	daily, err := t.check(ctx, userID, tier, KindDailyAPICalls, now)
	if err != nil {
		return daily, err
	}
	if !daily.Allowed {
		t.observe(daily, tier)
		return daily, gateerrors.NewQuotaExceeded("quota.api.daily", daily.Limit, daily.ResetAt)
	}

	if l.HourlyAPICalls == 0 {
		t.observe(daily, tier)
		return daily, nil
	}

	hourly, err := t.check(ctx, userID, tier, KindHourlyAPICalls, now)
	if err != nil {
		return hourly, err
	}
	if !hourly.Allowed {
		t.observe(hourly, tier)
		return hourly, gateerrors.NewQuotaExceeded("quota.api.hourly", hourly.Limit, hourly.ResetAt)
	}

	res := hourly
	if !daily.Unlimited && daily.Remaining < res.Remaining {
		res.Remaining = daily.Remaining
	}
	t.observe(res, tier)
	return res, nil
}

// Increment records one unit of usage. The store performs the add
// atomically; Check followed by Increment is intentionally not one
// transaction, which is why the add itself must never lose updates.
func (t *Tracker) Increment(ctx context.Context, userID string, kind Kind) error {
	if kind == KindActiveRuleCount {
		// Live count, recomputed on check. Nothing to record.
		return nil
	}
	return t.store.RecordCall(ctx, userID, kind, t.now())
}

// Usage reports the current standing of every counter for display
// ("you are at 8/10 today"). The API counters' zero limit means
// unlimited only for tiers that hold the API feature flag; without it
// they are reported as denied so the display cannot claim unlimited
// access the gate would refuse.
func (t *Tracker) Usage(ctx context.Context, userID string, tier tiers.Tier) (map[Kind]Result, error) {
	now := t.now()
	l := t.limits(tier)
	out := make(map[Kind]Result, 4)
	for _, kind := range []Kind{KindDailyNotifications, KindActiveRuleCount, KindHourlyAPICalls, KindDailyAPICalls} {
		if (kind == KindHourlyAPICalls || kind == KindDailyAPICalls) && !l.APIAccess {
			out[kind] = Result{Kind: kind}
			continue
		}
		res, err := t.check(ctx, userID, tier, kind, now)
		if err != nil {
			return nil, err
		}
		out[kind] = res
	}
	return out, nil
}

// PruneLoop discards expired buckets periodically until ctx is done.
func (t *Tracker) PruneLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := t.now().Add(-25 * time.Hour)
			if err := t.store.Prune(ctx, cutoff); err != nil {
				log.Warn().Err(err).Msg("Quota prune failed")
			}
		}
	}
}

func (t *Tracker) observe(res Result, tier tiers.Tier) {
	result := "allowed"
	if !res.Allowed {
		result = "denied"
		metrics.QuotaDenials.WithLabelValues(string(res.Kind), string(tier)).Inc()
	}
	metrics.QuotaChecks.WithLabelValues(string(res.Kind), result).Inc()
}

// midnight returns local midnight for the day containing now. The boundary
// is computed per check, never cached.
func (t *Tracker) midnight(now time.Time) time.Time {
	local := now.In(t.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, t.loc)
}

func (t *Tracker) nextMidnight(now time.Time) time.Time {
	return t.midnight(now).AddDate(0, 0, 1)
}
