// Package alerts runs the alerting pipeline: it matches incoming
// condition snapshots against active rules, resolves the rule owner's
// effective tier, enforces the daily notification quota and hands
// approved events to the dispatch queue.
package alerts

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/shorewatch/shorewatch/internal/metrics"
	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/shorewatch/shorewatch/internal/notifications"
	"github.com/shorewatch/shorewatch/internal/quota"
	"github.com/shorewatch/shorewatch/internal/rules"
	"github.com/shorewatch/shorewatch/internal/tier"
)

// Sink accepts approved alert events for asynchronous delivery.
// *notifications.Queue satisfies it.
type Sink interface {
	Enqueue(event *models.AlertEvent) bool
}

// Broadcaster pushes events to connected live clients.
type Broadcaster interface {
	BroadcastEvent(event *models.AlertEvent)
}

// Manager drives snapshot processing. One Manager serves all beaches.
type Manager struct {
	ruleStore  models.RuleStore
	beachStore models.BeachStore
	resolver   *tier.Resolver
	tracker    *quota.Tracker
	sink       Sink
	broadcast  Broadcaster
	history    *History
	now        func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithBroadcaster attaches a live-event broadcaster.
func WithBroadcaster(b Broadcaster) Option {
	return func(m *Manager) { m.broadcast = b }
}

// WithHistorySize overrides the history ring capacity.
func WithHistorySize(n int) Option {
	return func(m *Manager) { m.history = NewHistory(n) }
}

func NewManager(ruleStore models.RuleStore, beachStore models.BeachStore, resolver *tier.Resolver, tracker *quota.Tracker, sink Sink, opts ...Option) *Manager {
	m := &Manager{
		ruleStore:  ruleStore,
		beachStore: beachStore,
		resolver:   resolver,
		tracker:    tracker,
		sink:       sink,
		history:    NewHistory(defaultHistorySize),
		now:        time.Now,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats summarizes one snapshot pass.
type Stats struct {
	RulesChecked int
	Triggered    int
	Approved     int
	DeniedQuota  int
	DeniedTier   int
}

// ProcessSnapshot evaluates every active rule for the snapshot's beach.
// A failure for one rule owner is logged and skipped; it never aborts
// the pass for the remaining rules.
func (m *Manager) ProcessSnapshot(ctx context.Context, snap models.ConditionSnapshot) (Stats, error) {
	var stats Stats

	matched, err := m.ruleStore.ActiveRulesForBeach(ctx, snap.BeachID)
	if err != nil {
		return stats, err
	}
	stats.RulesChecked = len(matched)

	beachName := snap.BeachID
	if beach, err := m.beachStore.GetBeach(ctx, snap.BeachID); err == nil && beach != nil {
		beachName = beach.Name
	}

	for _, rule := range matched {
		outcome := rules.Evaluate(rule, snap)
		if !outcome.Triggered {
			continue
		}
		stats.Triggered++

		event := m.gate(ctx, rule, snap, beachName)
		m.record(event)
		switch event.Outcome {
		case models.OutcomeApproved:
			stats.Approved++
		case models.OutcomeDeniedByQuota:
			stats.DeniedQuota++
		case models.OutcomeDeniedByTier:
			stats.DeniedTier++
		}
	}

	log.Debug().
		Str("beachID", snap.BeachID).
		Int("rules", stats.RulesChecked).
		Int("triggered", stats.Triggered).
		Int("approved", stats.Approved).
		Msg("Snapshot processed")
	return stats, nil
}

// gate runs a triggered rule through tier and quota enforcement and
// returns the resulting event. The daily notification counter is only
// incremented for approved events.
func (m *Manager) gate(ctx context.Context, rule models.AlertRule, snap models.ConditionSnapshot, beachName string) *models.AlertEvent {
	event := &models.AlertEvent{
		ID:           m.newEventID(),
		RuleID:       rule.ID,
		UserID:       rule.UserID,
		BeachID:      rule.BeachID,
		Metric:       rule.Metric,
		Message:      rules.Message(rule, beachName, snap),
		SnapshotTime: snap.Timestamp,
		TriggeredAt:  m.now(),
	}

	access, err := m.resolver.Effective(ctx, rule.UserID)
	if err != nil {
		log.Error().Err(err).
			Str("ruleID", rule.ID).
			Str("userID", rule.UserID).
			Msg("Failed to resolve tier for triggered rule")
		event.Outcome = models.OutcomeDeniedByTier
		return event
	}
	if access.HardDenied {
		event.Outcome = models.OutcomeDeniedByTier
		return event
	}

	event.Channels = notifications.FilterChannels(access.Effective, rule.Channels)
	if len(event.Channels) == 0 {
		event.Outcome = models.OutcomeDeniedByTier
		return event
	}

	res, err := m.tracker.Check(ctx, rule.UserID, access.Effective, quota.KindDailyNotifications)
	if err != nil {
		log.Error().Err(err).
			Str("ruleID", rule.ID).
			Str("userID", rule.UserID).
			Msg("Quota check failed for triggered rule")
		event.Outcome = models.OutcomeDeniedByQuota
		return event
	}
	if !res.Allowed {
		event.Outcome = models.OutcomeDeniedByQuota
		return event
	}

	// Count before dispatch so a full queue still consumes quota and a
	// burst cannot exceed the daily limit.
	if err := m.tracker.Increment(ctx, rule.UserID, quota.KindDailyNotifications); err != nil {
		log.Error().Err(err).Str("userID", rule.UserID).Msg("Failed to record notification usage")
	}
	event.Outcome = models.OutcomeApproved

	m.sink.Enqueue(event)
	if m.broadcast != nil {
		m.broadcast.BroadcastEvent(event)
	}
	return event
}

func (m *Manager) record(event *models.AlertEvent) {
	metrics.EventsDispatched.WithLabelValues(string(event.Outcome)).Inc()
	m.history.Add(event)
}

// History returns recent alert events, newest first.
func (m *Manager) History(n int) []*models.AlertEvent {
	return m.history.Recent(n)
}

// HistoryForUser returns the user's recent alert events, newest first.
func (m *Manager) HistoryForUser(userID string, n int) []*models.AlertEvent {
	return m.history.RecentForUser(userID, n)
}

// newEventID returns a ULID. Monotonic entropy keeps IDs ordered within
// the same millisecond.
func (m *Manager) newEventID() string {
	m.entropyMu.Lock()
	defer m.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(m.now()), m.entropy).String()
}
