package alerts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/shorewatch/shorewatch/internal/quota"
	"github.com/shorewatch/shorewatch/internal/tier"
	"github.com/shorewatch/shorewatch/pkg/tiers"
)

type memUserStore struct {
	users map[string]*models.User
}

func (s *memUserStore) GetUser(_ context.Context, id string) (*models.User, error) {
	u := *s.users[id]
	return &u, nil
}

func (s *memUserStore) DowngradeTrial(_ context.Context, id string) (bool, error) {
	u := s.users[id]
	if u.Status != models.StatusTrial {
		return false, nil
	}
	u.Tier = tiers.TierFree
	u.Status = models.StatusActive
	return true, nil
}

type memRuleStore struct {
	rules []models.AlertRule
}

func (s *memRuleStore) GetRule(_ context.Context, ruleID string) (*models.AlertRule, error) {
	for i := range s.rules {
		if s.rules[i].ID == ruleID {
			copied := s.rules[i]
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("rule %s not found", ruleID)
}

func (s *memRuleStore) ActiveRulesForBeach(_ context.Context, beachID string) ([]models.AlertRule, error) {
	var out []models.AlertRule
	for _, r := range s.rules {
		if r.BeachID == beachID && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRuleStore) ActiveRuleCount(_ context.Context, userID string) (int, error) {
	n := 0
	for _, r := range s.rules {
		if r.UserID == userID && r.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *memRuleStore) CreateRule(_ context.Context, rule *models.AlertRule) error {
	s.rules = append(s.rules, *rule)
	return nil
}

func (s *memRuleStore) SetRuleActive(_ context.Context, ruleID string, active bool) error {
	for i := range s.rules {
		if s.rules[i].ID == ruleID {
			s.rules[i].IsActive = active
		}
	}
	return nil
}

type memBeachStore struct {
	beaches map[string]*models.Beach
}

func (s *memBeachStore) ListActiveBeaches(_ context.Context) ([]models.Beach, error) {
	var out []models.Beach
	for _, b := range s.beaches {
		out = append(out, *b)
	}
	return out, nil
}

func (s *memBeachStore) GetBeach(_ context.Context, id string) (*models.Beach, error) {
	return s.beaches[id], nil
}

type captureSink struct {
	events []*models.AlertEvent
}

func (c *captureSink) Enqueue(event *models.AlertEvent) bool {
	c.events = append(c.events, event)
	return true
}

type fixture struct {
	manager *Manager
	sink    *captureSink
	users   *memUserStore
	rules   *memRuleStore
}

func newFixture(t *testing.T, user *models.User, rule models.AlertRule) *fixture {
	t.Helper()
	users := &memUserStore{users: map[string]*models.User{user.ID: user}}
	ruleStore := &memRuleStore{rules: []models.AlertRule{rule}}
	beaches := &memBeachStore{beaches: map[string]*models.Beach{
		"waikiki": {ID: "waikiki", Name: "Waikiki Beach", IsActive: true},
	}}
	sink := &captureSink{}
	resolver := tier.NewResolver(users)
	tracker := quota.NewTracker(quota.NewMemoryStore(), ruleStore)
	m := NewManager(ruleStore, beaches, resolver, tracker, sink)
	return &fixture{manager: m, sink: sink, users: users, rules: ruleStore}
}

func waveRule(userID string, threshold float64, channels ...tiers.Channel) models.AlertRule {
	if len(channels) == 0 {
		channels = []tiers.Channel{tiers.ChannelEmail}
	}
	return models.AlertRule{
		ID:        "r1",
		UserID:    userID,
		BeachID:   "waikiki",
		Metric:    models.MetricWaveHeightFt,
		Operator:  models.OpGT,
		Threshold: models.Float64(threshold),
		Channels:  channels,
		IsActive:  true,
	}
}

func waveSnapshot(ft float64) models.ConditionSnapshot {
	return models.ConditionSnapshot{
		BeachID:      "waikiki",
		Timestamp:    time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
		WaveHeightFt: models.Float64(ft),
		Source:       "test",
	}
}

func TestProcessSnapshotApprovesTriggeredRule(t *testing.T) {
	user := &models.User{ID: "u1", Tier: tiers.TierConsumer, Status: models.StatusActive}
	f := newFixture(t, user, waveRule("u1", 6))

	stats, err := f.manager.ProcessSnapshot(context.Background(), waveSnapshot(8))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RulesChecked)
	assert.Equal(t, 1, stats.Triggered)
	assert.Equal(t, 1, stats.Approved)

	require.Len(t, f.sink.events, 1)
	got := f.sink.events[0]
	assert.Equal(t, models.OutcomeApproved, got.Outcome)
	assert.Equal(t, "r1", got.RuleID)
	assert.Contains(t, got.Message, "Waikiki Beach")
	assert.Contains(t, got.Message, "8.0 ft")
	assert.NotEmpty(t, got.ID)

	history := f.manager.History(10)
	require.Len(t, history, 1)
	assert.Equal(t, got.ID, history[0].ID)
}

func TestProcessSnapshotIgnoresUntriggeredRule(t *testing.T) {
	user := &models.User{ID: "u1", Tier: tiers.TierConsumer, Status: models.StatusActive}
	f := newFixture(t, user, waveRule("u1", 6))

	stats, err := f.manager.ProcessSnapshot(context.Background(), waveSnapshot(4))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RulesChecked)
	assert.Zero(t, stats.Triggered)
	assert.Empty(t, f.sink.events)
	assert.Empty(t, f.manager.History(10))
}

func TestProcessSnapshotEnforcesDailyNotificationQuota(t *testing.T) {
	user := &models.User{ID: "u1", Tier: tiers.TierFree, Status: models.StatusActive}
	f := newFixture(t, user, waveRule("u1", 6))

	limit := tiers.LimitsFor(tiers.TierFree).DailyNotifications
	for i := 0; i < limit; i++ {
		stats, err := f.manager.ProcessSnapshot(context.Background(), waveSnapshot(8))
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Approved, "notification %d should be within quota", i+1)
	}

	stats, err := f.manager.ProcessSnapshot(context.Background(), waveSnapshot(8))
	require.NoError(t, err)
	assert.Zero(t, stats.Approved)
	assert.Equal(t, 1, stats.DeniedQuota)
	assert.Len(t, f.sink.events, limit)

	history := f.manager.History(0)
	require.Len(t, history, limit+1)
	assert.Equal(t, models.OutcomeDeniedByQuota, history[0].Outcome)
}

func TestProcessSnapshotHardDeniesCanceledUser(t *testing.T) {
	user := &models.User{ID: "u1", Tier: tiers.TierBusiness, Status: models.StatusCanceled}
	f := newFixture(t, user, waveRule("u1", 6))

	stats, err := f.manager.ProcessSnapshot(context.Background(), waveSnapshot(8))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeniedTier)
	assert.Empty(t, f.sink.events)

	history := f.manager.History(1)
	require.Len(t, history, 1)
	assert.Equal(t, models.OutcomeDeniedByTier, history[0].Outcome)
}

func TestProcessSnapshotDeniesChannelAboveTier(t *testing.T) {
	user := &models.User{ID: "u1", Tier: tiers.TierFree, Status: models.StatusActive}
	f := newFixture(t, user, waveRule("u1", 6, tiers.ChannelSMS))

	stats, err := f.manager.ProcessSnapshot(context.Background(), waveSnapshot(8))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeniedTier)
	assert.Empty(t, f.sink.events)
}

func TestEventIDsAreMonotonic(t *testing.T) {
	user := &models.User{ID: "u1", Tier: tiers.TierBusiness, Status: models.StatusActive}
	f := newFixture(t, user, waveRule("u1", 6))

	for i := 0; i < 5; i++ {
		_, err := f.manager.ProcessSnapshot(context.Background(), waveSnapshot(8))
		require.NoError(t, err)
	}

	history := f.manager.History(0)
	require.Len(t, history, 5)
	// Newest first, so IDs decrease down the slice.
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i-1].ID, history[i].ID)
	}
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		h.Add(&models.AlertEvent{ID: id, UserID: "u1"})
	}

	recent := h.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].ID)
	assert.Equal(t, "b", recent[2].ID)

	h.Add(&models.AlertEvent{ID: "e", UserID: "u2"})
	mine := h.RecentForUser("u1", 10)
	require.Len(t, mine, 1)
	assert.Equal(t, "d", mine[0].ID)
}
