package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorewatch/shorewatch/internal/models"
)

type staticBeachStore struct {
	beaches []models.Beach
}

func (s *staticBeachStore) ListActiveBeaches(_ context.Context) ([]models.Beach, error) {
	return s.beaches, nil
}

func (s *staticBeachStore) GetBeach(_ context.Context, id string) (*models.Beach, error) {
	for _, b := range s.beaches {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, errors.New("beach not found")
}

// flakySource fails for the beaches named in fail.
type flakySource struct {
	mu   sync.Mutex
	fail map[string]bool
}

func (f *flakySource) Name() string { return "flaky" }

func (f *flakySource) Fetch(_ context.Context, beachID string) (*models.ConditionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[beachID] {
		return nil, errors.New("upstream timeout")
	}
	return &models.ConditionSnapshot{
		BeachID:      beachID,
		Timestamp:    time.Now(),
		WaveHeightFt: models.Float64(3),
		Source:       f.Name(),
	}, nil
}

func beaches(ids ...string) []models.Beach {
	out := make([]models.Beach, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Beach{ID: id, Name: id, IsActive: true})
	}
	return out
}

func TestSweepIsolatesPerBeachFailures(t *testing.T) {
	store := &staticBeachStore{beaches: beaches("a", "b", "c")}
	source := &flakySource{fail: map[string]bool{"b": true}}

	var mu sync.Mutex
	var handled []string
	handler := func(_ context.Context, snap models.ConditionSnapshot) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, snap.BeachID)
		return nil
	}

	p := NewPoller(store, source, handler, time.Minute)
	stats := p.Sweep(context.Background())

	assert.Equal(t, 3, stats.Beaches)
	assert.Equal(t, 2, stats.OK)
	assert.Equal(t, 1, stats.Failed)
	assert.ElementsMatch(t, []string{"a", "c"}, handled)
}

func TestSweepCountsHandlerFailures(t *testing.T) {
	store := &staticBeachStore{beaches: beaches("a", "b")}
	source := &flakySource{}
	handler := func(_ context.Context, snap models.ConditionSnapshot) error {
		if snap.BeachID == "a" {
			return errors.New("pipeline unavailable")
		}
		return nil
	}

	p := NewPoller(store, source, handler, time.Minute)
	stats := p.Sweep(context.Background())
	assert.Equal(t, 1, stats.OK)
	assert.Equal(t, 1, stats.Failed)
}

func TestBudgetDeniesBeyondDailyLimit(t *testing.T) {
	b := NewBudget("test", 1000, 1000, 3, 0)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Allow())
	}
	assert.ErrorIs(t, b.Allow(), ErrBudgetExhausted)
	assert.Equal(t, 0, b.Remaining())

	// The window resets at the next local midnight.
	now = now.Add(13 * time.Hour)
	require.NoError(t, b.Allow())
	assert.Equal(t, 2, b.Remaining())
}

func TestBudgetMonthlyLimitOutlivesDailyReset(t *testing.T) {
	b := NewBudget("test", 1000, 1000, 0, 2)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	require.NoError(t, b.Allow())
	require.NoError(t, b.Allow())

	now = now.Add(24 * time.Hour)
	assert.ErrorIs(t, b.Allow(), ErrBudgetExhausted)

	now = time.Date(2026, 9, 1, 0, 0, 1, 0, time.UTC)
	assert.NoError(t, b.Allow())
}

func TestSweepWithBudgetStopsAtLimit(t *testing.T) {
	store := &staticBeachStore{beaches: beaches("a", "b", "c", "d")}
	source := &flakySource{}
	handler := func(_ context.Context, _ models.ConditionSnapshot) error { return nil }

	p := NewPoller(store, source, handler, time.Minute,
		WithBudget(NewBudget("test", 1000, 1000, 2, 0)),
		WithConcurrency(1))
	stats := p.Sweep(context.Background())
	assert.Equal(t, 2, stats.OK)
	assert.Equal(t, 2, stats.Failed)
}

func TestSimulatedSourceProducesCompleteSnapshots(t *testing.T) {
	s := NewSimulatedSource()
	snap, err := s.Fetch(context.Background(), "waikiki")
	require.NoError(t, err)

	assert.Equal(t, "waikiki", snap.BeachID)
	require.NotNil(t, snap.WaveHeightFt)
	assert.GreaterOrEqual(t, *snap.WaveHeightFt, 0.5)
	assert.LessOrEqual(t, *snap.WaveHeightFt, 8.0)
	require.NotNil(t, snap.BacteriaLevel)
	assert.Equal(t, "simulated", snap.Source)
}
