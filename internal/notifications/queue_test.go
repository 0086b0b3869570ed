package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/shorewatch/shorewatch/pkg/tiers"
)

type captureDispatcher struct {
	mu     sync.Mutex
	events []*models.AlertEvent
	done   chan struct{}
}

func newCaptureDispatcher(expect int) *captureDispatcher {
	return &captureDispatcher{done: make(chan struct{}, expect)}
}

func (c *captureDispatcher) Dispatch(_ context.Context, event *models.AlertEvent) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func (c *captureDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func event(id, ruleID string) *models.AlertEvent {
	return &models.AlertEvent{
		ID:      id,
		RuleID:  ruleID,
		UserID:  "u1",
		BeachID: "waikiki",
		Metric:  models.MetricWaveHeightFt,
		Message: "Wave height alert",
	}
}

func TestQueueDeliversEnqueuedEvents(t *testing.T) {
	sink := newCaptureDispatcher(2)
	q := NewQueue(sink, WithCooldown(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	assert.True(t, q.Enqueue(event("e1", "r1")))
	assert.True(t, q.Enqueue(event("e2", "r2")))

	for i := 0; i < 2; i++ {
		select {
		case <-sink.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}
	q.Stop()
	assert.Equal(t, 2, sink.count())
}

func TestQueueSuppressesRepeatWithinCooldown(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sink := newCaptureDispatcher(4)
	q := NewQueue(sink, WithQueueClock(clock), WithCooldown(5*time.Minute))

	assert.True(t, q.Enqueue(event("e1", "r1")))
	assert.False(t, q.Enqueue(event("e2", "r1")), "second event for the same rule inside the window")

	// A different rule is not affected.
	assert.True(t, q.Enqueue(event("e3", "r2")))

	// Past the window the rule may notify again.
	now = now.Add(5*time.Minute + time.Second)
	assert.True(t, q.Enqueue(event("e4", "r1")))
}

func TestQueueDropsWhenFull(t *testing.T) {
	sink := newCaptureDispatcher(1)
	q := NewQueue(sink, WithCooldown(0), WithDepth(1))
	// Worker not started, so the buffer never empties.

	assert.True(t, q.Enqueue(event("e1", "r1")))
	assert.False(t, q.Enqueue(event("e2", "r2")))
}

func TestQueueDroppedEventDoesNotStartCooldown(t *testing.T) {
	sink := newCaptureDispatcher(2)
	q := NewQueue(sink, WithCooldown(5*time.Minute), WithDepth(1))
	// Worker not started, so the buffer never empties on its own.

	require.True(t, q.Enqueue(event("e1", "r1")))
	require.False(t, q.Enqueue(event("e2", "r2")), "buffer is full")

	// Free the slot. The dropped r2 event must not have armed r2's
	// cooldown, so the retry is admitted.
	<-q.ch
	assert.True(t, q.Enqueue(event("e3", "r2")))

	// r1 was delivered into the buffer, its cooldown is armed.
	assert.False(t, q.Enqueue(event("e4", "r1")))
}

func TestQueueDrainsOnStop(t *testing.T) {
	sink := newCaptureDispatcher(3)
	q := NewQueue(sink, WithCooldown(0))
	for i, id := range []string{"e1", "e2", "e3"} {
		require.True(t, q.Enqueue(event(id, "r"+string(rune('1'+i)))))
	}

	q.Start(context.Background())
	q.Stop()
	assert.Equal(t, 3, sink.count())
}

func TestFilterChannels(t *testing.T) {
	requested := []tiers.Channel{tiers.ChannelEmail, tiers.ChannelSMS, tiers.ChannelPush}

	free := FilterChannels(tiers.TierFree, requested)
	assert.NotContains(t, free, tiers.ChannelSMS)
	assert.Contains(t, free, tiers.ChannelEmail)

	consumer := FilterChannels(tiers.TierConsumer, requested)
	assert.Contains(t, consumer, tiers.ChannelSMS)
}
