package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shorewatch/shorewatch/internal/metrics"
	"github.com/shorewatch/shorewatch/internal/models"
)

const (
	defaultQueueDepth = 256
	defaultCooldown   = 5 * time.Minute
)

// Queue is a buffered asynchronous hand-off between the alert pipeline
// and the dispatcher. Enqueue never blocks the caller: when the buffer
// is full the event is dropped and counted. A per-rule cooldown window
// suppresses repeat notifications for the same rule.
type Queue struct {
	dispatcher Dispatcher

	mu           sync.Mutex
	cooldown     time.Duration
	lastNotified map[string]time.Time
	now          func() time.Time

	ch   chan *models.AlertEvent
	wg   sync.WaitGroup
	stop chan struct{}
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithCooldown overrides the per-rule suppression window. Zero disables
// suppression.
func WithCooldown(d time.Duration) QueueOption {
	return func(q *Queue) { q.cooldown = d }
}

// WithDepth overrides the buffer depth.
func WithDepth(n int) QueueOption {
	return func(q *Queue) { q.ch = make(chan *models.AlertEvent, n) }
}

// WithQueueClock injects a clock for tests.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

func NewQueue(dispatcher Dispatcher, opts ...QueueOption) *Queue {
	q := &Queue{
		dispatcher:   dispatcher,
		cooldown:     defaultCooldown,
		lastNotified: make(map[string]time.Time),
		now:          time.Now,
		ch:           make(chan *models.AlertEvent, defaultQueueDepth),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker. The worker drains the buffer before
// returning when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case event := <-q.ch:
				q.deliver(ctx, event)
			case <-ctx.Done():
				q.drain()
				return
			case <-q.stop:
				q.drain()
				return
			}
		}
	}()
}

// Stop signals the worker to drain and waits for it to finish.
func (q *Queue) Stop() {
	close(q.stop)
	q.wg.Wait()
}

// Enqueue offers an event to the queue. It reports false when the event
// was suppressed by the cooldown window or dropped on a full buffer.
// The cooldown check and the buffer hand-off run under one lock so
// concurrent triggers of the same rule admit exactly one event, and a
// dropped event never starts the cooldown.
func (q *Queue) Enqueue(event *models.AlertEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if q.cooldown > 0 {
		if last, ok := q.lastNotified[event.RuleID]; ok && now.Sub(last) < q.cooldown {
			metrics.NotificationsSuppressed.Inc()
			log.Debug().
				Str("ruleID", event.RuleID).
				Dur("cooldown", q.cooldown).
				Msg("Notification suppressed by cooldown")
			return false
		}
	}

	select {
	case q.ch <- event:
		if q.cooldown > 0 {
			q.lastNotified[event.RuleID] = now
		}
		return true
	default:
		metrics.NotificationsDropped.Inc()
		log.Warn().
			Str("eventID", event.ID).
			Str("ruleID", event.RuleID).
			Msg("Notification queue full, dropping event")
		return false
	}
}

func (q *Queue) deliver(ctx context.Context, event *models.AlertEvent) {
	if err := q.dispatcher.Dispatch(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("eventID", event.ID).
			Str("ruleID", event.RuleID).
			Msg("Failed to dispatch alert event")
	}
}

func (q *Queue) drain() {
	for {
		select {
		case event := <-q.ch:
			q.deliver(context.Background(), event)
		default:
			return
		}
	}
}
