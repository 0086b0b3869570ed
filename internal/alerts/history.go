package alerts

import (
	"sync"

	"github.com/shorewatch/shorewatch/internal/models"
)

const defaultHistorySize = 1000

// History is a fixed-capacity ring of recent alert events. Oldest
// entries are evicted first.
type History struct {
	mu     sync.RWMutex
	events []*models.AlertEvent
	next   int
	full   bool
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistorySize
	}
	return &History{events: make([]*models.AlertEvent, capacity)}
}

func (h *History) Add(event *models.AlertEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[h.next] = event
	h.next++
	if h.next == len(h.events) {
		h.next = 0
		h.full = true
	}
}

// Recent returns up to n events, newest first.
func (h *History) Recent(n int) []*models.AlertEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	size := h.next
	if h.full {
		size = len(h.events)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]*models.AlertEvent, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.events)) % len(h.events)
		out = append(out, h.events[idx])
	}
	return out
}

// RecentForUser returns up to n of the user's events, newest first.
func (h *History) RecentForUser(userID string, n int) []*models.AlertEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	size := h.next
	if h.full {
		size = len(h.events)
	}
	if n <= 0 {
		n = size
	}

	out := make([]*models.AlertEvent, 0, n)
	for i := 1; i <= size && len(out) < n; i++ {
		idx := (h.next - i + len(h.events)) % len(h.events)
		if h.events[idx].UserID == userID {
			out = append(out, h.events[idx])
		}
	}
	return out
}
