// Package notifications delivers approved alert events to their channels.
// Delivery is best effort: an event that cannot be handed off is dropped
// and counted, never retried.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/shorewatch/shorewatch/pkg/tiers"
)

// Dispatcher delivers a single alert event. Implementations must be safe
// for concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.AlertEvent) error
}

// LogDispatcher writes events to the structured log. It is the default
// sink in development and the fallback when no channel backend is
// configured.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, event *models.AlertEvent) error {
	log.Info().
		Str("eventID", event.ID).
		Str("ruleID", event.RuleID).
		Str("userID", event.UserID).
		Str("beachID", event.BeachID).
		Str("metric", string(event.Metric)).
		Interface("channels", event.Channels).
		Str("message", event.Message).
		Msg("Alert event dispatched")
	return nil
}

// WebhookDispatcher POSTs the event as JSON to a single endpoint.
type WebhookDispatcher struct {
	URL    string
	Client *http.Client
}

func NewWebhookDispatcher(url string) *WebhookDispatcher {
	return &WebhookDispatcher{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookDispatcher) Dispatch(ctx context.Context, event *models.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling alert event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// FilterChannels returns the subset of requested channels the tier may
// use. E-mail is open to every tier; SMS needs consumer or above.
func FilterChannels(tier tiers.Tier, requested []tiers.Channel) []tiers.Channel {
	allowed := make([]tiers.Channel, 0, len(requested))
	for _, ch := range requested {
		if tiers.ChannelAllowed(tier, ch) {
			allowed = append(allowed, ch)
		}
	}
	return allowed
}
