package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorewatch/shorewatch/internal/models"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsAlertEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := dialTestHub(t, hub)
	waitForClients(t, hub, 1)

	hub.BroadcastEvent(&models.AlertEvent{
		ID:      "01J0000000000000000000TEST",
		RuleID:  "r1",
		UserID:  "u1",
		BeachID: "waikiki",
		Metric:  models.MetricWaveHeightFt,
		Message: "High surf alert",
		Outcome: models.OutcomeApproved,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "alertEvent", msg.Type)

	payload, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var event models.AlertEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "r1", event.RuleID)
	assert.Equal(t, models.OutcomeApproved, event.Outcome)
}

func TestHubTracksClientCount(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := dialTestHub(t, hub)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
