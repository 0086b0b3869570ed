// Package api exposes the HTTP surface: beach conditions, alert rules,
// usage reporting and the live websocket feed. Every authenticated
// route runs through the tier resolver; the data routes additionally
// run through the API call quota gate.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/shorewatch/shorewatch/internal/alerts"
	"github.com/shorewatch/shorewatch/internal/auth"
	gateerrors "github.com/shorewatch/shorewatch/internal/errors"
	"github.com/shorewatch/shorewatch/internal/ingest"
	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/shorewatch/shorewatch/internal/quota"
	"github.com/shorewatch/shorewatch/internal/tier"
	"github.com/shorewatch/shorewatch/internal/websocket"
)

// Router wires handlers to their dependencies.
type Router struct {
	mux       *http.ServeMux
	verifier  *auth.Verifier
	resolver  *tier.Resolver
	tracker   *quota.Tracker
	manager   *alerts.Manager
	rules     models.RuleStore
	beaches   models.BeachStore
	snapshots *ingest.SnapshotCache
	hub       *websocket.Hub
}

func NewRouter(verifier *auth.Verifier, resolver *tier.Resolver, tracker *quota.Tracker, manager *alerts.Manager, rules models.RuleStore, beaches models.BeachStore, snapshots *ingest.SnapshotCache, hub *websocket.Hub) http.Handler {
	r := &Router{
		mux:       http.NewServeMux(),
		verifier:  verifier,
		resolver:  resolver,
		tracker:   tracker,
		manager:   manager,
		rules:     rules,
		beaches:   beaches,
		snapshots: snapshots,
		hub:       hub,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("GET /api/health", r.handleHealth)
	r.mux.HandleFunc("GET /api/tiers", r.handleTiers)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	r.mux.HandleFunc("GET /api/beaches", r.authenticated(r.handleListBeaches))
	r.mux.HandleFunc("GET /api/beaches/{id}/conditions", r.authenticated(r.apiGated(r.handleConditions)))
	r.mux.HandleFunc("POST /api/rules", r.authenticated(r.handleCreateRule))
	r.mux.HandleFunc("POST /api/rules/{id}/active", r.authenticated(r.handleSetRuleActive))
	r.mux.HandleFunc("GET /api/alerts", r.authenticated(r.handleAlertHistory))
	r.mux.HandleFunc("GET /api/usage", r.authenticated(r.handleUsage))

	if r.hub != nil {
		r.mux.HandleFunc("GET /ws", r.hub.HandleWebSocket)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// The websocket upgrade needs the raw connection, so it bypasses
	// the status recorder.
	if req.URL.Path == "/ws" {
		r.mux.ServeHTTP(w, req)
		return
	}
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	r.mux.ServeHTTP(rec, req)
	observeRequest(req, rec.status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error        string `json:"error"`
	Kind         string `json:"kind"`
	Limit        int    `json:"limit,omitempty"`
	ResetAt      string `json:"resetAt,omitempty"`
	RequiredTier string `json:"requiredTier,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	if ge, ok := gateerrors.AsGateError(err); ok {
		body := errorBody{
			Error:        ge.Error(),
			Kind:         string(ge.Kind),
			Limit:        ge.Limit,
			RequiredTier: string(ge.RequiredTier),
		}
		if ge.ResetAt != nil {
			body.ResetAt = ge.ResetAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		writeJSON(w, ge.HTTPStatus(), body)
		return
	}
	log.Error().Err(err).Msg("Request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error: "internal error",
		Kind:  string(gateerrors.KindInternal),
	})
}
