package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shorewatch/shorewatch/internal/auth"
	gateerrors "github.com/shorewatch/shorewatch/internal/errors"
	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/shorewatch/shorewatch/internal/quota"
	"github.com/shorewatch/shorewatch/internal/scoring"
	"github.com/shorewatch/shorewatch/pkg/tiers"
)

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// handleTiers publishes the plan table so clients can render pricing
// and limits without hardcoding them.
func (r *Router) handleTiers(w http.ResponseWriter, _ *http.Request) {
	type tierInfo struct {
		Tier   tiers.Tier   `json:"tier"`
		Limits tiers.Limits `json:"limits"`
	}
	out := make([]tierInfo, 0, len(tiers.Order()))
	for _, t := range tiers.Order() {
		out = append(out, tierInfo{Tier: t, Limits: tiers.LimitsFor(t)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleListBeaches(w http.ResponseWriter, req *http.Request) {
	beaches, err := r.beaches.ListActiveBeaches(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, beaches)
}

// conditionsResponse pairs the raw snapshot with the derived safety
// assessment.
type conditionsResponse struct {
	Snapshot        models.ConditionSnapshot `json:"snapshot"`
	SafetyScore     int                      `json:"safetyScore"`
	Ratings         scoring.ActivityRatings  `json:"activityRatings"`
	Recommendations []string                 `json:"recommendations"`
}

func (r *Router) handleConditions(w http.ResponseWriter, req *http.Request) {
	beachID := req.PathValue("id")
	if beach, err := r.beaches.GetBeach(req.Context(), beachID); err != nil || beach == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "beach not found", Kind: "not_found"})
		return
	}

	snap, ok := r.snapshots.Get(beachID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no conditions recorded yet", Kind: "not_found"})
		return
	}

	factors := scoring.FactorsFromSnapshot(snap)
	writeJSON(w, http.StatusOK, conditionsResponse{
		Snapshot:        snap,
		SafetyScore:     scoring.Score(factors),
		Ratings:         scoring.Ratings(factors),
		Recommendations: scoring.Recommendations(factors),
	})
}

type createRuleRequest struct {
	BeachID   string          `json:"beachId"`
	Metric    models.Metric   `json:"metric"`
	Operator  models.Operator `json:"operator"`
	Threshold *float64        `json:"threshold,omitempty"`
	Channels  []tiers.Channel `json:"channels"`
}

func (req createRuleRequest) validate() error {
	if req.BeachID == "" {
		return fmt.Errorf("beachId is required")
	}
	switch req.Metric {
	case models.MetricWaveHeightFt, models.MetricWindMph, models.MetricBacteria,
		models.MetricWaterTempF, models.MetricTideFt:
	default:
		return fmt.Errorf("unknown metric %q", req.Metric)
	}
	switch req.Operator {
	case models.OpGT, models.OpGTE, models.OpLT, models.OpLTE, models.OpEQ:
		if req.Threshold == nil {
			return fmt.Errorf("operator %q requires a threshold", req.Operator)
		}
	case models.OpChanged, models.OpIsActive:
	default:
		return fmt.Errorf("unknown operator %q", req.Operator)
	}
	if len(req.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	return nil
}

// handleCreateRule registers an alert rule. The channel set is gated by
// tier and the active-rule quota is checked against the live count.
func (r *Router) handleCreateRule(w http.ResponseWriter, req *http.Request) {
	userID, _ := auth.UserID(req.Context())

	var body createRuleRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Kind: "bad_request"})
		return
	}
	if err := body.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}

	access, err := r.resolver.Effective(req.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, ch := range body.Channels {
		if !tiers.ChannelAllowed(access.Effective, ch) {
			writeError(w, gateerrors.NewInsufficientTier("rules.create", tiers.RequiredTierForChannel(ch)))
			return
		}
	}

	res, err := r.tracker.Check(req.Context(), userID, access.Effective, quota.KindActiveRuleCount)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Allowed {
		writeError(w, gateerrors.NewQuotaExceeded("rules.create", res.Limit, nil))
		return
	}

	rule := &models.AlertRule{
		ID:        uuid.NewString(),
		UserID:    userID,
		BeachID:   body.BeachID,
		Metric:    body.Metric,
		Operator:  body.Operator,
		Threshold: body.Threshold,
		Channels:  body.Channels,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.rules.CreateRule(req.Context(), rule); err != nil {
		writeError(w, err)
		return
	}
	log.Info().
		Str("ruleID", rule.ID).
		Str("userID", userID).
		Str("beachID", rule.BeachID).
		Str("metric", string(rule.Metric)).
		Msg("Alert rule created")
	writeJSON(w, http.StatusCreated, rule)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// handleSetRuleActive toggles a rule owned by the caller. Reactivation
// re-checks the active-rule quota so a downgraded user cannot exceed
// their new limit by flipping old rules back on.
func (r *Router) handleSetRuleActive(w http.ResponseWriter, req *http.Request) {
	userID, _ := auth.UserID(req.Context())
	ruleID := req.PathValue("id")

	var body setActiveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Kind: "bad_request"})
		return
	}

	rule, err := r.rules.GetRule(req.Context(), ruleID)
	if err != nil || rule == nil || rule.UserID != userID {
		// A foreign rule reads the same as a missing one.
		writeJSON(w, http.StatusNotFound, errorBody{Error: "rule not found", Kind: "not_found"})
		return
	}

	if body.Active && !rule.IsActive {
		access, err := r.resolver.Effective(req.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := r.tracker.Check(req.Context(), userID, access.Effective, quota.KindActiveRuleCount)
		if err != nil {
			writeError(w, err)
			return
		}
		if !res.Allowed {
			writeError(w, gateerrors.NewQuotaExceeded("rules.activate", res.Limit, nil))
			return
		}
	}

	if err := r.rules.SetRuleActive(req.Context(), ruleID, body.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": ruleID, "active": body.Active})
}

func (r *Router) handleAlertHistory(w http.ResponseWriter, req *http.Request) {
	userID, _ := auth.UserID(req.Context())
	events := r.manager.HistoryForUser(userID, 100)
	if events == nil {
		events = []*models.AlertEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleUsage reports quota standing for the caller across all
// counters, plus their effective tier.
func (r *Router) handleUsage(w http.ResponseWriter, req *http.Request) {
	userID, _ := auth.UserID(req.Context())
	access, err := r.resolver.Effective(req.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	usage, err := r.tracker.Usage(req.Context(), userID, access.Effective)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tier":    access.Effective,
		"inTrial": access.InTrial,
		"usage":   usage,
	})
}
