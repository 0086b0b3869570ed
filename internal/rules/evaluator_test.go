package rules

import (
	"testing"
	"time"

	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/stretchr/testify/assert"
)

func snapshot(mutate func(*models.ConditionSnapshot)) models.ConditionSnapshot {
	snap := models.ConditionSnapshot{
		BeachID:   "waikiki",
		Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Source:    "noaa",
	}
	if mutate != nil {
		mutate(&snap)
	}
	return snap
}

func rule(metric models.Metric, op models.Operator, threshold float64) models.AlertRule {
	return models.AlertRule{
		ID:        "rule-1",
		UserID:    "user-1",
		BeachID:   "waikiki",
		Metric:    metric,
		Operator:  op,
		Threshold: models.Float64(threshold),
		IsActive:  true,
	}
}

func TestComparisonOperators(t *testing.T) {
	snap := snapshot(func(s *models.ConditionSnapshot) {
		s.WaveHeightFt = models.Float64(6)
	})

	tests := []struct {
		op        models.Operator
		threshold float64
		want      bool
	}{
		{models.OpGT, 5, true},
		{models.OpGT, 6, false},
		{models.OpGTE, 6, true},
		{models.OpLT, 7, true},
		{models.OpLT, 6, false},
		{models.OpLTE, 6, true},
		{models.OpEQ, 6, true},
		{models.OpEQ, 5.9, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			out := Evaluate(rule(models.MetricWaveHeightFt, tt.op, tt.threshold), snap)
			assert.False(t, out.Skipped)
			assert.Equal(t, tt.want, out.Triggered)
		})
	}
}

func TestMissingMetricNeverTriggers(t *testing.T) {
	// Fail-closed: no wave reading means no trigger, regardless of threshold.
	snap := snapshot(nil)
	out := Evaluate(rule(models.MetricWaveHeightFt, models.OpGT, -1000), snap)
	assert.False(t, out.Triggered)
	assert.True(t, out.Skipped)
	assert.Equal(t, SkipMissingMetric, out.Reason)
}

func TestChangedAlwaysTriggers(t *testing.T) {
	out := Evaluate(rule(models.MetricWindMph, models.OpChanged, 0), snapshot(nil))
	assert.True(t, out.Triggered)
	assert.False(t, out.Skipped)
}

func TestIsActiveBacteria(t *testing.T) {
	caution := models.BacteriaCaution
	safe := models.BacteriaSafe

	out := Evaluate(rule(models.MetricBacteria, models.OpIsActive, 0), snapshot(func(s *models.ConditionSnapshot) {
		s.BacteriaLevel = &caution
	}))
	assert.True(t, out.Triggered)

	out = Evaluate(rule(models.MetricBacteria, models.OpIsActive, 0), snapshot(func(s *models.ConditionSnapshot) {
		s.BacteriaLevel = &safe
	}))
	assert.False(t, out.Triggered)

	// is_active on a non-bacteria metric never triggers.
	out = Evaluate(rule(models.MetricWindMph, models.OpIsActive, 0), snapshot(func(s *models.ConditionSnapshot) {
		s.WindMph = models.Float64(40)
	}))
	assert.False(t, out.Triggered)
	assert.False(t, out.Skipped)
}

func TestUnknownOperatorSkips(t *testing.T) {
	r := rule(models.MetricWindMph, models.Operator("between"), 10)
	out := Evaluate(r, snapshot(func(s *models.ConditionSnapshot) {
		s.WindMph = models.Float64(15)
	}))
	assert.False(t, out.Triggered)
	assert.True(t, out.Skipped)
	assert.Equal(t, SkipUnknownOperator, out.Reason)
}

func TestEvaluateIdempotent(t *testing.T) {
	snap := snapshot(func(s *models.ConditionSnapshot) {
		s.WaveHeightFt = models.Float64(7.2)
	})
	r := rule(models.MetricWaveHeightFt, models.OpGT, 5)

	first := Evaluate(r, snap)
	second := Evaluate(r, snap)
	assert.Equal(t, first, second)
}

func TestBacteriaOrdinalScale(t *testing.T) {
	unsafe := models.BacteriaUnsafe
	snap := snapshot(func(s *models.ConditionSnapshot) {
		s.BacteriaLevel = &unsafe
	})

	v, ok := MetricValue(models.MetricBacteria, snap)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	// gte 1 catches caution and unsafe.
	out := Evaluate(rule(models.MetricBacteria, models.OpGTE, 1), snap)
	assert.True(t, out.Triggered)
}

func TestMessageTemplates(t *testing.T) {
	snap := snapshot(func(s *models.ConditionSnapshot) {
		s.WaveHeightFt = models.Float64(8.3)
	})
	msg := Message(rule(models.MetricWaveHeightFt, models.OpGT, 6), "Waimea Bay", snap)
	assert.Equal(t, "High surf alert at Waimea Bay: waves are 8.3 ft", msg)

	// Missing reading falls back to the generic template.
	msg = Message(rule(models.MetricWindMph, models.OpChanged, 0), "Waimea Bay", snapshot(nil))
	assert.Equal(t, "Beach conditions have changed at Waimea Bay", msg)
}
