// Package rules evaluates user-defined alert rules against condition
// snapshots.
//
// Evaluation is fail-closed on missing data: a rule whose metric is absent
// from the snapshot is skipped, never triggered. Skips are recorded and
// reported, not raised as errors.
package rules

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shorewatch/shorewatch/internal/metrics"
	"github.com/shorewatch/shorewatch/internal/models"
)

// SkipReason explains why an evaluation did not produce a trigger decision.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipMissingMetric   SkipReason = "missing_metric"
	SkipUnknownOperator SkipReason = "unknown_operator"
)

// Outcome is the result of evaluating one rule against one snapshot.
type Outcome struct {
	Triggered bool
	Skipped   bool
	Reason    SkipReason
}

// Evaluate decides whether a rule triggers for the given snapshot. Pure:
// identical inputs always produce identical outcomes.
//
// Comparison operators never trigger when the metric is unavailable.
// "changed" always triggers; de-duplication against the previous value is
// the dispatcher's responsibility. "is_active" is specific to the bacteria
// metric and triggers while the level is anything but safe. An unknown
// operator is a stored-rule configuration defect: it is reported and the
// rule is skipped, never crashed on.
func Evaluate(rule models.AlertRule, snap models.ConditionSnapshot) Outcome {
	metrics.RulesEvaluated.Inc()

	switch rule.Operator {
	case models.OpGT, models.OpGTE, models.OpLT, models.OpLTE, models.OpEQ:
		value, ok := MetricValue(rule.Metric, snap)
		if !ok {
			metrics.RulesSkipped.WithLabelValues(string(SkipMissingMetric)).Inc()
			log.Debug().
				Str("ruleID", rule.ID).
				Str("metric", string(rule.Metric)).
				Str("beachID", snap.BeachID).
				Msg("Rule skipped: metric unavailable in snapshot")
			return Outcome{Skipped: true, Reason: SkipMissingMetric}
		}
		threshold := 0.0
		if rule.Threshold != nil {
			threshold = *rule.Threshold
		}
		return outcome(compare(rule.Operator, value, threshold))

	case models.OpChanged:
		// Every evaluation corresponds to a fresh snapshot.
		return outcome(true)

	case models.OpIsActive:
		if rule.Metric != models.MetricBacteria || snap.BacteriaLevel == nil {
			return outcome(false)
		}
		return outcome(*snap.BacteriaLevel != models.BacteriaSafe)

	default:
		metrics.RulesSkipped.WithLabelValues(string(SkipUnknownOperator)).Inc()
		log.Warn().
			Str("ruleID", rule.ID).
			Str("operator", string(rule.Operator)).
			Msg("Rule skipped: unknown operator in stored rule")
		return Outcome{Skipped: true, Reason: SkipUnknownOperator}
	}
}

func outcome(triggered bool) Outcome {
	if triggered {
		metrics.RulesTriggered.Inc()
	}
	return Outcome{Triggered: triggered}
}

func compare(op models.Operator, value, threshold float64) bool {
	switch op {
	case models.OpGT:
		return value > threshold
	case models.OpGTE:
		return value >= threshold
	case models.OpLT:
		return value < threshold
	case models.OpLTE:
		return value <= threshold
	case models.OpEQ:
		return value == threshold
	default:
		return false
	}
}

// MetricValue resolves a rule metric to its numeric value in the snapshot.
// Bacteria maps to an ordinal scale (safe=0, caution=1, unsafe=2) so
// threshold operators compose with it. Returns false when the metric is
// unavailable or unknown.
func MetricValue(metric models.Metric, snap models.ConditionSnapshot) (float64, bool) {
	switch metric {
	case models.MetricWaveHeightFt:
		if snap.WaveHeightFt == nil {
			return 0, false
		}
		return *snap.WaveHeightFt, true
	case models.MetricWindMph:
		if snap.WindMph == nil {
			return 0, false
		}
		return *snap.WindMph, true
	case models.MetricWaterTempF:
		if snap.WaterTempF == nil {
			return 0, false
		}
		return *snap.WaterTempF, true
	case models.MetricTideFt:
		if snap.TideFt == nil {
			return 0, false
		}
		return *snap.TideFt, true
	case models.MetricBacteria:
		if snap.BacteriaLevel == nil {
			return 0, false
		}
		switch *snap.BacteriaLevel {
		case models.BacteriaUnsafe:
			return 2, true
		case models.BacteriaCaution:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// Message renders the notification text for a triggered rule.
func Message(rule models.AlertRule, beachName string, snap models.ConditionSnapshot) string {
	switch rule.Metric {
	case models.MetricWaveHeightFt:
		if snap.WaveHeightFt != nil {
			return fmt.Sprintf("High surf alert at %s: waves are %.1f ft", beachName, *snap.WaveHeightFt)
		}
	case models.MetricWindMph:
		if snap.WindMph != nil {
			return fmt.Sprintf("Wind alert at %s: winds at %.0f mph", beachName, *snap.WindMph)
		}
	case models.MetricBacteria:
		if snap.BacteriaLevel != nil {
			return fmt.Sprintf("Water quality alert at %s: bacteria levels are %s", beachName, *snap.BacteriaLevel)
		}
	case models.MetricWaterTempF:
		if snap.WaterTempF != nil {
			return fmt.Sprintf("Water temperature alert at %s: %.0f F", beachName, *snap.WaterTempF)
		}
	case models.MetricTideFt:
		if snap.TideFt != nil {
			return fmt.Sprintf("Tide alert at %s: %.1f ft", beachName, *snap.TideFt)
		}
	}
	return fmt.Sprintf("Beach conditions have changed at %s", beachName)
}
