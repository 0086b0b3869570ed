// Package models holds the shared data model for the beach conditions
// service: users, alert rules, condition snapshots and alert events.
package models

import (
	"time"

	"github.com/shorewatch/shorewatch/pkg/tiers"
)

// SubscriptionStatus tracks where a user sits in the billing lifecycle.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusTrial    SubscriptionStatus = "trial"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// User is an account holder. TrialEndDate is only meaningful while
// Tier==free and Status==trial; the tier resolver owns that invariant.
type User struct {
	ID           string             `json:"id"`
	Email        string             `json:"email"`
	Tier         tiers.Tier         `json:"tier"`
	Status       SubscriptionStatus `json:"subscriptionStatus"`
	TrialEndDate *time.Time         `json:"trialEndDate,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// Metric identifies an environmental reading an alert rule can watch.
type Metric string

const (
	MetricWaveHeightFt Metric = "wave_height_ft"
	MetricWindMph      Metric = "wind_mph"
	MetricBacteria     Metric = "bacteria"
	MetricWaterTempF   Metric = "water_temp_f"
	MetricTideFt       Metric = "tide_ft"
)

// Operator is a rule comparison operator.
type Operator string

const (
	OpGT       Operator = "gt"
	OpGTE      Operator = "gte"
	OpLT       Operator = "lt"
	OpLTE      Operator = "lte"
	OpEQ       Operator = "eq"
	OpChanged  Operator = "changed"
	OpIsActive Operator = "is_active"
)

// AlertRule is a user-defined threshold condition over one beach metric.
// Rules are soft-disabled (IsActive=false), never hard-deleted, and count
// toward quota only while active.
type AlertRule struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	BeachID   string          `json:"beachId"`
	Metric    Metric          `json:"metric"`
	Operator  Operator        `json:"operator"`
	Threshold *float64        `json:"threshold,omitempty"` // absent for changed/is_active
	Channels  []tiers.Channel `json:"channels"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
}

// BacteriaLevel is the water quality advisory level from DOH sampling.
type BacteriaLevel string

const (
	BacteriaSafe    BacteriaLevel = "safe"
	BacteriaCaution BacteriaLevel = "caution"
	BacteriaUnsafe  BacteriaLevel = "unsafe"
)

// ConditionSnapshot is an immutable, timestamped set of readings for one
// beach. Nil fields mean "unavailable", never a fabricated default.
type ConditionSnapshot struct {
	BeachID       string         `json:"beachId"`
	Timestamp     time.Time      `json:"timestamp"`
	WaveHeightFt  *float64       `json:"waveHeightFt,omitempty"`
	WindMph       *float64       `json:"windMph,omitempty"`
	WindDirDeg    *float64       `json:"windDirDeg,omitempty"`
	WaterTempF    *float64       `json:"waterTempF,omitempty"`
	TideFt        *float64       `json:"tideFt,omitempty"`
	BacteriaLevel *BacteriaLevel `json:"bacteriaLevel,omitempty"`
	Source        string         `json:"source"`
}

// RiskLevel grades rip current risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// QualityLevel grades water quality.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityFair      QualityLevel = "fair"
	QualityPoor      QualityLevel = "poor"
)

// HazardLevel grades marine life hazard reports.
type HazardLevel string

const (
	HazardNone     HazardLevel = "none"
	HazardLow      HazardLevel = "low"
	HazardModerate HazardLevel = "moderate"
	HazardHigh     HazardLevel = "high"
)

// SafetyFactors is the value object consumed by the scoring engine.
// Nil pointers and empty enum values mean "not evaluated"; the engine
// deducts nothing for unknown factors.
type SafetyFactors struct {
	WaveHeight       *float64     `json:"waveHeight,omitempty"` // feet
	WindSpeed        *float64     `json:"windSpeed,omitempty"`  // mph
	WaterTemp        *float64     `json:"waterTemp,omitempty"`  // fahrenheit
	RipCurrentRisk   RiskLevel    `json:"ripCurrentRisk,omitempty"`
	WaterQuality     QualityLevel `json:"waterQuality,omitempty"`
	UVIndex          *float64     `json:"uvIndex,omitempty"`
	JellyfishWarning bool         `json:"jellyfishWarning"`
	MarineLifeHazard HazardLevel  `json:"marineLifeHazard,omitempty"`
	LifeguardPresent bool         `json:"lifeguardPresent"`
}

// DispatchOutcome records how an alert event left the pipeline.
type DispatchOutcome string

const (
	OutcomeApproved      DispatchOutcome = "approved"
	OutcomeDeniedByQuota DispatchOutcome = "denied_by_quota"
	OutcomeDeniedByTier  DispatchOutcome = "denied_by_tier"
)

// AlertEvent is a triggered rule that passed through the quota gate.
// Terminal once dispatched or denied.
type AlertEvent struct {
	ID           string          `json:"id"` // ULID, monotonic within the process
	RuleID       string          `json:"ruleId"`
	UserID       string          `json:"userId"`
	BeachID      string          `json:"beachId"`
	Metric       Metric          `json:"metric"`
	Message      string          `json:"message"`
	Channels     []tiers.Channel `json:"channels"`
	SnapshotTime time.Time       `json:"snapshotTime"`
	TriggeredAt  time.Time       `json:"triggeredAt"`
	Outcome      DispatchOutcome `json:"outcome"`
}

// Beach is the minimal beach record the engine needs.
type Beach struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Island   string `json:"island,omitempty"`
	IsActive bool   `json:"isActive"`
}

// Float64 returns a pointer to v. Convenience for building snapshots.
func Float64(v float64) *float64 { return &v }
