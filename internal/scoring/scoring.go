// Package scoring converts a multi-factor environmental snapshot into a
// single 0-100 safety score and per-activity ratings.
//
// Scoring is fail-open on missing data: an absent factor contributes no
// deduction. This is the opposite policy from rule evaluation (which never
// triggers on missing data) and the asymmetry is deliberate — one protects
// against false reassurance, the other against false alarms.
package scoring

import "github.com/shorewatch/shorewatch/internal/models"

// Rating is an ordered activity safety grade. Severity ordering is
// activity-dependent: water activities bottom out at "dangerous", surfing
// at "flat", fishing and family friendliness at "poor".
type Rating string

const (
	RatingExcellent Rating = "excellent"
	RatingGood      Rating = "good"
	RatingFair      Rating = "fair"
	RatingPoor      Rating = "poor"
	RatingDangerous Rating = "dangerous"
	RatingFlat      Rating = "flat"
)

// ActivityRatings holds the per-activity decision tree results.
type ActivityRatings struct {
	Swimming       Rating `json:"swimming"`
	Snorkeling     Rating `json:"snorkeling"`
	Surfing        Rating `json:"surfing"`
	Diving         Rating `json:"diving"`
	Fishing        Rating `json:"fishing"`
	FamilyFriendly Rating `json:"familyFriendly"`
}

// Score maps safety factors to an integer in [0,100]. It starts at 100 and
// applies independent deductions per known hazard; deductions are not
// normalized against a weight budget, so data completeness is rewarded
// implicitly. A lifeguard on duty adds a +5 bonus after deductions, and the
// result is clamped to [0,100].
func Score(f models.SafetyFactors) int {
	score := 100

	if f.WaveHeight != nil {
		switch wave := *f.WaveHeight; {
		case wave > 8:
			score -= 25
		case wave > 5:
			score -= 15
		case wave > 3:
			score -= 8
		case wave > 1.5:
			score -= 3
		}
	}

	switch f.RipCurrentRisk {
	case models.RiskHigh:
		score -= 30
	case models.RiskModerate:
		score -= 15
	case models.RiskLow:
		score -= 5
	}

	switch f.WaterQuality {
	case models.QualityPoor:
		score -= 35
	case models.QualityFair:
		score -= 20
	case models.QualityGood:
		score -= 5
	}

	if f.WindSpeed != nil {
		switch wind := *f.WindSpeed; {
		case wind > 25:
			score -= 15
		case wind > 15:
			score -= 8
		case wind > 10:
			score -= 3
		}
	}

	switch f.MarineLifeHazard {
	case models.HazardHigh:
		score -= 25
	case models.HazardModerate:
		score -= 12
	case models.HazardLow:
		score -= 5
	}

	if f.JellyfishWarning {
		score -= 20
	}

	if f.UVIndex != nil {
		switch uv := *f.UVIndex; {
		case uv > 10:
			score -= 8
		case uv > 7:
			score -= 5
		case uv > 5:
			score -= 2
		}
	}

	if f.LifeguardPresent {
		score += 5
	}

	return clamp(score, 0, 100)
}

// Ratings computes all per-activity safety grades. Each tree inspects its
// own subset of factors and returns the most severe matching band,
// evaluated most-dangerous-first.
func Ratings(f models.SafetyFactors) ActivityRatings {
	return ActivityRatings{
		Swimming:       swimmingRating(f),
		Snorkeling:     snorkelingRating(f),
		Surfing:        surfingRating(f),
		Diving:         divingRating(f),
		Fishing:        fishingRating(f),
		FamilyFriendly: familyRating(f),
	}
}

func swimmingRating(f models.SafetyFactors) Rating {
	if f.RipCurrentRisk == models.RiskHigh ||
		f.WaterQuality == models.QualityPoor ||
		f.MarineLifeHazard == models.HazardHigh ||
		waveAbove(f, 6) {
		return RatingDangerous
	}
	if f.RipCurrentRisk == models.RiskModerate ||
		f.WaterQuality == models.QualityFair ||
		f.MarineLifeHazard == models.HazardModerate ||
		waveAbove(f, 4) {
		return RatingPoor
	}
	if waveAbove(f, 2.5) || windAbove(f, 20) {
		return RatingFair
	}
	if waveAbove(f, 1.5) || f.RipCurrentRisk == models.RiskLow {
		return RatingGood
	}
	return RatingExcellent
}

func snorkelingRating(f models.SafetyFactors) Rating {
	if f.WaterQuality == models.QualityPoor || waveAbove(f, 3) || windAbove(f, 25) {
		return RatingDangerous
	}
	if f.WaterQuality == models.QualityFair || waveAbove(f, 2) || windAbove(f, 15) {
		return RatingPoor
	}
	if waveAbove(f, 1) || f.MarineLifeHazard == models.HazardModerate {
		return RatingFair
	}
	if f.WaterQuality == models.QualityGood || f.MarineLifeHazard == models.HazardLow {
		return RatingGood
	}
	return RatingExcellent
}

func surfingRating(f models.SafetyFactors) Rating {
	if f.WaveHeight == nil || *f.WaveHeight < 1 {
		return RatingFlat
	}
	wave := *f.WaveHeight
	if wave > 15 || f.MarineLifeHazard == models.HazardHigh || f.WaterQuality == models.QualityPoor {
		return RatingDangerous
	}
	if wave > 10 || windAbove(f, 30) || f.RipCurrentRisk == models.RiskHigh {
		return RatingPoor
	}
	if wave > 8 || windAbove(f, 20) {
		return RatingFair
	}
	if wave > 3 || windAbove(f, 12) {
		return RatingGood
	}
	return RatingExcellent
}

func divingRating(f models.SafetyFactors) Rating {
	if f.WaterQuality == models.QualityPoor ||
		waveAbove(f, 4) ||
		f.RipCurrentRisk == models.RiskHigh ||
		windAbove(f, 25) {
		return RatingDangerous
	}
	if f.WaterQuality == models.QualityFair || waveAbove(f, 2.5) || windAbove(f, 18) {
		return RatingPoor
	}
	if waveAbove(f, 1.5) || f.RipCurrentRisk == models.RiskModerate {
		return RatingFair
	}
	if f.WaterQuality == models.QualityGood && f.RipCurrentRisk == models.RiskLow {
		return RatingGood
	}
	return RatingExcellent
}

func fishingRating(f models.SafetyFactors) Rating {
	if windAbove(f, 30) || waveAbove(f, 8) {
		return RatingPoor
	}
	if windAbove(f, 20) || waveAbove(f, 5) {
		return RatingFair
	}
	if windAbove(f, 12) || waveAbove(f, 3) {
		return RatingGood
	}
	return RatingExcellent
}

func familyRating(f models.SafetyFactors) Rating {
	if f.RipCurrentRisk == models.RiskHigh ||
		f.WaterQuality == models.QualityPoor ||
		f.MarineLifeHazard == models.HazardHigh ||
		waveAbove(f, 3) ||
		!f.LifeguardPresent {
		return RatingPoor
	}
	if f.RipCurrentRisk == models.RiskModerate ||
		f.WaterQuality == models.QualityFair ||
		f.MarineLifeHazard == models.HazardModerate ||
		waveAbove(f, 2) {
		return RatingFair
	}
	if waveAbove(f, 1) || f.RipCurrentRisk == models.RiskLow {
		return RatingGood
	}
	return RatingExcellent
}

// Recommendations produces advisory strings for the hazards present in the
// factors. Returns a single all-clear entry when nothing is flagged.
func Recommendations(f models.SafetyFactors) []string {
	var recs []string

	if f.JellyfishWarning {
		recs = append(recs, "Box jellyfish warning active - avoid water contact")
	}
	if f.RipCurrentRisk == models.RiskHigh {
		recs = append(recs, "High rip current risk - swim near lifeguards only")
	}
	if f.WaterQuality == models.QualityPoor {
		recs = append(recs, "Poor water quality - avoid swimming until conditions improve")
	}
	if f.UVIndex != nil && *f.UVIndex > 8 {
		recs = append(recs, "Extreme UV - use SPF 50+ and seek shade frequently")
	}
	if f.WaveHeight != nil && *f.WaveHeight > 6 {
		recs = append(recs, "Large surf - experienced swimmers and surfers only")
	}
	if f.MarineLifeHazard == models.HazardHigh {
		recs = append(recs, "Marine life hazard reported - use extra caution")
	}
	if !f.LifeguardPresent {
		recs = append(recs, "No lifeguard on duty - swim with buddy system")
	}
	if f.WindSpeed != nil && *f.WindSpeed > 25 {
		recs = append(recs, "High winds - secure belongings and use caution")
	}

	if len(recs) == 0 {
		recs = append(recs, "Excellent conditions for beach activities")
	}
	return recs
}

// FactorsFromSnapshot maps a condition snapshot onto the scoring value
// object. Bacteria advisory levels translate to water quality grades;
// readings the snapshot lacks stay unevaluated.
func FactorsFromSnapshot(snap models.ConditionSnapshot) models.SafetyFactors {
	f := models.SafetyFactors{
		WaveHeight: snap.WaveHeightFt,
		WindSpeed:  snap.WindMph,
		WaterTemp:  snap.WaterTempF,
	}
	if snap.BacteriaLevel != nil {
		switch *snap.BacteriaLevel {
		case models.BacteriaSafe:
			f.WaterQuality = models.QualityGood
		case models.BacteriaCaution:
			f.WaterQuality = models.QualityFair
		case models.BacteriaUnsafe:
			f.WaterQuality = models.QualityPoor
		}
	}
	return f
}

func waveAbove(f models.SafetyFactors, limit float64) bool {
	return f.WaveHeight != nil && *f.WaveHeight > limit
}

func windAbove(f models.SafetyFactors, limit float64) bool {
	return f.WindSpeed != nil && *f.WindSpeed > limit
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
