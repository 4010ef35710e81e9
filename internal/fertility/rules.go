// Package fertility implements the soil fertility prediction engine: a fixed
// threshold rule engine, an optional model-backed predictor that falls back to
// the rules on any failure, and the shared explanation generator.
package fertility

import (
	"github.com/soilsense/soilsense/pkg/models"
)

// Threshold cut points shared by scoring and explanation.
const (
	nitrogenDeficientBelow      = 20.0
	nitrogenOptimalAbove        = 50.0
	phosphorusDeficientBelow    = 15.0
	phosphorusOptimalAbove      = 30.0
	potassiumDeficientBelow     = 100.0
	potassiumOptimalAbove       = 200.0
	phMin                       = 6.0
	phMax                       = 8.0
	organicMatterDeficientBelow = 2.0
	organicMatterOptimalAbove   = 4.0
	moistureMin                 = 30.0
	moistureMax                 = 70.0
	temperatureMin              = 15.0
	temperatureMax              = 30.0
)

// Score buckets. These are heuristic values, not probabilistic.
const (
	maxScore    = 100
	highAbove   = 80
	mediumAbove = 60
)

// Tier is the threshold band a parameter value falls in.
type Tier int

const (
	TierDeficient Tier = iota
	TierAdequate
	TierOptimal
)

// Assessment is a rule's verdict on one parameter value.
type Assessment struct {
	Field  models.Field
	Tier   Tier
	Points int
	Reason string
}

// Rule scores a single soil parameter.
type Rule interface {
	// Field returns the parameter this rule reads.
	Field() models.Field

	// Assess places the value in a tier and returns its points and reason.
	Assess(value float64) Assessment
}

// thresholdRule is deficient below one cut point, optimal strictly above
// another and adequate in between (both ends inclusive).
type thresholdRule struct {
	field          models.Field
	deficientBelow float64
	optimalAbove   float64
	points         [3]int
	reasons        [3]string
}

func (r thresholdRule) Field() models.Field {
	return r.field
}

func (r thresholdRule) Assess(value float64) Assessment {
	tier := TierAdequate
	switch {
	case value < r.deficientBelow:
		tier = TierDeficient
	case value > r.optimalAbove:
		tier = TierOptimal
	}
	return Assessment{Field: r.field, Tier: tier, Points: r.points[tier], Reason: r.reasons[tier]}
}

// rangeRule has no optimal tier: inside [min, max] is adequate, outside is deficient.
type rangeRule struct {
	field         models.Field
	min, max      float64
	insidePoints  int
	outsidePoints int
	insideReason  string
	outsideReason string
}

func (r rangeRule) Field() models.Field {
	return r.field
}

func (r rangeRule) Assess(value float64) Assessment {
	if value < r.min || value > r.max {
		return Assessment{Field: r.field, Tier: TierDeficient, Points: r.outsidePoints, Reason: r.outsideReason}
	}
	return Assessment{Field: r.field, Tier: TierAdequate, Points: r.insidePoints, Reason: r.insideReason}
}

// scoringRules lists the scored parameters in evaluation order. Moisture and
// temperature are deliberately absent.
var scoringRules = []Rule{
	thresholdRule{
		field:          models.FieldNitrogen,
		deficientBelow: nitrogenDeficientBelow,
		optimalAbove:   nitrogenOptimalAbove,
		points:         [3]int{10, 20, 30},
		reasons: [3]string{
			"Low nitrogen levels detected - affects plant growth",
			"Moderate nitrogen levels - adequate for most crops",
			"Optimal nitrogen levels support healthy growth",
		},
	},
	thresholdRule{
		field:          models.FieldPhosphorus,
		deficientBelow: phosphorusDeficientBelow,
		optimalAbove:   phosphorusOptimalAbove,
		points:         [3]int{10, 20, 25},
		reasons: [3]string{
			"Phosphorus deficiency limits root development",
			"Adequate phosphorus levels",
			"Good phosphorus availability",
		},
	},
	thresholdRule{
		field:          models.FieldPotassium,
		deficientBelow: potassiumDeficientBelow,
		optimalAbove:   potassiumOptimalAbove,
		points:         [3]int{10, 20, 25},
		reasons: [3]string{
			"Low potassium affects disease resistance",
			"Moderate potassium availability",
			"Excellent potassium levels",
		},
	},
	rangeRule{
		field:         models.FieldPH,
		min:           phMin,
		max:           phMax,
		insidePoints:  20,
		outsidePoints: 5,
		insideReason:  "pH within optimal range",
		outsideReason: "pH outside optimal range affects nutrients",
	},
	thresholdRule{
		field:          models.FieldOrganicMatter,
		deficientBelow: organicMatterDeficientBelow,
		optimalAbove:   organicMatterOptimalAbove,
		points:         [3]int{5, 15, 20},
		reasons: [3]string{
			"Low organic matter reduces soil health",
			"Adequate organic matter",
			"Rich organic matter improves soil",
		},
	},
}

// Assess runs every scoring rule against the sample in evaluation order.
func Assess(sample models.SoilSample) []Assessment {
	out := make([]Assessment, 0, len(scoringRules))
	for _, rule := range scoringRules {
		out = append(out, rule.Assess(sample.Value(rule.Field())))
	}
	return out
}

// EvaluateRules scores a sample with the fixed threshold table.
// It is a pure function that:
//   - Never mutates the input
//   - Never performs I/O
//   - Produces deterministic, repeatable output
func EvaluateRules(sample models.SoilSample) models.PredictionResult {
	total := 0
	assessments := Assess(sample)
	reasons := make([]string, 0, len(assessments))
	for _, a := range assessments {
		total += a.Points
		reasons = append(reasons, a.Reason)
	}

	level := levelForScore(total)
	return models.PredictionResult{
		FertilityLevel:  level,
		Score:           min(total, maxScore),
		Reasons:         reasons,
		Recommendations: Recommend(sample, level),
		Engine:          models.EngineRuleBased,
	}
}

func levelForScore(score int) models.FertilityLevel {
	switch {
	case score > highAbove:
		return models.FertilityHigh
	case score > mediumAbove:
		return models.FertilityMedium
	default:
		return models.FertilityLow
	}
}
