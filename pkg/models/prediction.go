package models

import "strings"

// FertilityLevel is the three-way fertility classification.
type FertilityLevel string

const (
	FertilityLow    FertilityLevel = "Low"
	FertilityMedium FertilityLevel = "Medium"
	FertilityHigh   FertilityLevel = "High"
)

// ParseFertilityLevel matches a classifier label case-insensitively.
func ParseFertilityLevel(label string) (FertilityLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "low":
		return FertilityLow, true
	case "medium":
		return FertilityMedium, true
	case "high":
		return FertilityHigh, true
	default:
		return "", false
	}
}

// Engine values identify which path produced a result.
const (
	EngineRuleBased = "rule-based"
	EngineModel     = "model"
)

// RecommendationBundle groups remediation and planting advice.
type RecommendationBundle struct {
	Fertilizers  []string `json:"fertilizers"`  // set semantics, first-seen order
	Crops        []string `json:"crops"`        // display order
	Improvements []string `json:"improvements"` // one per triggered deficiency
}

// PredictionResult is the outcome of a fertility prediction.
type PredictionResult struct {
	FertilityLevel  FertilityLevel       `json:"fertility_level"`
	Score           int                  `json:"score"`
	Confidence      *float64             `json:"confidence,omitempty"`
	Reasons         []string             `json:"reasons"`
	Recommendations RecommendationBundle `json:"recommendations"`

	// Engine is not part of the response body; callers use it for logs and storage.
	Engine string `json:"-"`
}
