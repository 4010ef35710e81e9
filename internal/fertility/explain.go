package fertility

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soilsense/soilsense/pkg/models"
)

// remedy is the fertilizer set and improvement action for one deficiency.
type remedy struct {
	fertilizers []string
	improvement string
}

var (
	nitrogenRemedy = remedy{
		fertilizers: []string{"Urea (46-0-0)", "Ammonium Sulfate (21-0-0)"},
		improvement: "Apply nitrogen-rich fertilizers during growing season",
	}
	phosphorusRemedy = remedy{
		fertilizers: []string{"Triple Superphosphate (0-46-0)", "Bone Meal (4-12-0)"},
		improvement: "Increase phosphorus for better root development",
	}
	potassiumRemedy = remedy{
		fertilizers: []string{"Muriate of Potash (0-0-60)", "Potassium Sulfate (0-0-50)"},
		improvement: "Apply potassium fertilizers for stress tolerance",
	}
	acidicRemedy = remedy{
		fertilizers: []string{"Dolomitic Lime"},
		improvement: "Apply lime to increase pH",
	}
	alkalineRemedy = remedy{
		fertilizers: []string{"Elemental Sulfur"},
		improvement: "Apply sulfur to decrease pH",
	}
	organicMatterRemedy = remedy{
		fertilizers: []string{"Compost", "Well-aged Manure"},
		improvement: "Add organic matter to improve soil structure",
	}
)

var cropsByLevel = map[models.FertilityLevel][]string{
	models.FertilityHigh:   {"Corn", "Soybeans", "Wheat", "Tomatoes", "Peppers", "Cucumbers"},
	models.FertilityMedium: {"Beans", "Carrots", "Lettuce", "Spinach", "Radishes", "Onions"},
	models.FertilityLow:    {"Clover", "Alfalfa", "Buckwheat", "Rye Grass", "Cover Crops"},
}

// bundleBuilder accumulates remedies, keeping fertilizers unique in first-seen order.
type bundleBuilder struct {
	seen         map[string]struct{}
	fertilizers  []string
	improvements []string
}

func (b *bundleBuilder) add(r remedy) {
	for _, f := range r.fertilizers {
		if _, dup := b.seen[f]; dup {
			continue
		}
		b.seen[f] = struct{}{}
		b.fertilizers = append(b.fertilizers, f)
	}
	b.improvements = append(b.improvements, r.improvement)
}

// Recommend derives fertilizer, crop and improvement advice for a sample and
// its resolved fertility level. Identical inputs always give identical output.
func Recommend(sample models.SoilSample, level models.FertilityLevel) models.RecommendationBundle {
	b := &bundleBuilder{
		seen:         make(map[string]struct{}),
		fertilizers:  []string{},
		improvements: []string{},
	}

	if sample.Nitrogen < nitrogenDeficientBelow {
		b.add(nitrogenRemedy)
	}
	if sample.Phosphorus < phosphorusDeficientBelow {
		b.add(phosphorusRemedy)
	}
	if sample.Potassium < potassiumDeficientBelow {
		b.add(potassiumRemedy)
	}
	if sample.PH < phMin {
		b.add(acidicRemedy)
	} else if sample.PH > phMax {
		b.add(alkalineRemedy)
	}
	if sample.OrganicMatter < organicMatterDeficientBelow {
		b.add(organicMatterRemedy)
	}

	return models.RecommendationBundle{
		Fertilizers:  b.fertilizers,
		Crops:        cropsFor(level),
		Improvements: b.improvements,
	}
}

func cropsFor(level models.FertilityLevel) []string {
	crops, ok := cropsByLevel[level]
	if !ok {
		crops = cropsByLevel[models.FertilityLow]
	}
	return append([]string(nil), crops...)
}

// confidenceSentence leads the model-backed explanation.
func confidenceSentence(level models.FertilityLevel, confidence float64) string {
	band := "moderate confidence"
	switch {
	case confidence > 0.9:
		band = "very high confidence"
	case confidence > 0.8:
		band = "high confidence"
	}
	return fmt.Sprintf("Model predicts %s fertility with %s (%.1f%%)", level, band, confidence*100)
}

// topFactors returns the n most important fields; equal importances keep
// schema order.
func topFactors(importances []float64, n int) []models.Field {
	idx := make([]int, len(importances))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return importances[idx[a]] > importances[idx[b]]
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	fields := make([]models.Field, len(idx))
	for i, j := range idx {
		fields[i] = models.FeatureSchema[j]
	}
	return fields
}

func keyFactorsSentence(importances []float64) string {
	factors := topFactors(importances, 3)
	names := make([]string, len(factors))
	for i, f := range factors {
		names[i] = f.Label()
	}
	return "Key factors influencing this prediction: " + strings.Join(names, ", ")
}

// explainModel builds the reasons for a model-backed prediction. importances
// may be nil when the classifier does not expose them.
func explainModel(sample models.SoilSample, level models.FertilityLevel, confidence float64, importances []float64) []string {
	reasons := []string{confidenceSentence(level, confidence)}
	if len(importances) > 0 {
		reasons = append(reasons, keyFactorsSentence(importances))
	}

	switch {
	case sample.Nitrogen < nitrogenDeficientBelow:
		reasons = append(reasons, "ML model indicates nitrogen deficiency is limiting fertility")
	case sample.Nitrogen > nitrogenOptimalAbove:
		reasons = append(reasons, "ML model shows optimal nitrogen levels contributing to high fertility")
	}

	switch {
	case sample.Phosphorus < phosphorusDeficientBelow:
		reasons = append(reasons, "Model detects phosphorus limitation affecting root development")
	case sample.Phosphorus > phosphorusOptimalAbove:
		reasons = append(reasons, "Model indicates excellent phosphorus availability")
	}

	switch {
	case sample.Potassium < potassiumDeficientBelow:
		reasons = append(reasons, "Model shows potassium deficiency impacting plant stress tolerance")
	case sample.Potassium > potassiumOptimalAbove:
		reasons = append(reasons, "Model indicates optimal potassium levels for disease resistance")
	}

	if sample.PH < phMin || sample.PH > phMax {
		reasons = append(reasons, "Model detects pH imbalance affecting nutrient availability")
	} else {
		reasons = append(reasons, "Model shows pH levels are within optimal range")
	}

	switch {
	case sample.OrganicMatter < organicMatterDeficientBelow:
		reasons = append(reasons, "Model indicates low organic matter reducing soil health")
	case sample.OrganicMatter > organicMatterOptimalAbove:
		reasons = append(reasons, "Model shows excellent organic matter content")
	}

	switch {
	case sample.Moisture < moistureMin:
		reasons = append(reasons, "Model detects low soil moisture limiting nutrient uptake")
	case sample.Moisture > moistureMax:
		reasons = append(reasons, "Model detects excess soil moisture that may stress roots")
	default:
		reasons = append(reasons, "Model shows soil moisture within optimal range (30-70%)")
	}

	switch {
	case sample.Temperature < temperatureMin:
		reasons = append(reasons, "Model detects low soil temperature slowing nutrient uptake")
	case sample.Temperature > temperatureMax:
		reasons = append(reasons, "Model detects high soil temperature stressing root activity")
	default:
		reasons = append(reasons, "Model shows soil temperature within optimal range (15-30°C)")
	}

	return reasons
}
