package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/soilsense/soilsense/internal/fertility"
	"github.com/soilsense/soilsense/pkg/models"
)

func levelColor(level models.FertilityLevel) *color.Color {
	switch level {
	case models.FertilityHigh:
		return color.New(color.FgGreen, color.Bold)
	case models.FertilityMedium:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func printPrediction(w io.Writer, r *models.PredictionResult) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	_, _ = levelColor(r.FertilityLevel).Fprintf(w, "%s FERTILITY", strings.ToUpper(string(r.FertilityLevel)))
	fmt.Fprintf(w, "  score %d/100", r.Score)
	_, _ = dim.Fprintf(w, "  (%s)\n", r.Engine)

	if r.Confidence != nil {
		printConfidenceBar(w, int(math.Round(*r.Confidence*100)))
	}
	fmt.Fprintln(w)

	printList(w, bold, "REASONS", r.Reasons)
	printList(w, bold, "FERTILIZERS", r.Recommendations.Fertilizers)
	printList(w, bold, "CROPS", r.Recommendations.Crops)
	printList(w, bold, "IMPROVEMENTS", r.Recommendations.Improvements)
}

func printList(w io.Writer, heading *color.Color, title string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = heading.Fprintln(w, title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
	fmt.Fprintln(w)
}

func printConfidenceBar(w io.Writer, confidence int) {
	const barWidth = 24
	filled := min(max(confidence*barWidth/100, 0), barWidth)

	var barColor *color.Color
	switch {
	case confidence > 90:
		barColor = color.New(color.FgGreen)
	case confidence > 80:
		barColor = color.New(color.FgYellow)
	default:
		barColor = color.New(color.FgRed)
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(w, "  Confidence: %d%% ", confidence)
	_, _ = barColor.Fprintln(w, bar)
}

func printModel(w io.Writer, m *fertility.Model) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	kind := "unknown"
	if m.OutputKind() != 0 {
		kind = m.OutputKind().String()
	}

	_, _ = bold.Fprintln(w, m.Name())
	fmt.Fprintf(w, "  Output:        %s\n", kind)
	fmt.Fprintf(w, "  Probabilities: %s\n", yesNo(m.HasProbabilities()))
	fmt.Fprintf(w, "  Scaler:        %s\n", yesNo(m.HasScaler()))

	importances := m.FeatureImportances()
	if importances == nil {
		_, _ = dim.Fprintln(w, "  No feature importances")
		return
	}

	fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "FEATURE IMPORTANCES")
	for i, f := range models.FeatureSchema {
		fmt.Fprintf(w, "  %-15s %.3f\n", f.Label(), importances[i])
	}
}
