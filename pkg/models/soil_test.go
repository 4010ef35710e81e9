package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() map[string]any {
	return map[string]any{
		"nitrogen":       45.0,
		"phosphorus":     35.0,
		"potassium":      250.0,
		"ph":             6.8,
		"organic_matter": 4.5,
		"moisture":       55.0,
		"temperature":    24.0,
	}
}

func TestParseSample_Valid(t *testing.T) {
	s, err := ParseSample(validFields())
	require.NoError(t, err)

	assert.Equal(t, SoilSample{
		Nitrogen:      45,
		Phosphorus:    35,
		Potassium:     250,
		PH:            6.8,
		OrganicMatter: 4.5,
		Moisture:      55,
		Temperature:   24,
	}, s)
}

func TestParseSample_MissingField(t *testing.T) {
	fields := validFields()
	delete(fields, "potassium")

	_, err := ParseSample(fields)
	require.Error(t, err)

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, FieldPotassium, missing.Field)
	assert.Equal(t, "Missing field: potassium", err.Error())
}

func TestParseSample_ReportsFirstFieldInSchemaOrder(t *testing.T) {
	fields := validFields()
	delete(fields, "temperature")
	delete(fields, "phosphorus")

	_, err := ParseSample(fields)

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, FieldPhosphorus, missing.Field)
}

func TestParseSample_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"non-numeric string", "abc"},
		{"empty string", ""},
		{"null", nil},
		{"boolean", true},
		{"NaN", math.NaN()},
		{"infinity", math.Inf(1)},
		{"NaN string", "NaN"},
		{"object", map[string]any{"v": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			fields["ph"] = tt.value

			_, err := ParseSample(fields)

			var invalid *InvalidValueError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, FieldPH, invalid.Field)
			assert.Equal(t, "Invalid value for ph", err.Error())
		})
	}
}

func TestParseSample_AcceptsNumericForms(t *testing.T) {
	fields := validFields()
	fields["nitrogen"] = " 12.5 "
	fields["phosphorus"] = 8
	fields["potassium"] = json.Number("80")
	fields["temperature"] = float32(18)

	s, err := ParseSample(fields)
	require.NoError(t, err)

	assert.Equal(t, 12.5, s.Nitrogen)
	assert.Equal(t, 8.0, s.Phosphorus)
	assert.Equal(t, 80.0, s.Potassium)
	assert.Equal(t, 18.0, s.Temperature)
}

func TestParseSample_AcceptsEveryIntegerKind(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"int8", int8(7)},
		{"int16", int16(7)},
		{"int32", int32(7)},
		{"int64", int64(7)},
		{"uint8", uint8(7)},
		{"uint16", uint16(7)},
		{"uint32", uint32(7)},
		{"uint64", uint64(7)},
		{"uint", uint(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			fields["ph"] = tt.v

			s, err := ParseSample(fields)
			require.NoError(t, err)
			assert.Equal(t, 7.0, s.PH)
		})
	}
}

func TestSoilSample_VectorOrder(t *testing.T) {
	s := SoilSample{
		Nitrogen:      1,
		Phosphorus:    2,
		Potassium:     3,
		PH:            4,
		OrganicMatter: 5,
		Moisture:      6,
		Temperature:   7,
	}

	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, s.Vector())
	for i, f := range FeatureSchema {
		assert.Equal(t, float64(i+1), s.Value(f), "field %s", f)
	}
}

func TestSoilSample_SimilarityVector(t *testing.T) {
	s := SoilSample{Nitrogen: 50, Phosphorus: 10, Potassium: 250, PH: 7, OrganicMatter: 5, Moisture: 50, Temperature: 25}

	v := s.SimilarityVector()

	want := []float32{0.5, 0.1, 0.5, 0.5, 0.5, 0.5, 0.5}
	require.Len(t, v, NumFeatures)
	for i := range want {
		assert.InDelta(t, want[i], v[i], 1e-6, "index %d", i)
	}
}

func TestParseFertilityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want FertilityLevel
		ok   bool
	}{
		{"High", FertilityHigh, true},
		{"medium", FertilityMedium, true},
		{" LOW ", FertilityLow, true},
		{"Excellent", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFertilityLevel(tt.in)
		assert.Equal(t, tt.want, got, "ParseFertilityLevel(%q)", tt.in)
		assert.Equal(t, tt.ok, ok, "ParseFertilityLevel(%q)", tt.in)
	}
}

func TestPredictionResult_JSONOmitsConfidenceForRules(t *testing.T) {
	r := PredictionResult{
		FertilityLevel: FertilityLow,
		Score:          40,
		Reasons:        []string{"x"},
		Recommendations: RecommendationBundle{
			Fertilizers:  []string{},
			Crops:        []string{"Clover"},
			Improvements: []string{},
		},
		Engine: EngineRuleBased,
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "confidence")
	assert.NotContains(t, decoded, "Engine")
	assert.ElementsMatch(t, []string{"fertility_level", "score", "reasons", "recommendations"}, keys(decoded))

	c := 0.0
	r.Confidence = &c
	data, err = json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"confidence":0`)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
