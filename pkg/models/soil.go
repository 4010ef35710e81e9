package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field names a soil parameter of the feature schema.
type Field string

const (
	FieldNitrogen      Field = "nitrogen"
	FieldPhosphorus    Field = "phosphorus"
	FieldPotassium     Field = "potassium"
	FieldPH            Field = "ph"
	FieldOrganicMatter Field = "organic_matter"
	FieldMoisture      Field = "moisture"
	FieldTemperature   Field = "temperature"
)

// FeatureSchema is the canonical field order. Model artifacts are trained
// against exactly this order.
var FeatureSchema = [NumFeatures]Field{
	FieldNitrogen,
	FieldPhosphorus,
	FieldPotassium,
	FieldPH,
	FieldOrganicMatter,
	FieldMoisture,
	FieldTemperature,
}

// NumFeatures is the length of the feature vector.
const NumFeatures = 7

// nominalMax bounds each field for similarity normalization only.
var nominalMax = map[Field]float64{
	FieldNitrogen:      100,
	FieldPhosphorus:    100,
	FieldPotassium:     500,
	FieldPH:            14,
	FieldOrganicMatter: 10,
	FieldMoisture:      100,
	FieldTemperature:   50,
}

// SoilSample holds one set of measured soil parameters.
type SoilSample struct {
	Nitrogen      float64 `json:"nitrogen"`       // ppm
	Phosphorus    float64 `json:"phosphorus"`     // ppm
	Potassium     float64 `json:"potassium"`      // ppm
	PH            float64 `json:"ph"`             // pH units
	OrganicMatter float64 `json:"organic_matter"` // percent
	Moisture      float64 `json:"moisture"`       // percent
	Temperature   float64 `json:"temperature"`    // Celsius
}

// Value returns the value of the named field.
func (s SoilSample) Value(f Field) float64 {
	switch f {
	case FieldNitrogen:
		return s.Nitrogen
	case FieldPhosphorus:
		return s.Phosphorus
	case FieldPotassium:
		return s.Potassium
	case FieldPH:
		return s.PH
	case FieldOrganicMatter:
		return s.OrganicMatter
	case FieldMoisture:
		return s.Moisture
	case FieldTemperature:
		return s.Temperature
	default:
		return math.NaN()
	}
}

func (s *SoilSample) set(f Field, v float64) {
	switch f {
	case FieldNitrogen:
		s.Nitrogen = v
	case FieldPhosphorus:
		s.Phosphorus = v
	case FieldPotassium:
		s.Potassium = v
	case FieldPH:
		s.PH = v
	case FieldOrganicMatter:
		s.OrganicMatter = v
	case FieldMoisture:
		s.Moisture = v
	case FieldTemperature:
		s.Temperature = v
	}
}

// Vector returns the raw feature vector in FeatureSchema order.
func (s SoilSample) Vector() []float64 {
	v := make([]float64, NumFeatures)
	for i, f := range FeatureSchema {
		v[i] = s.Value(f)
	}
	return v
}

// SimilarityVector returns the feature vector scaled by each field's nominal
// maximum, so that no single unit dominates a distance comparison.
func (s SoilSample) SimilarityVector() []float32 {
	v := make([]float32, NumFeatures)
	for i, f := range FeatureSchema {
		v[i] = float32(s.Value(f) / nominalMax[f])
	}
	return v
}

// ParseSample validates a loosely typed field mapping (typically decoded JSON)
// and builds a SoilSample. Fields are checked in schema order and the first
// offending field is reported. Nothing is defaulted.
func ParseSample(fields map[string]any) (SoilSample, error) {
	var s SoilSample
	for _, f := range FeatureSchema {
		raw, ok := fields[string(f)]
		if !ok {
			return SoilSample{}, &MissingFieldError{Field: f}
		}
		v, err := toFloat(raw)
		if err != nil {
			return SoilSample{}, &InvalidValueError{Field: f, Value: raw, Err: err}
		}
		s.set(f, v)
	}
	return s, nil
}

func toFloat(raw any) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int8:
		v = float64(x)
	case int16:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint8:
		v = float64(x)
	case uint16:
		v = float64(x)
	case uint32:
		v = float64(x)
	case uint64:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, err
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, err
		}
		v = f
	case nil:
		return 0, errNullValue
	default:
		return 0, errNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

// Label returns the human-readable name of the field.
func (f Field) Label() string {
	switch f {
	case FieldPH:
		return "pH"
	case FieldOrganicMatter:
		return "organic matter"
	default:
		return string(f)
	}
}
