package artifact

import (
	"fmt"
	"math"

	"github.com/soilsense/soilsense/pkg/models"
)

// StandardScaler standardizes features as (x - mean) / scale.
type StandardScaler struct {
	Mean  []float64 `json:"mean" yaml:"mean"`
	Scale []float64 `json:"scale" yaml:"scale"`
}

// Validate checks the scaler widths and values.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) != models.NumFeatures || len(s.Scale) != models.NumFeatures {
		return fmt.Errorf("scaler has %d means and %d scales, want %d", len(s.Mean), len(s.Scale), models.NumFeatures)
	}
	for i := range s.Mean {
		if !finite(s.Mean[i]) || !finite(s.Scale[i]) {
			return fmt.Errorf("scaler entry %d is not finite", i)
		}
	}
	return nil
}

// Transform implements fertility.Scaler. A zero scale leaves the centered
// value unscaled.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("got %d features, want %d", len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
