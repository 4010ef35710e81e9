package artifact

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soilsense/soilsense/internal/fertility"
	"github.com/soilsense/soilsense/pkg/models"
)

type modelService struct {
	metadata   map[string]any
	prediction any
	probs      []float64
	status     int
	delay      time.Duration

	predictCalls atomic.Int32

	mu           sync.Mutex
	lastFeatures []float64
}

func (s *modelService) features() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFeatures
}

func (s *modelService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metadata", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(s.metadata)
	})
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		s.predictCalls.Add(1)
		var req predictRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.mu.Lock()
		s.lastFeatures = req.Features
		s.mu.Unlock()
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-r.Context().Done():
				return
			}
		}
		if s.status != 0 {
			http.Error(w, "model exploded", s.status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"prediction": s.prediction})
	})
	mux.HandleFunc("POST /predict_proba", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"probabilities": s.probs})
	})
	return mux
}

func TestDialRemote_Categorical(t *testing.T) {
	svc := &modelService{
		metadata: map[string]any{
			"name":                "rf-v3",
			"output":              "categorical",
			"has_probabilities":   true,
			"feature_importances": []float64{0.1, 0.1, 0.1, 0.4, 0.1, 0.1, 0.1},
		},
		prediction: "Medium",
		probs:      []float64{0.1, 0.84, 0.06},
	}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	m, err := DialRemote(context.Background(), RemoteConfig{URL: srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, "rf-v3", m.Name())
	assert.True(t, m.HasProbabilities())
	assert.Equal(t, fertility.OutputCategorical, m.OutputKind())

	result := fertility.New(m, nil).PredictSample(context.Background(), richSample)

	assert.Equal(t, models.FertilityMedium, result.FertilityLevel)
	assert.Equal(t, 71, result.Score) // round(50 + 0.84*25)
	assert.Equal(t, richSample.Vector(), svc.features())
	assert.Equal(t, "Model predicts Medium fertility with high confidence (84.0%)", result.Reasons[0])
}

func TestDialRemote_NumericWithoutProbabilities(t *testing.T) {
	svc := &modelService{
		metadata:   map[string]any{"output": "numeric"},
		prediction: 0.64,
	}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	m, err := DialRemote(context.Background(), RemoteConfig{URL: srv.URL})
	require.NoError(t, err)
	assert.False(t, m.HasProbabilities())
	assert.Nil(t, m.FeatureImportances())

	result := fertility.New(m, nil).PredictSample(context.Background(), richSample)
	assert.Equal(t, 64, result.Score)
	assert.Equal(t, models.FertilityMedium, result.FertilityLevel)
}

func TestDialRemote_BadMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
	}{
		{"unknown output", map[string]any{"output": "ranking"}},
		{"feature order", map[string]any{"feature_names": []string{"ph", "nitrogen", "phosphorus", "potassium", "organic_matter", "moisture", "temperature"}}},
		{"importance width", map[string]any{"feature_importances": []float64{1, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer((&modelService{metadata: tt.metadata}).handler(t))
			defer srv.Close()

			_, err := DialRemote(context.Background(), RemoteConfig{URL: srv.URL})
			assert.ErrorContains(t, err, "invalid model service metadata")
		})
	}
}

func TestDialRemote_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := DialRemote(context.Background(), RemoteConfig{URL: srv.URL, Timeout: time.Second})
	assert.ErrorContains(t, err, "failed to probe model service")
}

func TestRemote_FailuresFallBackToRules(t *testing.T) {
	tests := []struct {
		name string
		svc  *modelService
	}{
		{"server error", &modelService{status: http.StatusInternalServerError}},
		{"null prediction", &modelService{prediction: nil}},
		{"object prediction", &modelService{prediction: map[string]any{"level": "High"}}},
		{"timeout", &modelService{prediction: 0.9, delay: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.svc.metadata = map[string]any{}
			srv := httptest.NewServer(tt.svc.handler(t))
			defer srv.Close()

			m, err := DialRemote(context.Background(), RemoteConfig{URL: srv.URL, Timeout: 50 * time.Millisecond})
			require.NoError(t, err)

			got := fertility.New(m, nil).PredictSample(context.Background(), poorSample)
			assert.Empty(t, cmp.Diff(fertility.EvaluateRules(poorSample), got))
			assert.Equal(t, int32(1), tt.svc.predictCalls.Load())
		})
	}
}

func TestDecodePrediction(t *testing.T) {
	out, err := decodePrediction(json.RawMessage(`0.75`))
	require.NoError(t, err)
	assert.Equal(t, fertility.NumericOutput(0.75), out)

	out, err = decodePrediction(json.RawMessage(`"High"`))
	require.NoError(t, err)
	assert.Equal(t, fertility.CategoricalOutput("High"), out)

	_, err = decodePrediction(nil)
	assert.Error(t, err)
}
