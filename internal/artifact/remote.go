package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/soilsense/soilsense/internal/fertility"
	"github.com/soilsense/soilsense/pkg/models"
)

const (
	defaultRemoteTimeout = 5 * time.Second
	defaultRemoteRPS     = 20
)

// RemoteConfig configures an HTTP inference service binding.
type RemoteConfig struct {
	URL        string
	Timeout    time.Duration
	RPS        float64
	HTTPClient *http.Client
}

// remoteMetadata is the GET /metadata response.
type remoteMetadata struct {
	Name               string    `json:"name"`
	Output             string    `json:"output"`
	HasProbabilities   bool      `json:"has_probabilities"`
	FeatureNames       []string  `json:"feature_names,omitempty"`
	FeatureImportances []float64 `json:"feature_importances,omitempty"`
}

type predictRequest struct {
	Features     []float64 `json:"features"`
	FeatureNames []string  `json:"feature_names"`
}

// RemoteClassifier calls a model served over HTTP.
type RemoteClassifier struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	timeout     time.Duration
	kind        fertility.OutputKind
	importances []float64
}

// remoteProbaClassifier is a RemoteClassifier whose service also answers
// /predict_proba.
type remoteProbaClassifier struct {
	*RemoteClassifier
}

// DialRemote probes the service metadata once and returns a model bound to it.
func DialRemote(ctx context.Context, cfg RemoteConfig) (*fertility.Model, error) {
	if cfg.URL == "" {
		return nil, ErrNoModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRemoteTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRemoteRPS
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	c := &RemoteClassifier{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(cfg.RPS))),
		timeout:    cfg.Timeout,
	}

	var meta remoteMetadata
	if err := c.do(ctx, http.MethodGet, "/metadata", nil, &meta); err != nil {
		return nil, fmt.Errorf("failed to probe model service: %w", err)
	}
	if err := c.applyMetadata(meta); err != nil {
		return nil, fmt.Errorf("invalid model service metadata: %w", err)
	}

	name := meta.Name
	if name == "" {
		name = c.baseURL
	}

	var classifier fertility.Classifier = c
	if meta.HasProbabilities {
		classifier = remoteProbaClassifier{c}
	}
	return fertility.NewModel(name, classifier, nil)
}

func (c *RemoteClassifier) applyMetadata(meta remoteMetadata) error {
	switch meta.Output {
	case "numeric":
		c.kind = fertility.OutputNumeric
	case "categorical":
		c.kind = fertility.OutputCategorical
	case "":
	default:
		return fmt.Errorf("unknown output %q", meta.Output)
	}

	if meta.FeatureNames != nil {
		if len(meta.FeatureNames) != models.NumFeatures {
			return fmt.Errorf("service expects %d features, want %d", len(meta.FeatureNames), models.NumFeatures)
		}
		for i, name := range meta.FeatureNames {
			if name != string(models.FeatureSchema[i]) {
				return fmt.Errorf("service feature %d is %q, want %q", i, name, models.FeatureSchema[i])
			}
		}
	}
	if meta.FeatureImportances != nil {
		if len(meta.FeatureImportances) != models.NumFeatures {
			return fmt.Errorf("service reports %d importances, want %d", len(meta.FeatureImportances), models.NumFeatures)
		}
		c.importances = meta.FeatureImportances
	}
	return nil
}

func (c *RemoteClassifier) OutputKind() fertility.OutputKind {
	return c.kind
}

func (c *RemoteClassifier) FeatureImportances() []float64 {
	if c.importances == nil {
		return nil
	}
	return append([]float64(nil), c.importances...)
}

// Predict posts the feature vector to /predict.
func (c *RemoteClassifier) Predict(ctx context.Context, x []float64) (fertility.ClassifierOutput, error) {
	var resp struct {
		Prediction json.RawMessage `json:"prediction"`
	}
	if err := c.do(ctx, http.MethodPost, "/predict", newPredictRequest(x), &resp); err != nil {
		return fertility.ClassifierOutput{}, err
	}
	return decodePrediction(resp.Prediction)
}

func (c remoteProbaClassifier) PredictProba(ctx context.Context, x []float64) ([]float64, error) {
	var resp struct {
		Probabilities []float64 `json:"probabilities"`
	}
	if err := c.do(ctx, http.MethodPost, "/predict_proba", newPredictRequest(x), &resp); err != nil {
		return nil, err
	}
	return resp.Probabilities, nil
}

func newPredictRequest(x []float64) predictRequest {
	names := make([]string, len(models.FeatureSchema))
	for i, f := range models.FeatureSchema {
		names[i] = string(f)
	}
	return predictRequest{Features: x, FeatureNames: names}
}

func decodePrediction(raw json.RawMessage) (fertility.ClassifierOutput, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return fertility.ClassifierOutput{}, errors.New("response has no prediction")
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return fertility.NumericOutput(num), nil
	}
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		return fertility.CategoricalOutput(label), nil
	}
	return fertility.ClassifierOutput{}, fmt.Errorf("unsupported prediction %s", raw)
}

func (c *RemoteClassifier) do(ctx context.Context, method, path string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("model service error: %s - %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
