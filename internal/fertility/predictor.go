package fertility

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soilsense/soilsense/pkg/models"
)

// DefaultBatchLimit bounds PredictBatch concurrency when no limit is given.
const DefaultBatchLimit = 8

// Predictor is the entry point of the engine. With a model loaded it runs the
// model-backed path and falls back to the rules on any inference failure;
// without one it runs the rules directly.
type Predictor struct {
	model  *Model
	logger *zap.Logger
}

// New creates a predictor. model may be nil, which selects rule-only mode.
func New(model *Model, logger *zap.Logger) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{
		model:  model,
		logger: logger,
	}
}

// ModelLoaded reports whether a model-backed path is available.
func (p *Predictor) ModelLoaded() bool {
	return p.model != nil
}

// Model returns the loaded model, or nil.
func (p *Predictor) Model() *Model {
	return p.model
}

// Predict validates a loosely typed field mapping and predicts its fertility.
// The only errors are *models.MissingFieldError and *models.InvalidValueError.
func (p *Predictor) Predict(ctx context.Context, fields map[string]any) (*models.PredictionResult, error) {
	sample, err := models.ParseSample(fields)
	if err != nil {
		return nil, err
	}
	result := p.PredictSample(ctx, sample)
	return &result, nil
}

// PredictSample predicts the fertility of an already validated sample. It
// never fails.
func (p *Predictor) PredictSample(ctx context.Context, sample models.SoilSample) models.PredictionResult {
	if p.model == nil {
		return EvaluateRules(sample)
	}

	result, err := p.model.infer(ctx, sample)
	if err != nil {
		p.logger.Warn("model inference failed, falling back to rules",
			zap.String("model", p.model.Name()),
			zap.String("engine", models.EngineRuleBased),
			zap.Error(err))
		return EvaluateRules(sample)
	}
	return result
}

// PredictBatch validates and predicts every field mapping concurrently, at most
// limit at a time. Results keep input order. The first malformed sample aborts
// the batch with an error naming its index.
func (p *Predictor) PredictBatch(ctx context.Context, batch []map[string]any, limit int) ([]models.PredictionResult, error) {
	samples := make([]models.SoilSample, len(batch))
	for i, fields := range batch {
		s, err := models.ParseSample(fields)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		samples[i] = s
	}

	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	results := make([]models.PredictionResult, len(samples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, s := range samples {
		g.Go(func() error {
			results[i] = p.PredictSample(gctx, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
