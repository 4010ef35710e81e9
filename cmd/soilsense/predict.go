package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soilsense/soilsense/internal/artifact"
	"github.com/soilsense/soilsense/internal/config"
	"github.com/soilsense/soilsense/internal/fertility"
	"github.com/soilsense/soilsense/pkg/models"
)

var (
	predictInput  string
	predictModel  string
	predictRemote string
	predictJSON   bool
	fieldValues   [models.NumFeatures]float64
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict fertility for one or more soil samples",
	Long: `Predict fertility for a soil sample given as flags, or for the samples in
a JSON file. The file holds one object, or an array of objects for a batch.

Examples:
  soilsense predict --nitrogen 45 --phosphorus 35 --potassium 250 --ph 6.8 \
    --organic-matter 4.5 --moisture 55 --temperature 24
  soilsense predict --input samples.json --model models/soil.json --json
  soilsense predict --input sample.json --remote http://localhost:5000`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

// flagName maps a schema field to its kebab-case flag.
func flagName(f models.Field) string {
	if f == models.FieldOrganicMatter {
		return "organic-matter"
	}
	return string(f)
}

func init() {
	for i, f := range models.FeatureSchema {
		predictCmd.Flags().Float64Var(&fieldValues[i], flagName(f), 0, "Measured "+f.Label())
	}
	predictCmd.Flags().StringVarP(&predictInput, "input", "i", "", "JSON file with a sample object or an array of samples")
	predictCmd.Flags().StringVarP(&predictModel, "model", "m", "", "Model artifact (.json, .yaml); defaults to model.path")
	predictCmd.Flags().StringVar(&predictRemote, "remote", "", "Model service URL; defaults to model.remote_url")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "Output results as JSON")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	samples, batch, err := loadSamples(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	model, err := openModel(ctx, logger)
	if err != nil {
		return err
	}
	predictor := fertility.New(model, logger)

	stop := startSpinner(os.Stderr, "Predicting...")
	var results []models.PredictionResult
	if batch {
		results, err = predictor.PredictBatch(ctx, samples, fertility.DefaultBatchLimit)
	} else {
		var r *models.PredictionResult
		r, err = predictor.Predict(ctx, samples[0])
		if r != nil {
			results = []models.PredictionResult{*r}
		}
	}
	stop()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if predictJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if batch {
			return enc.Encode(results)
		}
		return enc.Encode(results[0])
	}

	for i := range results {
		if batch {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "Sample %d\n", i+1)
		}
		printPrediction(out, &results[i])
	}
	return nil
}

// loadSamples reads --input, or builds a single sample from the field flags.
// Only flags that were set are included, so missing ones are reported by name.
func loadSamples(cmd *cobra.Command) (samples []map[string]any, batch bool, err error) {
	if predictInput != "" {
		data, err := os.ReadFile(predictInput)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read input: %w", err)
		}
		return parseSamples(data)
	}

	fields := make(map[string]any)
	for i, f := range models.FeatureSchema {
		if cmd.Flags().Changed(flagName(f)) {
			fields[string(f)] = fieldValues[i]
		}
	}
	return []map[string]any{fields}, false, nil
}

// parseSamples decodes a sample object or an array of them.
func parseSamples(data []byte) ([]map[string]any, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, false, fmt.Errorf("failed to parse input: %w", err)
	}

	switch v := raw.(type) {
	case map[string]any:
		return []map[string]any{v}, false, nil
	case []any:
		if len(v) == 0 {
			return nil, false, errors.New("input contains no samples")
		}
		samples := make([]map[string]any, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false, fmt.Errorf("sample %d is not an object", i)
			}
			samples[i] = m
		}
		return samples, true, nil
	default:
		return nil, false, errors.New("input must be a JSON object or array")
	}
}

// openModel resolves the model from flags, then configuration. No model is
// not an error: predictions use the rules.
func openModel(ctx context.Context, logger *zap.Logger) (*fertility.Model, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	src := artifact.Source{
		Path:          cfg.Model.Path,
		RemoteURL:     cfg.Model.RemoteURL,
		RemoteTimeout: cfg.Model.RemoteTimeout,
		RemoteRPS:     cfg.Model.RemoteRPS,
	}
	if predictModel != "" || predictRemote != "" {
		src.Path, src.RemoteURL = predictModel, predictRemote
	}

	m, err := artifact.Open(ctx, src, logger)
	if errors.Is(err, artifact.ErrNoModel) {
		logger.Debug("no model available, using rules")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return m, nil
}

// startSpinner shows a spinner on f when it is a terminal. The returned func
// stops it.
func startSpinner(f *os.File, suffix string) func() {
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}
