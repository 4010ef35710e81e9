package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/soilsense/soilsense/internal/fertility"
)

// ErrNoModel means no model artifact is configured or present. Callers treat
// it as rule-only mode, not as a failure.
var ErrNoModel = errors.New("no model artifact available")

// ScalerPath returns the companion scaler path for a model path:
// models/soil.json pairs with models/soil_scaler.json.
func ScalerPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_scaler" + ext
}

// Load reads a model manifest and its optional companion scaler.
func Load(path string) (*fertility.Model, error) {
	if path == "" {
		return nil, ErrNoModel
	}

	var manifest Manifest
	if err := decodeFile(path, &manifest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoModel, path)
		}
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	classifier, err := NewEstimator(&manifest)
	if err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}

	var scaler fertility.Scaler
	scalerPath := ScalerPath(path)
	var ss StandardScaler
	switch err := decodeFile(scalerPath, &ss); {
	case err == nil:
		if err := ss.Validate(); err != nil {
			return nil, fmt.Errorf("invalid scaler %s: %w", scalerPath, err)
		}
		scaler = &ss
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read scaler %s: %w", scalerPath, err)
	}

	return fertility.NewModel(filepath.Base(path), classifier, scaler)
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal(data, v)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported artifact format %q", filepath.Ext(path))
	}
}

// Source says where to find a model. A remote URL wins over a local path.
type Source struct {
	Path          string
	RemoteURL     string
	RemoteTimeout time.Duration
	RemoteRPS     float64
}

// Open loads the model described by src. It returns ErrNoModel when src names
// nothing or the local file does not exist.
func Open(ctx context.Context, src Source, logger *zap.Logger) (*fertility.Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		m   *fertility.Model
		err error
	)
	switch {
	case src.RemoteURL != "":
		m, err = DialRemote(ctx, RemoteConfig{
			URL:     src.RemoteURL,
			Timeout: src.RemoteTimeout,
			RPS:     src.RemoteRPS,
		})
	case src.Path != "":
		m, err = Load(src.Path)
	default:
		return nil, ErrNoModel
	}
	if err != nil {
		return nil, err
	}

	logger.Info("model loaded",
		zap.String("model", m.Name()),
		zap.Stringer("output", m.OutputKind()),
		zap.Bool("probabilities", m.HasProbabilities()),
		zap.Bool("scaler", m.HasScaler()))
	return m, nil
}
