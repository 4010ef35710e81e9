package database

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/soilsense/soilsense/pkg/models"
)

// Analysis is a stored soil analysis and the prediction made for it.
type Analysis struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Sample    models.SoilSample
	Location  *string
	Result    models.PredictionResult
	CreatedAt time.Time
}

// CreateAnalysisParams contains parameters for creating an analysis.
type CreateAnalysisParams struct {
	UserID   uuid.UUID
	Sample   models.SoilSample
	Location *string
	Result   models.PredictionResult
}

// SimilarAnalysis is an analysis together with its feature distance from the
// reference analysis.
type SimilarAnalysis struct {
	Analysis
	Distance float64
}

// Statistics summarizes a user's analyses.
type Statistics struct {
	TotalAnalyses int
	High          int
	Medium        int
	Low           int
	AverageScore  float64
}

// analysisColumns is the standard column list for analysis queries.
const analysisColumns = `id, user_id, nitrogen, phosphorus, potassium, ph, organic_matter, moisture, temperature,
	location, fertility_level, score, confidence, engine, reasons, recommendations, created_at`

// scanAnalysis scans a row into an Analysis and decodes its JSON columns.
// extra receives any columns selected after analysisColumns.
func scanAnalysis(row pgx.Row, extra ...any) (*Analysis, error) {
	var a Analysis
	var level string
	var reasonsJSON, recsJSON []byte
	dest := []any{
		&a.ID, &a.UserID,
		&a.Sample.Nitrogen, &a.Sample.Phosphorus, &a.Sample.Potassium, &a.Sample.PH,
		&a.Sample.OrganicMatter, &a.Sample.Moisture, &a.Sample.Temperature,
		&a.Location, &level, &a.Result.Score, &a.Result.Confidence, &a.Result.Engine,
		&reasonsJSON, &recsJSON, &a.CreatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Result.FertilityLevel = models.FertilityLevel(level)
	if err := json.Unmarshal(reasonsJSON, &a.Result.Reasons); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(recsJSON, &a.Result.Recommendations); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAnalysis stores a prediction with its sample and similarity vector.
func (db *DB) CreateAnalysis(ctx context.Context, params CreateAnalysisParams) (*Analysis, error) {
	reasonsJSON, err := json.Marshal(params.Result.Reasons)
	if err != nil {
		return nil, err
	}
	recsJSON, err := json.Marshal(params.Result.Recommendations)
	if err != nil {
		return nil, err
	}

	s := params.Sample
	row := db.pool.QueryRow(ctx,
		`INSERT INTO soil_analyses (user_id, nitrogen, phosphorus, potassium, ph, organic_matter, moisture, temperature,
		     location, fertility_level, score, confidence, engine, reasons, recommendations, features)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING `+analysisColumns,
		params.UserID, s.Nitrogen, s.Phosphorus, s.Potassium, s.PH, s.OrganicMatter, s.Moisture, s.Temperature,
		params.Location, string(params.Result.FertilityLevel), params.Result.Score, params.Result.Confidence,
		params.Result.Engine, reasonsJSON, recsJSON, pgvector.NewVector(s.SimilarityVector()),
	)
	return scanAnalysis(row)
}

// GetAnalysisForUser retrieves an analysis owned by the given user.
func (db *DB) GetAnalysisForUser(ctx context.Context, userID, id uuid.UUID) (*Analysis, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM soil_analyses WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	return scanAnalysis(row)
}

// ListUserAnalysesParams contains parameters for listing analyses.
type ListUserAnalysesParams struct {
	UserID uuid.UUID
	Limit  int
	Offset int
}

// ListUserAnalyses returns a user's analyses, newest first.
func (db *DB) ListUserAnalyses(ctx context.Context, params ListUserAnalysesParams) ([]Analysis, error) {
	if params.Limit <= 0 {
		params.Limit = 10
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM soil_analyses
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		params.UserID, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}
	return analyses, rows.Err()
}

// CountUserAnalyses returns the total number of analyses for a user.
func (db *DB) CountUserAnalyses(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM soil_analyses WHERE user_id = $1`,
		userID,
	).Scan(&count)
	return count, err
}

// UserStatistics returns the level distribution and average score of a
// user's analyses. The average is rounded to one decimal.
func (db *DB) UserStatistics(ctx context.Context, userID uuid.UUID) (*Statistics, error) {
	var st Statistics
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE fertility_level = 'High'),
		        COUNT(*) FILTER (WHERE fertility_level = 'Medium'),
		        COUNT(*) FILTER (WHERE fertility_level = 'Low'),
		        COALESCE(AVG(score), 0)::float8
		 FROM soil_analyses WHERE user_id = $1`,
		userID,
	).Scan(&st.TotalAnalyses, &st.High, &st.Medium, &st.Low, &st.AverageScore)
	if err != nil {
		return nil, err
	}
	st.AverageScore = math.Round(st.AverageScore*10) / 10
	return &st, nil
}

// SimilarAnalyses returns the user's other analyses closest to the given one
// by L2 distance over normalized features.
func (db *DB) SimilarAnalyses(ctx context.Context, userID, id uuid.UUID, limit int) ([]SimilarAnalysis, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+analysisColumns+`, features <-> ref.vec AS distance
		 FROM soil_analyses,
		      (SELECT features FROM soil_analyses WHERE id = $2 AND user_id = $1) AS ref(vec)
		 WHERE user_id = $1 AND id <> $2
		 ORDER BY distance, created_at DESC
		 LIMIT $3`,
		userID, id, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	similar := []SimilarAnalysis{}
	for rows.Next() {
		var distance float64
		a, err := scanAnalysis(rows, &distance)
		if err != nil {
			return nil, err
		}
		similar = append(similar, SimilarAnalysis{Analysis: *a, Distance: distance})
	}
	return similar, rows.Err()
}

// DeleteAnalysis deletes an analysis by ID.
func (db *DB) DeleteAnalysis(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM soil_analyses WHERE id = $1`,
		id,
	)
	return err
}
