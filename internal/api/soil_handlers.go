package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soilsense/soilsense/internal/database"
	"github.com/soilsense/soilsense/internal/fertility"
	"github.com/soilsense/soilsense/pkg/models"
)

// maxBatchSize bounds POST /api/soil/analyze/batch.
const maxBatchSize = 100

// analysisResponse is the JSON form of a stored analysis.
type analysisResponse struct {
	ID string `json:"id"`
	models.SoilSample
	Location *string `json:"location"`
	models.PredictionResult
	Engine    string    `json:"engine"`
	CreatedAt time.Time `json:"created_at"`
}

func newAnalysisResponse(a *database.Analysis) analysisResponse {
	return analysisResponse{
		ID:               a.ID.String(),
		SoilSample:       a.Sample,
		Location:         a.Location,
		PredictionResult: a.Result,
		Engine:           a.Result.Engine,
		CreatedAt:        a.CreatedAt,
	}
}

type similarResponse struct {
	analysisResponse
	Distance float64 `json:"distance"`
}

// handleAnalyze predicts fertility for one sample and stores the result.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var body map[string]any
	if err := readJSON(r, &body); err != nil || body == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sample, err := models.ParseSample(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var location *string
	switch v := body["location"].(type) {
	case nil:
	case string:
		if v != "" {
			location = &v
		}
	default:
		writeError(w, http.StatusBadRequest, "Invalid value for location")
		return
	}

	ctx := r.Context()
	result := s.predictor.PredictSample(ctx, sample)

	analysis, err := s.db.CreateAnalysis(ctx, database.CreateAnalysisParams{
		UserID:   user.ID,
		Sample:   sample,
		Location: location,
		Result:   result,
	})
	if err != nil {
		s.internalError(w, r, "failed to save analysis", err)
		return
	}

	w.Header().Set("Content-Location", "/api/soil/analysis/"+analysis.ID.String())
	writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Samples []map[string]any `json:"samples"`
}

// handleAnalyzeBatch predicts several samples without storing them.
func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "samples are required")
		return
	}
	if len(req.Samples) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d samples per batch", maxBatchSize))
		return
	}

	results, err := s.predictor.PredictBatch(r.Context(), req.Samples, fertility.DefaultBatchLimit)
	if err != nil {
		var missing *models.MissingFieldError
		var invalid *models.InvalidValueError
		if errors.As(err, &missing) || errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, r, "batch prediction failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleHistory returns the caller's analyses, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	p := parsePagination(r, 10)

	analyses, err := s.db.ListUserAnalyses(ctx, database.ListUserAnalysesParams{
		UserID: user.ID,
		Limit:  p.PerPage,
		Offset: p.Offset(),
	})
	if err != nil {
		s.internalError(w, r, "failed to list analyses", err)
		return
	}

	total, err := s.db.CountUserAnalyses(ctx, user.ID)
	if err != nil {
		s.internalError(w, r, "failed to count analyses", err)
		return
	}

	history := make([]analysisResponse, 0, len(analyses))
	for i := range analyses {
		history = append(history, newAnalysisResponse(&analyses[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history":      history,
		"total":        total,
		"pages":        p.Pages(total),
		"current_page": p.Page,
	})
}

// handleGetAnalysis returns one analysis owned by the caller.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	analysisID, err := parseAnalysisID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis ID")
		return
	}

	analysis, err := s.db.GetAnalysisForUser(r.Context(), user.ID, analysisID)
	if err != nil {
		s.internalError(w, r, "database error", err)
		return
	}
	if analysis == nil {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analysis": newAnalysisResponse(analysis),
	})
}

// handleSimilarAnalyses returns the caller's analyses nearest to the given one.
func (s *Server) handleSimilarAnalyses(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	analysisID, err := parseAnalysisID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis ID")
		return
	}

	ctx := r.Context()
	ref, err := s.db.GetAnalysisForUser(ctx, user.ID, analysisID)
	if err != nil {
		s.internalError(w, r, "database error", err)
		return
	}
	if ref == nil {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	similar, err := s.db.SimilarAnalyses(ctx, user.ID, analysisID, parseLimit(r, 5, 20))
	if err != nil {
		s.internalError(w, r, "failed to find similar analyses", err)
		return
	}

	out := make([]similarResponse, 0, len(similar))
	for i := range similar {
		out = append(out, similarResponse{
			analysisResponse: newAnalysisResponse(&similar[i].Analysis),
			Distance:         similar[i].Distance,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analysis_id": analysisID,
		"similar":     out,
	})
}

// handleStatistics summarizes the caller's analyses.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	st, err := s.db.UserStatistics(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, r, "failed to compute statistics", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_analyses": st.TotalAnalyses,
		"fertility_distribution": map[string]int{
			"high":   st.High,
			"medium": st.Medium,
			"low":    st.Low,
		},
		"average_score": st.AverageScore,
	})
}
