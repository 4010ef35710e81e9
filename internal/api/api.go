// Package api provides the SoilSense HTTP API server.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soilsense/soilsense/internal/auth"
	"github.com/soilsense/soilsense/internal/database"
	"github.com/soilsense/soilsense/internal/fertility"
)

// Store is the persistence the API needs. *database.DB implements it.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, name, email, passwordHash string) (*database.User, error)
	GetUserByEmail(ctx context.Context, email string) (*database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*database.User, error)
	GetOrCreateExternalUser(ctx context.Context, externalID, email string) (*database.User, error)

	CreateAnalysis(ctx context.Context, params database.CreateAnalysisParams) (*database.Analysis, error)
	GetAnalysisForUser(ctx context.Context, userID, id uuid.UUID) (*database.Analysis, error)
	ListUserAnalyses(ctx context.Context, params database.ListUserAnalysesParams) ([]database.Analysis, error)
	CountUserAnalyses(ctx context.Context, userID uuid.UUID) (int, error)
	UserStatistics(ctx context.Context, userID uuid.UUID) (*database.Statistics, error)
	SimilarAnalyses(ctx context.Context, userID, id uuid.UUID, limit int) ([]database.SimilarAnalysis, error)

	CreateChatMessage(ctx context.Context, userID uuid.UUID, message, response string) (*database.ChatMessage, error)
	ListUserChatMessages(ctx context.Context, userID uuid.UUID, limit, offset int) ([]database.ChatMessage, error)
	CountUserChatMessages(ctx context.Context, userID uuid.UUID) (int, error)
}

// Server is the API server.
type Server struct {
	db           Store
	predictor    *fertility.Predictor
	authVerifier *auth.Verifier
	logger       *zap.Logger
	mux          *http.ServeMux
}

// Config holds API server configuration.
type Config struct {
	DB           Store
	Predictor    *fertility.Predictor
	AuthVerifier *auth.Verifier
	Logger       *zap.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	predictor := cfg.Predictor
	if predictor == nil {
		predictor = fertility.New(nil, logger)
	}

	s := &Server{
		db:           cfg.DB,
		predictor:    predictor,
		authVerifier: cfg.AuthVerifier,
		logger:       logger,
		mux:          http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	authMiddleware := auth.Middleware(s.authVerifier)

	// Public endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	// Protected endpoints
	s.mux.HandleFunc("GET /api/auth/user", s.withAuth(authMiddleware, s.handleGetUser))

	s.mux.HandleFunc("POST /api/soil/analyze", s.withAuth(authMiddleware, s.handleAnalyze))
	s.mux.HandleFunc("POST /api/soil/analyze/batch", s.withAuth(authMiddleware, s.handleAnalyzeBatch))
	s.mux.HandleFunc("GET /api/soil/history", s.withAuth(authMiddleware, s.handleHistory))
	s.mux.HandleFunc("GET /api/soil/analysis/{analysisID}", s.withAuth(authMiddleware, s.handleGetAnalysis))
	s.mux.HandleFunc("GET /api/soil/analysis/{analysisID}/similar", s.withAuth(authMiddleware, s.handleSimilarAnalyses))
	s.mux.HandleFunc("GET /api/soil/statistics", s.withAuth(authMiddleware, s.handleStatistics))

	s.mux.HandleFunc("POST /api/chat/message", s.withAuth(authMiddleware, s.handleChatMessage))
	s.mux.HandleFunc("GET /api/chat/history", s.withAuth(authMiddleware, s.handleChatHistory))
}

func (s *Server) withAuth(middleware func(http.Handler) http.Handler, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware(http.HandlerFunc(handler)).ServeHTTP(w, r)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

// Close releases resources.
func (s *Server) Close() {
	if s.authVerifier != nil {
		s.authVerifier.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Warn("health check: database unreachable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":       "degraded",
			"database":     "unavailable",
			"model_loaded": s.predictor.ModelLoaded(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"database":     "ok",
		"model_loaded": s.predictor.ModelLoaded(),
	})
}

// internalError logs err and answers 500 with a generic message.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}
