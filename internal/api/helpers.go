package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/soilsense/soilsense/internal/auth"
	"github.com/soilsense/soilsense/internal/database"
)

// errUserNotFound means the token is valid but its subject has no account.
var errUserNotFound = errors.New("User not found")

// getCurrentUser resolves the token subject to a stored user. Local tokens
// carry the user UUID; external tokens carry the provider subject, which is
// linked to an account on first use.
func (s *Server) getCurrentUser(r *http.Request) (*database.User, error) {
	ctx := r.Context()
	if !auth.IsAuthenticated(ctx) {
		return nil, errUserNotFound
	}

	if s.authVerifier != nil && s.authVerifier.External() {
		return s.db.GetOrCreateExternalUser(ctx, auth.Subject(ctx), auth.Email(ctx))
	}

	id, err := uuid.Parse(auth.Subject(ctx))
	if err != nil {
		return nil, errUserNotFound
	}
	user, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errUserNotFound
	}
	return user, nil
}

// requireUser writes the error response itself and reports false when the
// caller cannot be resolved.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (*database.User, bool) {
	user, err := s.getCurrentUser(r)
	if errors.Is(err, errUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if errors.Is(err, database.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "Email already registered")
		return nil, false
	}
	if err != nil {
		s.internalError(w, r, "database error", err)
		return nil, false
	}
	return user, true
}

// parseAnalysisID parses the analysis ID from the path parameter.
func parseAnalysisID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("analysisID"))
}

// pagination is a page-number window over a list.
type pagination struct {
	Page    int
	PerPage int
}

func (p pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Pages returns the number of pages needed for total items.
func (p pagination) Pages(total int) int {
	return (total + p.PerPage - 1) / p.PerPage
}

// parsePagination reads page and per_page, falling back to page 1 and
// defaultPerPage. per_page is capped at 100.
func parsePagination(r *http.Request, defaultPerPage int) pagination {
	p := pagination{Page: 1, PerPage: defaultPerPage}

	if v := r.URL.Query().Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			p.Page = parsed
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			p.PerPage = min(parsed, 100)
		}
	}

	return p
}

// parseLimit reads a positive "limit" query value capped at maxLimit.
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return min(parsed, maxLimit)
		}
	}
	return defaultLimit
}
