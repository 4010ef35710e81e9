package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/soilsense/soilsense/internal/auth"
	"github.com/soilsense/soilsense/internal/database"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newUserResponse(u *database.User) userResponse {
	return userResponse{ID: u.ID.String(), Name: u.Name, Email: u.Email}
}

// handleRegister creates a local account and returns a token for it.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.authVerifier.External() {
		writeError(w, http.StatusForbidden, "registration is handled by the identity provider")
		return
	}

	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	ctx := r.Context()
	existing, err := s.db.GetUserByEmail(ctx, req.Email)
	if err != nil {
		s.internalError(w, r, "database error", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to hash password", err)
		return
	}

	user, err := s.db.CreateUser(ctx, req.Name, req.Email, hash)
	if errors.Is(err, database.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to create user", err)
		return
	}

	s.writeToken(w, r, http.StatusCreated, user)
}

// handleLogin exchanges local credentials for a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.authVerifier.External() {
		writeError(w, http.StatusForbidden, "login is handled by the identity provider")
		return
	}

	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	user, err := s.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		s.internalError(w, r, "database error", err)
		return
	}
	if user == nil || user.PasswordHash == nil || !auth.CheckPassword(*user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.writeToken(w, r, http.StatusOK, user)
}

func (s *Server) writeToken(w http.ResponseWriter, r *http.Request, status int, user *database.User) {
	token, err := s.authVerifier.IssueToken(user.ID.String(), user.Email, user.Name)
	if err != nil {
		s.internalError(w, r, "failed to issue token", err)
		return
	}

	writeJSON(w, status, map[string]any{
		"access_token": token,
		"user":         newUserResponse(user),
	})
}

// handleGetUser returns the current user's information.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": newUserResponse(user),
	})
}
