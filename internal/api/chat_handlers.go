package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/soilsense/soilsense/internal/advice"
	"github.com/soilsense/soilsense/internal/database"
)

type chatRequest struct {
	Message *string `json:"message"`
}

type chatMessageResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

func newChatMessageResponse(m *database.ChatMessage) chatMessageResponse {
	return chatMessageResponse{
		ID:        m.ID.String(),
		Message:   m.Message,
		Response:  m.Response,
		CreatedAt: m.CreatedAt,
	}
}

// handleChatMessage answers a farming question and records the exchange.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := readJSON(r, &req); err != nil || req.Message == nil {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	message := strings.TrimSpace(*req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	response := advice.Respond(message)

	if _, err := s.db.CreateChatMessage(r.Context(), user.ID, message, response); err != nil {
		s.internalError(w, r, "failed to save message", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

// handleChatHistory returns the caller's past questions, newest first.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	p := parsePagination(r, 20)

	messages, err := s.db.ListUserChatMessages(ctx, user.ID, p.PerPage, p.Offset())
	if err != nil {
		s.internalError(w, r, "failed to list messages", err)
		return
	}

	total, err := s.db.CountUserChatMessages(ctx, user.ID)
	if err != nil {
		s.internalError(w, r, "failed to count messages", err)
		return
	}

	history := make([]chatMessageResponse, 0, len(messages))
	for i := range messages {
		history = append(history, newChatMessageResponse(&messages[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history":      history,
		"total":        total,
		"pages":        p.Pages(total),
		"current_page": p.Page,
	})
}
