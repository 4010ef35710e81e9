package api

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soilsense/soilsense/internal/database"
	"github.com/soilsense/soilsense/pkg/models"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*database.User
	analyses []*database.Analysis
	messages []*database.ChatMessage
	clock    time.Time

	// failWith makes every analysis write fail.
	failWith error
	pingErr  error
	// hideEmails makes GetUserByEmail miss, as when a concurrent
	// registration commits between the lookup and the insert.
	hideEmails bool
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]*database.User),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) Ping(context.Context) error {
	return s.pingErr
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) CreateUser(_ context.Context, name, email, passwordHash string) (*database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return nil, database.ErrEmailTaken
		}
	}
	u := &database.User{ID: uuid.New(), Name: name, Email: email, PasswordHash: &passwordHash, CreatedAt: s.tick()}
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hideEmails {
		return nil, nil
	}
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *memStore) GetOrCreateExternalUser(_ context.Context, externalID, email string) (*database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			return u, nil
		}
	}
	if email != "" {
		for _, u := range s.users {
			if u.Email == email {
				return nil, database.ErrEmailTaken
			}
		}
	}
	u := &database.User{ID: uuid.New(), Name: email, Email: email, ExternalID: &externalID, CreatedAt: s.tick()}
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) CreateAnalysis(_ context.Context, params database.CreateAnalysisParams) (*database.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	a := &database.Analysis{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Sample:    params.Sample,
		Location:  params.Location,
		Result:    params.Result,
		CreatedAt: s.tick(),
	}
	s.analyses = append(s.analyses, a)
	return a, nil
}

func (s *memStore) GetAnalysisForUser(_ context.Context, userID, id uuid.UUID) (*database.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.analyses {
		if a.ID == id && a.UserID == userID {
			return a, nil
		}
	}
	return nil, nil
}

// userAnalyses returns the user's analyses newest first. Callers hold mu.
func (s *memStore) userAnalyses(userID uuid.UUID) []database.Analysis {
	var out []database.Analysis
	for i := len(s.analyses) - 1; i >= 0; i-- {
		if s.analyses[i].UserID == userID {
			out = append(out, *s.analyses[i])
		}
	}
	return out
}

func (s *memStore) ListUserAnalyses(_ context.Context, params database.ListUserAnalysesParams) ([]database.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.userAnalyses(params.UserID)
	return window(all, params.Limit, params.Offset), nil
}

func (s *memStore) CountUserAnalyses(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.userAnalyses(userID)), nil
}

func (s *memStore) UserStatistics(_ context.Context, userID uuid.UUID) (*database.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st database.Statistics
	sum := 0
	for _, a := range s.userAnalyses(userID) {
		st.TotalAnalyses++
		sum += a.Result.Score
		switch a.Result.FertilityLevel {
		case models.FertilityHigh:
			st.High++
		case models.FertilityMedium:
			st.Medium++
		case models.FertilityLow:
			st.Low++
		}
	}
	if st.TotalAnalyses > 0 {
		st.AverageScore = math.Round(float64(sum)/float64(st.TotalAnalyses)*10) / 10
	}
	return &st, nil
}

func (s *memStore) SimilarAnalyses(_ context.Context, userID, id uuid.UUID, limit int) ([]database.SimilarAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ref []float32
	for _, a := range s.analyses {
		if a.ID == id && a.UserID == userID {
			ref = a.Sample.SimilarityVector()
		}
	}
	if ref == nil {
		return []database.SimilarAnalysis{}, nil
	}

	out := []database.SimilarAnalysis{}
	for _, a := range s.userAnalyses(userID) {
		if a.ID == id {
			continue
		}
		var d float64
		for i, v := range a.Sample.SimilarityVector() {
			diff := float64(v - ref[i])
			d += diff * diff
		}
		out = append(out, database.SimilarAnalysis{Analysis: a, Distance: math.Sqrt(d)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return window(out, limit, 0), nil
}

func (s *memStore) CreateChatMessage(_ context.Context, userID uuid.UUID, message, response string) (*database.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &database.ChatMessage{ID: uuid.New(), UserID: userID, Message: message, Response: response, CreatedAt: s.tick()}
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *memStore) userMessages(userID uuid.UUID) []database.ChatMessage {
	var out []database.ChatMessage
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].UserID == userID {
			out = append(out, *s.messages[i])
		}
	}
	return out
}

func (s *memStore) ListUserChatMessages(_ context.Context, userID uuid.UUID, limit, offset int) ([]database.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return window(s.userMessages(userID), limit, offset), nil
}

func (s *memStore) CountUserChatMessages(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.userMessages(userID)), nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ Store = (*memStore)(nil)
var _ Store = (*database.DB)(nil)
