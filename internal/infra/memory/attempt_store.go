package memory

import (
	"context"
	"sort"
	"sync"

	"exam-judge-service/internal/domain"
)

// AttemptStore keeps exam attempts in process memory.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts []domain.ExamAttempt
	nextID   int64
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{}
}

func (s *AttemptStore) AddAttempt(_ context.Context, attempt domain.ExamAttempt) (domain.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	attempt.ID = s.nextID
	attempt.Details = append([]domain.Detail(nil), attempt.Details...)
	s.attempts = append(s.attempts, attempt)
	return attempt, nil
}

// QueryAttempts returns matching attempts newest first (ties broken by higher ID).
func (s *AttemptStore) QueryAttempts(_ context.Context, filter domain.AttemptFilter) ([]domain.ExamAttempt, error) {
	s.mu.RLock()
	out := make([]domain.ExamAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
