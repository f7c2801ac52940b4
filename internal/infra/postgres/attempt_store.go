package postgres

import (
	"context"
	"fmt"
	"time"

	"exam-judge-service/internal/domain"
	"github.com/uptrace/bun"
)

type attemptModel struct {
	bun.BaseModel `bun:"table:exam_attempts,alias:a"`

	ID              int64           `bun:"id,pk,autoincrement"`
	UserID          int64           `bun:"user_id,notnull"`
	Score           float64         `bun:"score,notnull"`
	Total           float64         `bun:"total,notnull"`
	DurationSeconds int64           `bun:"duration_seconds,notnull"`
	CreatedAt       time.Time       `bun:"created_at,notnull"`
	Details         []domain.Detail `bun:"details,type:jsonb,notnull"`
}

// AttemptStore persists exam attempts through bun. Each attempt is one INSERT,
// so a failed write leaves no partial record.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) AddAttempt(ctx context.Context, attempt domain.ExamAttempt) (domain.ExamAttempt, error) {
	m := attemptModel{
		UserID:          attempt.UserID,
		Score:           attempt.Score,
		Total:           attempt.Total,
		DurationSeconds: attempt.DurationSeconds,
		CreatedAt:       attempt.CreatedAt,
		Details:         attempt.Details,
	}
	if m.Details == nil {
		m.Details = []domain.Detail{}
	}
	if _, err := s.db.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		return domain.ExamAttempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	attempt.ID = m.ID
	return attempt, nil
}

// QueryAttempts returns matching attempts newest first.
func (s *AttemptStore) QueryAttempts(ctx context.Context, filter domain.AttemptFilter) ([]domain.ExamAttempt, error) {
	var rows []attemptModel
	q := s.db.NewSelect().Model(&rows).Order("created_at DESC", "id DESC")
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at < ?", filter.Until)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}

	out := make([]domain.ExamAttempt, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.ExamAttempt{
			ID:              m.ID,
			UserID:          m.UserID,
			Score:           m.Score,
			Total:           m.Total,
			DurationSeconds: m.DurationSeconds,
			CreatedAt:       m.CreatedAt,
			Details:         m.Details,
		})
	}
	return out, nil
}
