package recorder

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"exam-judge-service/internal/domain"
	"go.uber.org/zap"
)

// DefaultHistoryLimit caps History when the caller passes no limit.
const DefaultHistoryLimit = 50

// CSVHeader is the first row of every export.
var CSVHeader = []string{"id", "user_id", "score", "total", "duration_seconds", "created_at", "details"}

// Store persists attempts. AddAttempt must be atomic and return the attempt
// with its assigned ID; QueryAttempts returns newest first.
type Store interface {
	AddAttempt(ctx context.Context, attempt domain.ExamAttempt) (domain.ExamAttempt, error)
	QueryAttempts(ctx context.Context, filter domain.AttemptFilter) ([]domain.ExamAttempt, error)
}

// Observer is notified after each persisted attempt.
type Observer interface {
	ObserveAttempt(attempt domain.ExamAttempt)
}

// Recorder writes graded exams and reads them back.
type Recorder struct {
	store    Store
	now      func() time.Time
	logger   *zap.Logger
	observer Observer
}

type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Recorder) { r.observer = o }
}

func New(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Persist stores one completed exam. The attempt is written in a single
// AddAttempt call, so a failure leaves nothing behind.
func (r *Recorder) Persist(ctx context.Context, userID int64, score, total float64, durationSeconds int64, details []domain.Detail) (domain.ExamAttempt, error) {
	if score < 0 || score > total {
		return domain.ExamAttempt{}, fmt.Errorf("record attempt: score %v outside [0, %v]", score, total)
	}
	if details == nil {
		details = []domain.Detail{}
	}
	attempt, err := r.store.AddAttempt(ctx, domain.ExamAttempt{
		UserID:          userID,
		Score:           score,
		Total:           total,
		DurationSeconds: durationSeconds,
		CreatedAt:       r.now().UTC(),
		Details:         details,
	})
	if err != nil {
		return domain.ExamAttempt{}, fmt.Errorf("record attempt: %w", err)
	}
	r.logger.Info("attempt recorded",
		zap.Int64("attempt_id", attempt.ID),
		zap.Int64("user_id", userID),
		zap.Float64("score", score),
		zap.Float64("total", total))
	if r.observer != nil {
		r.observer.ObserveAttempt(attempt)
	}
	return attempt, nil
}

// History returns a user's attempts, newest first.
func (r *Recorder) History(ctx context.Context, userID int64, limit int) ([]domain.ExamAttempt, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	attempts, err := r.store.QueryAttempts(ctx, domain.ForUser(userID, limit))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return attempts, nil
}

// Query exposes the raw attempt query for analytics.
func (r *Recorder) Query(ctx context.Context, filter domain.AttemptFilter) ([]domain.ExamAttempt, error) {
	attempts, err := r.store.QueryAttempts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	return attempts, nil
}

// ExportAll writes every attempt as CSV, newest first.
func (r *Recorder) ExportAll(ctx context.Context, w io.Writer) error {
	attempts, err := r.Query(ctx, domain.AttemptFilter{})
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range attempts {
		details, err := domain.EncodeDetails(a.Details)
		if err != nil {
			return err
		}
		row := []string{
			strconv.FormatInt(a.ID, 10),
			strconv.FormatInt(a.UserID, 10),
			strconv.FormatFloat(a.Score, 'f', -1, 64),
			strconv.FormatFloat(a.Total, 'f', -1, 64),
			strconv.FormatInt(a.DurationSeconds, 10),
			a.CreatedAt.UTC().Format(time.RFC3339),
			details,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", a.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV is ExportAll into a string.
func (r *Recorder) ExportCSV(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := r.ExportAll(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
