package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"exam-judge-service/internal/analytics"
	"exam-judge-service/internal/domain"
	"exam-judge-service/internal/grading"
	"exam-judge-service/internal/judge"
	"exam-judge-service/internal/paper"
	"exam-judge-service/internal/recorder"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuestionRepository loads questions from the bank (cache/backing store).
type QuestionRepository interface {
	Get(ctx context.Context, id int64) (domain.Question, error)
	List(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
	Count(ctx context.Context, variant domain.Variant) (int, error)
}

// AttemptStore persists exam attempts (Postgres, SQLite or memory).
type AttemptStore interface {
	recorder.Store
}

// SessionRepository abstracts how exam sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Save(ctx context.Context, session domain.ExamSession) error
	Get(ctx context.Context, id string) (domain.ExamSession, error)
	Delete(ctx context.Context, id string) error
}

// Components are the collaborators an ExamService orchestrates. They are
// built once by the caller and shared.
type Components struct {
	Questions QuestionRepository
	Sessions  SessionRepository
	Identity  IdentityContext
	Papers    *paper.Generator
	Grader    *grading.Grader
	Judge     judge.Judge
	Recorder  *recorder.Recorder
	Analytics *analytics.Aggregator
	Logger    *zap.Logger
}

// ExamService contains the exam use cases.
type ExamService struct {
	questions QuestionRepository
	sessions  SessionRepository
	identity  IdentityContext
	papers    *paper.Generator
	grader    *grading.Grader
	judge     judge.Judge
	recorder  *recorder.Recorder
	analytics *analytics.Aggregator
	logger    *zap.Logger
	now       func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

type Option func(*ExamService)

// WithClock is test-only for deterministic durations.
func WithClock(now func() time.Time) Option {
	return func(s *ExamService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand seeds the simulator.
func WithRand(rnd *rand.Rand) Option {
	return func(s *ExamService) {
		if rnd != nil {
			s.rnd = rnd
		}
	}
}

func NewExamService(c Components, opts ...Option) *ExamService {
	s := &ExamService{
		questions: c.Questions,
		sessions:  c.Sessions,
		identity:  c.Identity,
		papers:    c.Papers,
		grader:    c.Grader,
		judge:     c.Judge,
		recorder:  c.Recorder,
		analytics: c.Analytics,
		logger:    c.Logger,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if s.identity == nil {
		s.identity = ContextIdentity{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssemblePaper draws a paper; size <= 0 uses the configured default.
func (s *ExamService) AssemblePaper(ctx context.Context, size int, variants ...domain.Variant) ([]domain.Question, error) {
	return s.papers.Assemble(ctx, size, variants...)
}

// GradeBatch grades an answer sheet without recording it.
func (s *ExamService) GradeBatch(ctx context.Context, answers map[int64]domain.AnswerPayload) (grading.BatchResult, error) {
	return s.grader.GradeBatch(ctx, answers)
}

// HasCodeAnswers reports whether any answer targets a code question, i.e.
// whether grading the sheet will run the judge. Unknown ids are skipped.
func (s *ExamService) HasCodeAnswers(ctx context.Context, answers map[int64]domain.AnswerPayload) (bool, error) {
	for id := range answers {
		q, err := s.questions.Get(ctx, id)
		if errors.Is(err, domain.ErrQuestionNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if q.Variant == domain.VariantCode {
			return true, nil
		}
	}
	return false, nil
}

// RecordAttempt persists a graded exam for the current user.
func (s *ExamService) RecordAttempt(ctx context.Context, score, total float64, durationSeconds int64, details []domain.Detail) (domain.ExamAttempt, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return domain.ExamAttempt{}, err
	}
	return s.recorder.Persist(ctx, userID, score, total, durationSeconds, details)
}

func (s *ExamService) UserHistory(ctx context.Context, userID int64, limit int) ([]domain.ExamAttempt, error) {
	return s.recorder.History(ctx, userID, limit)
}

func (s *ExamService) AnalyticsSummary(ctx context.Context) (domain.Summary, error) {
	return s.analytics.Summary(ctx)
}

func (s *ExamService) ScoreTrend(ctx context.Context, days int) (domain.Trend, error) {
	return s.analytics.ScoreTrend(ctx, days)
}

func (s *ExamService) ScoreHistogram(ctx context.Context, buckets int) ([]int, error) {
	return s.analytics.ScoreHistogram(ctx, buckets)
}

// UserStats is the per-user analytics view.
type UserStats struct {
	UserID       int64   `json:"userId"`
	AverageScore float64 `json:"averageScore"`
	PassRate     float64 `json:"passRate"`
	Threshold    float64 `json:"threshold"`
}

func (s *ExamService) UserStats(ctx context.Context, userID int64, threshold float64) (UserStats, error) {
	avg, err := s.analytics.AverageScoreForUser(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	rate, err := s.analytics.PassRate(ctx, userID, threshold)
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{UserID: userID, AverageScore: avg, PassRate: rate, Threshold: threshold}, nil
}

// StartExam assembles a paper for the current user and opens a session for it.
func (s *ExamService) StartExam(ctx context.Context, size int, variants ...domain.Variant) (domain.ExamSession, []domain.Question, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return domain.ExamSession{}, nil, err
	}
	questions, err := s.papers.Assemble(ctx, size, variants...)
	if err != nil {
		return domain.ExamSession{}, nil, err
	}
	session := domain.ExamSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		QuestionIDs: make([]int64, 0, len(questions)),
		StartedAt:   s.now().UTC(),
	}
	for _, q := range questions {
		session.QuestionIDs = append(session.QuestionIDs, q.ID)
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return domain.ExamSession{}, nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("exam started",
		zap.String("session_id", session.ID),
		zap.Int64("user_id", userID),
		zap.Int("questions", len(questions)))
	return session, questions, nil
}

// SubmitResult is the outcome of a completed exam.
type SubmitResult struct {
	Attempt domain.ExamAttempt  `json:"attempt"`
	Batch   grading.BatchResult `json:"batch"`
}

// SubmitExam grades every question on the session's paper, records the attempt
// and closes the session. A question left unanswered is graded as an empty
// answer, so the total is always the paper size. Answers for questions outside
// the paper are ignored. The duration is wall-clock time since the session started; a skewed start
// time is not corrected.
func (s *ExamService) SubmitExam(ctx context.Context, sessionID string, answers map[int64]domain.AnswerPayload) (SubmitResult, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if session.UserID != userID {
		// Another user's session is reported as missing.
		return SubmitResult{}, domain.ErrSessionNotFound
	}

	graded := make(map[int64]domain.AnswerPayload, len(session.QuestionIDs))
	for _, id := range session.QuestionIDs {
		graded[id] = answers[id]
	}
	for id := range answers {
		if _, ok := graded[id]; !ok {
			s.logger.Debug("ignoring answer outside paper", zap.String("session_id", sessionID), zap.Int64("question_id", id))
		}
	}

	batch, err := s.grader.GradeBatch(ctx, graded)
	if err != nil {
		return SubmitResult{}, err
	}
	duration := int64(s.now().Sub(session.StartedAt) / time.Second)
	attempt, err := s.recorder.Persist(ctx, userID, batch.Score, batch.Total, duration, batch.Details())
	if err != nil {
		return SubmitResult{}, err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("session cleanup failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return SubmitResult{Attempt: attempt, Batch: batch}, nil
}

// RunCode judges a snippet against a code question without recording anything.
func (s *ExamService) RunCode(ctx context.Context, questionID int64, source string) (judge.Verdict, error) {
	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return judge.Verdict{}, err
	}
	if q.Variant != domain.VariantCode {
		return judge.Verdict{}, fmt.Errorf("%w: %d", domain.ErrNotCodeQuestion, questionID)
	}
	if strings.TrimSpace(q.JudgeScript) == "" {
		return judge.Verdict{Outcome: domain.OutcomeUnknownType, Message: "question has no judge script"}, nil
	}
	return s.judge.Execute(ctx, judge.Request{Source: source, Script: q.JudgeScript}), nil
}

// ExportAttempts writes every attempt as CSV.
func (s *ExamService) ExportAttempts(ctx context.Context, w io.Writer) error {
	return s.recorder.ExportAll(ctx, w)
}

// Simulate records n exams for userID answered the way a guessing student
// would: random letters for choice, a placeholder for fill, and the reference
// solution for code. Durations are drawn from 30 to 600 seconds.
func (s *ExamService) Simulate(ctx context.Context, userID int64, n int) ([]domain.ExamAttempt, error) {
	if n <= 0 {
		return []domain.ExamAttempt{}, nil
	}
	out := make([]domain.ExamAttempt, 0, n)
	for i := 0; i < n; i++ {
		questions, err := s.papers.Assemble(ctx, 0)
		if err != nil {
			return out, err
		}
		answers := make(map[int64]domain.AnswerPayload, len(questions))
		s.rndMu.Lock()
		for _, q := range questions {
			answers[q.ID] = simulatedAnswer(s.rnd, q)
		}
		duration := int64(30 + s.rnd.Intn(571))
		s.rndMu.Unlock()

		batch, err := s.grader.GradeBatch(ctx, answers)
		if err != nil {
			return out, err
		}
		attempt, err := s.recorder.Persist(ctx, userID, batch.Score, batch.Total, duration, batch.Details())
		if err != nil {
			return out, err
		}
		out = append(out, attempt)
	}
	s.logger.Info("simulated exams", zap.Int64("user_id", userID), zap.Int("count", len(out)))
	return out, nil
}

func simulatedAnswer(rnd *rand.Rand, q domain.Question) domain.AnswerPayload {
	switch q.Variant {
	case domain.VariantChoice:
		return domain.AnswerPayload{Answer: string(rune('A' + rnd.Intn(4)))}
	case domain.VariantFill:
		return domain.AnswerPayload{Answer: "answer"}
	case domain.VariantCode:
		return domain.AnswerPayload{Answer: q.Answer}
	}
	return domain.AnswerPayload{}
}

// IsNotFound reports whether err means a missing question or session.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrQuestionNotFound) || errors.Is(err, domain.ErrSessionNotFound)
}
