package grading

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"exam-judge-service/internal/domain"
	"exam-judge-service/internal/judge"
	"go.uber.org/zap"
)

// QuestionSource resolves question references during batch grading.
type QuestionSource interface {
	Get(ctx context.Context, id int64) (domain.Question, error)
}

// Observer is notified once per graded batch.
type Observer interface {
	ObserveBatch(score, total float64)
}

// BatchResult aggregates a grading pass. Results are ordered by question ID.
type BatchResult struct {
	Score   float64              `json:"score"`
	Total   float64              `json:"total"`
	Results []domain.GradeResult `json:"-"`
}

// Details returns the persisted form of every result.
func (b BatchResult) Details() []domain.Detail {
	details := make([]domain.Detail, 0, len(b.Results))
	for _, r := range b.Results {
		details = append(details, r.Detail())
	}
	return details
}

// Grader evaluates answers against questions.
type Grader struct {
	questions       QuestionSource
	judge           judge.Judge
	countUnresolved bool
	logger          *zap.Logger
	observer        Observer
}

type Option func(*Grader)

// CountUnresolved controls whether answers naming unknown questions still add
// one to the batch total.
func CountUnresolved(enabled bool) Option {
	return func(g *Grader) { g.countUnresolved = enabled }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Grader) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(g *Grader) { g.observer = o }
}

func New(questions QuestionSource, j judge.Judge, opts ...Option) *Grader {
	g := &Grader{
		questions:       questions,
		judge:           j,
		countUnresolved: true,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate grades one answer. It never fails: every fault becomes an outcome.
func (g *Grader) Evaluate(ctx context.Context, q domain.Question, payload domain.AnswerPayload) domain.GradeResult {
	res := domain.GradeResult{QuestionID: q.ID, Variant: q.Variant, Got: payload.Answer}

	switch q.Variant {
	case domain.VariantChoice:
		return matchResult(res, normalizeChoice(payload.Answer) == normalizeChoice(q.Answer), q.Answer)
	case domain.VariantFill:
		return matchResult(res, normalizeFill(payload.Answer) == normalizeFill(q.Answer), q.Answer)
	case domain.VariantCode:
		// Source code is echoed back through the verdict, not the detail.
		res.Got = ""
		if strings.TrimSpace(q.JudgeScript) == "" {
			res.Outcome = domain.OutcomeUnknownType
			res.Message = "question has no judge script"
			return res
		}
		verdict := g.judge.Execute(ctx, judge.Request{Source: payload.Answer, Script: q.JudgeScript})
		res.Outcome = verdict.Outcome
		res.Message = verdict.Message
		if verdict.Passed() {
			res.Correct = true
			res.Score = 1
		}
		return res
	case domain.VariantUnknown:
		res.Outcome = domain.OutcomeUnknownType
		res.Message = "unknown question type"
		return res
	}
	res.Outcome = domain.OutcomeUnknownType
	res.Message = fmt.Sprintf("unsupported question type %d", int(q.Variant))
	return res
}

// GradeBatch grades a whole answer sheet. Unknown question IDs produce a
// NotFound result and grading continues; only repository failures abort.
func (g *Grader) GradeBatch(ctx context.Context, answers map[int64]domain.AnswerPayload) (BatchResult, error) {
	ids := make([]int64, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out BatchResult
	out.Results = make([]domain.GradeResult, 0, len(ids))
	for _, id := range ids {
		q, err := g.questions.Get(ctx, id)
		if errors.Is(err, domain.ErrQuestionNotFound) {
			if g.countUnresolved {
				out.Total++
			}
			out.Results = append(out.Results, domain.GradeResult{
				QuestionID: id,
				Outcome:    domain.OutcomeNotFound,
				Message:    "question not found",
				Got:        answers[id].Answer,
			})
			continue
		}
		if err != nil {
			return BatchResult{}, fmt.Errorf("resolve question %d: %w", id, err)
		}

		out.Total++
		res := g.Evaluate(ctx, q, answers[id])
		out.Score += res.Score
		out.Results = append(out.Results, res)
	}

	g.logger.Debug("graded batch",
		zap.Int("answers", len(ids)),
		zap.Float64("score", out.Score),
		zap.Float64("total", out.Total))
	if g.observer != nil {
		g.observer.ObserveBatch(out.Score, out.Total)
	}
	return out, nil
}

func matchResult(res domain.GradeResult, ok bool, expected string) domain.GradeResult {
	if ok {
		res.Correct = true
		res.Score = 1
		res.Outcome = domain.OutcomePassed
		return res
	}
	res.Outcome = domain.OutcomeAssertionFailed
	res.Expected = expected
	res.Message = fmt.Sprintf("expected %q, got %q", expected, res.Got)
	return res
}

func normalizeChoice(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeFill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
