package http

import (
	"math/rand"
	"testing"

	"exam-judge-service/internal/analytics"
	"exam-judge-service/internal/app"
	"exam-judge-service/internal/domain"
	"exam-judge-service/internal/grading"
	"exam-judge-service/internal/infra/memory"
	"exam-judge-service/internal/judge"
	"exam-judge-service/internal/paper"
	"exam-judge-service/internal/recorder"
)

func newTestService(t *testing.T) *app.ExamService {
	t.Helper()
	questions := memory.NewQuestionRepository(sampleQuestions()...)
	interpreter := judge.NewInterpreter()
	rec := recorder.New(memory.NewAttemptStore())
	return app.NewExamService(app.Components{
		Questions: questions,
		Sessions:  memory.NewSessionStore(0),
		Papers:    paper.New(questions, paper.WithRand(rand.New(rand.NewSource(1)))),
		Grader:    grading.New(questions, interpreter),
		Judge:     interpreter,
		Recorder:  rec,
		Analytics: analytics.New(rec, questions),
	})
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Variant: domain.VariantChoice, Prompt: "What is 2 + 2?", Options: [4]string{"3", "4", "5", "6"}, Answer: "B"},
		{ID: 2, Variant: domain.VariantFill, Prompt: "Loop keyword?", Answer: "for"},
		{ID: 3, Variant: domain.VariantCode, Prompt: "Write square(n int) int.", JudgeScript: `assert(square(3) == 9, "square(3) should be 9")`},
	}
}
