package grading_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"exam-judge-service/internal/domain"
	"exam-judge-service/internal/grading"
	"exam-judge-service/internal/judge"
)

type mapSource map[int64]domain.Question

func (m mapSource) Get(_ context.Context, id int64) (domain.Question, error) {
	q, ok := m[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

type failingSource struct{}

func (failingSource) Get(context.Context, int64) (domain.Question, error) {
	return domain.Question{}, errors.New("connection reset")
}

// stubJudge returns a fixed verdict and records the last request.
type stubJudge struct {
	verdict judge.Verdict
	last    judge.Request
	calls   int
}

func (s *stubJudge) Execute(_ context.Context, req judge.Request) judge.Verdict {
	s.calls++
	s.last = req
	return s.verdict
}

func sampleBank() mapSource {
	return mapSource{
		1: {ID: 1, Variant: domain.VariantChoice, Prompt: "pick", Options: [4]string{"a", "b", "c", "d"}, Answer: "A"},
		2: {ID: 2, Variant: domain.VariantFill, Prompt: "type name", Answer: "int"},
		3: {ID: 3, Variant: domain.VariantCode, Prompt: "fact", JudgeScript: `assert(fact(5) == 120, "fact(5) should be 120")`},
		4: {ID: 4, Variant: domain.VariantCode, Prompt: "no judge"},
		5: {ID: 5, Variant: domain.VariantUnknown, Prompt: "legacy"},
	}
}

func TestEvaluateChoiceNormalizes(t *testing.T) {
	g := grading.New(sampleBank(), &stubJudge{})
	q := sampleBank()[1]

	a := g.Evaluate(context.Background(), q, domain.AnswerPayload{Answer: " a "})
	b := g.Evaluate(context.Background(), q, domain.AnswerPayload{Answer: "A"})
	if a.Score != b.Score || a.Correct != b.Correct || a.Outcome != b.Outcome {
		t.Fatalf("expected identical grading, got %+v vs %+v", a, b)
	}
	if !a.Correct || a.Score != 1 {
		t.Fatalf("expected correct choice, got %+v", a)
	}

	wrong := g.Evaluate(context.Background(), q, domain.AnswerPayload{Answer: "b"})
	if wrong.Correct || wrong.Score != 0 || wrong.Outcome != domain.OutcomeAssertionFailed {
		t.Fatalf("expected wrong choice, got %+v", wrong)
	}
	if wrong.Expected != "A" || wrong.Got != "b" {
		t.Fatalf("expected expected/got in result, got %+v", wrong)
	}
}

func TestEvaluateFillNormalizes(t *testing.T) {
	g := grading.New(sampleBank(), &stubJudge{})
	q := sampleBank()[2]

	for _, answer := range []string{" Int ", "int", "INT"} {
		res := g.Evaluate(context.Background(), q, domain.AnswerPayload{Answer: answer})
		if !res.Correct || res.Score != 1 {
			t.Fatalf("answer %q: expected correct, got %+v", answer, res)
		}
	}
	if res := g.Evaluate(context.Background(), q, domain.AnswerPayload{Answer: "float"}); res.Correct {
		t.Fatalf("expected float to be wrong")
	}
}

func TestEvaluateCodeDelegatesToJudge(t *testing.T) {
	stub := &stubJudge{verdict: judge.Verdict{Outcome: domain.OutcomeAssertionFailed, Message: "assertion failed: fact(5) should be 120"}}
	g := grading.New(sampleBank(), stub)

	res := g.Evaluate(context.Background(), sampleBank()[3], domain.AnswerPayload{Answer: "func fact(n int) int { return 1 }"})
	if stub.calls != 1 || stub.last.Source != "func fact(n int) int { return 1 }" || stub.last.Script != sampleBank()[3].JudgeScript {
		t.Fatalf("judge not called with submission and script: %+v", stub.last)
	}
	if res.Correct || res.Outcome != domain.OutcomeAssertionFailed || res.Message != stub.verdict.Message {
		t.Fatalf("expected verdict inherited verbatim, got %+v", res)
	}

	stub.verdict = judge.Verdict{Outcome: domain.OutcomePassed, Message: "passed"}
	res = g.Evaluate(context.Background(), sampleBank()[3], domain.AnswerPayload{Answer: "x"})
	if !res.Correct || res.Score != 1 || res.Outcome != domain.OutcomePassed {
		t.Fatalf("expected passed code answer, got %+v", res)
	}
}

func TestEvaluateCodeWithRealJudge(t *testing.T) {
	g := grading.New(sampleBank(), judge.NewInterpreter())
	q := sampleBank()[3]

	good := g.Evaluate(context.Background(), q, domain.AnswerPayload{Answer: `func fact(n int) int {
	r := 1
	for i := 2; i <= n; i++ {
		r *= i
	}
	return r
}`})
	if !good.Correct {
		t.Fatalf("expected correct fact to pass, got %+v", good)
	}

	bad := g.Evaluate(context.Background(), q, domain.AnswerPayload{Answer: `func fact(n int) int { return n * 2 }`})
	if bad.Correct || !strings.Contains(bad.Message, "fact(5) should be 120") {
		t.Fatalf("expected failed assertion message, got %+v", bad)
	}
}

func TestEvaluateUngradable(t *testing.T) {
	stub := &stubJudge{}
	g := grading.New(sampleBank(), stub)

	noJudge := g.Evaluate(context.Background(), sampleBank()[4], domain.AnswerPayload{Answer: "code"})
	if noJudge.Outcome != domain.OutcomeUnknownType || noJudge.Score != 0 {
		t.Fatalf("expected unknown type for code without judge, got %+v", noJudge)
	}
	if stub.calls != 0 {
		t.Fatalf("judge must not run without a script")
	}

	unknown := g.Evaluate(context.Background(), sampleBank()[5], domain.AnswerPayload{Answer: "x"})
	if unknown.Outcome != domain.OutcomeUnknownType {
		t.Fatalf("expected unknown type, got %+v", unknown)
	}
}

func TestGradeBatchSingleChoice(t *testing.T) {
	g := grading.New(sampleBank(), &stubJudge{})
	res, err := g.GradeBatch(context.Background(), map[int64]domain.AnswerPayload{1: {Answer: "a"}})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.Score != 1 || res.Total != 1 {
		t.Fatalf("expected 1/1, got %v/%v", res.Score, res.Total)
	}
}

func TestGradeBatchCountsEveryResolvedQuestion(t *testing.T) {
	g := grading.New(sampleBank(), &stubJudge{verdict: judge.Verdict{Outcome: domain.OutcomePassed}})
	res, err := g.GradeBatch(context.Background(), map[int64]domain.AnswerPayload{
		5: {Answer: "x"},
		1: {Answer: "B"},
		2: {Answer: "int"},
		3: {Answer: "code"},
		4: {Answer: "code"},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.Total != 5 || res.Score != 2 {
		t.Fatalf("expected 2/5, got %v/%v", res.Score, res.Total)
	}
	if res.Score < 0 || res.Score > res.Total {
		t.Fatalf("score outside [0,total]")
	}
	for i, r := range res.Results {
		if r.QuestionID != int64(i+1) {
			t.Fatalf("expected results ordered by id, got %d at %d", r.QuestionID, i)
		}
	}
}

func TestGradeBatchUnresolvedQuestion(t *testing.T) {
	answers := map[int64]domain.AnswerPayload{1: {Answer: "A"}, 99: {Answer: "A"}}

	counting := grading.New(sampleBank(), &stubJudge{})
	res, err := counting.GradeBatch(context.Background(), answers)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.Total != 2 || res.Score != 1 {
		t.Fatalf("expected 1/2 when unresolved counts, got %v/%v", res.Score, res.Total)
	}
	if res.Results[1].Outcome != domain.OutcomeNotFound {
		t.Fatalf("expected not found outcome, got %+v", res.Results[1])
	}

	strict := grading.New(sampleBank(), &stubJudge{}, grading.CountUnresolved(false))
	res, err = strict.GradeBatch(context.Background(), answers)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.Total != 1 || res.Score != 1 {
		t.Fatalf("expected 1/1 when unresolved skipped, got %v/%v", res.Score, res.Total)
	}
	if len(res.Details()) != 2 {
		t.Fatalf("expected not found detail retained, got %d", len(res.Details()))
	}
}

func TestGradeBatchPropagatesRepositoryErrors(t *testing.T) {
	g := grading.New(failingSource{}, &stubJudge{})
	if _, err := g.GradeBatch(context.Background(), map[int64]domain.AnswerPayload{1: {Answer: "A"}}); err == nil {
		t.Fatalf("expected repository error")
	}
}
