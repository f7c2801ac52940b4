package judge

import (
	"context"
	"strings"
	"testing"
	"time"

	"exam-judge-service/internal/domain"
)

const factJudge = `assert(fact(5) == 120, "fact(5) should be 120")`

func TestExecutePassesCorrectSubmission(t *testing.T) {
	j := NewInterpreter()
	v := j.Execute(context.Background(), Request{
		Source: `func fact(n int) int {
	if n <= 1 {
		return 1
	}
	return n * fact(n-1)
}`,
		Script: factJudge,
	})
	if !v.Passed() {
		t.Fatalf("expected pass, got %v: %s", v.Outcome, v.Message)
	}
}

func TestExecuteReportsAssertion(t *testing.T) {
	j := NewInterpreter()
	v := j.Execute(context.Background(), Request{
		Source: `func fact(n int) int { return n }`,
		Script: factJudge,
	})
	if v.Outcome != domain.OutcomeAssertionFailed {
		t.Fatalf("expected assertion failure, got %v: %s", v.Outcome, v.Message)
	}
	if !strings.Contains(v.Message, "fact(5) should be 120") {
		t.Fatalf("expected assertion text in message, got %q", v.Message)
	}
}

func TestExecuteLoopingJudgeScript(t *testing.T) {
	j := NewInterpreter()
	v := j.Execute(context.Background(), Request{
		Source: `func reverse(s string) string {
	r := []rune(s)
	for i, k := 0, len(r)-1; i < k; i, k = i+1, k-1 {
		r[i], r[k] = r[k], r[i]
	}
	return string(r)
}`,
		Script: `inputs := []string{"", "a", "hello"}
outputs := []string{"", "a", "olleh"}
for i, in := range inputs {
	got := reverse(in)
	assert(got == outputs[i], "expected", outputs[i], "got", got)
}`,
	})
	if !v.Passed() {
		t.Fatalf("expected pass, got %v: %s", v.Outcome, v.Message)
	}
}

func TestExecuteRuntimeFailures(t *testing.T) {
	cases := map[string]Request{
		"undefined name": {Source: ``, Script: factJudge},
		"syntax error":   {Source: `func fact(n int) int { return n +`, Script: factJudge},
		"panic":          {Source: `func fact(n int) int { panic("boom") }`, Script: factJudge},
		"index":          {Source: `func fact(n int) int { var xs []int; return xs[n] }`, Script: factJudge},
		"forbidden":      {Source: "import \"os\"\n\nfunc fact(n int) int { os.Exit(1); return 0 }", Script: factJudge},
		"goroutine":      {Source: "func fact(n int) int { go func() { panic(\"escaped\") }(); return 120 }", Script: factJudge},
		"go in script":   {Source: `func fact(n int) int { return 120 }`, Script: "go fact(1)\n" + factJudge},
	}
	j := NewInterpreter()
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			v := j.Execute(context.Background(), req)
			if v.Outcome != domain.OutcomeRuntimeFailed {
				t.Fatalf("expected runtime failure, got %v: %s", v.Outcome, v.Message)
			}
			if v.Message == "" {
				t.Fatalf("expected diagnostic message")
			}
		})
	}
}

func TestExecuteAllowListedImport(t *testing.T) {
	j := NewInterpreter()
	v := j.Execute(context.Background(), Request{
		Source: "import \"strings\"\n\nfunc shout(s string) string { return strings.ToUpper(s) + \"!\" }",
		Script: `assert(shout("go") == "GO!", "shout")`,
	})
	if !v.Passed() {
		t.Fatalf("expected pass, got %v: %s", v.Outcome, v.Message)
	}

	v = j.Execute(context.Background(), Request{
		Source: "import \"strings\"\n\nfunc shout(s string) string { return strings.ToUpper(s) }",
		Script: `assert(shout("go") == "GO", "shout")`,
		Allow:  []string{"fmt"},
	})
	if v.Outcome != domain.OutcomeRuntimeFailed || !strings.Contains(v.Message, "forbidden imports: strings") {
		t.Fatalf("expected per-request allow-list to reject strings, got %v: %s", v.Outcome, v.Message)
	}
}

func TestExecuteTimeout(t *testing.T) {
	j := NewInterpreter(WithTimeout(100 * time.Millisecond))
	v := j.Execute(context.Background(), Request{
		Source: `func spin() int {
	n := 0
	for {
		n++
	}
}`,
		Script: `assert(spin() == 0, "unreachable")`,
	})
	if v.Outcome != domain.OutcomeRuntimeFailed || !strings.Contains(v.Message, "timed out") {
		t.Fatalf("expected timeout failure, got %v: %s", v.Outcome, v.Message)
	}
}

type recordingObserver struct {
	outcomes []domain.Outcome
}

func (o *recordingObserver) ObserveJudge(outcome domain.Outcome, _ time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func TestExecuteNotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	j := NewInterpreter(WithObserver(obs))
	j.Execute(context.Background(), Request{Source: `func fact(n int) int { return 120 }`, Script: factJudge})
	j.Execute(context.Background(), Request{Source: `func fact(n int) int { return 0 }`, Script: factJudge})

	if len(obs.outcomes) != 2 || obs.outcomes[0] != domain.OutcomePassed || obs.outcomes[1] != domain.OutcomeAssertionFailed {
		t.Fatalf("unexpected observed outcomes %v", obs.outcomes)
	}
}

func TestExecuteRejectsGoroutinesBeforeRunning(t *testing.T) {
	j := NewInterpreter()
	v := j.Execute(context.Background(), Request{
		Source: `func fact(n int) int {
	done := make(chan bool)
	go func() { panic("escaped") }()
	<-done
	return 120
}`,
		Script: factJudge,
	})
	if v.Outcome != domain.OutcomeRuntimeFailed || !strings.Contains(v.Message, "goroutines are not allowed") {
		t.Fatalf("expected goroutine rejection, got %v: %s", v.Outcome, v.Message)
	}
}
