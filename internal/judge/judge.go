// Package judge runs submitted code against a judge script in a restricted
// interpreter and classifies the result as passed, assertion failure or
// runtime failure.
package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exam-judge-service/internal/domain"
)

// DefaultAllow is the stdlib allow-list exposed to submissions when none is configured.
var DefaultAllow = []string{"fmt", "strings", "strconv", "math", "sort", "unicode", "unicode/utf8"}

// HelperPackage is the import path of the assertion helpers available to judge scripts.
const HelperPackage = "judge"

// Request is one execution: the submitted declarations, the judge script that
// exercises them, and optionally an allow-list overriding the judge's default.
type Request struct {
	Source string
	Script string
	Allow  []string
}

// Verdict is the classified result of an execution.
type Verdict struct {
	Outcome domain.Outcome
	Message string
	Output  string
}

// Passed reports whether the judge script completed without a fault.
func (v Verdict) Passed() bool {
	return v.Outcome == domain.OutcomePassed
}

// Judge executes code. Implementations may be in-process interpreters,
// subprocess runners or container sandboxes; callers only see the Verdict.
type Judge interface {
	Execute(ctx context.Context, req Request) Verdict
}

// Observer receives one callback per execution.
type Observer interface {
	ObserveJudge(outcome domain.Outcome, elapsed time.Duration)
}

// AssertionError is raised by the assert helper when a judge check fails.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	if e.Message == "" {
		return "assertion failed"
	}
	return "assertion failed: " + e.Message
}

// Assert panics with an *AssertionError when ok is false. It is exported into
// the interpreter as judge.Assert and wrapped by the generated assert function.
func Assert(ok bool, msg ...interface{}) {
	if ok {
		return
	}
	panic(&AssertionError{Message: strings.TrimSpace(fmt.Sprintln(msg...))})
}

// Fail unconditionally reports an assertion failure.
func Fail(msg ...interface{}) {
	Assert(false, msg...)
}
