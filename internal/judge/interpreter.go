package judge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"reflect"
	"strings"
	"time"

	"exam-judge-service/internal/domain"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"
)

// Interpreter is the in-process Judge backed by yaegi.
//
// Submissions run inline on the caller's goroutine with no memory ceiling and
// no process boundary. Without a timeout an infinite loop blocks the caller
// indefinitely; WithTimeout stops evaluation at the next interpreter branch
// and reports it as a runtime failure.
type Interpreter struct {
	allow    []string
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithAllow replaces the default stdlib allow-list.
func WithAllow(pkgs ...string) Option {
	return func(i *Interpreter) {
		if len(pkgs) > 0 {
			i.allow = pkgs
		}
	}
}

// WithTimeout bounds each execution. Zero keeps the unbounded default.
func WithTimeout(d time.Duration) Option {
	return func(i *Interpreter) { i.timeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(i *Interpreter) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(i *Interpreter) { i.observer = o }
}

func NewInterpreter(opts ...Option) *Interpreter {
	i := &Interpreter{
		allow:  DefaultAllow,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Execute concatenates the submission and judge script, evaluates the result
// and classifies any fault.
func (j *Interpreter) Execute(ctx context.Context, req Request) Verdict {
	start := j.now()
	verdict := j.execute(ctx, req)
	elapsed := j.now().Sub(start)
	if j.observer != nil {
		j.observer.ObserveJudge(verdict.Outcome, elapsed)
	}
	j.logger.Debug("judge execution finished",
		zap.Stringer("outcome", verdict.Outcome),
		zap.Duration("elapsed", elapsed),
		zap.String("message", verdict.Message))
	return verdict
}

func (j *Interpreter) execute(ctx context.Context, req Request) Verdict {
	allow := j.allow
	if len(req.Allow) > 0 {
		allow = req.Allow
	}

	program, imports, err := buildProgram(req.Source, req.Script)
	if err != nil {
		return runtimeFailure(err.Error(), "")
	}
	if err := checkImports(imports, allow); err != nil {
		return runtimeFailure(err.Error(), "")
	}
	if err := checkProgram(program); err != nil {
		return runtimeFailure(err.Error(), "")
	}

	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{
		Stdout:               &stdout,
		Stderr:               &stderr,
		SourcecodeFilesystem: noSources{},
	})
	if err := i.Use(symbolsFor(allow)); err != nil {
		return runtimeFailure(fmt.Sprintf("load symbols: %v", err), "")
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	_, err = i.EvalWithContext(ctx, program)
	return classify(err, stdout.String(), j.timeout)
}

func classify(err error, output string, timeout time.Duration) Verdict {
	if err == nil {
		return Verdict{Outcome: domain.OutcomePassed, Message: "passed", Output: output}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return runtimeFailure(fmt.Sprintf("execution timed out after %s", timeout), output)
	}
	if errors.Is(err, context.Canceled) {
		return runtimeFailure("execution canceled", output)
	}

	var p interp.Panic
	if errors.As(err, &p) {
		return classifyPanic(p.Value, output)
	}
	var ae *AssertionError
	if errors.As(err, &ae) {
		return Verdict{Outcome: domain.OutcomeAssertionFailed, Message: ae.Error(), Output: output}
	}
	return runtimeFailure(err.Error(), output)
}

func classifyPanic(value interface{}, output string) Verdict {
	switch v := value.(type) {
	case *AssertionError:
		return Verdict{Outcome: domain.OutcomeAssertionFailed, Message: v.Error(), Output: output}
	case error:
		var ae *AssertionError
		if errors.As(v, &ae) {
			return Verdict{Outcome: domain.OutcomeAssertionFailed, Message: ae.Error(), Output: output}
		}
		return runtimeFailure("panic: "+v.Error(), output)
	default:
		return runtimeFailure(fmt.Sprintf("panic: %v", v), output)
	}
}

func runtimeFailure(msg, output string) Verdict {
	return Verdict{Outcome: domain.OutcomeRuntimeFailed, Message: msg, Output: output}
}

func checkImports(imports []importSpec, allow []string) error {
	allowed := map[string]bool{HelperPackage: true}
	for _, pkg := range allow {
		allowed[pkg] = true
	}
	var forbidden []string
	for _, spec := range imports {
		if !allowed[spec.path] {
			forbidden = append(forbidden, spec.path)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %s (allowed: %s)",
			strings.Join(forbidden, ", "), strings.Join(allow, ", "))
	}
	return nil
}

// symbolsFor builds the interpreter symbol table: the allow-listed stdlib
// packages plus the assertion helpers. Packages missing from the yaegi
// stdlib table are skipped.
func symbolsFor(allow []string) interp.Exports {
	exports := interp.Exports{
		HelperPackage + "/" + HelperPackage: {
			"Assert": reflect.ValueOf(Assert),
			"Fail":   reflect.ValueOf(Fail),
		},
	}
	for _, pkg := range allow {
		key := pkg + "/" + path.Base(pkg)
		if syms, ok := stdlib.Symbols[key]; ok {
			exports[key] = syms
		}
	}
	return exports
}

// noSources keeps the interpreter from resolving imports against source trees on disk.
type noSources struct{}

func (noSources) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
