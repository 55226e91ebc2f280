package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Evaluator is the façade in front of a single interpreter session. It
// serializes all access to the session, runs the evaluate-then-probe
// protocol, and converts raw interpreter failures into failure records.
//
// Evaluate never returns an error: failures surface through observers and
// the configured failure handler, and the caller receives an empty result.
type Evaluator struct {
	l          *slog.Logger
	session    Session
	presenters *PresenterRegistry
	dispatcher *Dispatcher
	failures   *failureController

	// One evaluation (including its last-value probe) in flight at a time.
	// The session itself is not safe for concurrent use.
	mu sync.Mutex
}

// NewEvaluator wires a session into a ready evaluator: default presenters
// are registered and the display configuration is pushed into the session.
func NewEvaluator(l *slog.Logger, session Session, opts Options) (*Evaluator, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if l == nil {
		l = slog.Default()
	}

	presenters := NewPresenterRegistry(l)
	RegisterDefaultPresenters(presenters)

	e := &Evaluator{
		l:          l,
		session:    session,
		presenters: presenters,
		dispatcher: NewDispatcher(l, presenters, session.NativeStringType()),
		failures:   newFailureController(l),
	}

	if opts.Strict {
		e.failures.setHandler(func(message string) {
			panic(message)
		})
	}

	if err := ApplyDisplayConfig(session, opts.Display); err != nil {
		return nil, fmt.Errorf("failed to apply display config: %w", err)
	}

	return e, nil
}

// OnFailure registers an observer that receives every failure record.
func (e *Evaluator) OnFailure(fn func(FailureRecord)) {
	e.failures.subscribe(fn)
}

// SetFailureHandler replaces the escalation handler. Passing nil restores
// the lenient no-op handler.
func (e *Evaluator) SetFailureHandler(fn FailureHandler) {
	e.failures.setHandler(fn)
}

// RegisterPresenter adds a direct presenter to the chain consulted when
// formatting values.
func (e *Evaluator) RegisterPresenter(guard TypeGuard, fn PresenterFn, targetsHTML bool) {
	e.presenters.RegisterPresenter(guard, fn, targetsHTML)
}

// RegisterTransform adds a transform rule to the chain consulted when
// formatting values.
func (e *Evaluator) RegisterTransform(guard TypeGuard, fn TransformFn, targetsHTML bool) {
	e.presenters.RegisterTransform(guard, fn, targetsHTML)
}

// Presenters exposes the registry for advanced hosts.
func (e *Evaluator) Presenters() *PresenterRegistry {
	return e.presenters
}

// Evaluate runs one snippet with a background context.
func (e *Evaluator) Evaluate(text string, asExpression bool, file string) EvaluationResult {
	return e.EvaluateContext(context.Background(), text, asExpression, file)
}

// EvaluateContext runs one snippet against the session. file, when given,
// determines the working directory for the duration of the call (its
// containing directory); otherwise the process's current directory is used.
//
// Expression mode populates ExplicitValue; statement mode issues a
// best-effort last-value probe whose failure is swallowed, never reported.
func (e *Evaluator) EvaluateContext(ctx context.Context, text string, asExpression bool, file string) EvaluationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		captured Captured
		explicit *TypedValue
		last     *TypedValue
	)

	err := e.session.WithWorkingDir(e.workingDir(file), func() error {
		if asExpression {
			var err error
			captured, explicit, err = e.session.EvalExpression(ctx, text)
			return err
		}

		var err error
		captured, err = e.session.EvalStatements(ctx, text)
		if err != nil {
			return err
		}

		// Best effort: a failing probe must never turn a successful
		// statement evaluation into a failure.
		value, probeErr := e.session.LastValue(ctx)
		if probeErr != nil {
			e.l.Debug("last-value probe failed", "error", probeErr)
			return nil
		}
		last = value
		return nil
	})

	if err != nil {
		return e.fail(text, asExpression, file, err)
	}

	return EvaluationResult{
		ID:            uuid.New().String(),
		Console:       &captured.Console,
		Interpreter:   &captured.Interpreter,
		Merged:        &captured.Merged,
		LastValue:     last,
		ExplicitValue: explicit,
	}
}

// Format renders one embed kind of a result into document blocks.
func (e *Evaluator) Format(res EvaluationResult, kind EmbedKind, seq int) []OutputBlock {
	return e.dispatcher.Format(res, kind, seq)
}

func (e *Evaluator) fail(text string, asExpression bool, file string, err error) EvaluationResult {
	stderr := ""
	var ee *EvalError
	if errors.As(err, &ee) {
		stderr = ee.Stderr
	}

	rec := FailureRecord{
		ID:           uuid.New().String(),
		Text:         text,
		IsExpression: asExpression,
		File:         file,
		Err:          err,
		Stderr:       stderr,
	}

	e.l.Error("snippet evaluation failed",
		"expression", asExpression,
		"file", file,
		"error", err)

	e.failures.report(rec)
	return EvaluationResult{ID: rec.ID}
}

func (e *Evaluator) workingDir(file string) string {
	if file != "" {
		return filepath.Dir(file)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
