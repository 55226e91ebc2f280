package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubSession mimics a real interpreter session: shared capture buffers are
// reset per call, so unserialized concurrent use would corrupt output.
type stubSession struct {
	failExpr  bool
	failStmts bool
	failProbe bool

	exprValue *TypedValue
	lastValue *TypedValue

	echoText  string
	stepDelay time.Duration

	workingDirs []string
	config      map[string]any

	out strings.Builder
}

func newStubSession() *stubSession {
	return &stubSession{config: make(map[string]any)}
}

func (s *stubSession) EvalExpression(ctx context.Context, text string) (Captured, *TypedValue, error) {
	if s.failExpr {
		return Captured{}, nil, &EvalError{
			Type:    ErrorTypeRuntime,
			Code:    string(ErrorCodeRuntimeError),
			Message: "boom",
			Snippet: text,
			Stderr:  "stderr text",
		}
	}
	s.emit(text)
	return s.captured(), s.exprValue, nil
}

func (s *stubSession) EvalStatements(ctx context.Context, text string) (Captured, error) {
	if s.failStmts {
		return Captured{}, &EvalError{
			Type:    ErrorTypeRuntime,
			Code:    string(ErrorCodeRuntimeError),
			Message: "boom",
			Snippet: text,
		}
	}
	s.emit(text)
	return s.captured(), nil
}

func (s *stubSession) LastValue(ctx context.Context) (*TypedValue, error) {
	if s.failProbe {
		return nil, fmt.Errorf("probe failed")
	}
	return s.lastValue, nil
}

func (s *stubSession) WithWorkingDir(dir string, fn func() error) error {
	s.workingDirs = append(s.workingDirs, dir)
	return fn()
}

func (s *stubSession) Configure(key string, value any) error {
	s.config[key] = value
	return nil
}

func (s *stubSession) ConfigValue(key string) (any, bool) {
	v, ok := s.config[key]
	return v, ok
}

func (s *stubSession) RegisterPrinter(typeName string, printer PrinterFunc) error {
	return nil
}

func (s *stubSession) NativeStringType() string { return "string" }

// emit writes call-specific markers into the shared buffer, yielding between
// writes so interleaved callers would mix their output.
func (s *stubSession) emit(text string) {
	s.out.Reset()
	for i := 0; i < 20; i++ {
		s.out.WriteString(text + "\n")
		if s.stepDelay > 0 {
			time.Sleep(s.stepDelay)
		}
	}
}

func (s *stubSession) captured() Captured {
	out := s.out.String()
	return Captured{Interpreter: s.echoText, Console: out, Merged: s.echoText + out}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEvaluator(t *testing.T, session Session) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(testLogger(), session, DefaultOptions())
	if err != nil {
		t.Fatalf("NewEvaluator returned error: %v", err)
	}
	return e
}

func TestEvaluateExpressionPopulatesExplicitValue(t *testing.T) {
	session := newStubSession()
	session.exprValue = &TypedValue{Value: 42, Type: "int"}

	e := newTestEvaluator(t, session)
	res := e.Evaluate("6 * 7", true, "")

	if !res.Succeeded() {
		t.Fatal("expected successful result")
	}
	if res.ExplicitValue == nil || res.ExplicitValue.Value != 42 {
		t.Errorf("ExplicitValue = %v, expected 42", res.ExplicitValue)
	}
	if res.LastValue != nil {
		t.Errorf("LastValue = %v, expected nil for expression mode", res.LastValue)
	}
}

func TestEvaluateStatementsProbesLastValue(t *testing.T) {
	session := newStubSession()
	session.lastValue = &TypedValue{Value: "hi", Type: "string"}

	e := newTestEvaluator(t, session)
	res := e.Evaluate("x := 1", false, "")

	if res.LastValue == nil || res.LastValue.Value != "hi" {
		t.Errorf("LastValue = %v, expected probe result", res.LastValue)
	}
	if res.ExplicitValue != nil {
		t.Errorf("ExplicitValue = %v, expected nil for statement mode", res.ExplicitValue)
	}
}

func TestFailedProbeIsSwallowed(t *testing.T) {
	session := newStubSession()
	session.failProbe = true

	e := newTestEvaluator(t, session)

	var records []FailureRecord
	e.OnFailure(func(rec FailureRecord) { records = append(records, rec) })

	res := e.Evaluate("x := 1", false, "")

	if !res.Succeeded() {
		t.Fatal("probe failure must not fail the evaluation")
	}
	if res.LastValue != nil {
		t.Errorf("LastValue = %v, expected nil after failed probe", res.LastValue)
	}
	if len(records) != 0 {
		t.Errorf("observers received %d records, expected 0", len(records))
	}
}

func TestFailedEvaluationReportsExactlyOneRecord(t *testing.T) {
	session := newStubSession()
	session.failExpr = true

	e := newTestEvaluator(t, session)

	var records []FailureRecord
	e.OnFailure(func(rec FailureRecord) { records = append(records, rec) })

	var escalations []string
	e.SetFailureHandler(func(msg string) { escalations = append(escalations, msg) })

	res := e.Evaluate("bad()", true, "doc/example.md")

	if res.Succeeded() {
		t.Fatal("expected empty result for failed evaluation")
	}
	if res.ExplicitValue != nil || res.LastValue != nil {
		t.Error("expected no value fields on failed evaluation")
	}
	if len(records) != 1 {
		t.Fatalf("observers received %d records, expected 1", len(records))
	}

	rec := records[0]
	if rec.Text != "bad()" || !rec.IsExpression || rec.File != "doc/example.md" {
		t.Errorf("unexpected record contents: %+v", rec)
	}
	if rec.Stderr != "stderr text" {
		t.Errorf("Stderr = %q, expected captured stderr", rec.Stderr)
	}
	if rec.ID != res.ID {
		t.Errorf("record ID %q does not match result ID %q", rec.ID, res.ID)
	}
	if len(escalations) != 1 || !strings.Contains(escalations[0], "bad()") {
		t.Errorf("escalations = %v, expected one diagnostic carrying the snippet", escalations)
	}
}

func TestWorkingDirectoryResolution(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name     string
		file     string
		expected string
	}{
		{"from file", filepath.Join("docs", "guide.md"), "docs"},
		{"no file falls back to cwd", "", cwd},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			session := newStubSession()
			e := newTestEvaluator(t, session)
			e.Evaluate("1", false, tc.file)

			if len(session.workingDirs) != 1 || session.workingDirs[0] != tc.expected {
				t.Errorf("working dirs = %v, expected [%s]", session.workingDirs, tc.expected)
			}
		})
	}
}

func TestConcurrentEvaluationsDoNotInterleave(t *testing.T) {
	session := newStubSession()
	session.stepDelay = time.Millisecond

	e := newTestEvaluator(t, session)

	var wg sync.WaitGroup
	results := make([]EvaluationResult, 2)
	snippets := []string{"alpha", "beta"}

	for i := range snippets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Evaluate(snippets[i], false, "")
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if res.Merged == nil {
			t.Fatalf("result %d has no merged output", i)
		}
		other := snippets[1-i]
		if strings.Contains(*res.Merged, other) {
			t.Errorf("result %d merged output contains %q from the other call", i, other)
		}
		if !strings.Contains(*res.Merged, snippets[i]) {
			t.Errorf("result %d merged output is missing its own marker", i)
		}
	}
}

func TestStrictModePanicsOnFailure(t *testing.T) {
	session := newStubSession()
	session.failStmts = true

	opts := DefaultOptions()
	opts.Strict = true
	e, err := NewEvaluator(testLogger(), session, opts)
	if err != nil {
		t.Fatalf("NewEvaluator returned error: %v", err)
	}

	defer func() {
		if rec := recover(); rec == nil {
			t.Error("expected strict mode to abort on failure")
		}
	}()
	e.Evaluate("bad", false, "")
}

func TestDisplayConfigPushedAtConstruction(t *testing.T) {
	session := newStubSession()
	opts := DefaultOptions()
	opts.Display.PrintWidth = 120

	if _, err := NewEvaluator(testLogger(), session, opts); err != nil {
		t.Fatalf("NewEvaluator returned error: %v", err)
	}
	if v, ok := session.config[ConfigPrintWidth]; !ok || v != 120 {
		t.Errorf("session print_width = %v, expected 120", v)
	}
}
