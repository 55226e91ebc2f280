package runtime

import (
	"fmt"
	"strings"
	"testing"
)

func TestFailureControllerPublishesToAllObservers(t *testing.T) {
	c := newFailureController(testLogger())

	var first, second int
	c.subscribe(func(FailureRecord) { first++ })
	c.subscribe(func(FailureRecord) { second++ })

	c.report(FailureRecord{ID: "a", Text: "x", Err: fmt.Errorf("boom")})

	if first != 1 || second != 1 {
		t.Errorf("observer calls = (%d, %d), expected (1, 1)", first, second)
	}
}

func TestDefaultHandlerIsLenient(t *testing.T) {
	c := newFailureController(testLogger())
	// Must not panic or otherwise escalate.
	c.report(FailureRecord{ID: "a", Text: "x", Err: fmt.Errorf("boom")})
}

func TestSetHandlerNilRestoresLenient(t *testing.T) {
	c := newFailureController(testLogger())
	c.setHandler(func(string) { t.Error("stale handler invoked") })
	c.setHandler(nil)
	c.report(FailureRecord{ID: "a", Text: "x", Err: fmt.Errorf("boom")})
}

func TestFormatDiagnostic(t *testing.T) {
	rec := FailureRecord{
		Text:         "1 +",
		IsExpression: true,
		File:         "docs/intro.md",
		Err:          fmt.Errorf("parse error"),
		Stderr:       "unexpected end of input",
	}

	msg := formatDiagnostic(rec)
	for _, want := range []string{"expression", "1 +", "parse error", "docs/intro.md", "unexpected end of input"} {
		if !strings.Contains(msg, want) {
			t.Errorf("diagnostic %q is missing %q", msg, want)
		}
	}

	rec.IsExpression = false
	if !strings.Contains(formatDiagnostic(rec), "statements") {
		t.Error("diagnostic should name statement mode")
	}
}
