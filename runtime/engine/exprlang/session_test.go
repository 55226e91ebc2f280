package exprlang

import (
	"context"
	"errors"
	"testing"

	"litrun/runtime"
)

func TestEvalExpression(t *testing.T) {
	s := NewSession(nil)
	s.SetVariable("base", 40)

	captured, value, err := s.EvalExpression(context.Background(), "base + 2")
	if err != nil {
		t.Fatalf("EvalExpression returned error: %v", err)
	}
	if value.Value != 42 || value.Type != "int" {
		t.Errorf("value = %+v, expected int 42", value)
	}
	if captured.Interpreter != "42\n" {
		t.Errorf("interpreter echo = %q, expected %q", captured.Interpreter, "42\n")
	}
	if captured.Console != "" {
		t.Errorf("console = %q, expected empty", captured.Console)
	}
}

func TestStringEchoIsQuoted(t *testing.T) {
	s := NewSession(nil)

	captured, value, err := s.EvalExpression(context.Background(), `"hi"`)
	if err != nil {
		t.Fatalf("EvalExpression returned error: %v", err)
	}
	if value.Type != s.NativeStringType() {
		t.Errorf("type = %q, expected the native string type", value.Type)
	}
	if captured.Interpreter != "\"hi\"\n" {
		t.Errorf("interpreter echo = %q, expected quoted string", captured.Interpreter)
	}
}

func TestStatementsUnsupported(t *testing.T) {
	s := NewSession(nil)

	_, err := s.EvalStatements(context.Background(), "x := 1")
	if err == nil {
		t.Fatal("expected statement evaluation to fail")
	}

	var ee *runtime.EvalError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %T, expected *runtime.EvalError", err)
	}
	if ee.Type != runtime.ErrorTypeUnsupported {
		t.Errorf("error type = %q, expected unsupported", ee.Type)
	}
}

func TestLastValue(t *testing.T) {
	s := NewSession(nil)
	ctx := context.Background()

	if _, err := s.LastValue(ctx); err == nil {
		t.Error("expected probe to fail before any evaluation")
	}

	if _, _, err := s.EvalExpression(ctx, "3 * 3"); err != nil {
		t.Fatal(err)
	}

	value, err := s.LastValue(ctx)
	if err != nil {
		t.Fatalf("LastValue returned error: %v", err)
	}
	if value.Value != 9 {
		t.Errorf("value = %v, expected 9", value.Value)
	}
}

func TestCompileErrorIsClassified(t *testing.T) {
	s := NewSession(nil)

	_, _, err := s.EvalExpression(context.Background(), "1 +")
	if err == nil {
		t.Fatal("expected compile error")
	}
	var ee *runtime.EvalError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %T, expected *runtime.EvalError", err)
	}
	if ee.Snippet != "1 +" {
		t.Errorf("snippet = %q, expected the failing text", ee.Snippet)
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1.5", "float"},
		{"true", "bool"},
		{`{"a": 1}`, "map"},
		{"[1, 2]", "list"},
	}

	s := NewSession(nil)
	for _, tt := range tests {
		_, value, err := s.EvalExpression(context.Background(), tt.expr)
		if err != nil {
			t.Fatalf("%s: %v", tt.expr, err)
		}
		if value.Type != tt.want {
			t.Errorf("%s: type = %q, expected %q", tt.expr, value.Type, tt.want)
		}
	}
}
