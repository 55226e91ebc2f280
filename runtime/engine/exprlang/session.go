// Package exprlang implements an expression-only session on top of the
// expr-lang library. It has no statement form and no console output; it
// exists for hosts that only need expression snippets evaluated against a
// fixed environment.
package exprlang

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/expr-lang/expr"

	"litrun/runtime"
)

var _ runtime.Session = (*Session)(nil)

// Session evaluates expressions against a persistent environment map.
// Not safe for concurrent use; the evaluator façade serializes access.
type Session struct {
	l *slog.Logger

	env      map[string]any
	config   map[string]any
	printers map[string]runtime.PrinterFunc

	last    any
	hasLast bool
}

func NewSession(l *slog.Logger) *Session {
	if l == nil {
		l = slog.Default()
	}
	return &Session{
		l:        l,
		env:      make(map[string]any),
		config:   make(map[string]any),
		printers: make(map[string]runtime.PrinterFunc),
	}
}

// SetVariable exposes a host value to expressions under the given name.
func (s *Session) SetVariable(name string, value any) {
	s.env[name] = value
}

func (s *Session) EvalExpression(ctx context.Context, text string) (runtime.Captured, *runtime.TypedValue, error) {
	_ = ctx // expr-lang evaluation is not cancellable

	program, err := expr.Compile(text,
		expr.Env(s.env),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return runtime.Captured{}, nil, runtime.ClassifyEvalError(err, text, err.Error())
	}

	result, err := expr.Run(program, s.env)
	if err != nil {
		return runtime.Captured{}, nil, runtime.ClassifyEvalError(err, text, err.Error())
	}

	s.last = result
	s.hasLast = true

	echo := renderValue(result) + "\n"
	captured := runtime.Captured{Interpreter: echo, Merged: echo}
	return captured, &runtime.TypedValue{Value: result, Type: typeName(result)}, nil
}

// EvalStatements always fails: the expr engine has no statement form.
func (s *Session) EvalStatements(ctx context.Context, text string) (runtime.Captured, error) {
	return runtime.Captured{}, &runtime.EvalError{
		Type:    runtime.ErrorTypeUnsupported,
		Code:    string(runtime.ErrorCodeUnsupported),
		Message: "expr engine evaluates expressions only",
		Snippet: text,
	}
}

func (s *Session) LastValue(ctx context.Context) (*runtime.TypedValue, error) {
	if !s.hasLast {
		return nil, fmt.Errorf("no value has been produced yet")
	}
	return &runtime.TypedValue{Value: s.last, Type: typeName(s.last)}, nil
}

// WithWorkingDir is a no-op scope: expressions cannot touch the filesystem.
func (s *Session) WithWorkingDir(dir string, fn func() error) error {
	return fn()
}

func (s *Session) Configure(key string, value any) error {
	s.config[key] = value
	return nil
}

func (s *Session) ConfigValue(key string) (any, bool) {
	v, ok := s.config[key]
	return v, ok
}

func (s *Session) RegisterPrinter(typeName string, printer runtime.PrinterFunc) error {
	if printer == nil {
		return fmt.Errorf("printer cannot be nil")
	}
	s.printers[typeName] = printer
	return nil
}

func (s *Session) NativeStringType() string {
	return "string"
}

// renderValue follows the interactive convention of quoting strings in the
// interpreter echo.
func renderValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}

// typeName maps a Go value onto the session's runtime type vocabulary.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case map[string]any:
		return "map"
	case []any:
		return "list"
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return "list"
	case reflect.Map:
		return "map"
	default:
		return reflect.TypeOf(v).String()
	}
}
