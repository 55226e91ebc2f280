package runtime

import "context"

// TypedValue pairs a value produced by the session with the name of its
// interpreter runtime type (e.g. "string", "int", "map").
// The type name drives presenter guards and the raw string unquoting rule.
type TypedValue struct {
	Value any
	Type  string
}

// Captured holds the three views of output collected during one evaluation:
// the interpreter's own echo, the program's console output, and a merged
// interleaving of both in emission order.
type Captured struct {
	Interpreter string
	Console     string
	Merged      string
}

// PrinterFunc renders a value of a registered type inside the session.
type PrinterFunc func(value any) (string, error)

// ConfigSurface is the session-side configuration API the bridge pushes
// display parameters into (print width, depth, length, size, ...).
// How a session stores or applies them is engine-specific.
type ConfigSurface interface {
	Configure(key string, value any) error
	ConfigValue(key string) (any, bool)
	RegisterPrinter(typeName string, printer PrinterFunc) error
}

// Session is one long-lived interpreter session. Implementations wrap an
// actual interpreter (see runtime/engine) and are NOT safe for concurrent
// use; the Evaluator serializes all access.
type Session interface {
	ConfigSurface

	// EvalExpression evaluates text as a single expression and returns the
	// produced value alongside the captured output.
	EvalExpression(ctx context.Context, text string) (Captured, *TypedValue, error)

	// EvalStatements evaluates text as a statement sequence. No value is
	// returned directly; LastValue may be probed afterwards.
	EvalStatements(ctx context.Context, text string) (Captured, error)

	// LastValue retrieves the most recently produced value of the session,
	// best effort. Engines that cannot answer return an error.
	LastValue(ctx context.Context) (*TypedValue, error)

	// WithWorkingDir runs fn with the session's working directory switched
	// to dir, restoring the previous directory on every exit path.
	WithWorkingDir(dir string, fn func() error) error

	// NativeStringType returns the runtime type name of the engine's
	// string type (used by LastValueRaw unquoting).
	NativeStringType() string
}
