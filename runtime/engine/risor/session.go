// Package risor implements the default interpreter session on top of the
// Risor scripting language. The session is sandboxed: default globals are
// removed and only explicitly injected globals are visible to snippets.
package risor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
	"github.com/risor-io/risor/vm"

	"litrun/runtime"
)

// lastValueName is the well-known reference probed after statement
// evaluation, mirroring the interactive convention of binding the most
// recent result.
const lastValueName = "it"

// lastValueFn is the injected builtin that hands the most recent statement
// value back to the interpreter so it can be bound to lastValueName.
const lastValueFn = "__lastvalue"

var _ runtime.Session = (*Session)(nil)

// Session is a stateful Risor session. Snippets share one program: each
// evaluation is compiled onto the end of the session's code and the machine
// resumes where the previous snippet stopped, so top-level bindings and
// functions stay visible to later snippets. Rebinding an existing name uses
// plain assignment; a second ":=" declaration is a compile error, as in the
// language itself. Not safe for concurrent use; the evaluator façade
// serializes access.
type Session struct {
	l *slog.Logger

	globals  map[string]any
	config   map[string]any
	printers map[string]runtime.PrinterFunc

	// Incremental compilation state, created on the first evaluation.
	// Host globals registered after that point are not seen by the machine.
	compiler *compiler.Compiler
	main     *compiler.Code
	machine  *vm.VirtualMachine

	lastObj object.Object
	hasLast bool

	// Per-evaluation capture buffers. Console output and interpreter echo
	// are recorded separately and interleaved into merged in emission order.
	console strings.Builder
	interp  strings.Builder
	merged  strings.Builder

	// Guards os.Chdir, which is process-wide state.
	wdMu sync.Mutex
}

func NewSession(l *slog.Logger) *Session {
	if l == nil {
		l = slog.Default()
	}
	return &Session{
		l:        l,
		globals:  make(map[string]any),
		config:   make(map[string]any),
		printers: make(map[string]runtime.PrinterFunc),
	}
}

// RegisterGlobal exposes a host value (or function) to snippets under the
// given name. Functions are wrapped so Risor code can call them directly.
// Globals must be registered before the first evaluation.
func (s *Session) RegisterGlobal(name string, value any) {
	if s.machine != nil {
		s.l.Warn("global registered after first evaluation has no effect", "name", name)
	}
	s.globals[name] = value
}

// EvalExpression evaluates text as a single expression and returns the
// produced value with its runtime type.
func (s *Session) EvalExpression(ctx context.Context, text string) (runtime.Captured, *runtime.TypedValue, error) {
	obj, err := s.run(ctx, text)
	if err != nil {
		return s.captured(), nil, runtime.ClassifyEvalError(err, text, s.interp.String())
	}

	s.echo(obj)
	value := &runtime.TypedValue{Value: objectToGo(obj), Type: string(obj.Type())}
	return s.captured(), value, nil
}

// EvalStatements evaluates text as a statement sequence. The value of the
// final expression, if any, is bound to the well-known last-value reference
// for later probing.
func (s *Session) EvalStatements(ctx context.Context, text string) (runtime.Captured, error) {
	obj, err := s.run(ctx, text)
	if err != nil {
		return s.captured(), runtime.ClassifyEvalError(err, text, s.interp.String())
	}

	s.echo(obj)
	if _, isNil := obj.(*object.NilType); !isNil {
		s.bindLast(ctx, obj)
	}
	return s.captured(), nil
}

// LastValue probes the session for the last produced value by evaluating the
// well-known reference. The probe fails if no statement has produced a value.
func (s *Session) LastValue(ctx context.Context) (*runtime.TypedValue, error) {
	if !s.hasLast {
		return nil, fmt.Errorf("no value has been bound to %q", lastValueName)
	}

	obj, err := s.execute(ctx, lastValueName)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %q: %w", lastValueName, err)
	}
	return &runtime.TypedValue{Value: objectToGo(obj), Type: string(obj.Type())}, nil
}

// bindLast records obj as the most recent statement value and assigns it to
// the well-known reference inside the machine, so snippets and the probe can
// both read it. Binding failures are logged, never surfaced.
func (s *Session) bindLast(ctx context.Context, obj object.Object) {
	s.lastObj = obj
	s.hasLast = true

	assign := lastValueName + " = " + lastValueFn + "()"
	if !s.hasGlobal(lastValueName) {
		assign = lastValueName + " := " + lastValueFn + "()"
	}
	if _, err := s.execute(ctx, assign); err != nil {
		s.l.Debug("failed to refresh last-value binding", "error", err)
	}
}

func (s *Session) hasGlobal(name string) bool {
	if s.main == nil {
		return false
	}
	for _, n := range s.main.GlobalNames() {
		if n == name {
			return true
		}
	}
	return false
}

// WithWorkingDir switches the process working directory while fn runs.
// The previous directory is restored on every exit path.
func (s *Session) WithWorkingDir(dir string, fn func() error) error {
	if dir == "" {
		return fn()
	}

	s.wdMu.Lock()
	defer s.wdMu.Unlock()

	prev, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to read working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("failed to switch working directory: %w", err)
	}
	defer func() {
		if err := os.Chdir(prev); err != nil {
			s.l.Error("failed to restore working directory", "dir", prev, "error", err)
		}
	}()

	return fn()
}

// Configure stores a display parameter. Known keys are type-checked.
func (s *Session) Configure(key string, value any) error {
	switch key {
	case runtime.ConfigPrintWidth, runtime.ConfigPrintDepth,
		runtime.ConfigPrintLength, runtime.ConfigPrintSize:
		if _, ok := value.(int); !ok {
			return fmt.Errorf("config %q expects int, got %T", key, value)
		}
	case runtime.ConfigShowTypes:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("config %q expects bool, got %T", key, value)
		}
	}
	s.config[key] = value
	return nil
}

func (s *Session) ConfigValue(key string) (any, bool) {
	v, ok := s.config[key]
	return v, ok
}

// RegisterPrinter installs a custom printer used by the interpreter echo for
// values of the named runtime type.
func (s *Session) RegisterPrinter(typeName string, printer runtime.PrinterFunc) error {
	if printer == nil {
		return fmt.Errorf("printer cannot be nil")
	}
	s.printers[typeName] = printer
	return nil
}

func (s *Session) NativeStringType() string {
	return string(object.STRING)
}

// run resets the capture buffers and evaluates code in the sandbox.
func (s *Session) run(ctx context.Context, code string) (object.Object, error) {
	s.console.Reset()
	s.interp.Reset()
	s.merged.Reset()

	return s.execute(ctx, code)
}

// execute compiles source onto the end of the session program and resumes
// the machine there. Compiled programs leave exactly one value on the
// machine's stack, so the top of stack after a successful run is this
// snippet's value. The instruction pointer is positioned explicitly before
// each run, which also skips over instructions left behind by a snippet
// that failed to compile or aborted mid-run.
func (s *Session) execute(ctx context.Context, source string) (object.Object, error) {
	if err := s.ensureMachine(); err != nil {
		return nil, err
	}

	prog, err := parser.Parse(ctx, source)
	if err != nil {
		return nil, err
	}

	base := s.main.InstructionCount()
	if _, err := s.compiler.Compile(prog); err != nil {
		return nil, err
	}
	if err := s.machine.SetIP(base); err != nil {
		return nil, err
	}
	if err := s.machine.Run(ctx); err != nil {
		return nil, err
	}

	if obj, ok := s.machine.TOS(); ok {
		return obj, nil
	}
	return object.Nil, nil
}

// ensureMachine builds the incremental compiler and the machine on first
// use. Default globals stay out; only the capture builtins and explicitly
// registered host globals are visible to snippets.
func (s *Session) ensureMachine() error {
	if s.machine != nil {
		return nil
	}

	globals := s.buildGlobals()
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)

	c, err := compiler.New(compiler.WithGlobalNames(names))
	if err != nil {
		return fmt.Errorf("failed to create compiler: %w", err)
	}
	s.compiler = c
	s.main = c.Code()
	s.machine = vm.New(s.main, vm.WithGlobals(globals))
	return nil
}

// buildGlobals combines the capture builtins with host-injected globals,
// converting raw Go values to Risor-safe shapes.
func (s *Session) buildGlobals() map[string]any {
	globals := map[string]any{
		"print":     s.printBuiltin(),
		"printf":    s.printfBuiltin(),
		lastValueFn: s.lastValueBuiltin(),
	}
	for k, v := range s.globals {
		globals[k] = goToRisor(k, v)
	}
	return globals
}

func (s *Session) lastValueBuiltin() *object.Builtin {
	return object.NewBuiltin(lastValueFn, func(ctx context.Context, args ...object.Object) object.Object {
		if s.lastObj == nil {
			return object.Nil
		}
		return s.lastObj
	})
}

func (s *Session) printBuiltin() *object.Builtin {
	return object.NewBuiltin("print", func(ctx context.Context, args ...object.Object) object.Object {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = printableString(arg)
		}
		s.writeConsole(strings.Join(parts, " ") + "\n")
		return object.Nil
	})
}

func (s *Session) printfBuiltin() *object.Builtin {
	return object.NewBuiltin("printf", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) == 0 {
			return object.NewError(fmt.Errorf("printf requires a format string"))
		}
		format, ok := args[0].(*object.String)
		if !ok {
			return object.NewError(fmt.Errorf("printf format must be a string, got %s", args[0].Type()))
		}
		rest := make([]any, len(args)-1)
		for i, arg := range args[1:] {
			rest[i] = objectToGo(arg)
		}
		s.writeConsole(fmt.Sprintf(format.Value(), rest...))
		return object.Nil
	})
}

func (s *Session) writeConsole(text string) {
	s.console.WriteString(text)
	s.merged.WriteString(text)
}

// echo records the interpreter's own rendering of a produced value, honoring
// registered printers and the print_size display limit.
func (s *Session) echo(obj object.Object) {
	if _, isNil := obj.(*object.NilType); isNil {
		return
	}

	rendered := ""
	if printer, ok := s.printers[string(obj.Type())]; ok {
		out, err := printer(objectToGo(obj))
		if err != nil {
			s.l.Debug("custom printer failed, falling back to inspect",
				"type", obj.Type(), "error", err)
		} else {
			rendered = out
		}
	}
	if rendered == "" {
		rendered = obj.Inspect()
	}

	if size, ok := s.config[runtime.ConfigPrintSize].(int); ok && size > 0 && len(rendered) > size {
		rendered = rendered[:size] + "..."
	}

	line := rendered + "\n"
	s.interp.WriteString(line)
	s.merged.WriteString(line)
}

func (s *Session) captured() runtime.Captured {
	return runtime.Captured{
		Interpreter: s.interp.String(),
		Console:     s.console.String(),
		Merged:      s.merged.String(),
	}
}

func printableString(obj object.Object) string {
	if str, ok := obj.(*object.String); ok {
		return str.Value()
	}
	return obj.Inspect()
}
