package runtime

import (
	"fmt"
	"log/slog"
	"sync"
)

// FailureRecord describes one failed snippet evaluation. Records are
// immutable once created and delivered to every registered observer.
type FailureRecord struct {
	ID           string
	Text         string
	IsExpression bool
	File         string
	Err          error
	Stderr       string
}

// FailureHandler receives the formatted diagnostic of a failed evaluation.
// The default handler does nothing (lenient mode); strict hosts install one
// that aborts document generation.
type FailureHandler func(message string)

// failureController publishes failure records to observers and routes the
// formatted diagnostic through the configured handler. Reporting and
// escalation are the only channels a failure leaves the evaluator by;
// Evaluate itself never returns an error.
type failureController struct {
	l *slog.Logger

	mu        sync.Mutex
	observers []func(FailureRecord)
	handler   FailureHandler
}

func newFailureController(l *slog.Logger) *failureController {
	return &failureController{
		l:       l,
		handler: func(string) {},
	}
}

func (c *failureController) subscribe(fn func(FailureRecord)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *failureController) setHandler(fn FailureHandler) {
	if fn == nil {
		fn = func(string) {}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = fn
}

// report delivers the record to every observer, then escalates the
// formatted diagnostic.
func (c *failureController) report(rec FailureRecord) {
	c.mu.Lock()
	observers := c.observers
	handler := c.handler
	c.mu.Unlock()

	for _, fn := range observers {
		fn(rec)
	}
	handler(formatDiagnostic(rec))
}

func formatDiagnostic(rec FailureRecord) string {
	mode := "statements"
	if rec.IsExpression {
		mode = "expression"
	}
	msg := fmt.Sprintf("error evaluating %s\nsnippet:\n%s\nerror: %v", mode, rec.Text, rec.Err)
	if rec.File != "" {
		msg = fmt.Sprintf("%s\nfile: %s", msg, rec.File)
	}
	if rec.Stderr != "" {
		msg = fmt.Sprintf("%s\nstderr:\n%s", msg, rec.Stderr)
	}
	return msg
}
