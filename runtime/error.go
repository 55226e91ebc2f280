package runtime

import (
	"context"
	"errors"
	"fmt"
)

// EvalErrorType classifies why a snippet failed to evaluate.
type EvalErrorType string

const (
	// ErrorTypeRuntime signals the interpreter rejected or aborted the snippet.
	ErrorTypeRuntime EvalErrorType = "runtime"
	// ErrorTypeUnsupported signals the engine cannot perform the requested operation.
	ErrorTypeUnsupported EvalErrorType = "unsupported"
	// ErrorTypeTimeout signals the evaluation was cancelled by a deadline.
	ErrorTypeTimeout EvalErrorType = "timeout"
)

// EvalErrorCode identifies known engine error codes.
type EvalErrorCode string

const (
	ErrorCodeRuntimeError     EvalErrorCode = "RUNTIME_ERROR"
	ErrorCodeUnsupported      EvalErrorCode = "UNSUPPORTED_OPERATION"
	ErrorCodeContextCancelled EvalErrorCode = "CONTEXT_CANCELLED"
	ErrorCodeDeadlineExceeded EvalErrorCode = "DEADLINE_EXCEEDED"
)

// EvalError is the canonical error type returned by session engines.
// It is JSON-serializable so it can travel through the HTTP surface, and it
// carries the interpreter's error stream captured up to the point of failure.
type EvalError struct {
	Type    EvalErrorType `json:"type"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Snippet string        `json:"snippet,omitempty"`
	Stderr  string        `json:"stderr,omitempty"`
	Cause   error         `json:"-"`
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("[%s/%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *EvalError) Unwrap() error {
	return e.Cause
}

// ToMap converts the error to a map suitable for JSON responses.
func (e *EvalError) ToMap() map[string]any {
	return map[string]any{
		"type":    string(e.Type),
		"code":    e.Code,
		"message": e.Message,
		"snippet": e.Snippet,
		"stderr":  e.Stderr,
	}
}

// ClassifyEvalError wraps an interpreter failure into an EvalError.
// Context cancellation and deadline failures stay timeout-classified, and
// existing EvalError values pass through unchanged.
func ClassifyEvalError(err error, snippet, stderr string) *EvalError {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee
	}

	code := ErrorCodeRuntimeError
	typ := ErrorTypeRuntime
	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrorCodeDeadlineExceeded
		typ = ErrorTypeTimeout
	} else if errors.Is(err, context.Canceled) {
		code = ErrorCodeContextCancelled
		typ = ErrorTypeTimeout
	}

	return &EvalError{
		Type:    typ,
		Code:    string(code),
		Message: err.Error(),
		Snippet: snippet,
		Stderr:  stderr,
		Cause:   err,
	}
}
