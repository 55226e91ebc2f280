package runtime

// EvaluationResult is the outcome of one snippet evaluation. On failure all
// fields except ID are nil; on success the three output views are always
// present (possibly empty) and at most one of LastValue/ExplicitValue is
// populated depending on the evaluation mode.
type EvaluationResult struct {
	ID            string
	Console       *string
	Interpreter   *string
	Merged        *string
	LastValue     *TypedValue
	ExplicitValue *TypedValue
}

// Succeeded reports whether the evaluation produced output views.
// A failed evaluation yields a result with no output views at all.
func (r EvaluationResult) Succeeded() bool {
	return r.Console != nil || r.Interpreter != nil || r.Merged != nil
}
