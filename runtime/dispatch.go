package runtime

import (
	"fmt"
	"log/slog"
	"strings"
)

// EmbedKind selects which part of an evaluation result a formatted block
// should carry.
type EmbedKind int

const (
	// InterpreterOutput renders the interpreter's own echo text.
	InterpreterOutput EmbedKind = iota
	// MergedOutput renders the interleaved interpreter and console text.
	MergedOutput
	// ConsoleOutput renders the program's console text only.
	ConsoleOutput
	// LastValue renders the value retrieved by the last-value probe.
	LastValue
	// LastValueRaw renders the last value through HTML presenters only,
	// unwrapping the quoting convention for native strings.
	LastValueRaw
	// ExplicitValue renders the value produced by expression evaluation.
	ExplicitValue
)

var embedKindNames = map[EmbedKind]string{
	InterpreterOutput: "interpreter-output",
	MergedOutput:      "merged-output",
	ConsoleOutput:     "console-output",
	LastValue:         "last-value",
	LastValueRaw:      "last-value-raw",
	ExplicitValue:     "explicit-value",
}

func (k EmbedKind) String() string {
	if name, ok := embedKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("embed-kind(%d)", int(k))
}

// ParseEmbedKind parses the wire name of an embed kind (e.g. "console-output").
func ParseEmbedKind(s string) (EmbedKind, error) {
	for k, name := range embedKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown embed kind: %q", s)
}

// Media kinds carried by output blocks.
const (
	MediaKindText = "text/plain"
	MediaKindHTML = "text/html"
)

// Messages emitted when a requested part of the result is unavailable.
const (
	noOutputMessage   = "No output has been produced."
	noValueMessage    = "No value returned by any evaluator"
	noRawValueMessage = "The value could not be returned raw"
)

// OutputBlock is one formatted document block.
type OutputBlock struct {
	Content   string `json:"content"`
	MediaKind string `json:"media_kind"`
	Sequence  int    `json:"sequence"`
}

// Dispatcher turns a completed evaluation plus a requested embed kind into an
// ordered sequence of output blocks, consulting the presenter chains for any
// carried value.
type Dispatcher struct {
	l          *slog.Logger
	presenters *PresenterRegistry
	stringType string
}

// NewDispatcher creates a dispatcher. stringType is the engine's native
// string type name, used by the LastValueRaw unquoting rule.
func NewDispatcher(l *slog.Logger, presenters *PresenterRegistry, stringType string) *Dispatcher {
	return &Dispatcher{l: l, presenters: presenters, stringType: stringType}
}

// Format produces the blocks for one embed kind. It never returns an empty
// slice: missing output or values yield a single explanatory text block.
func (d *Dispatcher) Format(res EvaluationResult, kind EmbedKind, seq int) []OutputBlock {
	switch kind {
	case InterpreterOutput:
		return d.textBlocks(res.Interpreter, seq)
	case MergedOutput:
		return d.textBlocks(res.Merged, seq)
	case ConsoleOutput:
		return d.textBlocks(res.Console, seq)
	case ExplicitValue:
		return d.valueBlocks(res.ExplicitValue, seq)
	case LastValue:
		return d.valueBlocks(res.LastValue, seq)
	case LastValueRaw:
		return d.rawBlocks(res.LastValue, seq)
	}
	return d.noValueBlocks(seq)
}

func (d *Dispatcher) textBlocks(text *string, seq int) []OutputBlock {
	content := noOutputMessage
	if text != nil {
		content = strings.TrimSpace(*text)
	}
	return []OutputBlock{{Content: content, MediaKind: MediaKindText, Sequence: seq}}
}

// valueBlocks resolves a value through both chains. The HTML chain and the
// plain-text chain each contribute a block; the plain-text chain always
// produces one via its terminal fallback.
func (d *Dispatcher) valueBlocks(v *TypedValue, seq int) []OutputBlock {
	if v == nil {
		return d.noValueBlocks(seq)
	}

	var blocks []OutputBlock
	if html, ok := d.presenters.ResolveHTML(*v); ok {
		blocks = append(blocks, OutputBlock{Content: html, MediaKind: MediaKindHTML, Sequence: seq})
	}
	text := d.presenters.ResolveText(*v)
	blocks = append(blocks, OutputBlock{Content: text, MediaKind: MediaKindText, Sequence: seq})
	return blocks
}

// rawBlocks resolves the last value through HTML presenters only. Native
// strings have exactly one leading and one trailing character stripped to
// undo the presenter convention of quoting string values; renderings shorter
// than two characters pass through unmodified.
func (d *Dispatcher) rawBlocks(v *TypedValue, seq int) []OutputBlock {
	if v == nil {
		return d.noValueBlocks(seq)
	}

	html, ok := d.presenters.ResolveHTML(*v)
	if !ok {
		d.l.Debug("no HTML presenter matched for raw value", "type", v.Type)
		return []OutputBlock{{Content: noRawValueMessage, MediaKind: MediaKindText, Sequence: seq}}
	}

	if v.Type == d.stringType && len(html) >= 2 {
		html = html[1 : len(html)-1]
	}
	return []OutputBlock{{Content: html, MediaKind: MediaKindHTML, Sequence: seq}}
}

func (d *Dispatcher) noValueBlocks(seq int) []OutputBlock {
	return []OutputBlock{{Content: noValueMessage, MediaKind: MediaKindText, Sequence: seq}}
}
