package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Jeffail/gabs/v2"
)

// Depth ceilings for recursive transform resolution. Transform chains can be
// mutually recursive, so resolution must bottom out instead of spinning.
const (
	textDepthLimit = 20
	htmlDepthLimit = 10
)

// TypeGuard decides whether a presenter entry applies to a runtime type name.
type TypeGuard func(typeName string) bool

// PresenterFn renders a value directly. Returning false means "no match" and
// resolution continues with the next entry.
type PresenterFn func(v TypedValue) (string, bool)

// TransformFn converts a value into another value that is fed back through
// the same chain. Returning false means "no match".
type TransformFn func(v TypedValue) (TypedValue, bool)

// GuardType builds a TypeGuard matching any of the given type names.
func GuardType(names ...string) TypeGuard {
	return func(typeName string) bool {
		for _, n := range names {
			if n == typeName {
				return true
			}
		}
		return false
	}
}

// GuardAny matches every runtime type.
func GuardAny() TypeGuard {
	return func(string) bool { return true }
}

type presenterEntry struct {
	guard     TypeGuard
	present   PresenterFn
	transform TransformFn
}

// PresenterRegistry holds the two presenter sub-chains (HTML-capable and
// plain-text). Entries are consulted most-recently-registered-first, so later
// registrations override defaults without removing them.
//
// Registration replaces the chain slice under a mutex (copy-on-write), so a
// resolve that is already walking a snapshot never observes a partial chain.
type PresenterRegistry struct {
	l  *slog.Logger
	mu sync.Mutex

	text []presenterEntry
	html []presenterEntry
}

func NewPresenterRegistry(l *slog.Logger) *PresenterRegistry {
	return &PresenterRegistry{l: l}
}

// RegisterPresenter prepends a direct presenter to the selected chain.
func (r *PresenterRegistry) RegisterPresenter(guard TypeGuard, fn PresenterFn, targetsHTML bool) {
	r.prepend(presenterEntry{guard: guard, present: fn}, targetsHTML)
}

// RegisterTransform prepends a transform rule to the selected chain.
func (r *PresenterRegistry) RegisterTransform(guard TypeGuard, fn TransformFn, targetsHTML bool) {
	r.prepend(presenterEntry{guard: guard, transform: fn}, targetsHTML)
}

func (r *PresenterRegistry) prepend(e presenterEntry, targetsHTML bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if targetsHTML {
		r.html = append([]presenterEntry{e}, r.html...)
	} else {
		r.text = append([]presenterEntry{e}, r.text...)
	}
}

func (r *PresenterRegistry) snapshot(targetsHTML bool) []presenterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if targetsHTML {
		return r.html
	}
	return r.text
}

// ResolveText renders v through the plain-text chain. It always produces a
// rendering: if the chain is exhausted, the generic structural fallback is
// used, and the fallback itself never panics outward.
func (r *PresenterRegistry) ResolveText(v TypedValue) string {
	if s, ok := r.resolve(r.snapshot(false), v, 0, false); ok {
		return s
	}
	return r.fallbackRender(v)
}

// ResolveHTML renders v through the HTML-capable chain. Unlike the plain-text
// chain there is no terminal fallback; false means no representation exists.
func (r *PresenterRegistry) ResolveHTML(v TypedValue) (string, bool) {
	return r.resolve(r.snapshot(true), v, 0, true)
}

// resolve walks chain entries most-recently-registered-first. Direct
// presenters win on first success; transforms recurse through the same chain
// with depth+1. Panicking entries count as "no match", never as fatal errors.
func (r *PresenterRegistry) resolve(entries []presenterEntry, v TypedValue, depth int, targetsHTML bool) (string, bool) {
	if targetsHTML && depth > htmlDepthLimit {
		return "", false
	}
	if !targetsHTML && depth > textDepthLimit {
		return r.fallbackRender(v), true
	}

	for _, e := range entries {
		if !e.guard(v.Type) {
			continue
		}
		if e.present != nil {
			if s, ok := r.invokePresenter(e.present, v); ok {
				return s, true
			}
			continue
		}
		if next, ok := r.invokeTransform(e.transform, v); ok {
			if s, ok := r.resolve(entries, next, depth+1, targetsHTML); ok {
				return s, true
			}
		}
	}
	return "", false
}

func (r *PresenterRegistry) invokePresenter(fn PresenterFn, v TypedValue) (s string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.l.Debug("presenter panicked, treated as no match", "type", v.Type, "panic", rec)
			s, ok = "", false
		}
	}()
	return fn(v)
}

func (r *PresenterRegistry) invokeTransform(fn TransformFn, v TypedValue) (next TypedValue, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.l.Debug("transform panicked, treated as no match", "type", v.Type, "panic", rec)
			next, ok = TypedValue{}, false
		}
	}()
	return fn(v)
}

// fallbackRender is the terminal plain-text rendering: structured values are
// pretty-printed as JSON, everything else goes through %v.
func (r *PresenterRegistry) fallbackRender(v TypedValue) string {
	return renderSafely(func() string {
		switch val := v.Value.(type) {
		case map[string]any:
			return gabs.Wrap(val).StringIndent("", "  ")
		case []any:
			return gabs.Wrap(val).StringIndent("", "  ")
		default:
			return fmt.Sprintf("%v", v.Value)
		}
	})
}

// renderSafely runs the terminal rendering. If it panics, the panic's own
// description becomes the rendering, so resolution still returns a string.
func renderSafely(render func() string) (s string) {
	defer func() {
		if rec := recover(); rec != nil {
			s = fmt.Sprintf("%v", rec)
		}
	}()
	return render()
}

// RegisterDefaultPresenters installs the baseline plain-text rules: maps and
// lists render as indented JSON. Hosts typically register their own rules on
// top of these.
func RegisterDefaultPresenters(r *PresenterRegistry) {
	r.RegisterPresenter(GuardType("map", "list"), func(v TypedValue) (string, bool) {
		switch v.Value.(type) {
		case map[string]any, []any:
			return gabs.Wrap(v.Value).StringIndent("", "  "), true
		}
		return "", false
	}, false)
}
