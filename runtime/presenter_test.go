package runtime

import (
	"errors"
	"strings"
	"testing"
)

func TestMostRecentRegistrationWins(t *testing.T) {
	r := NewPresenterRegistry(testLogger())

	r.RegisterPresenter(GuardType("int"), func(v TypedValue) (string, bool) {
		return "first", true
	}, false)
	r.RegisterPresenter(GuardType("int"), func(v TypedValue) (string, bool) {
		return "second", true
	}, false)

	if got := r.ResolveText(TypedValue{Value: 1, Type: "int"}); got != "second" {
		t.Errorf("ResolveText = %q, expected the later registration to win", got)
	}
}

func TestPresenterNoMatchFallsThrough(t *testing.T) {
	r := NewPresenterRegistry(testLogger())

	r.RegisterPresenter(GuardType("int"), func(v TypedValue) (string, bool) {
		return "matched", true
	}, false)
	// Registered later, so consulted first, but declines every value.
	r.RegisterPresenter(GuardType("int"), func(v TypedValue) (string, bool) {
		return "", false
	}, false)

	if got := r.ResolveText(TypedValue{Value: 1, Type: "int"}); got != "matched" {
		t.Errorf("ResolveText = %q, expected fall-through to earlier entry", got)
	}
}

func TestPanickingPresenterIsTreatedAsNoMatch(t *testing.T) {
	r := NewPresenterRegistry(testLogger())

	r.RegisterPresenter(GuardType("int"), func(v TypedValue) (string, bool) {
		return "survivor", true
	}, false)
	r.RegisterPresenter(GuardType("int"), func(v TypedValue) (string, bool) {
		panic("misbehaving presenter")
	}, false)

	if got := r.ResolveText(TypedValue{Value: 1, Type: "int"}); got != "survivor" {
		t.Errorf("ResolveText = %q, expected panicking entry to be skipped", got)
	}
}

func TestSelfTransformTerminatesAtDepthCeiling(t *testing.T) {
	r := NewPresenterRegistry(testLogger())

	textCalls := 0
	r.RegisterTransform(GuardType("loop"), func(v TypedValue) (TypedValue, bool) {
		textCalls++
		return v, true
	}, false)

	got := r.ResolveText(TypedValue{Value: "spin", Type: "loop"})
	if got != "spin" {
		t.Errorf("ResolveText = %q, expected generic fallback after ceiling", got)
	}
	if textCalls > textDepthLimit+1 {
		t.Errorf("transform invoked %d times, expected at most %d", textCalls, textDepthLimit+1)
	}

	htmlCalls := 0
	r.RegisterTransform(GuardType("loop"), func(v TypedValue) (TypedValue, bool) {
		htmlCalls++
		return v, true
	}, true)

	if _, ok := r.ResolveHTML(TypedValue{Value: "spin", Type: "loop"}); ok {
		t.Error("ResolveHTML should return no representation at the ceiling")
	}
	if htmlCalls > htmlDepthLimit+1 {
		t.Errorf("transform invoked %d times, expected at most %d", htmlCalls, htmlDepthLimit+1)
	}
}

func TestTransformDelegatesToRicherPresenter(t *testing.T) {
	r := NewPresenterRegistry(testLogger())

	r.RegisterPresenter(GuardType("string"), func(v TypedValue) (string, bool) {
		return "str:" + v.Value.(string), true
	}, false)
	r.RegisterTransform(GuardType("temperature"), func(v TypedValue) (TypedValue, bool) {
		return TypedValue{Value: "21C", Type: "string"}, true
	}, false)

	got := r.ResolveText(TypedValue{Value: 21, Type: "temperature"})
	if got != "str:21C" {
		t.Errorf("ResolveText = %q, expected transform to reach string presenter", got)
	}
}

func TestFallbackRendering(t *testing.T) {
	r := NewPresenterRegistry(testLogger())

	testCases := []struct {
		name     string
		value    TypedValue
		contains string
	}{
		{"int via %v", TypedValue{Value: 42, Type: "int"}, "42"},
		{"map via JSON", TypedValue{Value: map[string]any{"a": float64(1)}, Type: "map"}, `"a"`},
		{"list via JSON", TypedValue{Value: []any{"x", "y"}, Type: "list"}, `"x"`},
		{"nil", TypedValue{Value: nil, Type: "nil"}, "<nil>"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.ResolveText(tc.value)
			if !strings.Contains(got, tc.contains) {
				t.Errorf("ResolveText = %q, expected it to contain %q", got, tc.contains)
			}
		})
	}
}

func TestRenderSafelyUsesPanicDescription(t *testing.T) {
	errRender := errors.New("broken renderer")

	testCases := []struct {
		name   string
		render func() string
		want   string
	}{
		{"plain result", func() string { return "fine" }, "fine"},
		{"string panic", func() string { panic("unrenderable value") }, "unrenderable value"},
		{"error panic", func() string { panic(errRender) }, "broken renderer"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := renderSafely(tc.render); got != tc.want {
				t.Errorf("renderSafely = %q, expected %q", got, tc.want)
			}
		})
	}
}

func TestHTMLChainExhaustionReturnsNoRepresentation(t *testing.T) {
	r := NewPresenterRegistry(testLogger())

	if _, ok := r.ResolveHTML(TypedValue{Value: 1, Type: "int"}); ok {
		t.Error("empty HTML chain should yield no representation")
	}
}

func TestDefaultPresentersRenderStructuredValues(t *testing.T) {
	r := NewPresenterRegistry(testLogger())
	RegisterDefaultPresenters(r)

	got := r.ResolveText(TypedValue{Value: map[string]any{"k": "v"}, Type: "map"})
	if !strings.Contains(got, `"k"`) || !strings.Contains(got, `"v"`) {
		t.Errorf("ResolveText = %q, expected JSON rendering", got)
	}
}
