package risor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/risor-io/risor/object"
)

// goToRisor converts a single Go value to a Risor-compatible type.
// Raw Go funcs and nested maps containing funcs would panic in the VM
// because object.AsObjects doesn't handle reflect.Func.
func goToRisor(name string, v any) any {
	if v == nil {
		return nil
	}

	// Already a Risor object? Pass through.
	if _, ok := v.(object.Object); ok {
		return v
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Func:
		return wrapGoFunc(name, v)

	case reflect.Map:
		// Maps with function values become modules so snippets can use
		// `name.fn(...)` syntax; pure data maps convert recursively.
		if m, ok := v.(map[string]any); ok {
			for _, val := range m {
				if val != nil && reflect.TypeOf(val).Kind() == reflect.Func {
					return mapToModule(name, m)
				}
			}
			converted := make(map[string]any, len(m))
			for k, val := range m {
				converted[k] = goToRisor(k, val)
			}
			return converted
		}
		return v

	default:
		// Primitive types (string, int, float, bool, etc.); Risor handles
		// these via FromGoType.
		return v
	}
}

// wrapGoFunc wraps an arbitrary Go function as a Risor *object.Builtin.
// The wrapper converts Risor Object args to Go values, calls the function
// via reflection, and converts the return value back.
func wrapGoFunc(name string, fn any) *object.Builtin {
	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()

	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		goArgs := make([]reflect.Value, len(args))
		for i, arg := range args {
			goVal := objectToGo(arg)
			switch {
			case i < fnType.NumIn() && !(fnType.IsVariadic() && i >= fnType.NumIn()-1):
				goArgs[i] = convertToExpectedType(goVal, fnType.In(i))
			case fnType.IsVariadic() && i >= fnType.NumIn()-1:
				elemType := fnType.In(fnType.NumIn() - 1).Elem()
				goArgs[i] = convertToExpectedType(goVal, elemType)
			default:
				goArgs[i] = reflect.ValueOf(goVal)
			}
		}

		results := fnValue.Call(goArgs)
		if len(results) == 0 {
			return object.Nil
		}

		// A trailing error return becomes a Risor error object.
		lastIdx := len(results) - 1
		if fnType.Out(lastIdx).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			if !results[lastIdx].IsNil() {
				return object.NewError(results[lastIdx].Interface().(error))
			}
			if len(results) > 1 {
				return goValueToObject(results[0].Interface())
			}
			return object.Nil
		}

		return goValueToObject(results[0].Interface())
	})
}

// convertToExpectedType converts a Go value to the expected reflect.Type.
func convertToExpectedType(val any, expected reflect.Type) reflect.Value {
	if val == nil {
		return reflect.Zero(expected)
	}
	actual := reflect.ValueOf(val)
	if actual.Type().AssignableTo(expected) {
		return actual
	}
	if actual.Type().ConvertibleTo(expected) {
		return actual.Convert(expected)
	}
	// Best effort
	return actual
}

// goValueToObject converts a Go value to a Risor object.Object.
func goValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	obj := object.FromGoType(v)
	if obj == nil {
		return object.Nil
	}
	return obj
}

// mapToModule converts a map[string]any (with function values) to a Risor
// module so its functions are callable with dot syntax.
func mapToModule(name string, m map[string]any) *object.Module {
	contents := make(map[string]object.Object, len(m))
	for k, v := range m {
		if v == nil {
			contents[k] = object.Nil
			continue
		}
		if reflect.ValueOf(v).Kind() == reflect.Func {
			contents[k] = wrapGoFunc(fmt.Sprintf("%s.%s", name, k), v)
		} else {
			contents[k] = goValueToObject(v)
		}
	}
	return object.NewBuiltinsModule(name, contents)
}

// objectToGo recursively converts a Risor object.Object to a native Go value.
func objectToGo(obj object.Object) any {
	if obj == nil {
		return nil
	}

	switch o := obj.(type) {
	case *object.Map:
		goMap := make(map[string]any)
		for k, v := range o.Value() {
			goMap[k] = objectToGo(v)
		}
		return goMap
	case *object.List:
		items := o.Value()
		goSlice := make([]any, len(items))
		for i, v := range items {
			goSlice[i] = objectToGo(v)
		}
		return goSlice
	case *object.NilType:
		return nil
	default:
		// For String, Int, Float, Bool, etc. Interface() returns the
		// native Go value.
		return obj.Interface()
	}
}
