package store

import (
	"math"
	"reflect"
)

// NotEqual is the default change predicate for stores.
//
// Maps, slices, funcs, pointers, structs, arrays, chans and interfaces are
// reference-like and always count as changed, so mutating a value in place
// and setting it again still notifies. NaN is equal to NaN. Everything else
// compares with ==.
func NotEqual[T any](a, b T) bool {
	switch x := any(a).(type) {
	case float64:
		y, ok := any(b).(float64)
		if !ok {
			return true
		}
		if math.IsNaN(x) {
			return !math.IsNaN(y)
		}
		return x != y
	case float32:
		y, ok := any(b).(float32)
		if !ok {
			return true
		}
		if x != x {
			return y == y
		}
		return x != y
	}

	av := reflect.ValueOf(any(a))
	bv := reflect.ValueOf(any(b))
	if !av.IsValid() || !bv.IsValid() {
		return av.IsValid() != bv.IsValid()
	}
	if av.Type() != bv.Type() {
		return true
	}

	switch av.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Pointer, reflect.Struct,
		reflect.Array, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return true
	case reflect.Float32, reflect.Float64:
		x, y := av.Float(), bv.Float()
		if math.IsNaN(x) {
			return !math.IsNaN(y)
		}
		return x != y
	}
	return any(a) != any(b)
}
