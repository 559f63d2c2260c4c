package spring

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// checkType reports why t cannot be animated, or nil if it can.
func checkType(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("nil type")
	}
	if t == timeType {
		return nil
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	case reflect.Slice, reflect.Array:
		if err := checkType(t.Elem()); err != nil {
			return fmt.Errorf("%s: %w", t, err)
		}
		return nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("%s: map keys must be strings", t)
		}
		if err := checkType(t.Elem()); err != nil {
			return fmt.Errorf("%s: %w", t, err)
		}
		return nil
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				return fmt.Errorf("%s: unexported field %s", t, f.Name)
			}
			if err := checkType(f.Type); err != nil {
				return fmt.Errorf("%s.%s: %w", t, f.Name, err)
			}
		}
		return nil
	}
	return fmt.Errorf("cannot spring %s values", t)
}

// flatten appends the numeric leaves of v to leaves and writes a
// description of its structure to shape. Two values with equal shapes have
// leaves that correspond one to one. Times flatten to milliseconds.
func flatten(v reflect.Value, leaves []float64, shape *strings.Builder) []float64 {
	if v.Type() == timeType {
		shape.WriteByte('t')
		t := v.Interface().(time.Time)
		return append(leaves, float64(t.UnixNano())/float64(time.Millisecond))
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		shape.WriteByte('n')
		return append(leaves, v.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		shape.WriteByte('n')
		return append(leaves, float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		shape.WriteByte('n')
		return append(leaves, float64(v.Uint()))
	case reflect.Slice, reflect.Array:
		shape.WriteString("[" + strconv.Itoa(v.Len()))
		for i := 0; i < v.Len(); i++ {
			leaves = flatten(v.Index(i), leaves, shape)
		}
		shape.WriteByte(']')
		return leaves
	case reflect.Map:
		shape.WriteByte('{')
		for _, k := range sortedKeys(v) {
			shape.WriteString(strconv.Quote(k.String()) + ":")
			leaves = flatten(v.MapIndex(k), leaves, shape)
		}
		shape.WriteByte('}')
		return leaves
	case reflect.Struct:
		shape.WriteByte('(')
		for i := 0; i < v.NumField(); i++ {
			leaves = flatten(v.Field(i), leaves, shape)
		}
		shape.WriteByte(')')
		return leaves
	}
	panic("spring: unsupported kind " + v.Kind().String())
}

// build creates a value shaped like template from leaves and returns it with
// the unconsumed leaves.
func build(template reflect.Value, leaves []float64) (reflect.Value, []float64) {
	t := template.Type()
	if t == timeType {
		base := template.Interface().(time.Time)
		ns := int64(math.Round(leaves[0] * float64(time.Millisecond)))
		return reflect.ValueOf(time.Unix(0, ns).In(base.Location())), leaves[1:]
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		out.SetFloat(leaves[0])
		return out, leaves[1:]
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.SetInt(int64(math.Round(leaves[0])))
		return out, leaves[1:]
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out.SetUint(uint64(math.Max(0, math.Round(leaves[0]))))
		return out, leaves[1:]
	case reflect.Slice:
		out.Set(reflect.MakeSlice(t, template.Len(), template.Len()))
		fallthrough
	case reflect.Array:
		for i := 0; i < template.Len(); i++ {
			var elem reflect.Value
			elem, leaves = build(template.Index(i), leaves)
			out.Index(i).Set(elem)
		}
		return out, leaves
	case reflect.Map:
		out.Set(reflect.MakeMapWithSize(t, template.Len()))
		for _, k := range sortedKeys(template) {
			var elem reflect.Value
			elem, leaves = build(template.MapIndex(k), leaves)
			out.SetMapIndex(k, elem)
		}
		return out, leaves
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			var field reflect.Value
			field, leaves = build(template.Field(i), leaves)
			out.Field(i).Set(field)
		}
		return out, leaves
	}
	panic("spring: unsupported kind " + t.Kind().String())
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// encode flattens v and returns its leaves and shape.
func encode[T any](v T) ([]float64, string) {
	var shape strings.Builder
	leaves := flatten(reflect.ValueOf(&v).Elem(), nil, &shape)
	return leaves, shape.String()
}

// decode rebuilds a T shaped like template from leaves.
func decode[T any](template T, leaves []float64) T {
	out, _ := build(reflect.ValueOf(&template).Elem(), leaves)
	return out.Interface().(T)
}
