package bridge

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/oarkflow/convert"
	"github.com/oarkflow/json"

	"github.com/oarkflow/script/errs"
	"github.com/oarkflow/script/interpreter"
)

// FromGo converts a Go value into an interpreter value. Maps and structs
// become objects; slices become array-like objects with a length key.
func FromGo(val any) interpreter.Value {
	if val == nil {
		return interpreter.NULL
	}
	switch v := val.(type) {
	case interpreter.Value:
		return v
	case time.Time:
		return interpreter.NewString(v.Format(time.RFC3339))
	case time.Duration:
		return interpreter.NewString(v.String())
	case []byte:
		return interpreter.NewString(string(v))
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return interpreter.NULL
		}
		return FromGo(v.Elem().Interface())
	case reflect.Bool:
		return interpreter.NewBoolean(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return interpreter.NewInteger(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return interpreter.NewFloat(float64(u))
		}
		return interpreter.NewInteger(int64(u))
	case reflect.Float32, reflect.Float64:
		return interpreter.NewFloat(v.Float())
	case reflect.String:
		return interpreter.NewString(v.String())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return interpreter.NULL
		}
		items := make([]interpreter.Value, v.Len())
		for i := 0; i < v.Len(); i++ {
			items[i] = FromGo(v.Index(i).Interface())
		}
		return ArrayLike(items)
	case reflect.Map:
		if v.IsNil() {
			return interpreter.NULL
		}
		pairs := make(map[string]interpreter.Value, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key, ok := convert.ToString(iter.Key().Interface())
			if !ok {
				continue
			}
			pairs[key] = FromGo(iter.Value().Interface())
		}
		return interpreter.NewObject(pairs)
	case reflect.Struct:
		pairs := make(map[string]interpreter.Value)
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag, ok := field.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			pairs[name] = FromGo(v.Field(i).Interface())
		}
		return interpreter.NewObject(pairs)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return interpreter.UNDEFINED
	}
	return interpreter.NewString(fmt.Sprintf("%v", val))
}

// ArrayLike builds the object form used for sequences: index keys plus length.
func ArrayLike(items []interpreter.Value) *interpreter.Object {
	pairs := make(map[string]interpreter.Value, len(items)+1)
	for i, item := range items {
		pairs[fmt.Sprint(i)] = item
	}
	pairs["length"] = interpreter.NewInteger(int64(len(items)))
	return interpreter.NewObject(pairs)
}

// FromGoMap converts every entry of m.
func FromGoMap(m map[string]any) map[string]interpreter.Value {
	out := make(map[string]interpreter.Value, len(m))
	for k, v := range m {
		out[k] = FromGo(v)
	}
	return out
}

// ToGo converts an interpreter value into plain Go data: nil, int64,
// float64, string, bool and map[string]any. Functions convert to nil and
// are dropped from maps. A circular object is a TypeError.
func ToGo(v interpreter.Value) (any, error) {
	return toGo(v, make(map[*interpreter.Object]bool))
}

func toGo(v interpreter.Value, seen map[*interpreter.Object]bool) (any, error) {
	switch v := v.(type) {
	case nil, *interpreter.Null, *interpreter.Undefined, *interpreter.Function:
		return nil, nil
	case *interpreter.Integer:
		return v.Value, nil
	case *interpreter.Float:
		return v.Value, nil
	case *interpreter.String:
		return v.Value, nil
	case *interpreter.Boolean:
		return v.Value, nil
	case *interpreter.Object:
		if seen[v] {
			return nil, errs.Type(errs.Position{}, "cannot convert a circular structure")
		}
		seen[v] = true
		defer delete(seen, v)
		out := make(map[string]any, len(v.Pairs))
		for key, item := range v.Pairs {
			if _, ok := item.(*interpreter.Function); ok {
				continue
			}
			converted, err := toGo(item, seen)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	}
	return nil, errs.Invariant(errs.Position{}, "unknown value type %s", v.Type())
}

// ToGoMap converts a set of bindings, skipping functions.
func ToGoMap(bindings map[string]interpreter.Value) (map[string]any, error) {
	out := make(map[string]any, len(bindings))
	for name, v := range bindings {
		if _, ok := v.(*interpreter.Function); ok {
			continue
		}
		converted, err := ToGo(v)
		if err != nil {
			return nil, err
		}
		out[name] = converted
	}
	return out, nil
}

// ToJSON encodes v. NaN and infinities cannot be represented and fail.
func ToJSON(v interpreter.Value) ([]byte, error) {
	data, err := ToGo(v)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(data)
	if err != nil {
		return nil, errs.Type(errs.Position{}, "cannot encode value as JSON").WithCause(err)
	}
	return out, nil
}

// FromJSON decodes data. Whole numbers that fit in int64 become integers.
func FromJSON(data []byte) (interpreter.Value, error) {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, errs.Syntax(errs.Position{}, "invalid JSON").WithCause(err)
	}
	return fromJSON(decoded), nil
}

func fromJSON(val any) interpreter.Value {
	switch v := val.(type) {
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return interpreter.NewInteger(int64(v))
		}
		return interpreter.NewFloat(v)
	case []any:
		items := make([]interpreter.Value, len(v))
		for i, item := range v {
			items[i] = fromJSON(item)
		}
		return ArrayLike(items)
	case map[string]any:
		pairs := make(map[string]interpreter.Value, len(v))
		for key, item := range v {
			pairs[key] = fromJSON(item)
		}
		return interpreter.NewObject(pairs)
	}
	return FromGo(val)
}
