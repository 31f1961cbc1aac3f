package core

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

// numberLike matches json.Number and compatible decoder number types.
type numberLike interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

// Convert normalizes a Go record value into the canonical value for t:
// string, int64, float64, bool, Date, time.Time or []any. A nil input yields
// nil; callers decide whether the column admits nulls.
//
// Integer values convert into float columns. Floats convert into integer
// columns only when they are integral, which keeps decoded JSON numbers usable.
func Convert(v any, t DataType) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		return Convert(rv.Elem().Interface(), t)
	}

	switch t.Kind {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case KindInt64:
		if n, ok := v.(numberLike); ok {
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
			f, err := n.Float64()
			if err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
				return int64(f), nil
			}
			break
		}
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := rv.Uint()
			if u > math.MaxInt64 {
				return nil, fmt.Errorf("value %d overflows int64", u)
			}
			return int64(u), nil
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<63 {
				return int64(f), nil
			}
		}
	case KindFloat64:
		if n, ok := v.(numberLike); ok {
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
			break
		}
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), nil
		}
	case KindBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case KindDate:
		switch d := v.(type) {
		case Date:
			return d, nil
		case time.Time:
			return DateOf(d), nil
		case string:
			if tm, err := time.Parse(time.DateOnly, d); err == nil {
				return DateOf(tm), nil
			}
		}
	case KindTimestamp:
		switch ts := v.(type) {
		case time.Time:
			return ts.UTC(), nil
		case Date:
			return ts.Time(), nil
		case string:
			if tm, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				return tm.UTC(), nil
			}
		}
	case KindList:
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			break
		}
		if t.Elem == nil {
			return nil, fmt.Errorf("list type without element type")
		}
		out := make([]any, rv.Len())
		for i := range out {
			elem := rv.Index(i).Interface()
			if elem == nil && !t.Elem.Nullable {
				return nil, fmt.Errorf("element %d: null in non-nullable %s", i, t.Elem)
			}
			ev, err := Convert(elem, *t.Elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot use %T value as %s", v, t)
}

// DescribeValue names the semantic type of a raw Go value for mismatch
// reports.
func DescribeValue(v any) string {
	if v == nil {
		return "null"
	}
	if n, ok := v.(numberLike); ok {
		if _, err := n.Int64(); err == nil {
			return Int64.String()
		}
		return Float64.String()
	}
	if t, err := TypeFor(reflect.TypeOf(v)); err == nil {
		return t.Required().String()
	}
	return fmt.Sprintf("%T", v)
}
