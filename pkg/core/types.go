package core

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// =============================================================================
// Semantic types
// =============================================================================

// Kind is the engine-independent category of a column type.
type Kind int

// Supported kinds. KindUnknown is used for engine types without a semantic
// mapping; it never satisfies a declaration.
const (
	KindUnknown Kind = iota
	KindString
	KindInt64
	KindFloat64
	KindBool
	KindDate
	KindTimestamp
	KindList
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// DataType is a declared or observed semantic column type.
type DataType struct {
	Kind     Kind
	Elem     *DataType // element type for KindList
	Nullable bool
	Native   string // engine type name, only set on observed KindUnknown types
}

// Common declared types.
var (
	String    = DataType{Kind: KindString}
	Int64     = DataType{Kind: KindInt64}
	Float64   = DataType{Kind: KindFloat64}
	Bool      = DataType{Kind: KindBool}
	DateType  = DataType{Kind: KindDate}
	Timestamp = DataType{Kind: KindTimestamp}
)

// ListOf returns a list type with the given element type.
func ListOf(elem DataType) DataType {
	e := elem
	return DataType{Kind: KindList, Elem: &e}
}

// UnknownType returns an unmapped engine type.
func UnknownType(native string) DataType {
	return DataType{Kind: KindUnknown, Native: native}
}

// AsNullable returns a copy of t that admits nulls.
func (t DataType) AsNullable() DataType {
	t.Nullable = true
	return t
}

// Required returns a copy of t that rejects nulls.
func (t DataType) Required() DataType {
	t.Nullable = false
	return t
}

// String renders the type, e.g. "list<string>" or "float64?".
func (t DataType) String() string {
	var s string
	switch t.Kind {
	case KindList:
		elem := "unknown"
		if t.Elem != nil {
			elem = t.Elem.String()
		}
		s = "list<" + elem + ">"
	case KindUnknown:
		if t.Native != "" {
			s = "unknown(" + t.Native + ")"
		} else {
			s = "unknown"
		}
	default:
		s = t.Kind.String()
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

// Equal reports whether t and o describe the same type, ignoring nullability.
func (t DataType) Equal(o DataType) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == KindUnknown {
		return false
	}
	if t.Kind == KindList {
		if t.Elem == nil || o.Elem == nil {
			return t.Elem == o.Elem
		}
		return t.Elem.Equal(*o.Elem)
	}
	return true
}

// Compatible reports whether an observed type satisfies a declared type.
// Nullability is not part of the container shape and is ignored. With widen
// set, integer columns satisfy float declarations, including list elements.
func Compatible(declared, observed DataType, widen bool) bool {
	if declared.Equal(observed) {
		return true
	}
	if !widen {
		return false
	}
	switch {
	case declared.Kind == KindFloat64 && observed.Kind == KindInt64:
		return true
	case declared.Kind == KindList && observed.Kind == KindList:
		if declared.Elem == nil || observed.Elem == nil {
			return false
		}
		return Compatible(*declared.Elem, *observed.Elem, widen)
	}
	return false
}

// ParseType parses the notation produced by DataType.String. It is used by
// schema files and configuration.
func ParseType(s string) (DataType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	nullable := false
	if strings.HasSuffix(s, "?") {
		nullable = true
		s = strings.TrimSuffix(s, "?")
	}

	var t DataType
	switch {
	case strings.HasPrefix(s, "list<") && strings.HasSuffix(s, ">"):
		elem, err := ParseType(s[len("list<") : len(s)-1])
		if err != nil {
			return DataType{}, err
		}
		t = ListOf(elem)
	case s == "string", s == "str", s == "varchar", s == "text":
		t = String
	case s == "int64", s == "int", s == "integer", s == "bigint":
		t = Int64
	case s == "float64", s == "float", s == "double":
		t = Float64
	case s == "bool", s == "boolean":
		t = Bool
	case s == "date":
		t = DateType
	case s == "timestamp", s == "datetime":
		t = Timestamp
	default:
		return DataType{}, fmt.Errorf("unknown column type %q", s)
	}
	t.Nullable = nullable
	return t, nil
}

// =============================================================================
// Go type mapping
// =============================================================================

// Date is a calendar date without time of day. It is the Go value for
// KindDate columns in materialized records.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

var (
	timeType = reflect.TypeOf(time.Time{})
	dateType = reflect.TypeOf(Date{})
)

// TypeFor maps a Go type to its semantic column type. Pointer types are
// nullable.
func TypeFor(rt reflect.Type) (DataType, error) {
	if rt == nil {
		return DataType{}, fmt.Errorf("nil type has no column mapping")
	}
	switch rt {
	case timeType:
		return Timestamp, nil
	case dateType:
		return DateType, nil
	}
	switch rt.Kind() {
	case reflect.Pointer:
		inner, err := TypeFor(rt.Elem())
		if err != nil {
			return DataType{}, err
		}
		return inner.AsNullable(), nil
	case reflect.String:
		return String, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int64, nil
	case reflect.Float32, reflect.Float64:
		return Float64, nil
	case reflect.Bool:
		return Bool, nil
	case reflect.Slice, reflect.Array:
		elem, err := TypeFor(rt.Elem())
		if err != nil {
			return DataType{}, err
		}
		return ListOf(elem), nil
	}
	return DataType{}, fmt.Errorf("go type %s has no column mapping", rt)
}
