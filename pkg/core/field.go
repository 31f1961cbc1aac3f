package core

import "strings"

// Field is a named column type, either declared by a schema or observed on an
// engine object.
type Field struct {
	Name   string
	Type   DataType
	Native string // engine type name as reported, empty for declared fields
}

// String renders "name: type".
func (f Field) String() string {
	return f.Name + ": " + f.Type.String()
}

// Record is one row of key-value input or materialized output.
type Record = map[string]any

// FieldNames returns the names of fields in order.
func FieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// FormatFields renders fields as "(a: string, b: int64)".
func FormatFields(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// LookupField finds a field by name.
func LookupField(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
