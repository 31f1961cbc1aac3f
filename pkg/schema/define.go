package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"
)

// Typed is a Model declared by a Go struct type. Cols holds the struct with
// every Col field bound, so columns are referenced by field, not by string.
type Typed[T any] struct {
	*Model
	Cols T
}

// Dynamic pairs a model built at run time, such as one loaded from a schema
// file, with an empty column struct. Columns are referenced by name.
func Dynamic(m *Model) *Typed[struct{}] {
	return &Typed[struct{}]{Model: m}
}

// Define declares a Model from the struct type T. Each exported field of type
// Col[E] becomes a column in field order. The column name comes from the
// `col` struct tag, or the snake_case field name; `col:"-"` skips a field.
// Embedded structs contribute their columns at the point of embedding, which
// lets schemas extend one another.
//
// The schema name is T's type name. Binding happens exactly once per call;
// keep the returned value in a package-level variable.
func Define[T any](opts ...Option) (*Typed[T], error) {
	rt := reflect.TypeFor[T]()
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema type %s is not a struct", rt)
	}

	t := &Typed[T]{}
	b := NewBuilder(rt.Name(), opts...)
	if err := collect(b, reflect.ValueOf(&t.Cols).Elem(), ""); err != nil {
		return nil, err
	}
	m, err := b.Build()
	if err != nil {
		return nil, err
	}
	t.Model = m
	return t, nil
}

// MustDefine is Define that panics on an invalid declaration.
func MustDefine[T any](opts ...Option) *Typed[T] {
	t, err := Define[T](opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// collect walks struct fields depth first and registers every Col field.
func collect(b *Builder, v reflect.Value, path string) error {
	rt := v.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		fv := v.Field(i)
		tag, hasTag := sf.Tag.Lookup("col")
		if tag == "-" || !sf.IsExported() {
			continue
		}

		if cf, ok := fv.Interface().(colField); ok {
			typ, err := cf.declaredType()
			if err != nil {
				return fmt.Errorf("field %s%s: %w", path, sf.Name, err)
			}
			name := snakeCase(sf.Name)
			if hasTag && tag != "" {
				name = tag
			}
			d := &Descriptor{}
			b.add(name, typ, d)
			fv.Addr().Interface().(colAttacher).attach(d)
			continue
		}

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			if err := collect(b, fv, path+sf.Name+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

// snakeCase converts a Go field name to a column name:
// ValueQuantityValue -> value_quantity_value, ID -> id, HTTPStatus -> http_status.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
