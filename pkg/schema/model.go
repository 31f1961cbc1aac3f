package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/das/pkg/core"
)

// Model is an immutable, ordered column schema. It is safe to share between
// goroutines and wrappers.
type Model struct {
	name  string
	cols  []*Descriptor
	index map[string]int
	widen bool
}

// Option configures a Model at definition time.
type Option func(*Model)

// WithWidening makes validation accept integer columns where float columns
// are declared. Models are strict by default.
func WithWidening() Option {
	return func(m *Model) { m.widen = true }
}

// Name returns the schema name.
func (m *Model) Name() string { return m.name }

// Len returns the number of declared columns.
func (m *Model) Len() int { return len(m.cols) }

// Widening reports whether int-for-float widening is accepted.
func (m *Model) Widening() bool { return m.widen }

// Fields returns the declared columns in declaration order.
func (m *Model) Fields() []core.Field {
	out := make([]core.Field, len(m.cols))
	for i, c := range m.cols {
		out[i] = core.Field{Name: c.name, Type: c.typ}
	}
	return out
}

// Names returns the declared column names in order.
func (m *Model) Names() []string {
	out := make([]string, len(m.cols))
	for i, c := range m.cols {
		out[i] = c.name
	}
	return out
}

// Columns returns the bound descriptors in order.
func (m *Model) Columns() []*Descriptor {
	out := make([]*Descriptor, len(m.cols))
	copy(out, m.cols)
	return out
}

// Column looks up a descriptor by name.
func (m *Model) Column(name string) (*Descriptor, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.cols[i], true
}

// MustColumn looks up a descriptor by name and panics if it is not declared.
func (m *Model) MustColumn(name string) *Descriptor {
	c, ok := m.Column(name)
	if !ok {
		panic(fmt.Sprintf("schema %s has no column %q", m.name, name))
	}
	return c
}

// Owns reports whether col is one of this model's descriptors.
func (m *Model) Owns(col Column) bool {
	c, ok := m.Column(col.Name())
	return ok && c.Model() == col.Model()
}

// String renders "Name(a: string, b: int64)".
func (m *Model) String() string {
	return m.name + core.FormatFields(m.Fields())
}

// Check compares an observed schema with the declaration. It returns one
// mismatch per missing or incompatible declared column, in declaration order.
// Columns that are observed but not declared are tolerated.
func (m *Model) Check(observed []core.Field) []core.Mismatch {
	var out []core.Mismatch
	for _, c := range m.cols {
		got, ok := core.LookupField(observed, c.name)
		if !ok {
			out = append(out, core.Mismatch{
				Kind:     core.MismatchMissing,
				Column:   c.name,
				Expected: c.typ.String(),
				Observed: "absent",
			})
			continue
		}
		if !core.Compatible(c.typ, got.Type, m.widen) {
			out = append(out, core.Mismatch{
				Kind:     core.MismatchType,
				Column:   c.name,
				Expected: c.typ.String(),
				Observed: got.Type.String(),
			})
		}
	}
	return out
}

// Mapping is an explicit type mapping supplied when constructing from
// records. Keyed overrides types by column name; Positional lists one type
// per declared column in declaration order. At most one may be set.
type Mapping struct {
	Keyed      map[string]core.DataType
	Positional []core.DataType
}

// IsZero reports whether no explicit mapping was given.
func (mp Mapping) IsZero() bool {
	return mp.Keyed == nil && mp.Positional == nil
}

// Resolve returns the column types used to build a native object from
// records. Without a mapping the declared types are used unchanged.
func (m *Model) Resolve(mp Mapping) ([]core.Field, error) {
	fields := m.Fields()
	switch {
	case mp.Keyed != nil && mp.Positional != nil:
		return nil, &core.RecordError{Model: m.name, Reason: "both keyed and positional type mappings given"}
	case mp.Positional != nil:
		if len(mp.Positional) != len(fields) {
			return nil, &core.RecordError{
				Model:  m.name,
				Reason: fmt.Sprintf("positional type mapping has %d types, schema declares %d columns", len(mp.Positional), len(fields)),
			}
		}
		for i, t := range mp.Positional {
			fields[i].Type = t
		}
	case mp.Keyed != nil:
		var unknown []string
		for name := range mp.Keyed {
			if _, ok := m.index[name]; !ok {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			return nil, &core.RecordError{
				Model:  m.name,
				Reason: "type mapping names undeclared columns: " + strings.Join(sortedCopy(unknown), ", "),
			}
		}
		for i := range fields {
			if t, ok := mp.Keyed[fields[i].Name]; ok {
				fields[i].Type = t
			}
		}
	}
	return fields, nil
}

// =============================================================================
// Builder
// =============================================================================

// Builder collects column declarations for a Model. Descriptors handed out by
// Column are bound when Build succeeds.
type Builder struct {
	name string
	opts []Option
	cols []*Descriptor
	defs []core.Field
	errs []error
}

// NewBuilder starts a schema declaration.
func NewBuilder(name string, opts ...Option) *Builder {
	return &Builder{name: name, opts: opts}
}

// Column declares the next column and returns its descriptor.
func (b *Builder) Column(name string, typ core.DataType) *Descriptor {
	d := &Descriptor{}
	b.add(name, typ, d)
	return d
}

// Columns declares several columns at once.
func (b *Builder) Columns(fields ...core.Field) *Builder {
	for _, f := range fields {
		b.Column(f.Name, f.Type)
	}
	return b
}

func (b *Builder) add(name string, typ core.DataType, d *Descriptor) {
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("column %d has an empty name", len(b.defs)))
	}
	if typ.Kind == core.KindUnknown {
		b.errs = append(b.errs, fmt.Errorf("column %q has no declared type", name))
	}
	for _, f := range b.defs {
		if f.Name == name {
			b.errs = append(b.errs, fmt.Errorf("duplicate column %q", name))
			break
		}
	}
	b.defs = append(b.defs, core.Field{Name: name, Type: typ})
	b.cols = append(b.cols, d)
}

// Build validates the declaration and binds every descriptor.
func (b *Builder) Build() (*Model, error) {
	if b.name == "" {
		b.errs = append(b.errs, errors.New("schema name is empty"))
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("invalid schema %s: %w", b.name, errors.Join(b.errs...))
	}

	m := &Model{
		name:  b.name,
		cols:  b.cols,
		index: make(map[string]int, len(b.cols)),
	}
	for _, opt := range b.opts {
		opt(m)
	}
	for i, d := range b.cols {
		d.bind(b.name, b.defs[i].Name, b.defs[i].Type)
		m.index[d.name] = i
	}
	return m, nil
}

// MustBuild is Build that panics on an invalid declaration.
func (b *Builder) MustBuild() *Model {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
