package schema

import (
	"reflect"

	"github.com/leapstack-labs/das/pkg/core"
)

// Column is a bound column descriptor: a name and a declared type owned by
// exactly one Model. Engines turn a Column into their own expression type.
type Column interface {
	Name() string
	Type() core.DataType
	Model() string
}

// Descriptor is the untyped column descriptor produced by a Builder. Its
// identity is fixed when the owning Model is built.
type Descriptor struct {
	name  string
	typ   core.DataType
	model string
	bound bool
}

// Name returns the column name. It panics with *core.BindingError when the
// descriptor is not bound.
func (d *Descriptor) Name() string {
	d.mustBeBound("read name")
	return d.name
}

// Type returns the declared column type.
func (d *Descriptor) Type() core.DataType {
	d.mustBeBound("read type")
	return d.typ
}

// Model returns the name of the owning schema.
func (d *Descriptor) Model() string {
	d.mustBeBound("read model")
	return d.model
}

// Bound reports whether the descriptor has been bound.
func (d *Descriptor) Bound() bool {
	return d != nil && d.bound
}

// String renders "Model.name".
func (d *Descriptor) String() string {
	if !d.Bound() {
		return "<unbound column>"
	}
	return d.model + "." + d.name
}

func (d *Descriptor) mustBeBound(op string) {
	if !d.Bound() {
		panic(&core.BindingError{Op: op})
	}
}

func (d *Descriptor) bind(model, name string, typ core.DataType) {
	if d.bound {
		panic(&core.BindingError{Op: "rebind " + d.model + "." + d.name})
	}
	d.name = name
	d.typ = typ
	d.model = model
	d.bound = true
}

// Col is a typed column descriptor declared as a struct field of a schema
// type. E is the Go type of the column values and fixes the declared type:
//
//	type Observation struct {
//		ID     schema.Col[string]
//		Status schema.Col[*string]
//		Value  schema.Col[float64] `col:"value"`
//	}
//
// The zero value is unbound; Define binds every Col field once.
type Col[E any] struct {
	d *Descriptor
}

// Name returns the column name. It panics with *core.BindingError when the
// column has not been bound by Define.
func (c Col[E]) Name() string {
	if c.d == nil {
		panic(&core.BindingError{Op: "read name"})
	}
	return c.d.Name()
}

// Type returns the declared column type.
func (c Col[E]) Type() core.DataType {
	if c.d == nil {
		panic(&core.BindingError{Op: "read type"})
	}
	return c.d.Type()
}

// Model returns the name of the owning schema.
func (c Col[E]) Model() string {
	if c.d == nil {
		panic(&core.BindingError{Op: "read model"})
	}
	return c.d.Model()
}

// Bound reports whether the column has been bound.
func (c Col[E]) Bound() bool {
	return c.d.Bound()
}

// Descriptor returns the untyped descriptor behind the column.
func (c Col[E]) Descriptor() *Descriptor {
	return c.d
}

// String renders "Model.name".
func (c Col[E]) String() string {
	return c.d.String()
}

func (c Col[E]) declaredType() (core.DataType, error) {
	return core.TypeFor(reflect.TypeFor[E]())
}

func (c *Col[E]) attach(d *Descriptor) {
	if c.d != nil {
		panic(&core.BindingError{Op: "rebind " + c.d.String()})
	}
	c.d = d
}

// colField is implemented by every Col[E]; Define uses it to recognise
// descriptor fields regardless of E.
type colField interface {
	declaredType() (core.DataType, error)
}

type colAttacher interface {
	attach(d *Descriptor)
}
