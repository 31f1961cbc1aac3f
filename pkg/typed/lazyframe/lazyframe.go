// Package lazyframe provides typed lazy frames: a lazy.Frame paired with the
// schema that produced or validated it.
//
//	var Observations = schema.MustDefine[Observation]()
//
//	f, err := lazyframe.FromRecords(sess, Observations, records)
//	high := f.Filter(f.Col(f.Cols().Value).Gt(lazy.Lit(90.0)))
//
// Every promoted lazy.Frame method returns a plain *lazy.Frame. Re-wrapping
// a derived frame is an explicit FromRawSource call.
package lazyframe

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/lazy"
	"github.com/leapstack-labs/das/pkg/schema"
	"github.com/leapstack-labs/das/pkg/typed"
)

// Frame is a typed lazy frame for the schema struct T.
type Frame[T any] struct {
	*lazy.Frame
	model *schema.Typed[T]
}

// FromRawSource wraps an existing lazy frame. With validate set, the frame's
// statically inferred schema is checked against model and a
// *core.SchemaError lists every mismatch on failure. No data is evaluated.
func FromRawSource[T any](model *schema.Typed[T], frame *lazy.Frame, validate bool, opts ...typed.GateOption) (*Frame[T], error) {
	gate := typed.NewGate(model.Model, typed.EngineLazy, gateOptions(frame.Session(), opts)...)
	err := gate.Admit(context.Background(), validate, func(context.Context) ([]core.Field, error) {
		return frame.Columns()
	})
	if err != nil {
		return nil, err
	}
	return &Frame[T]{Frame: frame, model: model}, nil
}

// FromRecords builds a typed lazy frame from key-value records. Column types
// come from model unless an explicit mapping is given. Records missing a
// declared key, carrying an undeclared key or holding an unconvertible value
// fail with *core.SchemaError; a mapping that does not fit the schema fails
// with *core.RecordError.
func FromRecords[T any](sess *lazy.Session, model *schema.Typed[T], records []core.Record, opts ...typed.RecordOption) (*Frame[T], error) {
	gate := typed.NewGate(model.Model, typed.EngineLazy, typed.WithLogger(sess.Logger()))
	prepared, err := gate.Prepare(records, opts...)
	if err != nil {
		return nil, err
	}
	frame, err := sess.FromColumns(prepared.Fields, prepared.Rows)
	if err != nil {
		return nil, fmt.Errorf("building lazy frame for %s: %w", model.Name(), err)
	}
	gate.Wrapped()
	return &Frame[T]{Frame: frame, model: model}, nil
}

func gateOptions(sess *lazy.Session, opts []typed.GateOption) []typed.GateOption {
	return append([]typed.GateOption{typed.WithLogger(sess.Logger())}, opts...)
}

// Model returns the schema model.
func (f *Frame[T]) Model() *schema.Model { return f.model.Model }

// Cols returns the bound schema columns.
func (f *Frame[T]) Cols() T { return f.model.Cols }

// Col returns the lazy expression for a schema column.
func (f *Frame[T]) Col(c schema.Column) lazy.Expr { return lazy.C(c) }

// Native returns the wrapped lazy frame.
func (f *Frame[T]) Native() *lazy.Frame { return f.Frame }

// Engine returns typed.EngineLazy.
func (f *Frame[T]) Engine() typed.Engine { return typed.EngineLazy }

// Columns returns the observed columns without evaluating the plan. The
// context is unused; it is accepted to satisfy typed.Frame.
func (f *Frame[T]) Columns(context.Context) ([]core.Field, error) {
	return f.Frame.Columns()
}

// Records collects the frame and returns every row, extra columns included.
func (f *Frame[T]) Records(ctx context.Context) ([]core.Record, error) {
	df, err := f.Collect(ctx)
	if err != nil {
		return nil, err
	}
	defer df.Release()
	return df.Records(), nil
}

// =============================================================================
// typed.Adapter
// =============================================================================

// Adapter constructs typed lazy frames for one model.
type Adapter[T any] struct {
	sess  *lazy.Session
	model *schema.Typed[T]
}

// NewAdapter returns the lazy adapter for model.
func NewAdapter[T any](sess *lazy.Session, model *schema.Typed[T]) *Adapter[T] {
	return &Adapter[T]{sess: sess, model: model}
}

// NewModelAdapter returns the lazy adapter for a model without a Go struct,
// such as one loaded from a schema file.
func NewModelAdapter(sess *lazy.Session, model *schema.Model) *Adapter[struct{}] {
	return NewAdapter(sess, schema.Dynamic(model))
}

// Engine returns typed.EngineLazy.
func (a *Adapter[T]) Engine() typed.Engine { return typed.EngineLazy }

// Model returns the schema model.
func (a *Adapter[T]) Model() *schema.Model { return a.model.Model }

// FromNative wraps a *lazy.Frame.
func (a *Adapter[T]) FromNative(_ context.Context, native any, validate bool) (typed.Frame, error) {
	frame, ok := native.(*lazy.Frame)
	if !ok {
		return nil, fmt.Errorf("lazy adapter needs *lazy.Frame, got %T", native)
	}
	return FromRawSource(a.model, frame, validate)
}

// FromRecords builds a typed lazy frame from records.
func (a *Adapter[T]) FromRecords(_ context.Context, records []core.Record, opts ...typed.RecordOption) (typed.Frame, error) {
	return FromRecords(a.sess, a.model, records, opts...)
}
