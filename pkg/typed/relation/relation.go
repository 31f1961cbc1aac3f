// Package relation provides typed relations: a relational.Relation paired
// with the schema that produced or validated it.
//
// Validation inspects the relation with DESCRIBE and never reads rows.
// Promoted relational.Relation methods return plain relations; re-wrapping
// is an explicit FromRelation call.
package relation

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/relational"
	"github.com/leapstack-labs/das/pkg/schema"
	"github.com/leapstack-labs/das/pkg/typed"
)

// Relation is a typed DuckDB relation for the schema struct T.
type Relation[T any] struct {
	*relational.Relation
	model *schema.Typed[T]
}

// FromRelation wraps an existing relation. With validate set, the relation
// is described and checked against model; a *core.SchemaError lists every
// mismatch on failure.
func FromRelation[T any](ctx context.Context, model *schema.Typed[T], rel *relational.Relation, validate bool, opts ...typed.GateOption) (*Relation[T], error) {
	gate := typed.NewGate(model.Model, typed.EngineRelational,
		append([]typed.GateOption{typed.WithLogger(rel.Session().Logger())}, opts...)...)
	if err := gate.Admit(ctx, validate, rel.Describe); err != nil {
		return nil, err
	}
	return &Relation[T]{Relation: rel, model: model}, nil
}

// FromDicts builds a typed relation from key-value records with the same
// rules as lazyframe.FromRecords: declared types unless a mapping is given,
// *core.SchemaError for missing, extra or unconvertible values and
// *core.RecordError for a mapping that does not fit the schema.
func FromDicts[T any](ctx context.Context, sess *relational.Session, model *schema.Typed[T], records []core.Record, opts ...typed.RecordOption) (*Relation[T], error) {
	gate := typed.NewGate(model.Model, typed.EngineRelational, typed.WithLogger(sess.Logger()))
	prepared, err := gate.Prepare(records, opts...)
	if err != nil {
		return nil, err
	}
	rel, err := sess.Values(prepared.Fields, prepared.Rows)
	if err != nil {
		return nil, fmt.Errorf("building relation for %s: %w", model.Name(), err)
	}
	gate.Wrapped()
	return &Relation[T]{Relation: rel, model: model}, nil
}

// Model returns the schema model.
func (r *Relation[T]) Model() *schema.Model { return r.model.Model }

// Cols returns the bound schema columns.
func (r *Relation[T]) Cols() T { return r.model.Cols }

// Col returns the relational expression for a schema column.
func (r *Relation[T]) Col(c schema.Column) relational.Expr { return relational.C(c) }

// Native returns the wrapped relation.
func (r *Relation[T]) Native() *relational.Relation { return r.Relation }

// Engine returns typed.EngineRelational.
func (r *Relation[T]) Engine() typed.Engine { return typed.EngineRelational }

// WithColumns adds or replaces columns and returns the native relation.
// Columns not named keep their order, named columns follow, and a name given
// twice takes its last expression.
func (r *Relation[T]) WithColumns(named ...relational.NamedExpr) *relational.Relation {
	return r.Relation.WithColumns(named...)
}

// Records fetches every row, extra columns included.
func (r *Relation[T]) Records(ctx context.Context) ([]core.Record, error) {
	return r.Fetch(ctx)
}

// =============================================================================
// typed.Adapter
// =============================================================================

// Adapter constructs typed relations for one model.
type Adapter[T any] struct {
	sess  *relational.Session
	model *schema.Typed[T]
}

// NewAdapter returns the relational adapter for model.
func NewAdapter[T any](sess *relational.Session, model *schema.Typed[T]) *Adapter[T] {
	return &Adapter[T]{sess: sess, model: model}
}

// NewModelAdapter returns the relational adapter for a model without a Go
// struct.
func NewModelAdapter(sess *relational.Session, model *schema.Model) *Adapter[struct{}] {
	return NewAdapter(sess, schema.Dynamic(model))
}

// Engine returns typed.EngineRelational.
func (a *Adapter[T]) Engine() typed.Engine { return typed.EngineRelational }

// Model returns the schema model.
func (a *Adapter[T]) Model() *schema.Model { return a.model.Model }

// FromNative wraps a *relational.Relation.
func (a *Adapter[T]) FromNative(ctx context.Context, native any, validate bool) (typed.Frame, error) {
	rel, ok := native.(*relational.Relation)
	if !ok {
		return nil, fmt.Errorf("relational adapter needs *relational.Relation, got %T", native)
	}
	return FromRelation(ctx, a.model, rel, validate)
}

// FromRecords builds a typed relation from records.
func (a *Adapter[T]) FromRecords(ctx context.Context, records []core.Record, opts ...typed.RecordOption) (typed.Frame, error) {
	return FromDicts(ctx, a.sess, a.model, records, opts...)
}
