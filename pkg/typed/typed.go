// Package typed defines the contract shared by the typed wrappers of every
// engine: the Adapter and Frame interfaces, the validation Gate run by each
// construction call, and record preparation for construction from key-value
// records.
//
// Engine packages implement the contract:
//
//	pkg/typed/lazyframe  typed lazy frames over pkg/lazy (Arrow)
//	pkg/typed/relation   typed relations over pkg/relational (DuckDB)
//
// Code that only needs "a typed wrapper" depends on this package. Code that
// wants engine-specific expression composition uses the engine package
// directly.
package typed

import (
	"context"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/schema"
)

// Engine names a backing engine.
type Engine string

// Known engines.
const (
	EngineLazy       Engine = "lazy"
	EngineRelational Engine = "relational"
)

// Frame is a typed wrapper seen independently of its engine.
type Frame interface {
	// Model returns the schema that produced or validated the wrapper.
	Model() *schema.Model

	// Engine returns the backing engine.
	Engine() Engine

	// Columns returns the observed columns without materializing data.
	Columns(ctx context.Context) ([]core.Field, error)

	// Records materializes the wrapper into canonical records.
	Records(ctx context.Context) ([]core.Record, error)
}

// Adapter constructs typed wrappers for one model on one engine.
type Adapter interface {
	// Engine returns the backing engine.
	Engine() Engine

	// Model returns the schema the adapter constructs wrappers for.
	Model() *schema.Model

	// FromNative wraps an engine-native object. The native value must be the
	// engine's own object type (*lazy.Frame or *relational.Relation). With
	// validate set the observed shape is checked first.
	FromNative(ctx context.Context, native any, validate bool) (Frame, error)

	// FromRecords builds a new engine object from key-value records.
	FromRecords(ctx context.Context, records []core.Record, opts ...RecordOption) (Frame, error)
}

// RecordOption configures construction from records.
type RecordOption func(*recordOptions)

type recordOptions struct {
	mapping schema.Mapping
}

// WithSchema overrides column types by name for construction from records.
func WithSchema(types map[string]core.DataType) RecordOption {
	return func(o *recordOptions) {
		o.mapping.Keyed = types
	}
}

// WithPositionalSchema supplies one type per declared column, in declaration
// order. A list of the wrong length fails construction with *core.RecordError.
func WithPositionalSchema(types ...core.DataType) RecordOption {
	return func(o *recordOptions) {
		if types == nil {
			types = []core.DataType{}
		}
		o.mapping.Positional = types
	}
}

// MappingOf applies opts and returns the resulting explicit type mapping.
func MappingOf(opts ...RecordOption) schema.Mapping {
	var o recordOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.mapping
}
