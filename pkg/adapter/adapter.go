// Package adapter provides the database connection layer used by the
// relational engine.
//
// The contract lives in pkg/core; this package re-exports it and adds the
// shared database/sql implementation and the adapter registry. Concrete
// adapters are in pkg/adapters/ subdirectories and register themselves from
// init().
package adapter

import (
	"context"

	"github.com/leapstack-labs/das/pkg/core"
)

// Type aliases for the shared adapter vocabulary defined in pkg/core.
type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)

// Querier is the subset of Adapter a relational session needs. Both Adapter
// implementations and a bare BaseSQLAdapter satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string) error
	Query(ctx context.Context, sql string) (*Rows, error)
	Describe(ctx context.Context, query string) ([]Column, error)
}
