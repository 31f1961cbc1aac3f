package core

import (
	"context"
	"database/sql"
)

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// Describe returns the result columns of a query without producing its rows.
	Describe(ctx context.Context, query string) ([]Column, error)

	// GetTableMetadata reports a stored table's columns and row count.
	GetTableMetadata(ctx context.Context, table string) (*TableMetadata, error)

	// LoadCSV creates or replaces table with the contents of a CSV file.
	LoadCSV(ctx context.Context, table, path string) error
}

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type    string
	Path    string
	Schema  string
	Options map[string]string
	Params  map[string]any
}

// Column represents a column reported by a database.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata holds metadata about a database table.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
