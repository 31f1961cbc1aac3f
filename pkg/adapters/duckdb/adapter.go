// Package duckdb provides the DuckDB database adapter behind the relational
// engine. Besides the adapter.Adapter contract it exposes DuckDB's Arrow
// result interface and its Appender, which move data between the engines
// without a row-by-row SQL round trip.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/das/pkg/adapters/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/das/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New creates a new DuckDB adapter instance. A nil logger discards output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Params returns the parsed connection params. It is nil before Connect.
func (a *Adapter) Params() *Params {
	return a.params
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database. Params from the
// config are applied right after the connection is verified.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.params = params

	for _, stmt := range params.setupStatements() {
		if err := a.Exec(ctx, stmt); err != nil {
			_ = a.Close()
			a.DB = nil
			return fmt.Errorf("applying duckdb params: %w", err)
		}
	}

	a.Logger.Debug("connected to duckdb",
		slog.String("path", path),
		slog.Int("extensions", len(params.Extensions)),
		slog.Int("settings", len(params.Settings)),
		slog.Int("secrets", len(params.Secrets)))
	return nil
}

// GetTableMetadata reports a table's columns and row count. Unqualified
// names resolve in the "main" schema.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.TableMetadata(ctx, table, "main")
}

// LoadCSV creates or replaces table from a CSV file with a header row,
// letting read_csv_auto infer the column types.
func (a *Adapter) LoadCSV(ctx context.Context, table, path string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, header = true)",
		quoteQualified(table), quote(abs))
	if err := a.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("loading %s into %s: %w", path, table, err)
	}
	return nil
}

func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
