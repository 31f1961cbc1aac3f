package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/das/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, Query and Describe implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.logger().Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	b.logger().Debug("exec", slog.String("sql", sqlStr))
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*core.Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	b.logger().Debug("query", slog.String("sql", sqlStr))
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// Describe returns the result columns of query using DESCRIBE. The query is
// planned, not executed. The first three result columns are read as name,
// type and nullability ("YES"/"NO").
func (b *BaseSQLAdapter) Describe(ctx context.Context, query string) ([]core.Column, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	stmt := "DESCRIBE " + query
	b.logger().Debug("describe", slog.String("sql", stmt))
	rows, err := b.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to describe query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read describe columns: %w", err)
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("describe returned %d columns, need at least 2", len(names))
	}

	var columns []core.Column
	for rows.Next() {
		vals := make([]sql.NullString, len(names))
		dest := make([]any, len(names))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan describe row: %w", err)
		}
		col := core.Column{
			Name:     vals[0].String,
			Type:     vals[1].String,
			Nullable: true,
			Position: len(columns) + 1,
		}
		if len(vals) > 2 && vals[2].Valid {
			col.Nullable = !strings.EqualFold(vals[2].String, "NO")
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating describe rows: %w", err)
	}
	return columns, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// ParseQualifiedName splits a table reference into schema and name, using
// defaultSchema when the reference is unqualified.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}

// TableMetadata reads a table's columns from information_schema.columns
// ("?" placeholders) and counts its rows. Unqualified names resolve in
// defaultSchema.
func (b *BaseSQLAdapter) TableMetadata(ctx context.Context, table, defaultSchema string) (*core.TableMetadata, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	schema, name := ParseQualifiedName(table, defaultSchema)

	const columnsQuery = `SELECT column_name, data_type, is_nullable, ordinal_position
FROM information_schema.columns
WHERE table_schema = ? AND table_name = ?
ORDER BY ordinal_position`
	b.logger().Debug("table metadata", slog.String("schema", schema), slog.String("table", name))
	rows, err := b.DB.QueryContext(ctx, columnsQuery, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	for rows.Next() {
		var col core.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schema, name)
	}

	var count int64
	countQuery := "SELECT count(*) FROM " + quoteIdent(schema) + "." + quoteIdent(name)
	if err := b.DB.QueryRowContext(ctx, countQuery).Scan(&count); err != nil {
		return nil, fmt.Errorf("counting rows of %s.%s: %w", schema, name, err)
	}

	return &core.TableMetadata{Schema: schema, Name: name, Columns: columns, RowCount: count}, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
