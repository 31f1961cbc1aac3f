package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/marcboeker/go-duckdb"
)

// withDriverConn runs fn on one raw driver connection from the pool.
func (a *Adapter) withDriverConn(ctx context.Context, fn func(driver.Conn) error) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected raw conn type %T", raw)
		}
		return fn(driverConn)
	})
}

// QueryArrow runs query and hands the Arrow record stream to fn. The reader
// is only valid inside fn; retain records that must outlive it.
func (a *Adapter) QueryArrow(ctx context.Context, query string, fn func(array.RecordReader) error) error {
	a.Logger.Debug("arrow query", slog.String("sql", query))
	return a.withDriverConn(ctx, func(conn driver.Conn) error {
		ar, err := duckdb.NewArrowFromConn(conn)
		if err != nil {
			return fmt.Errorf("creating arrow interface: %w", err)
		}
		reader, err := ar.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to execute arrow query: %w", err)
		}
		defer reader.Release()
		return fn(reader)
	})
}

// AppendRows bulk-loads rows into an existing table through the DuckDB
// Appender. Row values must be in table column order; nil appends NULL.
func (a *Adapter) AppendRows(ctx context.Context, schema, table string, rows [][]driver.Value) error {
	err := a.withDriverConn(ctx, func(conn driver.Conn) error {
		app, err := duckdb.NewAppenderFromConn(conn, schema, table)
		if err != nil {
			return fmt.Errorf("create appender for %s: %w", table, err)
		}
		for i, row := range rows {
			if err := app.AppendRow(row...); err != nil {
				_ = app.Close()
				return fmt.Errorf("append row %d to %s: %w", i, table, err)
			}
		}
		if err := app.Close(); err != nil {
			return fmt.Errorf("flush appender for %s: %w", table, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.Logger.Debug("appended rows", slog.String("table", table), slog.Int("rows", len(rows)))
	return nil
}
