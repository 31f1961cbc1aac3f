// Package bridge moves data between the lazy and the relational engine.
// Every call is an explicit materialization on the source side.
package bridge

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/lazy"
	"github.com/leapstack-labs/das/pkg/relational"
)

// Loader creates tables and bulk-loads rows. The DuckDB adapter implements
// it.
type Loader interface {
	Exec(ctx context.Context, sql string) error
	AppendRows(ctx context.Context, schema, table string, rows [][]driver.Value) error
}

// RelationToLazy executes rel through DuckDB's Arrow interface and starts a
// lazy plan over the result.
func RelationToLazy(ctx context.Context, rel *relational.Relation, sess *lazy.Session) (*lazy.Frame, error) {
	tbl, err := rel.FetchArrow(ctx)
	if err != nil {
		return nil, fmt.Errorf("relation to lazy: %w", err)
	}
	defer tbl.Release()
	sess.Logger().Debug("relation loaded into lazy frame", slog.Int64("rows", tbl.NumRows()))
	return sess.FromTable(tbl), nil
}

// WriteLazy collects frame and writes it to schema.table, replacing any
// existing table. It returns the number of rows written.
func WriteLazy(ctx context.Context, frame *lazy.Frame, dst Loader, schema, table string) (int64, error) {
	df, err := frame.Collect(ctx)
	if err != nil {
		return 0, fmt.Errorf("write %s.%s: %w", schema, table, err)
	}
	defer df.Release()

	fields := df.Columns()
	ddl, err := createTableSQL(schema, table, fields)
	if err != nil {
		return 0, fmt.Errorf("write %s.%s: %w", schema, table, err)
	}
	if err := dst.Exec(ctx, ddl); err != nil {
		return 0, fmt.Errorf("write %s.%s: %w", schema, table, err)
	}

	records := df.Records()
	rows := make([][]driver.Value, len(records))
	for i, rec := range records {
		row := make([]driver.Value, len(fields))
		for j, f := range fields {
			row[j] = appendValue(rec[f.Name])
		}
		rows[i] = row
	}
	if err := dst.AppendRows(ctx, schema, table, rows); err != nil {
		return 0, fmt.Errorf("write %s.%s: %w", schema, table, err)
	}
	frame.Session().Logger().Debug("lazy frame written",
		slog.String("table", schema+"."+table), slog.Int("rows", len(rows)))
	return int64(len(rows)), nil
}

// LazyToRelation writes frame to schema.table and returns a relation
// reading it.
func LazyToRelation(ctx context.Context, frame *lazy.Frame, dst Loader, sess *relational.Session, schema, table string) (*relational.Relation, error) {
	if _, err := WriteLazy(ctx, frame, dst, schema, table); err != nil {
		return nil, err
	}
	return sess.Table(schema + "." + table), nil
}

func createTableSQL(schema, table string, fields []core.Field) (string, error) {
	cols := make([]string, len(fields))
	for i, f := range fields {
		typ, err := relational.TypeSQL(f.Type)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", f.Name, err)
		}
		cols[i] = relational.QuoteIdent(f.Name) + " " + typ
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)",
		relational.QuoteQualified(schema+"."+table), strings.Join(cols, ", ")), nil
}

// appendValue converts a canonical value into one the Appender accepts.
func appendValue(v any) driver.Value {
	switch x := v.(type) {
	case core.Date:
		return x.Time()
	case time.Time:
		return x.UTC()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = appendValue(e)
		}
		return out
	}
	return v
}
