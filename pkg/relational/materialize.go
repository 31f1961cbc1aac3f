package relational

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/leapstack-labs/das/pkg/core"
)

func (s *Session) describe(ctx context.Context, query string) ([]core.Field, error) {
	cols, err := s.q.Describe(ctx, query)
	if err != nil {
		return nil, err
	}
	return FieldsFromColumns(cols), nil
}

// Describe returns the relation's columns. DuckDB plans the query without
// reading rows; this is not a materialization.
func (r *Relation) Describe(ctx context.Context) ([]core.Field, error) {
	q, err := r.SQL(ctx)
	if err != nil {
		return nil, err
	}
	return r.sess.describe(ctx, q)
}

// Columns is Describe.
func (r *Relation) Columns(ctx context.Context) ([]core.Field, error) {
	return r.Describe(ctx)
}

// ColumnNames returns the relation's column names.
func (r *Relation) ColumnNames(ctx context.Context) ([]string, error) {
	fields, err := r.Describe(ctx)
	if err != nil {
		return nil, err
	}
	return core.FieldNames(fields), nil
}

func (r *Relation) materialize(ctx context.Context, op string) (string, func(), error) {
	q, err := r.SQL(ctx)
	if err != nil {
		return "", nil, err
	}
	r.sess.materializations.Add(1)
	start := time.Now()
	done := func() {
		r.sess.logger.Debug("materialized relation",
			slog.String("op", op),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("sql", q))
	}
	return q, done, nil
}

// Fetch executes the relation and returns every row keyed by column name.
// DATE values become core.Date, integers int64 and timestamps UTC
// time.Time.
func (r *Relation) Fetch(ctx context.Context) ([]core.Record, error) {
	q, done, err := r.materialize(ctx, "fetch")
	if err != nil {
		return nil, err
	}
	defer done()

	rows, err := r.sess.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	dbTypes := make([]string, len(names))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			dbTypes[i] = ct.DatabaseTypeName()
		}
	}

	var out []core.Record
	for rows.Next() {
		vals := make([]any, len(names))
		dest := make([]any, len(names))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("fetch: scanning row %d: %w", len(out), err)
		}
		rec := make(core.Record, len(names))
		for i, name := range names {
			rec[name] = normalize(vals[i], dbTypes[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return out, nil
}

// FetchArrow executes the relation through the adapter's Arrow interface
// and returns the result as one table. The caller releases the table.
func (r *Relation) FetchArrow(ctx context.Context) (arrow.Table, error) {
	aq, ok := r.sess.q.(ArrowQuerier)
	if !ok {
		return nil, fmt.Errorf("fetch arrow: %T has no Arrow interface", r.sess.q)
	}
	q, done, err := r.materialize(ctx, "fetch_arrow")
	if err != nil {
		return nil, err
	}
	defer done()

	var tbl arrow.Table
	err = aq.QueryArrow(ctx, q, func(reader array.RecordReader) error {
		var recs []arrow.Record
		defer func() {
			for _, rec := range recs {
				rec.Release()
			}
		}()
		for reader.Next() {
			rec := reader.Record()
			rec.Retain()
			recs = append(recs, rec)
		}
		if err := reader.Err(); err != nil {
			return err
		}
		tbl = array.NewTableFromRecords(reader.Schema(), recs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch arrow: %w", err)
	}
	return tbl, nil
}

// Count executes the relation and returns its row count.
func (r *Relation) Count(ctx context.Context) (int64, error) {
	q, done, err := r.materialize(ctx, "count")
	if err != nil {
		return 0, err
	}
	defer done()

	rows, err := r.sess.q.Query(ctx, "SELECT count(*) FROM ("+q+") AS _t")
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("count: %w", err)
		}
		return 0, fmt.Errorf("count: no result row")
	}
	if err := rows.Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// CreateTable executes the relation into a new or replaced table and
// returns a relation reading that table.
func (r *Relation) CreateTable(ctx context.Context, name string) (*Relation, error) {
	q, done, err := r.materialize(ctx, "create_table")
	if err != nil {
		return nil, err
	}
	defer done()

	if err := r.sess.q.Exec(ctx, "CREATE OR REPLACE TABLE "+quoteQualified(name)+" AS "+q); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	return r.sess.Table(name), nil
}
