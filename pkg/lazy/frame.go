package lazy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/leapstack-labs/das/pkg/core"
)

// Frame is an immutable lazy plan. Every method returns a new Frame; plan
// errors such as unknown columns surface from Schema or Collect.
type Frame struct {
	sess *Session
	plan planNode
}

// FromRecord starts a plan from an in-memory record. The frame retains rec.
func (s *Session) FromRecord(rec arrow.Record) *Frame {
	rec.Retain()
	return &Frame{sess: s, plan: &recordSource{rec: rec}}
}

// FromTable starts a plan from an Arrow table. The frame retains tbl.
func (s *Session) FromTable(tbl arrow.Table) *Frame {
	tbl.Retain()
	return &Frame{sess: s, plan: &tableSource{tbl: tbl}}
}

// ScanParquet starts a plan from a Parquet file. Schema reads only the file
// footer; data is read on Collect.
func (s *Session) ScanParquet(path string) *Frame {
	return &Frame{sess: s, plan: &parquetSource{path: path}}
}

// Empty starts a plan from a zero-row record with schema sch.
func (s *Session) Empty(sch *arrow.Schema) *Frame {
	cols := make([]arrow.Array, sch.NumFields())
	for i, f := range sch.Fields() {
		cols[i] = array.MakeArrayOfNull(s.mem, f.Type, 0)
	}
	rec := array.NewRecord(sch, cols, 0)
	for _, c := range cols {
		c.Release()
	}
	defer rec.Release()
	return s.FromRecord(rec)
}

// FromColumns builds an in-memory source from rows of Go values aligned with
// fields. Values are converted to each field's type.
func (s *Session) FromColumns(fields []core.Field, rows [][]any) (*Frame, error) {
	sch, err := SchemaFor(fields)
	if err != nil {
		return nil, err
	}
	cols := make([]arrow.Array, len(fields))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for j, f := range sch.Fields() {
		vals := make([]any, len(rows))
		for i, row := range rows {
			vals[i] = row[j]
		}
		if cols[j], err = buildArray(s.mem, f.Type, vals); err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
	}
	rec := array.NewRecord(sch, cols, int64(len(rows)))
	defer rec.Release()
	return s.FromRecord(rec), nil
}

func (f *Frame) derive(plan planNode) *Frame {
	return &Frame{sess: f.sess, plan: plan}
}

// Session returns the frame's session.
func (f *Frame) Session() *Session { return f.sess }

// Select projects the frame onto exprs.
func (f *Frame) Select(exprs ...Expr) *Frame {
	return f.derive(&projectNode{input: f.plan, exprs: exprs})
}

// WithColumns adds columns, replacing existing columns of the same name in
// place.
func (f *Frame) WithColumns(exprs ...Expr) *Frame {
	return f.derive(&projectNode{input: f.plan, exprs: exprs, keep: true})
}

// Filter keeps rows where pred is true. Null counts as false.
func (f *Frame) Filter(pred Expr) *Frame {
	return f.derive(&filterNode{input: f.plan, pred: pred})
}

// Rename renames columns, old name to new name.
func (f *Frame) Rename(mapping map[string]string) *Frame {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return f.derive(&renameNode{input: f.plan, mapping: m})
}

// Drop removes columns.
func (f *Frame) Drop(names ...string) *Frame {
	return f.derive(&dropNode{input: f.plan, names: append([]string(nil), names...)})
}

// Join joins other on equal key columns. Right-side columns that clash with
// left-side names get the suffix "_right".
func (f *Frame) Join(other *Frame, how JoinHow, on ...string) *Frame {
	return f.derive(&joinNode{left: f.plan, right: other.plan, how: how, on: append([]string(nil), on...)})
}

// Limit keeps at most n rows.
func (f *Frame) Limit(n int64) *Frame {
	if n < 0 {
		n = 0
	}
	return f.derive(&limitNode{input: f.plan, n: n})
}

// Schema infers the output schema without executing the plan.
func (f *Frame) Schema() (*arrow.Schema, error) {
	return f.plan.schema()
}

// Columns returns the output columns as semantic fields.
func (f *Frame) Columns() ([]core.Field, error) {
	sch, err := f.Schema()
	if err != nil {
		return nil, err
	}
	return FieldsFromArrow(sch), nil
}

// ColumnNames returns the output column names.
func (f *Frame) ColumnNames() ([]string, error) {
	sch, err := f.Schema()
	if err != nil {
		return nil, err
	}
	return schemaNames(sch), nil
}

// Explain renders the plan tree, root first.
func (f *Frame) Explain() string {
	var b strings.Builder
	explain(&b, f.plan, 0)
	return strings.TrimRight(b.String(), "\n")
}

func explain(b *strings.Builder, n planNode, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.label())
	b.WriteByte('\n')
	for _, in := range n.inputs() {
		explain(b, in, depth+1)
	}
}

// Collect executes the plan. It is the only operation that evaluates data,
// and every call re-runs the whole plan.
func (f *Frame) Collect(ctx context.Context) (*DataFrame, error) {
	f.sess.collects.Add(1)
	start := time.Now()

	ec := &evalContext{ctx: compute.WithAllocator(ctx, f.sess.mem), mem: f.sess.mem}
	rec, err := f.plan.exec(ec)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	f.sess.logger.Debug("collected lazy frame",
		slog.Int64("rows", rec.NumRows()),
		slog.Int64("columns", rec.NumCols()),
		slog.Duration("elapsed", time.Since(start)),
		slog.String("plan", f.Explain()))
	return &DataFrame{rec: rec}, nil
}
