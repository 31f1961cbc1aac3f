package lazy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// planNode is one step of a lazy plan.
type planNode interface {
	// schema infers the output schema without reading data beyond file
	// metadata.
	schema() (*arrow.Schema, error)
	// exec runs the step. The caller releases the result.
	exec(ec *evalContext) (arrow.Record, error)
	label() string
	inputs() []planNode
}

// =============================================================================
// Sources
// =============================================================================

type recordSource struct {
	rec arrow.Record
}

func (n *recordSource) schema() (*arrow.Schema, error) { return n.rec.Schema(), nil }

func (n *recordSource) exec(*evalContext) (arrow.Record, error) {
	n.rec.Retain()
	return n.rec, nil
}

func (n *recordSource) label() string {
	return fmt.Sprintf("RECORD [%d columns, %d rows]", n.rec.NumCols(), n.rec.NumRows())
}

func (n *recordSource) inputs() []planNode { return nil }

type tableSource struct {
	tbl arrow.Table
}

func (n *tableSource) schema() (*arrow.Schema, error) { return n.tbl.Schema(), nil }

func (n *tableSource) exec(ec *evalContext) (arrow.Record, error) {
	return tableToRecord(ec.mem, n.tbl)
}

func (n *tableSource) label() string {
	return fmt.Sprintf("TABLE [%d columns, %d rows]", n.tbl.NumCols(), n.tbl.NumRows())
}

func (n *tableSource) inputs() []planNode { return nil }

type parquetSource struct {
	path string
}

func (n *parquetSource) open(mem memory.Allocator) (*pqarrow.FileReader, func(), error) {
	f, err := os.Open(n.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	pf, err := file.NewParquetReader(f, file.WithReadProps(parquet.NewReaderProperties(mem)))
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to create parquet reader for %s: %w", n.path, err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		_ = pf.Close()
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to create arrow reader for %s: %w", n.path, err)
	}
	return fr, func() {
		_ = pf.Close()
		_ = f.Close()
	}, nil
}

func (n *parquetSource) schema() (*arrow.Schema, error) {
	fr, closeFn, err := n.open(memory.DefaultAllocator)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	sch, err := fr.Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet schema of %s: %w", n.path, err)
	}
	return sch, nil
}

func (n *parquetSource) exec(ec *evalContext) (arrow.Record, error) {
	fr, closeFn, err := n.open(ec.mem)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	tbl, err := fr.ReadTable(ec.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data from %s: %w", n.path, err)
	}
	defer tbl.Release()
	return tableToRecord(ec.mem, tbl)
}

func (n *parquetSource) label() string { return "PARQUET " + n.path }

func (n *parquetSource) inputs() []planNode { return nil }

// tableToRecord concatenates the chunks of every column into one record.
func tableToRecord(mem memory.Allocator, tbl arrow.Table) (arrow.Record, error) {
	cols := make([]arrow.Array, tbl.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for i := range cols {
		chunks := tbl.Column(i).Data().Chunks()
		switch len(chunks) {
		case 0:
			cols[i] = array.MakeArrayOfNull(mem, tbl.Schema().Field(i).Type, 0)
		case 1:
			chunks[0].Retain()
			cols[i] = chunks[0]
		default:
			merged, err := array.Concatenate(chunks, mem)
			if err != nil {
				return nil, fmt.Errorf("concatenating column %s: %w", tbl.Schema().Field(i).Name, err)
			}
			cols[i] = merged
		}
	}
	return array.NewRecord(tbl.Schema(), cols, tbl.NumRows()), nil
}

// =============================================================================
// Projection
// =============================================================================

type projectNode struct {
	input planNode
	exprs []Expr
	// keep retains input columns; same-named expressions replace them in place.
	keep bool
}

func (n *projectNode) schema() (*arrow.Schema, error) {
	in, err := n.input.schema()
	if err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(n.exprs))
	for i, e := range n.exprs {
		dt, err := e.DataType(in)
		if err != nil {
			return nil, fmt.Errorf("expression %s: %w", e, err)
		}
		fields[i] = arrow.Field{Name: e.Name(), Type: dt, Nullable: true}
	}
	out, err := n.layout(in, fields)
	if err != nil {
		return nil, err
	}
	return arrow.NewSchema(out, nil), nil
}

// layout places expression fields relative to the input fields and returns
// the output fields. Entries of the result that come from the input keep
// their input field.
func (n *projectNode) layout(in *arrow.Schema, computed []arrow.Field) ([]arrow.Field, error) {
	seen := map[string]bool{}
	for _, f := range computed {
		if seen[f.Name] {
			return nil, &DuplicateColumnError{Name: f.Name}
		}
		seen[f.Name] = true
	}
	if !n.keep {
		return computed, nil
	}

	byName := make(map[string]arrow.Field, len(computed))
	for _, f := range computed {
		byName[f.Name] = f
	}
	out := make([]arrow.Field, 0, in.NumFields()+len(computed))
	for _, f := range in.Fields() {
		if repl, ok := byName[f.Name]; ok {
			out = append(out, repl)
			delete(byName, f.Name)
			continue
		}
		out = append(out, f)
	}
	for _, f := range computed {
		if _, pending := byName[f.Name]; pending {
			out = append(out, f)
		}
	}
	return out, nil
}

func (n *projectNode) exec(ec *evalContext) (arrow.Record, error) {
	rec, err := n.input.exec(ec)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	if err := ec.ctx.Err(); err != nil {
		return nil, err
	}

	computed := make(map[string]arrow.Array, len(n.exprs))
	defer func() {
		for _, a := range computed {
			a.Release()
		}
	}()
	fields := make([]arrow.Field, len(n.exprs))
	for i, e := range n.exprs {
		arr, err := e.n.eval(ec, rec)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", e, err)
		}
		if prev, dup := computed[e.Name()]; dup {
			prev.Release()
			arr.Release()
			delete(computed, e.Name())
			return nil, &DuplicateColumnError{Name: e.Name()}
		}
		computed[e.Name()] = arr
		fields[i] = arrow.Field{Name: e.Name(), Type: arr.DataType(), Nullable: true}
	}

	out, err := n.layout(rec.Schema(), fields)
	if err != nil {
		return nil, err
	}
	cols := make([]arrow.Array, len(out))
	for i, f := range out {
		if arr, ok := computed[f.Name]; ok {
			cols[i] = arr
			continue
		}
		cols[i] = rec.Column(rec.Schema().FieldIndices(f.Name)[0])
	}
	return array.NewRecord(arrow.NewSchema(out, nil), cols, rec.NumRows()), nil
}

func (n *projectNode) label() string {
	if n.keep {
		return "WITH_COLUMNS [" + exprList(n.exprs) + "]"
	}
	return "SELECT [" + exprList(n.exprs) + "]"
}

func (n *projectNode) inputs() []planNode { return []planNode{n.input} }

// =============================================================================
// Filter, rename, drop, limit
// =============================================================================

type filterNode struct {
	input planNode
	pred  Expr
}

func (n *filterNode) schema() (*arrow.Schema, error) {
	in, err := n.input.schema()
	if err != nil {
		return nil, err
	}
	dt, err := n.pred.DataType(in)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", n.pred, err)
	}
	if !isBoolish(dt) {
		return nil, fmt.Errorf("filter predicate %s has type %s, expected bool", n.pred, dt)
	}
	return in, nil
}

func (n *filterNode) exec(ec *evalContext) (arrow.Record, error) {
	rec, err := n.input.exec(ec)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	if err := ec.ctx.Err(); err != nil {
		return nil, err
	}

	mask, err := evalAsArray(ec, rec, n.pred, boolType)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", n.pred, err)
	}
	defer mask.Release()

	out, err := compute.FilterRecordBatch(ec.ctx, rec, mask, compute.DefaultFilterOptions())
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", n.pred, err)
	}
	return out, nil
}

func (n *filterNode) label() string { return "FILTER " + n.pred.String() }

func (n *filterNode) inputs() []planNode { return []planNode{n.input} }

func evalAsArray(ec *evalContext, rec arrow.Record, e Expr, dt arrow.DataType) (arrow.Array, error) {
	arr, err := e.n.eval(ec, rec)
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	return castArray(ec, arr, dt)
}

type renameNode struct {
	input   planNode
	mapping map[string]string
}

func (n *renameNode) schema() (*arrow.Schema, error) {
	in, err := n.input.schema()
	if err != nil {
		return nil, err
	}
	return n.rename(in)
}

func (n *renameNode) rename(in *arrow.Schema) (*arrow.Schema, error) {
	for from := range n.mapping {
		if len(in.FieldIndices(from)) == 0 {
			return nil, &ColumnNotFoundError{Name: from, Available: schemaNames(in)}
		}
	}
	fields := make([]arrow.Field, in.NumFields())
	seen := map[string]bool{}
	for i, f := range in.Fields() {
		if to, ok := n.mapping[f.Name]; ok {
			f.Name = to
		}
		if seen[f.Name] {
			return nil, &DuplicateColumnError{Name: f.Name}
		}
		seen[f.Name] = true
		fields[i] = f
	}
	return arrow.NewSchema(fields, nil), nil
}

func (n *renameNode) exec(ec *evalContext) (arrow.Record, error) {
	rec, err := n.input.exec(ec)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	sch, err := n.rename(rec.Schema())
	if err != nil {
		return nil, err
	}
	return array.NewRecord(sch, rec.Columns(), rec.NumRows()), nil
}

func (n *renameNode) label() string {
	keys := make([]string, 0, len(n.mapping))
	for k := range n.mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s -> %s", k, n.mapping[k])
	}
	return "RENAME [" + strings.Join(parts, ", ") + "]"
}

func (n *renameNode) inputs() []planNode { return []planNode{n.input} }

type dropNode struct {
	input planNode
	names []string
}

func (n *dropNode) keepIndices(in *arrow.Schema) ([]int, error) {
	drop := make(map[string]bool, len(n.names))
	for _, name := range n.names {
		if len(in.FieldIndices(name)) == 0 {
			return nil, &ColumnNotFoundError{Name: name, Available: schemaNames(in)}
		}
		drop[name] = true
	}
	var keep []int
	for i, f := range in.Fields() {
		if !drop[f.Name] {
			keep = append(keep, i)
		}
	}
	return keep, nil
}

func (n *dropNode) schema() (*arrow.Schema, error) {
	in, err := n.input.schema()
	if err != nil {
		return nil, err
	}
	keep, err := n.keepIndices(in)
	if err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(keep))
	for i, idx := range keep {
		fields[i] = in.Field(idx)
	}
	return arrow.NewSchema(fields, nil), nil
}

func (n *dropNode) exec(ec *evalContext) (arrow.Record, error) {
	rec, err := n.input.exec(ec)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	keep, err := n.keepIndices(rec.Schema())
	if err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(keep))
	cols := make([]arrow.Array, len(keep))
	for i, idx := range keep {
		fields[i] = rec.Schema().Field(idx)
		cols[i] = rec.Column(idx)
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), cols, rec.NumRows()), nil
}

func (n *dropNode) label() string { return "DROP [" + strings.Join(n.names, ", ") + "]" }

func (n *dropNode) inputs() []planNode { return []planNode{n.input} }

type limitNode struct {
	input planNode
	n     int64
}

func (n *limitNode) schema() (*arrow.Schema, error) { return n.input.schema() }

func (n *limitNode) exec(ec *evalContext) (arrow.Record, error) {
	rec, err := n.input.exec(ec)
	if err != nil {
		return nil, err
	}
	if rec.NumRows() <= n.n {
		return rec, nil
	}
	defer rec.Release()
	return rec.NewSlice(0, n.n), nil
}

func (n *limitNode) label() string { return fmt.Sprintf("LIMIT %d", n.n) }

func (n *limitNode) inputs() []planNode { return []planNode{n.input} }
