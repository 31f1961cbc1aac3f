package lazy

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/leapstack-labs/das/pkg/core"
)

// DataFrame is a materialized plan result held as one Arrow record.
type DataFrame struct {
	rec arrow.Record
}

// NumRows returns the number of rows.
func (d *DataFrame) NumRows() int64 { return d.rec.NumRows() }

// Schema returns the Arrow schema.
func (d *DataFrame) Schema() *arrow.Schema { return d.rec.Schema() }

// Columns returns the columns as semantic fields.
func (d *DataFrame) Columns() []core.Field { return FieldsFromArrow(d.rec.Schema()) }

// Record returns the underlying record. It stays valid until Release.
func (d *DataFrame) Record() arrow.Record { return d.rec }

// Column returns the canonical values of the named column.
func (d *DataFrame) Column(name string) ([]any, error) {
	idx := d.rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, &ColumnNotFoundError{Name: name, Available: schemaNames(d.rec.Schema())}
	}
	return valuesOf(d.rec.Column(idx[0])), nil
}

// Records converts every row into a record keyed by column name. Every
// column is included, extra ones too.
func (d *DataFrame) Records() []core.Record {
	sch := d.rec.Schema()
	cols := make([][]any, d.rec.NumCols())
	for i := range cols {
		cols[i] = valuesOf(d.rec.Column(i))
	}
	out := make([]core.Record, d.rec.NumRows())
	for row := range out {
		r := make(core.Record, len(cols))
		for i, f := range sch.Fields() {
			r[f.Name] = cols[i][row]
		}
		out[row] = r
	}
	return out
}

// Release frees the record.
func (d *DataFrame) Release() {
	if d.rec != nil {
		d.rec.Release()
		d.rec = nil
	}
}
