package lazy

import (
	"fmt"
	"reflect"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/leapstack-labs/das/pkg/core"
)

// timestampType is the Arrow type used for core.Timestamp columns.
var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// ArrowType maps a semantic type to the Arrow type the lazy engine uses for it.
func ArrowType(t core.DataType) (arrow.DataType, error) {
	switch t.Kind {
	case core.KindString:
		return arrow.BinaryTypes.String, nil
	case core.KindInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case core.KindFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case core.KindBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case core.KindDate:
		return arrow.FixedWidthTypes.Date32, nil
	case core.KindTimestamp:
		return timestampType, nil
	case core.KindList:
		if t.Elem == nil {
			return nil, fmt.Errorf("list type without element type")
		}
		elem, err := ArrowType(*t.Elem)
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil
	default:
		return nil, fmt.Errorf("type %s has no arrow mapping", t)
	}
}

// CoreType maps an Arrow type to its semantic type. Integer widths collapse
// to Int64 and float widths to Float64; anything else is Unknown.
func CoreType(dt arrow.DataType) core.DataType {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return core.String
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return core.Int64
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return core.Float64
	case arrow.BOOL:
		return core.Bool
	case arrow.DATE32, arrow.DATE64:
		return core.DateType
	case arrow.TIMESTAMP:
		return core.Timestamp
	case arrow.LIST, arrow.LARGE_LIST:
		elem := dt.(arrow.ListLikeType).Elem()
		return core.ListOf(CoreType(elem))
	default:
		return core.UnknownType(dt.String())
	}
}

// FieldsFromArrow converts an Arrow schema into semantic fields.
func FieldsFromArrow(sch *arrow.Schema) []core.Field {
	out := make([]core.Field, sch.NumFields())
	for i, f := range sch.Fields() {
		t := CoreType(f.Type)
		t.Nullable = f.Nullable
		out[i] = core.Field{Name: f.Name, Type: t}
	}
	return out
}

// SchemaFor builds an Arrow schema for semantic fields.
func SchemaFor(fields []core.Field) (*arrow.Schema, error) {
	afs := make([]arrow.Field, len(fields))
	for i, f := range fields {
		dt, err := ArrowType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		afs[i] = arrow.Field{Name: f.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(afs, nil), nil
}

// =============================================================================
// Array <-> Go values
// =============================================================================

// valuesOf returns the canonical Go values of arr: string, int64, float64,
// bool, core.Date, time.Time (UTC) or []any, with nil for nulls.
func valuesOf(arr arrow.Array) []any {
	n := arr.Len()
	out := make([]any, n)
	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			continue
		}
		out[i] = valueAt(arr, i)
	}
	return out
}

func valueAt(arr arrow.Array, i int) any {
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.Date32:
		return core.DateOf(a.Value(i).ToTime())
	case *array.Date64:
		return core.DateOf(a.Value(i).ToTime())
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC()
	case *array.List:
		start, end := a.ValueOffsets(i)
		sub := array.NewSlice(a.ListValues(), start, end)
		defer sub.Release()
		return valuesOf(sub)
	case *array.LargeList:
		start, end := a.ValueOffsets(i)
		sub := array.NewSlice(a.ListValues(), start, end)
		defer sub.Release()
		return valuesOf(sub)
	default:
		return a.ValueStr(i)
	}
}

// buildArray builds an array of type dt from Go values. Values are converted
// to the canonical value of dt's semantic type first; nil appends a null.
func buildArray(mem memory.Allocator, dt arrow.DataType, vals []any) (arrow.Array, error) {
	if dt.ID() == arrow.NULL {
		return array.MakeArrayOfNull(mem, dt, len(vals)), nil
	}
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(len(vals))

	target := CoreType(dt)
	for i, v := range vals {
		cv, err := core.Convert(v, target)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if err := appendValue(b, cv); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return b.NewArray(), nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bb := b.(type) {
	case *array.StringBuilder:
		bb.Append(v.(string))
	case *array.Int64Builder:
		bb.Append(v.(int64))
	case *array.Float64Builder:
		bb.Append(v.(float64))
	case *array.BooleanBuilder:
		bb.Append(v.(bool))
	case *array.Date32Builder:
		bb.Append(arrow.Date32FromTime(v.(core.Date).Time()))
	case *array.TimestampBuilder:
		unit := bb.Type().(*arrow.TimestampType).Unit
		ts, err := arrow.TimestampFromTime(v.(time.Time), unit)
		if err != nil {
			return err
		}
		bb.Append(ts)
	case *array.ListBuilder:
		elems := v.([]any)
		bb.Append(true)
		vb := bb.ValueBuilder()
		for _, e := range elems {
			if err := appendValue(vb, e); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

// repeat builds an array holding v n times.
func repeat(mem memory.Allocator, dt arrow.DataType, v any, n int) (arrow.Array, error) {
	vals := make([]any, n)
	for i := range vals {
		vals[i] = v
	}
	return buildArray(mem, dt, vals)
}

// literalType returns the Arrow type of a Go literal.
func literalType(v any) (arrow.DataType, error) {
	if v == nil {
		return arrow.Null, nil
	}
	t, err := core.TypeFor(reflect.TypeOf(v))
	if err != nil {
		return nil, fmt.Errorf("literal %v: %w", v, err)
	}
	return ArrowType(t.Required())
}
