package lazy

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
)

// JoinHow selects the join type.
type JoinHow string

// Supported joins.
const (
	JoinInner JoinHow = "inner"
	JoinLeft  JoinHow = "left"
)

// rightSuffix is appended to right-side columns whose names clash with the
// left side.
const rightSuffix = "_right"

type joinNode struct {
	left, right planNode
	how         JoinHow
	on          []string
}

// joinLayout describes where output columns come from.
type joinLayout struct {
	fields    []arrow.Field
	leftKeys  []int
	rightKeys []int
	// rightCols are the right-side column indexes carried to the output.
	rightCols []int
}

func (n *joinNode) layout(ls, rs *arrow.Schema) (*joinLayout, error) {
	if n.how != JoinInner && n.how != JoinLeft {
		return nil, fmt.Errorf("unsupported join type %q", n.how)
	}
	if len(n.on) == 0 {
		return nil, fmt.Errorf("join needs at least one key column")
	}
	l := &joinLayout{}
	isKey := map[string]bool{}
	for _, key := range n.on {
		li, ri := ls.FieldIndices(key), rs.FieldIndices(key)
		if len(li) == 0 {
			return nil, &ColumnNotFoundError{Name: key, Available: schemaNames(ls)}
		}
		if len(ri) == 0 {
			return nil, &ColumnNotFoundError{Name: key, Available: schemaNames(rs)}
		}
		lk, rk := CoreType(ls.Field(li[0]).Type), CoreType(rs.Field(ri[0]).Type)
		if !lk.Equal(rk) {
			return nil, fmt.Errorf("join key %s has type %s on the left and %s on the right", key, lk, rk)
		}
		l.leftKeys = append(l.leftKeys, li[0])
		l.rightKeys = append(l.rightKeys, ri[0])
		isKey[key] = true
	}

	l.fields = append(l.fields, ls.Fields()...)
	names := map[string]bool{}
	for _, f := range ls.Fields() {
		names[f.Name] = true
	}
	for i, f := range rs.Fields() {
		if isKey[f.Name] {
			continue
		}
		if names[f.Name] {
			f.Name += rightSuffix
		}
		if names[f.Name] {
			return nil, &DuplicateColumnError{Name: f.Name}
		}
		names[f.Name] = true
		f.Nullable = f.Nullable || n.how == JoinLeft
		l.fields = append(l.fields, f)
		l.rightCols = append(l.rightCols, i)
	}
	return l, nil
}

func (n *joinNode) schema() (*arrow.Schema, error) {
	ls, err := n.left.schema()
	if err != nil {
		return nil, err
	}
	rs, err := n.right.schema()
	if err != nil {
		return nil, err
	}
	l, err := n.layout(ls, rs)
	if err != nil {
		return nil, err
	}
	return arrow.NewSchema(l.fields, nil), nil
}

func (n *joinNode) exec(ec *evalContext) (arrow.Record, error) {
	lrec, err := n.left.exec(ec)
	if err != nil {
		return nil, err
	}
	defer lrec.Release()
	rrec, err := n.right.exec(ec)
	if err != nil {
		return nil, err
	}
	defer rrec.Release()
	if err := ec.ctx.Err(); err != nil {
		return nil, err
	}

	l, err := n.layout(lrec.Schema(), rrec.Schema())
	if err != nil {
		return nil, err
	}

	// hash the right side; null keys never match
	rightKeys := keyStrings(rrec, l.rightKeys)
	index := make(map[string][]int, len(rightKeys))
	for i, k := range rightKeys {
		if k != "" {
			index[k] = append(index[k], i)
		}
	}

	var leftIdx, rightIdx []int
	for i, k := range keyStrings(lrec, l.leftKeys) {
		matches := index[k]
		if k == "" || len(matches) == 0 {
			if n.how == JoinLeft {
				leftIdx = append(leftIdx, i)
				rightIdx = append(rightIdx, -1)
			}
			continue
		}
		for _, j := range matches {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, j)
		}
	}

	cols := make([]arrow.Array, 0, len(l.fields))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for i := 0; i < int(lrec.NumCols()); i++ {
		taken, err := takeRows(ec, lrec.Column(i), leftIdx)
		if err != nil {
			return nil, err
		}
		cols = append(cols, taken)
	}
	for _, ci := range l.rightCols {
		taken, err := takeRows(ec, rrec.Column(ci), rightIdx)
		if err != nil {
			return nil, err
		}
		cols = append(cols, taken)
	}
	return array.NewRecord(arrow.NewSchema(l.fields, nil), cols, int64(len(leftIdx))), nil
}

func (n *joinNode) label() string {
	return fmt.Sprintf("JOIN %s ON [%s]", strings.ToUpper(string(n.how)), strings.Join(n.on, ", "))
}

func (n *joinNode) inputs() []planNode { return []planNode{n.left, n.right} }

// keyStrings renders the join key of every row; rows with a null key part
// get the empty string.
func keyStrings(rec arrow.Record, cols []int) []string {
	vals := make([][]any, len(cols))
	for i, c := range cols {
		vals[i] = valuesOf(rec.Column(c))
	}
	out := make([]string, rec.NumRows())
	for row := range out {
		var b strings.Builder
		b.WriteByte('k')
		null := false
		for i := range cols {
			v := vals[i][row]
			if v == nil {
				null = true
				break
			}
			b.WriteByte(0)
			b.WriteString(valueKey(v))
		}
		if !null {
			out[row] = b.String()
		}
	}
	return out
}

// takeRows gathers rows of arr. An index of -1 yields null. Indexes without
// nulls go through the Arrow take kernel.
func takeRows(ec *evalContext, arr arrow.Array, idx []int) (arrow.Array, error) {
	hasNull := false
	for _, i := range idx {
		if i < 0 {
			hasNull = true
			break
		}
	}
	if !hasNull {
		ib := array.NewInt64Builder(ec.mem)
		defer ib.Release()
		ib.Reserve(len(idx))
		for _, i := range idx {
			ib.Append(int64(i))
		}
		indices := ib.NewArray()
		defer indices.Release()
		out, err := compute.TakeArray(ec.ctx, arr, indices)
		if err != nil {
			return nil, fmt.Errorf("take: %w", err)
		}
		return out, nil
	}

	vals := valuesOf(arr)
	out := make([]any, len(idx))
	for k, i := range idx {
		if i >= 0 {
			out[k] = vals[i]
		}
	}
	return buildArray(ec.mem, arr.DataType(), out)
}
