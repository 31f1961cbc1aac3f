package lazy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/leapstack-labs/das/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var boolType = arrow.FixedWidthTypes.Boolean

// =============================================================================
// Column references and literals
// =============================================================================

type colNode struct{ name string }

func (n colNode) outputName() string { return n.name }

func (n colNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	idx := sch.FieldIndices(n.name)
	if len(idx) == 0 {
		return nil, &ColumnNotFoundError{Name: n.name, Available: schemaNames(sch)}
	}
	return sch.Field(idx[0]).Type, nil
}

func (n colNode) eval(_ *evalContext, rec arrow.Record) (arrow.Array, error) {
	idx := rec.Schema().FieldIndices(n.name)
	if len(idx) == 0 {
		return nil, &ColumnNotFoundError{Name: n.name, Available: schemaNames(rec.Schema())}
	}
	col := rec.Column(idx[0])
	col.Retain()
	return col, nil
}

func (n colNode) String() string { return fmt.Sprintf("col(%q)", n.name) }

type litNode struct{ v any }

func (n litNode) outputName() string { return "literal" }

func (n litNode) dataType(*arrow.Schema) (arrow.DataType, error) { return literalType(n.v) }

func (n litNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	dt, err := literalType(n.v)
	if err != nil {
		return nil, err
	}
	return repeat(ec.mem, dt, n.v, int(rec.NumRows()))
}

func (n litNode) String() string { return "lit(" + formatLit(n.v) + ")" }

type aliasNode struct {
	e    Expr
	name string
}

func (n aliasNode) outputName() string { return n.name }

func (n aliasNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	return n.e.n.dataType(sch)
}

func (n aliasNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	return n.e.n.eval(ec, rec)
}

func (n aliasNode) String() string { return fmt.Sprintf("%s.alias(%q)", n.e, n.name) }

// =============================================================================
// Casts
// =============================================================================

type castNode struct {
	e  Expr
	to core.DataType
}

func (n castNode) outputName() string { return n.e.Name() }

func (n castNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	if _, err := n.e.n.dataType(sch); err != nil {
		return nil, err
	}
	return ArrowType(n.to)
}

func (n castNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	dt, err := ArrowType(n.to)
	if err != nil {
		return nil, err
	}
	arr, err := n.e.n.eval(ec, rec)
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	return castArray(ec, arr, dt)
}

func (n castNode) String() string { return fmt.Sprintf("%s.cast(%s)", n.e, n.to) }

// castArray converts arr to dt. The result is owned by the caller.
func castArray(ec *evalContext, arr arrow.Array, dt arrow.DataType) (arrow.Array, error) {
	if arrow.TypeEqual(arr.DataType(), dt) {
		arr.Retain()
		return arr, nil
	}
	if arr.DataType().ID() == arrow.NULL {
		return array.MakeArrayOfNull(ec.mem, dt, arr.Len()), nil
	}
	out, err := compute.CastArray(ec.ctx, arr, compute.SafeCastOptions(dt))
	if err != nil {
		return nil, fmt.Errorf("cast %s to %s: %w", arr.DataType(), dt, err)
	}
	return out, nil
}

// =============================================================================
// Binary operators
// =============================================================================

type binOp int

const (
	opAdd binOp = iota
	opSub
	opMul
	opDiv
	opEq
	opNe
	opLt
	opLe
	opGt
	opGe
	opAnd
	opOr
)

var opSymbols = [...]string{"+", "-", "*", "/", "==", "!=", "<", "<=", ">", ">=", "&", "|"}

var compareFuncs = map[binOp]string{
	opEq: "equal",
	opNe: "not_equal",
	opLt: "less",
	opLe: "less_equal",
	opGt: "greater",
	opGe: "greater_equal",
}

func (op binOp) arithmetic() bool { return op <= opDiv }
func (op binOp) comparison() bool { return op >= opEq && op <= opGe }

type binaryNode struct {
	op   binOp
	l, r Expr
}

func binary(op binOp, l, r Expr) Expr { return Expr{binaryNode{op: op, l: l, r: r}} }

func (n binaryNode) outputName() string {
	if _, isLit := n.l.n.(litNode); isLit {
		return n.r.Name()
	}
	return n.l.Name()
}

func (n binaryNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	lt, err := n.l.n.dataType(sch)
	if err != nil {
		return nil, err
	}
	rt, err := n.r.n.dataType(sch)
	if err != nil {
		return nil, err
	}
	switch {
	case n.op.arithmetic():
		return arithmeticType(n.op, lt, rt)
	case n.op.comparison():
		return boolType, nil
	default:
		if !isBoolish(lt) || !isBoolish(rt) {
			return nil, fmt.Errorf("operator %s needs boolean operands, got %s and %s", opSymbols[n.op], lt, rt)
		}
		return boolType, nil
	}
}

func (n binaryNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	la, err := n.l.n.eval(ec, rec)
	if err != nil {
		return nil, err
	}
	defer la.Release()
	ra, err := n.r.n.eval(ec, rec)
	if err != nil {
		return nil, err
	}
	defer ra.Release()

	switch {
	case n.op.arithmetic():
		dt, err := arithmeticType(n.op, la.DataType(), ra.DataType())
		if err != nil {
			return nil, err
		}
		return arithmetic(ec, n.op, la, ra, dt)
	case n.op.comparison():
		return compareArrays(ec, n.op, la, ra)
	default:
		lb, err := castArray(ec, la, boolType)
		if err != nil {
			return nil, err
		}
		defer lb.Release()
		rb, err := castArray(ec, ra, boolType)
		if err != nil {
			return nil, err
		}
		defer rb.Release()
		fn := "and_kleene"
		if n.op == opOr {
			fn = "or_kleene"
		}
		return callFunction(ec, fn, lb, rb)
	}
}

func (n binaryNode) String() string {
	return fmt.Sprintf("(%s %s %s)", n.l, opSymbols[n.op], n.r)
}

func arithmeticType(op binOp, lt, rt arrow.DataType) (arrow.DataType, error) {
	if lt.ID() == arrow.NULL {
		lt = rt
	}
	if rt.ID() == arrow.NULL {
		rt = lt
	}
	if !isNumeric(lt) || !isNumeric(rt) {
		return nil, fmt.Errorf("operator %s needs numeric operands, got %s and %s", opSymbols[op], lt, rt)
	}
	if op == opDiv || CoreType(lt).Kind == core.KindFloat64 || CoreType(rt).Kind == core.KindFloat64 {
		return arrow.PrimitiveTypes.Float64, nil
	}
	return arrow.PrimitiveTypes.Int64, nil
}

func arithmetic(ec *evalContext, op binOp, la, ra arrow.Array, dt arrow.DataType) (arrow.Array, error) {
	lc, err := castArray(ec, la, dt)
	if err != nil {
		return nil, err
	}
	defer lc.Release()
	rc, err := castArray(ec, ra, dt)
	if err != nil {
		return nil, err
	}
	defer rc.Release()

	l, r := compute.NewDatum(lc), compute.NewDatum(rc)
	defer l.Release()
	defer r.Release()

	opts := compute.ArithmeticOptions{NoCheckOverflow: true}
	var out compute.Datum
	switch op {
	case opAdd:
		out, err = compute.Add(ec.ctx, opts, l, r)
	case opSub:
		out, err = compute.Subtract(ec.ctx, opts, l, r)
	case opMul:
		out, err = compute.Multiply(ec.ctx, opts, l, r)
	default:
		out, err = compute.Divide(ec.ctx, opts, l, r)
	}
	if err != nil {
		return nil, fmt.Errorf("operator %s: %w", opSymbols[op], err)
	}
	return datumArray(out)
}

// compareArrays uses Arrow kernels for numeric operands and a value loop for
// every other type.
func compareArrays(ec *evalContext, op binOp, la, ra arrow.Array) (arrow.Array, error) {
	lt, rt := la.DataType(), ra.DataType()
	if isNumeric(lt) && isNumeric(rt) {
		dt := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if CoreType(lt).Kind == core.KindInt64 && CoreType(rt).Kind == core.KindInt64 {
			dt = arrow.PrimitiveTypes.Int64
		}
		lc, err := castArray(ec, la, dt)
		if err != nil {
			return nil, err
		}
		defer lc.Release()
		rc, err := castArray(ec, ra, dt)
		if err != nil {
			return nil, err
		}
		defer rc.Release()
		return callFunction(ec, compareFuncs[op], lc, rc)
	}

	lv, rv := valuesOf(la), valuesOf(ra)
	b := array.NewBooleanBuilder(ec.mem)
	defer b.Release()
	b.Reserve(len(lv))
	for i := range lv {
		if lv[i] == nil || rv[i] == nil {
			b.AppendNull()
			continue
		}
		c, ok := compareValues(lv[i], rv[i])
		if !ok {
			return nil, fmt.Errorf("cannot compare %s with %s", lt, rt)
		}
		b.Append(compareResult(op, c))
	}
	return b.NewArray(), nil
}

func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y), true
		case float64:
			return cmpOrdered(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmpOrdered(x, y), true
		case int64:
			return cmpOrdered(x, float64(y)), true
		}
	case core.Date:
		if y, ok := b.(core.Date); ok {
			return x.Time().Compare(y.Time()), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareResult(op binOp, c int) bool {
	switch op {
	case opEq:
		return c == 0
	case opNe:
		return c != 0
	case opLt:
		return c < 0
	case opLe:
		return c <= 0
	case opGt:
		return c > 0
	default:
		return c >= 0
	}
}

func callFunction(ec *evalContext, name string, arrs ...arrow.Array) (arrow.Array, error) {
	args := make([]compute.Datum, len(arrs))
	for i, a := range arrs {
		args[i] = compute.NewDatum(a)
	}
	defer func() {
		for _, d := range args {
			d.Release()
		}
	}()
	out, err := compute.CallFunction(ec.ctx, name, nil, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return datumArray(out)
}

func datumArray(d compute.Datum) (arrow.Array, error) {
	defer d.Release()
	ad, ok := d.(*compute.ArrayDatum)
	if !ok {
		return nil, fmt.Errorf("kernel returned %s, expected an array", d.Kind())
	}
	return ad.MakeArray(), nil
}

// =============================================================================
// Row loops
// =============================================================================

// evalValues evaluates e and returns its values and type.
func evalValues(ec *evalContext, rec arrow.Record, e Expr) ([]any, arrow.DataType, error) {
	arr, err := e.n.eval(ec, rec)
	if err != nil {
		return nil, nil, err
	}
	defer arr.Release()
	return valuesOf(arr), arr.DataType(), nil
}

func evalAs(ec *evalContext, rec arrow.Record, e Expr, dt arrow.DataType) ([]any, error) {
	arr, err := e.n.eval(ec, rec)
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	cast, err := castArray(ec, arr, dt)
	if err != nil {
		return nil, err
	}
	defer cast.Release()
	return valuesOf(cast), nil
}

type notNode struct{ e Expr }

func (n notNode) outputName() string { return n.e.Name() }

func (n notNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	t, err := n.e.n.dataType(sch)
	if err != nil {
		return nil, err
	}
	if !isBoolish(t) {
		return nil, fmt.Errorf("not needs a boolean operand, got %s", t)
	}
	return boolType, nil
}

func (n notNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	vals, err := evalAs(ec, rec, n.e, boolType)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		if v != nil {
			out[i] = !v.(bool)
		}
	}
	return buildArray(ec.mem, boolType, out)
}

func (n notNode) String() string { return fmt.Sprintf("~%s", n.e) }

type nullCheckNode struct {
	e      Expr
	negate bool
}

func (n nullCheckNode) outputName() string { return n.e.Name() }

func (n nullCheckNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	if _, err := n.e.n.dataType(sch); err != nil {
		return nil, err
	}
	return boolType, nil
}

func (n nullCheckNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	arr, err := n.e.n.eval(ec, rec)
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	b := array.NewBooleanBuilder(ec.mem)
	defer b.Release()
	b.Reserve(arr.Len())
	for i := 0; i < arr.Len(); i++ {
		b.Append(arr.IsNull(i) != n.negate)
	}
	return b.NewArray(), nil
}

func (n nullCheckNode) String() string {
	if n.negate {
		return n.e.String() + ".is_not_null()"
	}
	return n.e.String() + ".is_null()"
}

type isInNode struct {
	e      Expr
	values []any
}

func (n isInNode) outputName() string { return n.e.Name() }

func (n isInNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	if _, err := n.e.n.dataType(sch); err != nil {
		return nil, err
	}
	return boolType, nil
}

func (n isInNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	vals, dt, err := evalValues(ec, rec, n.e)
	if err != nil {
		return nil, err
	}
	target := CoreType(dt)
	set := make(map[string]bool, len(n.values))
	for _, v := range n.values {
		if cv, err := core.Convert(v, target); err == nil && cv != nil {
			set[valueKey(cv)] = true
		}
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		if v != nil {
			out[i] = set[valueKey(v)]
		}
	}
	return buildArray(ec.mem, boolType, out)
}

func (n isInNode) String() string {
	parts := make([]string, len(n.values))
	for i, v := range n.values {
		parts[i] = formatLit(v)
	}
	return fmt.Sprintf("%s.is_in([%s])", n.e, strings.Join(parts, ", "))
}

func valueKey(v any) string {
	return fmt.Sprintf("%T\x00%v", v, v)
}

type fillNullNode struct {
	e, fill Expr
}

func (n fillNullNode) outputName() string { return n.e.Name() }

func (n fillNullNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	t, err := n.e.n.dataType(sch)
	if err != nil {
		return nil, err
	}
	ft, err := n.fill.n.dataType(sch)
	if err != nil {
		return nil, err
	}
	if t.ID() == arrow.NULL {
		return ft, nil
	}
	return t, nil
}

func (n fillNullNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	vals, dt, err := evalValues(ec, rec, n.e)
	if err != nil {
		return nil, err
	}
	if dt.ID() == arrow.NULL {
		if dt, err = n.fill.n.dataType(rec.Schema()); err != nil {
			return nil, err
		}
	}
	fill, err := evalAs(ec, rec, n.fill, dt)
	if err != nil {
		return nil, err
	}
	for i := range vals {
		if vals[i] == nil {
			vals[i] = fill[i]
		}
	}
	return buildArray(ec.mem, dt, vals)
}

func (n fillNullNode) String() string { return fmt.Sprintf("%s.fill_null(%s)", n.e, n.fill) }

// =============================================================================
// Strings, lists and numbers
// =============================================================================

type strFn int

const (
	strTrim strFn = iota
	strLower
	strUpper
	strTitle
	strNullIfEmpty
)

var strFnNames = [...]string{"str.strip_chars", "str.to_lowercase", "str.to_uppercase", "str.to_titlecase", "str.null_if_empty"}

type strNode struct {
	fn strFn
	e  Expr
}

func (n strNode) outputName() string { return n.e.Name() }

func (n strNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	t, err := n.e.n.dataType(sch)
	if err != nil {
		return nil, err
	}
	if t.ID() != arrow.NULL && CoreType(t).Kind != core.KindString {
		return nil, fmt.Errorf("%s needs a string operand, got %s", strFnNames[n.fn], t)
	}
	return arrow.BinaryTypes.String, nil
}

func (n strNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	vals, err := evalAs(ec, rec, n.e, arrow.BinaryTypes.String)
	if err != nil {
		return nil, err
	}
	var title cases.Caser
	if n.fn == strTitle {
		title = cases.Title(language.Und)
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		s := v.(string)
		switch n.fn {
		case strTrim:
			vals[i] = strings.TrimSpace(s)
		case strLower:
			vals[i] = strings.ToLower(s)
		case strUpper:
			vals[i] = strings.ToUpper(s)
		case strTitle:
			vals[i] = title.String(s)
		case strNullIfEmpty:
			if s == "" {
				vals[i] = nil
			}
		}
	}
	return buildArray(ec.mem, arrow.BinaryTypes.String, vals)
}

func (n strNode) String() string { return fmt.Sprintf("%s.%s()", n.e, strFnNames[n.fn]) }

type containsNode struct {
	e      Expr
	substr string
}

func (n containsNode) outputName() string { return n.e.Name() }

func (n containsNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	if _, err := n.e.n.dataType(sch); err != nil {
		return nil, err
	}
	return boolType, nil
}

func (n containsNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	vals, err := evalAs(ec, rec, n.e, arrow.BinaryTypes.String)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v != nil {
			vals[i] = strings.Contains(v.(string), n.substr)
		}
	}
	return buildArray(ec.mem, boolType, vals)
}

func (n containsNode) String() string { return fmt.Sprintf("%s.str.contains(%q)", n.e, n.substr) }

type listLenNode struct{ e Expr }

func (n listLenNode) outputName() string { return n.e.Name() }

func (n listLenNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	t, err := n.e.n.dataType(sch)
	if err != nil {
		return nil, err
	}
	if t.ID() != arrow.NULL && CoreType(t).Kind != core.KindList {
		return nil, fmt.Errorf("list.len needs a list operand, got %s", t)
	}
	return arrow.PrimitiveTypes.Int64, nil
}

func (n listLenNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	vals, _, err := evalValues(ec, rec, n.e)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if l, ok := v.([]any); ok {
			vals[i] = int64(len(l))
		}
	}
	return buildArray(ec.mem, arrow.PrimitiveTypes.Int64, vals)
}

func (n listLenNode) String() string { return n.e.String() + ".list.len()" }

type isFiniteNode struct{ e Expr }

func (n isFiniteNode) outputName() string { return n.e.Name() }

func (n isFiniteNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	t, err := n.e.n.dataType(sch)
	if err != nil {
		return nil, err
	}
	if t.ID() != arrow.NULL && !isNumeric(t) {
		return nil, fmt.Errorf("is_finite needs a numeric operand, got %s", t)
	}
	return boolType, nil
}

func (n isFiniteNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	vals, _, err := evalValues(ec, rec, n.e)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		switch x := v.(type) {
		case float64:
			vals[i] = !math.IsInf(x, 0) && !math.IsNaN(x)
		case int64:
			vals[i] = true
		}
	}
	return buildArray(ec.mem, boolType, vals)
}

func (n isFiniteNode) String() string { return n.e.String() + ".is_finite()" }

// =============================================================================
// Conditionals, list building and row maps
// =============================================================================

type whenNode struct {
	branches  []whenBranch
	otherwise *Expr
}

func (n whenNode) outputName() string { return n.branches[0].then.Name() }

func (n whenNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	var out arrow.DataType = arrow.Null
	values := make([]Expr, 0, len(n.branches)+1)
	for _, b := range n.branches {
		ct, err := b.cond.n.dataType(sch)
		if err != nil {
			return nil, err
		}
		if !isBoolish(ct) {
			return nil, fmt.Errorf("when condition must be boolean, got %s", ct)
		}
		values = append(values, b.then)
	}
	if n.otherwise != nil {
		values = append(values, *n.otherwise)
	}
	for _, v := range values {
		t, err := v.n.dataType(sch)
		if err != nil {
			return nil, err
		}
		if out.ID() == arrow.NULL {
			out = t
		}
	}
	return out, nil
}

func (n whenNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	dt, err := n.dataType(rec.Schema())
	if err != nil {
		return nil, err
	}
	rows := int(rec.NumRows())
	if dt.ID() == arrow.NULL {
		return array.MakeArrayOfNull(ec.mem, dt, rows), nil
	}

	conds := make([][]any, len(n.branches))
	thens := make([][]any, len(n.branches))
	for i, b := range n.branches {
		if conds[i], err = evalAs(ec, rec, b.cond, boolType); err != nil {
			return nil, err
		}
		if thens[i], err = evalAs(ec, rec, b.then, dt); err != nil {
			return nil, err
		}
	}
	var otherwise []any
	if n.otherwise != nil {
		if otherwise, err = evalAs(ec, rec, *n.otherwise, dt); err != nil {
			return nil, err
		}
	}

	out := make([]any, rows)
	for row := 0; row < rows; row++ {
		matched := false
		for i := range n.branches {
			if c, ok := conds[i][row].(bool); ok && c {
				out[row] = thens[i][row]
				matched = true
				break
			}
		}
		if !matched && otherwise != nil {
			out[row] = otherwise[row]
		}
	}
	return buildArray(ec.mem, dt, out)
}

func (n whenNode) String() string {
	var b strings.Builder
	for _, br := range n.branches {
		fmt.Fprintf(&b, "when(%s).then(%s).", br.cond, br.then)
	}
	if n.otherwise != nil {
		fmt.Fprintf(&b, "otherwise(%s)", *n.otherwise)
	} else {
		b.WriteString("end()")
	}
	return b.String()
}

type concatNode struct{ exprs []Expr }

func (n concatNode) outputName() string {
	if len(n.exprs) == 0 {
		return "literal"
	}
	return n.exprs[0].Name()
}

func (n concatNode) elemType(sch *arrow.Schema) (arrow.DataType, error) {
	for _, e := range n.exprs {
		t, err := e.n.dataType(sch)
		if err != nil {
			return nil, err
		}
		if t.ID() != arrow.NULL {
			return t, nil
		}
	}
	return nil, fmt.Errorf("concat needs at least one typed expression")
}

func (n concatNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	elem, err := n.elemType(sch)
	if err != nil {
		return nil, err
	}
	return arrow.ListOf(elem), nil
}

func (n concatNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	elem, err := n.elemType(rec.Schema())
	if err != nil {
		return nil, err
	}
	cols := make([][]any, len(n.exprs))
	for i, e := range n.exprs {
		if cols[i], err = evalAs(ec, rec, e, elem); err != nil {
			return nil, err
		}
	}
	rows := int(rec.NumRows())
	out := make([]any, rows)
	for row := 0; row < rows; row++ {
		list := []any{}
		for _, col := range cols {
			if col[row] != nil {
				list = append(list, col[row])
			}
		}
		out[row] = list
	}
	return buildArray(ec.mem, arrow.ListOf(elem), out)
}

func (n concatNode) String() string { return "concat_non_null(" + exprList(n.exprs) + ")" }

type mapNode struct {
	to   core.DataType
	fn   func(row []any) (any, error)
	args []Expr
}

func (n mapNode) outputName() string {
	if len(n.args) == 0 {
		return "map"
	}
	return n.args[0].Name()
}

func (n mapNode) dataType(sch *arrow.Schema) (arrow.DataType, error) {
	for _, a := range n.args {
		if _, err := a.n.dataType(sch); err != nil {
			return nil, err
		}
	}
	return ArrowType(n.to)
}

func (n mapNode) eval(ec *evalContext, rec arrow.Record) (arrow.Array, error) {
	dt, err := ArrowType(n.to)
	if err != nil {
		return nil, err
	}
	cols := make([][]any, len(n.args))
	for i, a := range n.args {
		if cols[i], _, err = evalValues(ec, rec, a); err != nil {
			return nil, err
		}
	}
	rows := int(rec.NumRows())
	out := make([]any, rows)
	row := make([]any, len(cols))
	for r := 0; r < rows; r++ {
		for i := range cols {
			row[i] = cols[i][r]
		}
		if out[r], err = n.fn(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
	}
	return buildArray(ec.mem, dt, out)
}

func (n mapNode) String() string { return "map(" + exprList(n.args) + ")" }

// =============================================================================
// Type predicates
// =============================================================================

func isNumeric(dt arrow.DataType) bool {
	k := CoreType(dt).Kind
	return k == core.KindInt64 || k == core.KindFloat64
}

func isBoolish(dt arrow.DataType) bool {
	return dt.ID() == arrow.BOOL || dt.ID() == arrow.NULL
}

func schemaNames(sch *arrow.Schema) []string {
	names := make([]string, sch.NumFields())
	for i, f := range sch.Fields() {
		names[i] = f.Name
	}
	return names
}
