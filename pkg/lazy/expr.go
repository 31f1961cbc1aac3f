package lazy

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/schema"
)

// Expr is a deferred column expression. Expressions are values: every method
// returns a new Expr and none of them touches data.
type Expr struct {
	n exprNode
}

type exprNode interface {
	// outputName is the column name the expression produces when not aliased.
	outputName() string
	// dataType infers the result type against an input schema.
	dataType(sch *arrow.Schema) (arrow.DataType, error)
	// eval computes the expression over rec. The caller releases the result.
	eval(ec *evalContext, rec arrow.Record) (arrow.Array, error)
	String() string
}

type evalContext struct {
	ctx context.Context
	mem memory.Allocator
}

// Col references a column by name.
func Col(name string) Expr { return Expr{colNode{name: name}} }

// C references a schema column. It is a pure function of the descriptor.
func C(col schema.Column) Expr { return Col(col.Name()) }

// Lit is a literal broadcast to the frame length. Supported values are Go
// strings, integers, floats, bools, core.Date, time.Time, slices of those,
// and nil.
func Lit(v any) Expr { return Expr{litNode{v: v}} }

// Null is an untyped null literal.
func Null() Expr { return Lit(nil) }

// Name returns the output column name of the expression.
func (e Expr) Name() string { return e.n.outputName() }

// String renders the expression.
func (e Expr) String() string {
	if e.n == nil {
		return "<nil>"
	}
	return e.n.String()
}

// DataType infers the expression's result type against sch without
// evaluating anything.
func (e Expr) DataType(sch *arrow.Schema) (arrow.DataType, error) {
	return e.n.dataType(sch)
}

// Alias renames the output column.
func (e Expr) Alias(name string) Expr { return Expr{aliasNode{e: e, name: name}} }

// Cast converts to a semantic type using Arrow's safe cast.
func (e Expr) Cast(t core.DataType) Expr { return Expr{castNode{e: e, to: t}} }

// Arithmetic. Integer operands are promoted to float64 when mixed with
// floats; Div always yields float64.
func (e Expr) Add(o Expr) Expr { return binary(opAdd, e, o) }
func (e Expr) Sub(o Expr) Expr { return binary(opSub, e, o) }
func (e Expr) Mul(o Expr) Expr { return binary(opMul, e, o) }
func (e Expr) Div(o Expr) Expr { return binary(opDiv, e, o) }

// Comparisons yield booleans; null operands yield null.
func (e Expr) Eq(o Expr) Expr { return binary(opEq, e, o) }
func (e Expr) Ne(o Expr) Expr { return binary(opNe, e, o) }
func (e Expr) Lt(o Expr) Expr { return binary(opLt, e, o) }
func (e Expr) Le(o Expr) Expr { return binary(opLe, e, o) }
func (e Expr) Gt(o Expr) Expr { return binary(opGt, e, o) }
func (e Expr) Ge(o Expr) Expr { return binary(opGe, e, o) }

// And and Or follow Kleene logic.
func (e Expr) And(o Expr) Expr { return binary(opAnd, e, o) }
func (e Expr) Or(o Expr) Expr  { return binary(opOr, e, o) }

// Not negates a boolean expression.
func (e Expr) Not() Expr { return Expr{notNode{e: e}} }

// IsNull is true where the value is null.
func (e Expr) IsNull() Expr { return Expr{nullCheckNode{e: e}} }

// IsNotNull is true where the value is not null.
func (e Expr) IsNotNull() Expr { return Expr{nullCheckNode{e: e, negate: true}} }

// IsIn is true where the value equals one of values.
func (e Expr) IsIn(values ...any) Expr { return Expr{isInNode{e: e, values: values}} }

// FillNull replaces nulls with the value of fill.
func (e Expr) FillNull(fill Expr) Expr { return Expr{fillNullNode{e: e, fill: fill}} }

// StrTrim strips leading and trailing whitespace.
func (e Expr) StrTrim() Expr { return Expr{strNode{fn: strTrim, e: e}} }

// StrLower lowercases.
func (e Expr) StrLower() Expr { return Expr{strNode{fn: strLower, e: e}} }

// StrUpper uppercases.
func (e Expr) StrUpper() Expr { return Expr{strNode{fn: strUpper, e: e}} }

// StrToTitle title-cases each word.
func (e Expr) StrToTitle() Expr { return Expr{strNode{fn: strTitle, e: e}} }

// StrNullIfEmpty replaces empty strings with null.
func (e Expr) StrNullIfEmpty() Expr { return Expr{strNode{fn: strNullIfEmpty, e: e}} }

// StrContains is true where the string contains substr.
func (e Expr) StrContains(substr string) Expr {
	return Expr{containsNode{e: e, substr: substr}}
}

// ListLen returns the length of list values.
func (e Expr) ListLen() Expr { return Expr{listLenNode{e: e}} }

// IsFinite is true for finite numbers.
func (e Expr) IsFinite() Expr { return Expr{isFiniteNode{e: e}} }

// ConcatNonNull collects the non-null values of exprs into one list per row.
// The list element type is the type of the first non-null-typed expression.
func ConcatNonNull(exprs ...Expr) Expr { return Expr{concatNode{exprs: exprs}} }

// Map applies fn row by row over the values of args and returns a column of
// type t. Values passed to fn are canonical Go values with nil for nulls.
func Map(t core.DataType, fn func(row []any) (any, error), args ...Expr) Expr {
	return Expr{mapNode{to: t, fn: fn, args: args}}
}

// =============================================================================
// Conditionals
// =============================================================================

// WhenThen is a partially built conditional expression.
type WhenThen struct {
	branches []whenBranch
}

// Condition is a conditional waiting for its Then value.
type Condition struct {
	branches []whenBranch
	cond     Expr
}

type whenBranch struct {
	cond Expr
	then Expr
}

// When starts a conditional: When(c).Then(v).When(c2).Then(v2).Otherwise(v3).
func When(cond Expr) Condition { return Condition{cond: cond} }

// Then sets the value used where the pending condition is true.
func (c Condition) Then(v Expr) WhenThen {
	branches := append(append([]whenBranch(nil), c.branches...), whenBranch{cond: c.cond, then: v})
	return WhenThen{branches: branches}
}

// When adds another condition, tested only where earlier ones were not true.
func (w WhenThen) When(cond Expr) Condition {
	return Condition{branches: w.branches, cond: cond}
}

// Otherwise completes the conditional with a fallback value.
func (w WhenThen) Otherwise(v Expr) Expr {
	return Expr{whenNode{branches: w.branches, otherwise: &v}}
}

// End completes the conditional with null as the fallback.
func (w WhenThen) End() Expr {
	return Expr{whenNode{branches: w.branches}}
}

func exprList(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func formatLit(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
