package relational

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/schema"
)

// Expr is a DuckDB expression. It is a value: building expressions never
// touches a database. Invalid literals are reported when the expression is
// rendered.
type Expr struct {
	n exprNode
}

type exprNode interface {
	render() (string, error)
	name() string
}

// NamedExpr pairs an expression with an output column name.
type NamedExpr struct {
	Name string
	Expr Expr
}

// Named returns a NamedExpr.
func Named(name string, e Expr) NamedExpr { return NamedExpr{Name: name, Expr: e} }

// Col references a column by name.
func Col(name string) Expr { return Expr{colExpr{col: name}} }

// C references a schema column. It only reads the bound name.
func C(c schema.Column) Expr { return Col(c.Name()) }

// Lit is a constant. Go values are converted to their canonical type first.
func Lit(v any) Expr { return Expr{litExpr{v: v}} }

// Null is an untyped NULL.
func Null() Expr { return Expr{litExpr{}} }

// Func calls a DuckDB function.
func Func(name string, args ...Expr) Expr {
	return Expr{funcExpr{fn: name, args: args}}
}

// Lambda builds a DuckDB lambda "params -> body" for list functions. Inside
// the body the parameters are referenced with Col.
func Lambda(body Expr, params ...string) Expr {
	return Expr{lambdaExpr{params: params, body: body}}
}

// Star selects every column, minus the excluded ones.
func Star(exclude ...string) Expr {
	return Expr{starExpr{exclude: exclude}}
}

// Raw embeds a SQL fragment verbatim.
func Raw(sql string) Expr { return Expr{rawExpr(sql)} }

// Name returns the column name DuckDB gives the expression in a select list.
func (e Expr) Name() string { return e.n.name() }

// SQL renders the expression.
func (e Expr) SQL() (string, error) { return e.n.render() }

// String renders the expression, or a placeholder for an invalid one.
func (e Expr) String() string {
	s, err := e.n.render()
	if err != nil {
		return "<invalid: " + err.Error() + ">"
	}
	return s
}

// Alias renames the expression's output column. Aliasing an aliased
// expression replaces the earlier alias.
func (e Expr) Alias(name string) Expr { return Expr{aliasExpr{inner: e.Unalias(), alias: name}} }

// Cast converts to t.
func (e Expr) Cast(t core.DataType) Expr { return Expr{castExpr{inner: e, to: t}} }

// Unalias strips the alias, if any.
func (e Expr) Unalias() Expr {
	for {
		a, ok := e.n.(aliasExpr)
		if !ok {
			return e
		}
		e = a.inner
	}
}

// operand renders e for use inside another expression, where an alias is
// not valid SQL.
func (e Expr) operand() (string, error) { return e.Unalias().SQL() }

// Desc orders descending when used in OrderBy.
func (e Expr) Desc() Expr { return Expr{suffixExpr{inner: e, suffix: "DESC"}} }

func (e Expr) Add(o Expr) Expr { return binary("+", e, o) }
func (e Expr) Sub(o Expr) Expr { return binary("-", e, o) }
func (e Expr) Mul(o Expr) Expr { return binary("*", e, o) }

// Div divides. DuckDB's "/" always yields DOUBLE.
func (e Expr) Div(o Expr) Expr { return binary("/", e, o) }

func (e Expr) Eq(o Expr) Expr  { return binary("=", e, o) }
func (e Expr) Ne(o Expr) Expr  { return binary("<>", e, o) }
func (e Expr) Lt(o Expr) Expr  { return binary("<", e, o) }
func (e Expr) Le(o Expr) Expr  { return binary("<=", e, o) }
func (e Expr) Gt(o Expr) Expr  { return binary(">", e, o) }
func (e Expr) Ge(o Expr) Expr  { return binary(">=", e, o) }
func (e Expr) And(o Expr) Expr { return binary("AND", e, o) }
func (e Expr) Or(o Expr) Expr  { return binary("OR", e, o) }

// Not negates a boolean.
func (e Expr) Not() Expr { return Expr{prefixExpr{inner: e, prefix: "NOT"}} }

// IsNull is true for null values.
func (e Expr) IsNull() Expr { return Expr{suffixExpr{inner: e, suffix: "IS NULL", wrap: true}} }

// IsNotNull is true for non-null values.
func (e Expr) IsNotNull() Expr { return Expr{suffixExpr{inner: e, suffix: "IS NOT NULL", wrap: true}} }

// IsIn is true when the value equals one of values.
func (e Expr) IsIn(values ...any) Expr {
	return Expr{inExpr{inner: e, values: values}}
}

func binary(op string, l, r Expr) Expr {
	return Expr{binaryExpr{op: op, l: l, r: r}}
}

func renderAll(exprs []Expr) ([]string, error) {
	return renderEach(exprs, Expr.SQL)
}

func renderOperands(exprs []Expr) ([]string, error) {
	return renderEach(exprs, Expr.operand)
}

func renderEach(exprs []Expr, render func(Expr) (string, error)) ([]string, error) {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := render(e)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// =============================================================================
// Nodes
// =============================================================================

type colExpr struct{ col string }

func (c colExpr) render() (string, error) { return quoteIdent(c.col), nil }
func (c colExpr) name() string            { return c.col }

type litExpr struct{ v any }

func (l litExpr) render() (string, error) {
	v, err := canonical(l.v)
	if err != nil {
		return "", fmt.Errorf("literal: %w", err)
	}
	return literal(v)
}

func (l litExpr) name() string { return selfName(l) }

type aliasExpr struct {
	inner Expr
	alias string
}

func (a aliasExpr) render() (string, error) {
	s, err := a.inner.operand()
	if err != nil {
		return "", err
	}
	return s + " AS " + quoteIdent(a.alias), nil
}

func (a aliasExpr) name() string { return a.alias }

type castExpr struct {
	inner Expr
	to    core.DataType
}

func (c castExpr) render() (string, error) {
	s, err := c.inner.operand()
	if err != nil {
		return "", err
	}
	typ, err := TypeSQL(c.to)
	if err != nil {
		return "", err
	}
	return "CAST(" + s + " AS " + typ + ")", nil
}

func (c castExpr) name() string { return selfName(c) }

type binaryExpr struct {
	op   string
	l, r Expr
}

func (b binaryExpr) render() (string, error) {
	l, err := b.l.operand()
	if err != nil {
		return "", err
	}
	r, err := b.r.operand()
	if err != nil {
		return "", err
	}
	return "(" + l + " " + b.op + " " + r + ")", nil
}

func (b binaryExpr) name() string { return selfName(b) }

type prefixExpr struct {
	inner  Expr
	prefix string
}

func (p prefixExpr) render() (string, error) {
	s, err := p.inner.operand()
	if err != nil {
		return "", err
	}
	return "(" + p.prefix + " " + s + ")", nil
}

func (p prefixExpr) name() string { return selfName(p) }

type suffixExpr struct {
	inner  Expr
	suffix string
	wrap   bool
}

func (p suffixExpr) render() (string, error) {
	s, err := p.inner.operand()
	if err != nil {
		return "", err
	}
	if p.wrap {
		return "(" + s + " " + p.suffix + ")", nil
	}
	return s + " " + p.suffix, nil
}

func (p suffixExpr) name() string { return selfName(p) }

type inExpr struct {
	inner  Expr
	values []any
}

func (in inExpr) render() (string, error) {
	s, err := in.inner.operand()
	if err != nil {
		return "", err
	}
	if len(in.values) == 0 {
		return "FALSE", nil
	}
	vals := make([]string, len(in.values))
	for i, v := range in.values {
		if vals[i], err = (litExpr{v: v}).render(); err != nil {
			return "", err
		}
	}
	return "(" + s + " IN (" + strings.Join(vals, ", ") + "))", nil
}

func (in inExpr) name() string { return selfName(in) }

type funcExpr struct {
	fn   string
	args []Expr
}

func (f funcExpr) render() (string, error) {
	args, err := renderOperands(f.args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.fn, err)
	}
	return f.fn + "(" + strings.Join(args, ", ") + ")", nil
}

func (f funcExpr) name() string { return selfName(f) }

type lambdaExpr struct {
	params []string
	body   Expr
}

func (l lambdaExpr) render() (string, error) {
	body, err := l.body.operand()
	if err != nil {
		return "", err
	}
	params := strings.Join(l.params, ", ")
	if len(l.params) != 1 {
		params = "(" + params + ")"
	}
	return params + " -> " + body, nil
}

func (l lambdaExpr) name() string { return selfName(l) }

type starExpr struct{ exclude []string }

func (s starExpr) render() (string, error) {
	if len(s.exclude) == 0 {
		return "*", nil
	}
	cols := make([]string, len(s.exclude))
	for i, c := range s.exclude {
		cols[i] = quoteIdent(c)
	}
	return "* EXCLUDE (" + strings.Join(cols, ", ") + ")", nil
}

func (s starExpr) name() string { return "*" }

type rawExpr string

func (r rawExpr) render() (string, error) { return string(r), nil }
func (r rawExpr) name() string            { return string(r) }

func selfName(n exprNode) string {
	s, err := n.render()
	if err != nil {
		return ""
	}
	return s
}

// =============================================================================
// CASE
// =============================================================================

// CaseExpr is a CASE expression under construction.
type CaseExpr struct {
	whens []whenClause
}

type whenClause struct{ cond, then Expr }

// Case starts a CASE expression.
func Case() CaseExpr { return CaseExpr{} }

// When adds a branch.
func (c CaseExpr) When(cond, then Expr) CaseExpr {
	whens := append(append([]whenClause(nil), c.whens...), whenClause{cond: cond, then: then})
	return CaseExpr{whens: whens}
}

// Otherwise closes the CASE with a default.
func (c CaseExpr) Otherwise(e Expr) Expr {
	return Expr{caseExpr{whens: c.whens, otherwise: &e}}
}

// End closes the CASE; unmatched rows are NULL.
func (c CaseExpr) End() Expr {
	return Expr{caseExpr{whens: c.whens}}
}

type caseExpr struct {
	whens     []whenClause
	otherwise *Expr
}

func (c caseExpr) render() (string, error) {
	if len(c.whens) == 0 {
		return "", fmt.Errorf("CASE without WHEN")
	}
	var b strings.Builder
	b.WriteString("CASE")
	for _, w := range c.whens {
		cond, err := w.cond.operand()
		if err != nil {
			return "", err
		}
		then, err := w.then.operand()
		if err != nil {
			return "", err
		}
		b.WriteString(" WHEN " + cond + " THEN " + then)
	}
	if c.otherwise != nil {
		o, err := c.otherwise.operand()
		if err != nil {
			return "", err
		}
		b.WriteString(" ELSE " + o)
	}
	b.WriteString(" END")
	return b.String(), nil
}

func (c caseExpr) name() string { return selfName(c) }
