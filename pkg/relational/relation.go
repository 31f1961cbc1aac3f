package relational

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/das/pkg/core"
)

// JoinHow selects the join type.
type JoinHow string

// Join types.
const (
	JoinInner JoinHow = "inner"
	JoinLeft  JoinHow = "left"
)

const rightSuffix = "_right"

// Relation is an immutable DuckDB query. Every method returns a new
// Relation; nothing runs until the relation is inspected or materialized.
type Relation struct {
	sess *Session
	node relNode
}

// relNode renders one query. Nodes that depend on their input's columns
// call back into the session, which issues DESCRIBE only.
type relNode interface {
	render(ctx context.Context, s *Session) (string, error)
}

func (s *Session) rel(n relNode) *Relation { return &Relation{sess: s, node: n} }

// Table starts from a table or view, optionally schema-qualified.
func (s *Session) Table(name string) *Relation {
	return s.rel(sqlNode("SELECT * FROM " + quoteQualified(name)))
}

// SQL starts from an arbitrary query.
func (s *Session) SQL(query string) *Relation {
	return s.rel(sqlNode(query))
}

// ReadParquet starts from Parquet files. path may be a glob or a remote URL
// when the matching extension and secret are configured.
func (s *Session) ReadParquet(path string) *Relation {
	return s.rel(sqlNode("SELECT * FROM read_parquet(" + quoteString(path) + ")"))
}

// ReadCSV starts from CSV files with a header row and inferred types.
func (s *Session) ReadCSV(path string) *Relation {
	return s.rel(sqlNode("SELECT * FROM read_csv_auto(" + quoteString(path) + ", header=true)"))
}

// ReadJSON starts from JSON or newline-delimited JSON files.
func (s *Session) ReadJSON(path string) *Relation {
	return s.rel(sqlNode("SELECT * FROM read_json_auto(" + quoteString(path) + ")"))
}

// Values starts from in-memory rows aligned with fields. Every cell is cast
// to its field's type, so the relation's types are exactly fields' types
// even when a column is entirely NULL.
func (s *Session) Values(fields []core.Field, rows [][]any) (*Relation, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("values: no columns")
	}
	names := make([]string, len(fields))
	for j, f := range fields {
		names[j] = quoteIdent(f.Name)
	}

	if len(rows) == 0 {
		cols := make([]string, len(fields))
		for j, f := range fields {
			lit, err := typedLiteral(nil, f.Type)
			if err != nil {
				return nil, fmt.Errorf("values: column %s: %w", f.Name, err)
			}
			cols[j] = lit + " AS " + names[j]
		}
		return s.rel(sqlNode("SELECT " + strings.Join(cols, ", ") + " LIMIT 0")), nil
	}

	tuples := make([]string, len(rows))
	for i, row := range rows {
		if len(row) != len(fields) {
			return nil, fmt.Errorf("values: row %d has %d values, want %d", i, len(row), len(fields))
		}
		cells := make([]string, len(fields))
		for j, f := range fields {
			lit, err := typedLiteral(row[j], f.Type)
			if err != nil {
				return nil, fmt.Errorf("values: row %d column %s: %w", i, f.Name, err)
			}
			cells[j] = lit
		}
		tuples[i] = "(" + strings.Join(cells, ", ") + ")"
	}
	query := "SELECT * FROM (VALUES " + strings.Join(tuples, ", ") + ") AS v(" + strings.Join(names, ", ") + ")"
	return s.rel(sqlNode(query)), nil
}

func (r *Relation) derive(n relNode) *Relation { return &Relation{sess: r.sess, node: n} }

// Session returns the relation's session.
func (r *Relation) Session() *Session { return r.sess }

// SQL renders the relation's query. Relations built with WithColumns,
// Rename or Join describe their inputs to render.
func (r *Relation) SQL(ctx context.Context) (string, error) {
	return r.node.render(ctx, r.sess)
}

// Select projects onto exprs.
func (r *Relation) Select(exprs ...Expr) *Relation {
	return r.derive(&projectNode{input: r.node, exprs: exprs})
}

// WithColumns adds or replaces columns. Existing columns that are not
// replaced keep their order; the named columns follow in argument order. A
// name given twice takes its last expression.
func (r *Relation) WithColumns(named ...NamedExpr) *Relation {
	return r.derive(&withColumnsNode{input: r.node, named: append([]NamedExpr(nil), named...)})
}

// WithExprs is WithColumns keyed by each expression's output name.
func (r *Relation) WithExprs(exprs ...Expr) *Relation {
	named := make([]NamedExpr, len(exprs))
	for i, e := range exprs {
		named[i] = Named(e.Name(), e.Unalias())
	}
	return r.WithColumns(named...)
}

// Filter keeps rows where pred is true.
func (r *Relation) Filter(pred Expr) *Relation {
	return r.derive(&filterNode{input: r.node, pred: pred})
}

// Rename renames columns, old name to new name.
func (r *Relation) Rename(mapping map[string]string) *Relation {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return r.derive(&renameNode{input: r.node, mapping: m})
}

// Join joins other on equally named key columns. Right-side columns that
// clash with left-side names get the suffix "_right".
func (r *Relation) Join(other *Relation, how JoinHow, using ...string) *Relation {
	return r.derive(&joinNode{left: r.node, right: other.node, how: how, using: append([]string(nil), using...)})
}

// Limit keeps at most n rows.
func (r *Relation) Limit(n int64) *Relation {
	if n < 0 {
		n = 0
	}
	return r.derive(&limitNode{input: r.node, n: n})
}

// OrderBy sorts by keys. Use Expr.Desc for descending order.
func (r *Relation) OrderBy(keys ...Expr) *Relation {
	return r.derive(&orderNode{input: r.node, keys: keys})
}

// Aggregate groups by groups and computes aggs per group. With no groups
// the whole relation is one group.
func (r *Relation) Aggregate(groups []Expr, aggs ...Expr) *Relation {
	return r.derive(&aggregateNode{input: r.node, groups: groups, aggs: aggs})
}

// =============================================================================
// Nodes
// =============================================================================

type sqlNode string

func (n sqlNode) render(context.Context, *Session) (string, error) { return string(n), nil }

func subquery(ctx context.Context, s *Session, n relNode) (string, error) {
	q, err := n.render(ctx, s)
	if err != nil {
		return "", err
	}
	return "(" + q + ")", nil
}

type projectNode struct {
	input relNode
	exprs []Expr
}

func (n *projectNode) render(ctx context.Context, s *Session) (string, error) {
	if len(n.exprs) == 0 {
		return "", fmt.Errorf("select: no expressions")
	}
	from, err := subquery(ctx, s, n.input)
	if err != nil {
		return "", err
	}
	cols, err := renderAll(n.exprs)
	if err != nil {
		return "", fmt.Errorf("select: %w", err)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + from + " AS _t", nil
}

type withColumnsNode struct {
	input relNode
	named []NamedExpr
}

func (n *withColumnsNode) render(ctx context.Context, s *Session) (string, error) {
	inQuery, err := n.input.render(ctx, s)
	if err != nil {
		return "", err
	}
	existing, err := s.describe(ctx, inQuery)
	if err != nil {
		return "", err
	}

	last := make(map[string]int, len(n.named))
	for i, ne := range n.named {
		last[ne.Name] = i
	}
	var cols []string
	for _, f := range existing {
		if _, replaced := last[f.Name]; !replaced {
			cols = append(cols, quoteIdent(f.Name))
		}
	}
	for i, ne := range n.named {
		if last[ne.Name] != i {
			continue
		}
		e, err := ne.Expr.operand()
		if err != nil {
			return "", fmt.Errorf("with_columns %s: %w", ne.Name, err)
		}
		cols = append(cols, e+" AS "+quoteIdent(ne.Name))
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM (" + inQuery + ") AS _t", nil
}

type filterNode struct {
	input relNode
	pred  Expr
}

func (n *filterNode) render(ctx context.Context, s *Session) (string, error) {
	from, err := subquery(ctx, s, n.input)
	if err != nil {
		return "", err
	}
	pred, err := n.pred.operand()
	if err != nil {
		return "", fmt.Errorf("filter: %w", err)
	}
	return "SELECT * FROM " + from + " AS _t WHERE " + pred, nil
}

type renameNode struct {
	input   relNode
	mapping map[string]string
}

func (n *renameNode) render(ctx context.Context, s *Session) (string, error) {
	inQuery, err := n.input.render(ctx, s)
	if err != nil {
		return "", err
	}
	existing, err := s.describe(ctx, inQuery)
	if err != nil {
		return "", err
	}

	seen := make(map[string]bool, len(existing))
	cols := make([]string, len(existing))
	for i, f := range existing {
		out := f.Name
		if to, ok := n.mapping[f.Name]; ok {
			out = to
		}
		if seen[out] {
			return "", fmt.Errorf("rename: duplicate column %q", out)
		}
		seen[out] = true
		cols[i] = quoteIdent(f.Name) + " AS " + quoteIdent(out)
	}
	for from := range n.mapping {
		if _, ok := core.LookupField(existing, from); !ok {
			return "", fmt.Errorf("rename: column %q not found in %s", from, core.FormatFields(existing))
		}
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM (" + inQuery + ") AS _t", nil
}

type joinNode struct {
	left, right relNode
	how         JoinHow
	using       []string
}

func (n *joinNode) render(ctx context.Context, s *Session) (string, error) {
	var kw string
	switch n.how {
	case JoinInner:
		kw = "INNER JOIN"
	case JoinLeft:
		kw = "LEFT JOIN"
	default:
		return "", fmt.Errorf("join: unsupported join type %q", n.how)
	}
	if len(n.using) == 0 {
		return "", fmt.Errorf("join: no key columns")
	}

	lq, err := n.left.render(ctx, s)
	if err != nil {
		return "", err
	}
	rq, err := n.right.render(ctx, s)
	if err != nil {
		return "", err
	}
	lf, err := s.describe(ctx, lq)
	if err != nil {
		return "", err
	}
	rf, err := s.describe(ctx, rq)
	if err != nil {
		return "", err
	}

	keys := make(map[string]bool, len(n.using))
	quotedKeys := make([]string, len(n.using))
	for i, k := range n.using {
		lk, lok := core.LookupField(lf, k)
		rk, rok := core.LookupField(rf, k)
		if !lok || !rok {
			return "", fmt.Errorf("join: key column %q missing on one side", k)
		}
		if !lk.Type.Equal(rk.Type) {
			return "", fmt.Errorf("join: key column %q has type %s on the left and %s on the right", k, lk.Type, rk.Type)
		}
		keys[k] = true
		quotedKeys[i] = quoteIdent(k)
	}

	taken := make(map[string]bool, len(lf)+len(rf))
	cols := make([]string, 0, len(lf)+len(rf))
	for _, f := range lf {
		taken[f.Name] = true
		cols = append(cols, "_l."+quoteIdent(f.Name))
	}
	for _, f := range rf {
		if keys[f.Name] {
			continue
		}
		out := f.Name
		if taken[out] {
			out += rightSuffix
		}
		taken[out] = true
		cols = append(cols, "_r."+quoteIdent(f.Name)+" AS "+quoteIdent(out))
	}
	return fmt.Sprintf("SELECT %s FROM (%s) AS _l %s (%s) AS _r USING (%s)",
		strings.Join(cols, ", "), lq, kw, rq, strings.Join(quotedKeys, ", ")), nil
}

type limitNode struct {
	input relNode
	n     int64
}

func (n *limitNode) render(ctx context.Context, s *Session) (string, error) {
	from, err := subquery(ctx, s, n.input)
	if err != nil {
		return "", err
	}
	return "SELECT * FROM " + from + " AS _t LIMIT " + strconv.FormatInt(n.n, 10), nil
}

type orderNode struct {
	input relNode
	keys  []Expr
}

func (n *orderNode) render(ctx context.Context, s *Session) (string, error) {
	from, err := subquery(ctx, s, n.input)
	if err != nil {
		return "", err
	}
	if len(n.keys) == 0 {
		return "SELECT * FROM " + from + " AS _t", nil
	}
	keys, err := renderOperands(n.keys)
	if err != nil {
		return "", fmt.Errorf("order by: %w", err)
	}
	return "SELECT * FROM " + from + " AS _t ORDER BY " + strings.Join(keys, ", "), nil
}

type aggregateNode struct {
	input  relNode
	groups []Expr
	aggs   []Expr
}

func (n *aggregateNode) render(ctx context.Context, s *Session) (string, error) {
	from, err := subquery(ctx, s, n.input)
	if err != nil {
		return "", err
	}
	groups, err := renderOperands(n.groups)
	if err != nil {
		return "", fmt.Errorf("aggregate: %w", err)
	}
	aggs, err := renderAll(n.aggs)
	if err != nil {
		return "", fmt.Errorf("aggregate: %w", err)
	}
	sel := append(append([]string(nil), groups...), aggs...)
	if len(sel) == 0 {
		return "", fmt.Errorf("aggregate: no expressions")
	}
	q := "SELECT " + strings.Join(sel, ", ") + " FROM " + from + " AS _t"
	if len(groups) > 0 {
		// group keys may carry aliases, so group by position
		pos := make([]string, len(groups))
		for i := range groups {
			pos[i] = strconv.Itoa(i + 1)
		}
		q += " GROUP BY " + strings.Join(pos, ", ")
	}
	return q, nil
}
