// Package rules checks rows of a lazy frame against named rules and reports
// which rows break which rules.
//
// Rules run after a frame has passed the schema gate: the gate checks the
// shape of the data, rules check its content. Applying rules is part of the
// plan and evaluates nothing; Summary and Report collect.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/lazy"
)

// ErrorsColumn is the list<string> column holding the names of the rules a
// row breaks.
const ErrorsColumn = "validation_errors"

// Rule is a named row check. A row breaks the rule where Check is false;
// a null check result counts as passing.
type Rule struct {
	Name        string
	Description string
	Check       lazy.Expr
}

// NotNull requires a value in column.
func NotNull(column string) Rule {
	return Rule{
		Name:        column + "_required",
		Description: fmt.Sprintf("%s must not be null", column),
		Check:       lazy.Col(column).IsNotNull(),
	}
}

// Matches requires string values in column to match pattern. Nulls pass.
func Matches(column, pattern string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s_format: %w", column, err)
	}
	check := lazy.Map(core.Bool, func(row []any) (any, error) {
		s, ok := row[0].(string)
		if !ok {
			return nil, nil
		}
		return re.MatchString(s), nil
	}, lazy.Col(column))
	return Rule{
		Name:        column + "_format",
		Description: fmt.Sprintf("%s must match %s", column, pattern),
		Check:       check,
	}, nil
}

// OneOf requires values in column to be one of values. Nulls pass.
func OneOf(column string, values ...any) Rule {
	col := lazy.Col(column)
	return Rule{
		Name:        "valid_" + column,
		Description: fmt.Sprintf("%s must be one of %v", column, values),
		Check:       col.IsNull().Or(col.IsIn(values...)),
	}
}

// Apply adds ErrorsColumn to f, listing for every row the names of the
// rules it breaks in rule order.
func Apply(f *lazy.Frame, rules ...Rule) *lazy.Frame {
	if len(rules) == 0 {
		return f.WithColumns(lazy.ConcatNonNull(lazy.Null().Cast(core.String)).Alias(ErrorsColumn))
	}
	errs := make([]lazy.Expr, len(rules))
	for i, r := range rules {
		errs[i] = lazy.When(r.Check.Not()).Then(lazy.Lit(r.Name)).End()
	}
	return f.WithColumns(lazy.ConcatNonNull(errs...).Alias(ErrorsColumn))
}

// Valid keeps rows that break no rule.
func Valid(f *lazy.Frame) *lazy.Frame {
	return f.Filter(lazy.Col(ErrorsColumn).ListLen().Eq(lazy.Lit(0)))
}

// Invalid keeps rows that break at least one rule.
func Invalid(f *lazy.Frame) *lazy.Frame {
	return f.Filter(lazy.Col(ErrorsColumn).ListLen().Gt(lazy.Lit(0)))
}

// RuleCount is the number of rows breaking one rule.
type RuleCount struct {
	Rule  string `json:"error"`
	Count int64  `json:"count"`
}

// Report summarizes a frame that went through Apply.
type Report struct {
	TotalRecords   int64       `json:"total_records"`
	ValidRecords   int64       `json:"valid_records"`
	InvalidRecords int64       `json:"invalid_records"`
	ValidityRate   float64     `json:"validity_rate"`
	ErrorsByRule   []RuleCount `json:"errors_by_rule"`
}

// Summary collects f and counts the rows breaking each rule, most frequent
// first. Ties are ordered by rule name.
func Summary(ctx context.Context, f *lazy.Frame) ([]RuleCount, error) {
	r, err := BuildReport(ctx, f)
	if err != nil {
		return nil, err
	}
	return r.ErrorsByRule, nil
}

// BuildReport collects f once and computes the validation statistics.
func BuildReport(ctx context.Context, f *lazy.Frame) (*Report, error) {
	df, err := f.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting validated frame: %w", err)
	}
	defer df.Release()

	lists, err := df.Column(ErrorsColumn)
	if err != nil {
		return nil, fmt.Errorf("frame has no %s column; apply rules first: %w", ErrorsColumn, err)
	}

	r := &Report{TotalRecords: int64(len(lists)), ErrorsByRule: []RuleCount{}}
	counts := map[string]int64{}
	for _, v := range lists {
		errs, _ := v.([]any)
		if len(errs) == 0 {
			r.ValidRecords++
			continue
		}
		for _, e := range errs {
			if name, ok := e.(string); ok {
				counts[name]++
			}
		}
	}
	r.InvalidRecords = r.TotalRecords - r.ValidRecords
	if r.TotalRecords > 0 {
		r.ValidityRate = float64(r.ValidRecords) / float64(r.TotalRecords)
	}
	for name, n := range counts {
		r.ErrorsByRule = append(r.ErrorsByRule, RuleCount{Rule: name, Count: n})
	}
	sort.Slice(r.ErrorsByRule, func(i, j int) bool {
		a, b := r.ErrorsByRule[i], r.ErrorsByRule[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Rule < b.Rule
	})
	return r, nil
}
