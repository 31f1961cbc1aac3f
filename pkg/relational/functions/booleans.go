package functions

import (
	"context"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/relational"
)

// MapToBoolean maps trueValues to TRUE and falseValues to FALSE, comparing
// the column's VARCHAR form. Any other value becomes NULL.
func MapToBoolean(col relational.Expr, trueValues, falseValues []string) relational.Expr {
	text := col.Cast(core.String)
	return relational.Case().
		When(text.IsIn(anySlice(trueValues)...), relational.Lit(true)).
		When(text.IsIn(anySlice(falseValues)...), relational.Lit(false)).
		End().Alias(col.Name())
}

// ConvertStringsToBoolean applies MapToBoolean to the named columns that
// exist in the relation; absent names are ignored.
func ConvertStringsToBoolean(ctx context.Context, r *relational.Relation, columns, trueValues, falseValues []string) (*relational.Relation, error) {
	return mapExisting(ctx, r, columns, func(c relational.Expr) relational.Expr {
		return MapToBoolean(c, trueValues, falseValues)
	})
}

// mapExisting replaces each named column present in r with fn(column).
func mapExisting(ctx context.Context, r *relational.Relation, columns []string, fn func(relational.Expr) relational.Expr) (*relational.Relation, error) {
	names, err := r.ColumnNames(ctx)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(names))
	for _, n := range names {
		existing[n] = true
	}
	var exprs []relational.Expr
	for _, c := range columns {
		if existing[c] {
			exprs = append(exprs, fn(relational.Col(c)))
			existing[c] = false
		}
	}
	if len(exprs) == 0 {
		return r, nil
	}
	return r.WithExprs(exprs...), nil
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
