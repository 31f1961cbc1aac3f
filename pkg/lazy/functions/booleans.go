package functions

import (
	"github.com/leapstack-labs/das/pkg/lazy"
)

// StringToBoolean maps trueValues to true and falseValues to false; any
// other value becomes null.
func StringToBoolean(col lazy.Expr, trueValues, falseValues []string) lazy.Expr {
	return lazy.When(col.IsIn(anySlice(trueValues)...)).Then(lazy.Lit(true)).
		When(col.IsIn(anySlice(falseValues)...)).Then(lazy.Lit(false)).
		End().Alias(col.Name())
}

// ConvertStringsToBoolean applies StringToBoolean to the named columns that
// exist in the frame; absent names are ignored.
func ConvertStringsToBoolean(f *lazy.Frame, columns, trueValues, falseValues []string) (*lazy.Frame, error) {
	return mapExisting(f, columns, func(c lazy.Expr) lazy.Expr {
		return StringToBoolean(c, trueValues, falseValues)
	})
}

// mapExisting replaces each named column present in f with fn(column).
func mapExisting(f *lazy.Frame, columns []string, fn func(lazy.Expr) lazy.Expr) (*lazy.Frame, error) {
	names, err := f.ColumnNames()
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(names))
	for _, n := range names {
		existing[n] = true
	}
	var exprs []lazy.Expr
	for _, c := range columns {
		if existing[c] {
			exprs = append(exprs, fn(lazy.Col(c)))
			existing[c] = false
		}
	}
	if len(exprs) == 0 {
		return f, nil
	}
	return f.WithColumns(exprs...), nil
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
