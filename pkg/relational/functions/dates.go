package functions

import (
	"context"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/relational"
)

// DateDiff counts the days from start to end. With a daysToIgnore list
// column, it counts the days of the inclusive range start..end that are not
// in the list, minus one and never below zero. The result is NULL when
// either date is NULL.
func DateDiff(start, end relational.Expr, daysToIgnore ...relational.Expr) relational.Expr {
	if len(daysToIgnore) == 0 {
		return relational.Func("date_diff", relational.Lit("day"), start, end).Alias(start.Name())
	}
	ts := core.Timestamp
	ignored := relational.Func("coalesce",
		daysToIgnore[0].Cast(core.ListOf(ts)),
		relational.Func("list_value"),
	)
	kept := relational.Func("list_filter",
		relational.Func("generate_series", start.Cast(ts), end.Cast(ts), relational.Raw("INTERVAL 1 DAY")),
		relational.Lambda(relational.Func("list_contains", ignored, relational.Raw("x")).Not(), "x"),
	)
	days := relational.Func("greatest", relational.Func("len", kept).Sub(relational.Lit(1)), relational.Lit(0))
	return relational.Case().
		When(start.IsNull().Or(end.IsNull()), relational.Null()).
		Otherwise(days).
		Alias(start.Name())
}

// TimestampToDate parses a VARCHAR column with a strptime format and keeps
// the date part.
func TimestampToDate(col relational.Expr, format string) relational.Expr {
	return relational.Func("strptime", col, relational.Lit(format)).Cast(core.DateType).Alias(col.Name())
}

// ConvertTimestampsToDates applies TimestampToDate to the named columns
// that exist in the relation.
func ConvertTimestampsToDates(ctx context.Context, r *relational.Relation, columns []string, format string) (*relational.Relation, error) {
	return mapExisting(ctx, r, columns, func(c relational.Expr) relational.Expr {
		return TimestampToDate(c, format)
	})
}

// IntToDate reads an eight digit YYYYMMDD value as a date. Other values
// become NULL.
func IntToDate(col relational.Expr) relational.Expr {
	text := col.Cast(core.String)
	return relational.Case().
		When(relational.Func("regexp_matches", text, relational.Lit(`^\d{8}$`)),
			relational.Func("strptime", text, relational.Lit("%Y%m%d")).Cast(core.DateType)).
		End().Alias(col.Name())
}

// ConvertIntsToDates applies IntToDate to the named columns that exist in
// the relation.
func ConvertIntsToDates(ctx context.Context, r *relational.Relation, columns []string) (*relational.Relation, error) {
	return mapExisting(ctx, r, columns, IntToDate)
}
