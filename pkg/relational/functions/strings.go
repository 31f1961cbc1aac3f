// Package functions holds reusable cleaning and column helpers for DuckDB
// relations. Every helper builds SQL; helpers that need column names or
// types describe the relation, which reads no rows.
package functions

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/relational"
)

// StringColumns returns the names of the relation's VARCHAR columns.
func StringColumns(ctx context.Context, r *relational.Relation) ([]string, error) {
	cols, err := r.Describe(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range cols {
		if c.Type.Kind == core.KindString {
			out = append(out, c.Name)
		}
	}
	return out, nil
}

// LowercaseColumns lowercases every column name.
func LowercaseColumns(ctx context.Context, r *relational.Relation) (*relational.Relation, error) {
	names, err := r.ColumnNames(ctx)
	if err != nil {
		return nil, err
	}
	mapping := map[string]string{}
	for _, n := range names {
		if lower := strings.ToLower(n); lower != n {
			mapping[n] = lower
		}
	}
	if len(mapping) == 0 {
		return r, nil
	}
	return r.Rename(mapping), nil
}

// TrimStringColumns trims surrounding whitespace in every VARCHAR column.
func TrimStringColumns(ctx context.Context, r *relational.Relation) (*relational.Relation, error) {
	return mapStringColumns(ctx, r, func(c relational.Expr) relational.Expr {
		return relational.Func("trim", c)
	})
}

// NullifyStringColumns replaces empty strings with NULL in every VARCHAR
// column.
func NullifyStringColumns(ctx context.Context, r *relational.Relation) (*relational.Relation, error) {
	return mapStringColumns(ctx, r, func(c relational.Expr) relational.Expr {
		return relational.Func("nullif", c, relational.Lit(""))
	})
}

func mapStringColumns(ctx context.Context, r *relational.Relation, fn func(relational.Expr) relational.Expr) (*relational.Relation, error) {
	cols, err := StringColumns(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return r, nil
	}
	named := make([]relational.NamedExpr, len(cols))
	for i, c := range cols {
		named[i] = relational.Named(c, fn(relational.Col(c)))
	}
	return r.WithColumns(named...), nil
}

// Clean lowercases column names, then trims VARCHAR columns and turns empty
// strings into NULL.
func Clean(ctx context.Context, r *relational.Relation) (*relational.Relation, error) {
	r, err := LowercaseColumns(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	if r, err = TrimStringColumns(ctx, r); err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	if r, err = NullifyStringColumns(ctx, r); err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	return r, nil
}

// ReadParquetAndClean reads a Parquet file and cleans it.
func ReadParquetAndClean(ctx context.Context, sess *relational.Session, path string) (*relational.Relation, error) {
	return Clean(ctx, sess.ReadParquet(path))
}

// NormalizeMunicipalityName capitalizes each hyphen-separated part of a
// name: 'MÄNTTÄ-VILPPULA' becomes 'Mänttä-Vilppula'.
func NormalizeMunicipalityName(col relational.Expr) relational.Expr {
	x := relational.Raw("x")
	part := relational.Func("concat",
		relational.Func("upper", relational.Func("left", x, relational.Lit(1))),
		relational.Func("lower", relational.Func("substr", x, relational.Lit(2))),
	)
	return relational.Func("array_to_string",
		relational.Func("list_transform",
			relational.Func("str_split", col, relational.Lit("-")),
			relational.Lambda(part, "x"),
		),
		relational.Lit("-"),
	).Alias(col.Name())
}
