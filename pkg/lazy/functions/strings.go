// Package functions holds reusable cleaning and column helpers for lazy
// frames. Helpers that look at column names or types use the statically
// inferred schema; none of them evaluates data.
package functions

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/lazy"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StringColumns returns the names of the frame's string columns.
func StringColumns(f *lazy.Frame) ([]string, error) {
	cols, err := f.Columns()
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
func LowercaseColumns(f *lazy.Frame) (*lazy.Frame, error) {
	names, err := f.ColumnNames()
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
		return f, nil
	}
	return f.Rename(mapping), nil
}

// TrimStringColumns trims surrounding whitespace in every string column.
func TrimStringColumns(f *lazy.Frame) (*lazy.Frame, error) {
	return mapStringColumns(f, lazy.Expr.StrTrim)
}

// NullifyStringColumns replaces empty strings with null in every string
// column.
func NullifyStringColumns(f *lazy.Frame) (*lazy.Frame, error) {
	return mapStringColumns(f, lazy.Expr.StrNullIfEmpty)
}

func mapStringColumns(f *lazy.Frame, fn func(lazy.Expr) lazy.Expr) (*lazy.Frame, error) {
	cols, err := StringColumns(f)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return f, nil
	}
	exprs := make([]lazy.Expr, len(cols))
	for i, c := range cols {
		exprs[i] = fn(lazy.Col(c))
	}
	return f.WithColumns(exprs...), nil
}

// Clean lowercases column names, then trims string columns and turns empty
// strings into nulls.
func Clean(f *lazy.Frame) (*lazy.Frame, error) {
	f, err := LowercaseColumns(f)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	if f, err = TrimStringColumns(f); err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	if f, err = NullifyStringColumns(f); err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	return f, nil
}

// ReadParquetAndClean scans a Parquet file and cleans it. Only the file
// footer is read.
func ReadParquetAndClean(sess *lazy.Session, path string) (*lazy.Frame, error) {
	return Clean(sess.ScanParquet(path))
}

// NormalizeMunicipalityName title-cases each hyphen-separated part of a
// name: "MÄNTTÄ-VILPPULA" becomes "Mänttä-Vilppula".
func NormalizeMunicipalityName(col lazy.Expr) lazy.Expr {
	title := cases.Title(language.Und)
	return lazy.Map(core.String, func(row []any) (any, error) {
		s, ok := row[0].(string)
		if !ok {
			return nil, nil
		}
		parts := strings.Split(s, "-")
		for i, p := range parts {
			parts[i] = title.String(p)
		}
		return strings.Join(parts, "-"), nil
	}, col).Alias(col.Name())
}
