package relational

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/das/pkg/core"
)

// ParseType maps a DuckDB type name, as reported by DESCRIBE, to a semantic
// type. All integer widths map to Int64 and FLOAT/DOUBLE to Float64. Types
// without a mapping (DECIMAL, STRUCT, MAP, BLOB, ...) become Unknown and
// keep the DuckDB name.
func ParseType(duck string) core.DataType {
	s := strings.ToUpper(strings.TrimSpace(duck))
	if strings.HasSuffix(s, "[]") {
		return core.ListOf(ParseType(s[:len(s)-2]))
	}
	switch s {
	case "VARCHAR", "TEXT", "STRING", "CHAR", "BPCHAR":
		return core.String
	case "BIGINT", "INTEGER", "SMALLINT", "TINYINT", "HUGEINT",
		"UBIGINT", "UINTEGER", "USMALLINT", "UTINYINT", "INT8", "INT4", "INT2", "INT":
		return core.Int64
	case "DOUBLE", "FLOAT", "REAL", "FLOAT8", "FLOAT4":
		return core.Float64
	case "BOOLEAN", "BOOL":
		return core.Bool
	case "DATE":
		return core.DateType
	case "TIMESTAMP", "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ", "TIMESTAMP_US", "TIMESTAMP_MS", "TIMESTAMP_NS", "TIMESTAMP_S", "DATETIME":
		return core.Timestamp
	}
	return core.UnknownType(strings.TrimSpace(duck))
}

// TypeSQL renders a semantic type as a DuckDB type name.
func TypeSQL(t core.DataType) (string, error) {
	switch t.Kind {
	case core.KindString:
		return "VARCHAR", nil
	case core.KindInt64:
		return "BIGINT", nil
	case core.KindFloat64:
		return "DOUBLE", nil
	case core.KindBool:
		return "BOOLEAN", nil
	case core.KindDate:
		return "DATE", nil
	case core.KindTimestamp:
		return "TIMESTAMP", nil
	case core.KindList:
		if t.Elem == nil {
			return "", fmt.Errorf("list type without element type")
		}
		elem, err := TypeSQL(*t.Elem)
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	}
	return "", fmt.Errorf("type %s has no DuckDB equivalent", t)
}

// FieldsFromColumns converts adapter columns to fields. Nullable columns get
// nullable types.
func FieldsFromColumns(cols []core.Column) []core.Field {
	out := make([]core.Field, len(cols))
	for i, c := range cols {
		t := ParseType(c.Type)
		if c.Nullable {
			t = t.AsNullable()
		}
		out[i] = core.Field{Name: c.Name, Type: t, Native: c.Type}
	}
	return out
}

// =============================================================================
// SQL literals
// =============================================================================

// QuoteIdent quotes a DuckDB identifier.
func QuoteIdent(s string) string { return quoteIdent(s) }

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// stringLiteral is quoteString for values that may hold NUL bytes, which
// would end the query text early. Each NUL is spliced in with chr(0).
func stringLiteral(s string) string {
	if !strings.ContainsRune(s, 0) {
		return quoteString(s)
	}
	parts := strings.Split(s, "\x00")
	for i, p := range parts {
		parts[i] = quoteString(p)
	}
	return "(" + strings.Join(parts, " || chr(0) || ") + ")"
}

// QuoteQualified quotes each dot-separated part of a table name.
func QuoteQualified(name string) string { return quoteQualified(name) }

func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// literal renders a canonical Go value as a DuckDB literal.
func literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return stringLiteral(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		switch {
		case math.IsNaN(x):
			return "'nan'::DOUBLE", nil
		case math.IsInf(x, 1):
			return "'inf'::DOUBLE", nil
		case math.IsInf(x, -1):
			return "'-inf'::DOUBLE", nil
		}
		return strconv.FormatFloat(x, 'g', -1, 64) + "::DOUBLE", nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case core.Date:
		return "DATE " + quoteString(x.String()), nil
	case time.Time:
		return "TIMESTAMP " + quoteString(x.UTC().Format("2006-01-02 15:04:05.999999")), nil
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			s, err := literal(e)
			if err != nil {
				return "", fmt.Errorf("list element %d: %w", i, err)
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	}
	return "", fmt.Errorf("cannot render %T as a SQL literal", v)
}

// canonical converts an arbitrary Go value into the canonical value for its
// semantic type so it can be rendered by literal.
func canonical(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i, e := range list {
			c, err := canonical(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	t, err := core.TypeFor(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	return core.Convert(v, t)
}

// typedLiteral renders v, converted to t, with an explicit cast.
func typedLiteral(v any, t core.DataType) (string, error) {
	cv, err := core.Convert(v, t)
	if err != nil {
		return "", err
	}
	lit, err := literal(cv)
	if err != nil {
		return "", err
	}
	typ, err := TypeSQL(t)
	if err != nil {
		return "", err
	}
	return "CAST(" + lit + " AS " + typ + ")", nil
}

// normalize converts a value scanned from database/sql into its canonical
// record value. dbType is the driver's database type name, used to tell
// DATE from TIMESTAMP.
func normalize(v any, dbType string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case time.Time:
		if strings.EqualFold(dbType, "DATE") {
			return core.DateOf(x)
		}
		return x.UTC()
	case []any:
		elemType := strings.TrimSuffix(strings.ToUpper(dbType), "[]")
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e, elemType)
		}
		return out
	}
	return v
}
