package relational

import (
	"math"
	"testing"
	"time"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpr_SQL(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"column", Col("value"), `"value"`},
		{"quoted column", Col(`we"ird`), `"we""ird"`},
		{"string literal", Lit("it's"), `'it''s'`},
		{"string literal with NUL", Lit("a\x00b'"), `('a' || chr(0) || 'b''')`},
		{"int literal", Lit(3), `3`},
		{"float literal", Lit(90.0), `90::DOUBLE`},
		{"infinite literal", Lit(math.Inf(1)), `'inf'::DOUBLE`},
		{"bool literal", Lit(true), `TRUE`},
		{"null", Null(), `NULL`},
		{"date literal", Lit(core.Date{Year: 2024, Month: time.March, Day: 5}), `DATE '2024-03-05'`},
		{"timestamp literal", Lit(time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)), `TIMESTAMP '2024-03-05 10:30:00'`},
		{"list literal", Lit([]any{"a", int64(1)}), `['a', 1]`},
		{"comparison", Col("value").Gt(Lit(90.0)), `("value" > 90::DOUBLE)`},
		{"logic", Col("a").And(Col("b").Not()), `("a" AND (NOT "b"))`},
		{"null check", Col("a").IsNull(), `("a" IS NULL)`},
		{"is in", Col("s").IsIn("x", "y"), `("s" IN ('x', 'y'))`},
		{"empty is in", Col("s").IsIn(), `FALSE`},
		{"cast", Col("i").Cast(core.ListOf(core.String)), `CAST("i" AS VARCHAR[])`},
		{"alias", Col("i").Add(Lit(1)).Alias("j"), `("i" + 1) AS "j"`},
		{"alias replaces alias", Col("value").Alias("a").Alias("b"), `"value" AS "b"`},
		{"cast drops inner alias", Col("value").Alias("v").Cast(core.Int64), `CAST("value" AS BIGINT)`},
		{"arithmetic drops inner alias", Col("i").Alias("x").Add(Lit(1)), `("i" + 1)`},
		{"function drops argument alias", Func("trim", Col("s").Alias("t")), `trim("s")`},
		{"case drops branch alias", Case().When(Col("a").Alias("c"), Col("b").Alias("d")).End(), `CASE WHEN "a" THEN "b" END`},
		{"function", Func("trim", Col("s")), `trim("s")`},
		{"lambda", Func("list_transform", Col("l"), Lambda(Func("upper", Col("x")), "x")), `list_transform("l", x -> upper("x"))`},
		{"two parameter lambda", Lambda(Col("x").Add(Col("i")), "x", "i"), `(x, i) -> ("x" + "i")`},
		{"star", Star(), `*`},
		{"star exclude", Star("a", "b"), `* EXCLUDE ("a", "b")`},
		{"desc", Col("n").Desc(), `"n" DESC`},
		{
			"case",
			Case().When(Col("s").IsIn("y"), Lit(true)).When(Col("s").IsIn("n"), Lit(false)).End(),
			`CASE WHEN ("s" IN ('y')) THEN TRUE WHEN ("s" IN ('n')) THEN FALSE END`,
		},
		{
			"case otherwise",
			Case().When(Col("a").IsNull(), Null()).Otherwise(Lit(0)),
			`CASE WHEN ("a" IS NULL) THEN NULL ELSE 0 END`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.expr.SQL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpr_Errors(t *testing.T) {
	_, err := Lit(struct{}{}).SQL()
	assert.Error(t, err)

	_, err = Case().End().SQL()
	assert.Error(t, err)

	_, err = Col("a").Cast(core.UnknownType("STRUCT")).SQL()
	assert.Error(t, err)

	assert.Contains(t, Func("f", Lit(map[string]int{})).String(), "<invalid")
}

func TestExpr_Name(t *testing.T) {
	assert.Equal(t, "value", Col("value").Name())
	assert.Equal(t, "v2", Col("value").Mul(Lit(2)).Alias("v2").Name())
	assert.Equal(t, `trim("s")`, Func("trim", Col("s")).Name())
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want core.DataType
	}{
		{"VARCHAR", core.String},
		{"BIGINT", core.Int64},
		{"INTEGER", core.Int64},
		{"DOUBLE", core.Float64},
		{"BOOLEAN", core.Bool},
		{"DATE", core.DateType},
		{"TIMESTAMP WITH TIME ZONE", core.Timestamp},
		{"VARCHAR[]", core.ListOf(core.String)},
		{"DATE[][]", core.ListOf(core.ListOf(core.DateType))},
		{"DECIMAL(18,3)", core.UnknownType("DECIMAL(18,3)")},
		{"STRUCT(a INTEGER)", core.UnknownType("STRUCT(a INTEGER)")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseType(tt.in))
		})
	}
}

func TestTypeSQL(t *testing.T) {
	got, err := TypeSQL(core.ListOf(core.DateType))
	require.NoError(t, err)
	assert.Equal(t, "DATE[]", got)

	_, err = TypeSQL(core.UnknownType("MAP"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(3), normalize(int32(3), "INTEGER"))
	assert.Equal(t, core.Date{Year: 2024, Month: time.May, Day: 1}, normalize(day, "DATE"))
	assert.Equal(t, day, normalize(day, "TIMESTAMP"))
	assert.Equal(t, []any{int64(1), nil}, normalize([]any{int32(1), nil}, "INTEGER[]"))
	assert.Nil(t, normalize(nil, "VARCHAR"))
}
