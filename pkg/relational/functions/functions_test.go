package functions_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/das/internal/testutil"
	"github.com/leapstack-labs/das/pkg/adapters/duckdb"
	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/relational"
	"github.com/leapstack-labs/das/pkg/relational/functions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) core.Date { return core.Date{Year: y, Month: m, Day: d} }

func duckSession(t *testing.T) *relational.Session {
	t.Helper()
	adp := duckdb.New(testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })
	return relational.NewSession(adp)
}

func rawRelation(t *testing.T, sess *relational.Session) *relational.Relation {
	t.Helper()
	rel, err := sess.Values([]core.Field{
		{Name: "ID", Type: core.String},
		{Name: "Kunta", Type: core.String},
		{Name: "Active", Type: core.String},
		{Name: "Count", Type: core.Int64},
	}, [][]any{
		{" 1 ", "MÄNTTÄ-VILPPULA", "K", int64(1)},
		{"2", "  ", "E", int64(2)},
		{"3", nil, "?", nil},
	})
	require.NoError(t, err)
	return rel
}

func fetchSorted(t *testing.T, rel *relational.Relation, key string) []core.Record {
	t.Helper()
	got, err := rel.OrderBy(relational.Col(key)).Fetch(context.Background())
	require.NoError(t, err)
	return got
}

func TestExpressions_SQL(t *testing.T) {
	tests := []struct {
		name string
		expr relational.Expr
		want string
	}{
		{
			"map to boolean",
			functions.MapToBoolean(relational.Col("active"), []string{"K"}, []string{"E", "0"}),
			`CASE WHEN (CAST("active" AS VARCHAR) IN ('K')) THEN TRUE WHEN (CAST("active" AS VARCHAR) IN ('E', '0')) THEN FALSE END AS "active"`,
		},
		{
			"timestamp to date",
			functions.TimestampToDate(relational.Col("at"), "%d.%m.%Y"),
			`CAST(strptime("at", '%d.%m.%Y') AS DATE) AS "at"`,
		},
		{
			"plain date diff",
			functions.DateDiff(relational.Col("start"), relational.Col("end")),
			`date_diff('day', "start", "end") AS "start"`,
		},
		{
			"municipality",
			functions.NormalizeMunicipalityName(relational.Col("kunta")),
			`array_to_string(list_transform(str_split("kunta", '-'), x -> concat(upper(left(x, 1)), lower(substr(x, 2)))), '-') AS "kunta"`,
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

func TestClean(t *testing.T) {
	ctx := context.Background()
	sess := duckSession(t)
	rel, err := functions.Clean(ctx, rawRelation(t, sess))
	require.NoError(t, err)
	assert.Zero(t, sess.Materializations())

	names, err := rel.ColumnNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"id", "kunta", "active", "count"}, names)

	got := fetchSorted(t, rel, "id")
	assert.Equal(t, "1", got[0]["id"])
	assert.Nil(t, got[1]["kunta"])
	assert.Nil(t, got[2]["kunta"])
	assert.Equal(t, int64(2), got[1]["count"])
}

func TestConvertStringsToBoolean(t *testing.T) {
	ctx := context.Background()
	sess := duckSession(t)
	rel, err := functions.ConvertStringsToBoolean(ctx, rawRelation(t, sess),
		[]string{"Active", "Missing"}, []string{"K"}, []string{"E"})
	require.NoError(t, err)

	cols, err := rel.Describe(ctx)
	require.NoError(t, err)
	active, ok := core.LookupField(cols, "Active")
	require.True(t, ok)
	assert.Equal(t, core.KindBool, active.Type.Kind)

	got := fetchSorted(t, rel, "ID")
	assert.Equal(t, true, got[0]["Active"])
	assert.Equal(t, false, got[1]["Active"])
	assert.Nil(t, got[2]["Active"])
}

func TestNormalizeMunicipalityName(t *testing.T) {
	sess := duckSession(t)
	got := fetchSorted(t, rawRelation(t, sess).Select(
		relational.Col("ID"),
		functions.NormalizeMunicipalityName(relational.Col("Kunta")),
	), "ID")
	assert.Equal(t, "Mänttä-Vilppula", got[0]["Kunta"])
	assert.Nil(t, got[2]["Kunta"])
}

func TestDateDiff(t *testing.T) {
	sess := duckSession(t)
	rel, err := sess.Values([]core.Field{
		{Name: "n", Type: core.Int64},
		{Name: "start", Type: core.DateType},
		{Name: "end", Type: core.DateType},
		{Name: "holidays", Type: core.ListOf(core.DateType)},
	}, [][]any{
		{int64(1), date(2024, 1, 1), date(2024, 1, 5), []any{date(2024, 1, 2), date(2024, 1, 3)}},
		{int64(2), date(2024, 1, 1), date(2024, 1, 1), []any{date(2024, 1, 1)}},
		{int64(3), date(2024, 1, 1), nil, nil},
		{int64(4), date(2024, 1, 5), date(2024, 1, 1), nil},
	})
	require.NoError(t, err)

	got := fetchSorted(t, rel.Select(
		relational.Col("n"),
		functions.DateDiff(relational.Col("start"), relational.Col("end")).Alias("plain"),
		functions.DateDiff(relational.Col("start"), relational.Col("end"), relational.Col("holidays")).Alias("working"),
	), "n")
	tests := []struct {
		plain, working any
	}{
		{int64(4), int64(2)},
		{int64(0), int64(0)},
		{nil, nil},
		{int64(-4), int64(0)},
	}
	require.Len(t, got, len(tests))
	for i, tt := range tests {
		assert.Equal(t, tt.plain, got[i]["plain"], "row %d", i)
		assert.Equal(t, tt.working, got[i]["working"], "row %d", i)
	}
}

func TestConvertDates(t *testing.T) {
	ctx := context.Background()
	sess := duckSession(t)
	rel, err := sess.Values([]core.Field{
		{Name: "n", Type: core.Int64},
		{Name: "born", Type: core.Int64},
		{Name: "seen", Type: core.String},
	}, [][]any{
		{int64(1), int64(20240229), "01.03.2024 10:00"},
		{int64(2), int64(2024), nil},
	})
	require.NoError(t, err)

	rel, err = functions.ConvertIntsToDates(ctx, rel, []string{"born", "absent"})
	require.NoError(t, err)
	rel, err = functions.ConvertTimestampsToDates(ctx, rel, []string{"seen"}, "%d.%m.%Y %H:%M")
	require.NoError(t, err)

	got := fetchSorted(t, rel, "n")
	assert.Equal(t, date(2024, 2, 29), got[0]["born"])
	assert.Equal(t, date(2024, 3, 1), got[0]["seen"])
	assert.Nil(t, got[1]["born"])
	assert.Nil(t, got[1]["seen"])
}

func TestTimestampToDate_WithColumns(t *testing.T) {
	sess := duckSession(t)
	rel, err := sess.Values([]core.Field{
		{Name: "n", Type: core.Int64},
		{Name: "seen", Type: core.String},
	}, [][]any{{int64(1), "2024-03-01 10:00"}})
	require.NoError(t, err)

	out := rel.WithColumns(
		relational.Named("day", functions.TimestampToDate(relational.Col("seen"), "%Y-%m-%d %H:%M")),
	)
	out = out.WithColumns(
		relational.Named("days", functions.DateDiff(relational.Lit(date(2024, 2, 28)), relational.Col("day"))),
	)
	got := fetchSorted(t, out, "n")
	require.Len(t, got, 1)
	assert.Equal(t, date(2024, 3, 1), got[0]["day"])
	assert.Equal(t, int64(2), got[0]["days"])
}

func TestReadParquetAndClean(t *testing.T) {
	ctx := context.Background()
	sess := duckSession(t)
	path := filepath.Join(t.TempDir(), "raw.parquet")
	q, err := rawRelation(t, sess).SQL(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Querier().Exec(ctx, "COPY ("+q+") TO '"+path+"' (FORMAT PARQUET)"))

	rel, err := functions.ReadParquetAndClean(ctx, sess, path)
	require.NoError(t, err)
	n, err := rel.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
