package relation_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/das/internal/testutil"
	"github.com/leapstack-labs/das/pkg/adapter"
	"github.com/leapstack-labs/das/pkg/adapters/duckdb"
	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/lazy"
	"github.com/leapstack-labs/das/pkg/relational"
	"github.com/leapstack-labs/das/pkg/schema"
	"github.com/leapstack-labs/das/pkg/typed"
	"github.com/leapstack-labs/das/pkg/typed/lazyframe"
	"github.com/leapstack-labs/das/pkg/typed/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Observation struct {
	ID     schema.Col[string] `col:"id"`
	Status schema.Col[string]
	Value  schema.Col[float64]
}

var Observations = schema.MustDefine[Observation]()

type Visit struct {
	PatientID schema.Col[string]
	Day       schema.Col[core.Date]
	Codes     schema.Col[[]string]
	Weight    schema.Col[*float64]
}

var Visits = schema.MustDefine[Visit]()

func duckSession(t *testing.T) *relational.Session {
	t.Helper()
	adp := duckdb.New(testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })
	return relational.NewSession(adp, relational.WithLogger(testutil.NewTestLogger(t)))
}

func mockSession(t *testing.T) (*relational.Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return relational.NewSession(&adapter.BaseSQLAdapter{DB: db}), mock
}

func TestFromDicts_ObservationScenario(t *testing.T) {
	ctx := context.Background()
	sess := duckSession(t)

	rel, err := relation.FromDicts(ctx, sess, Observations, []core.Record{
		{"id": "1", "status": "final", "value": 98.6},
	})
	require.NoError(t, err)
	assert.Zero(t, sess.Materializations())

	got, err := rel.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{"id": "1", "status": "final", "value": 98.6}}, got)
	assert.EqualValues(t, 1, sess.Materializations())

	_, err = relation.FromDicts(ctx, sess, Observations, []core.Record{
		{"id": "1", "status": "final"},
	})
	se, ok := core.AsSchemaError(err)
	require.True(t, ok, "expected schema error, got %v", err)
	assert.Equal(t, []string{"value"}, se.Columns(core.MismatchMissing))
}

func TestFromDicts_RichTypes(t *testing.T) {
	ctx := context.Background()
	sess := duckSession(t)
	weight := 71.5
	records := []core.Record{
		{"patient_id": "p1", "day": core.Date{Year: 2024, Month: time.June, Day: 1}, "codes": []string{"a", "b"}, "weight": &weight},
		{"patient_id": "p2", "day": "2024-06-02", "codes": []any{}, "weight": nil},
	}

	rel, err := relation.FromDicts(ctx, sess, Visits, records)
	require.NoError(t, err)
	_, err = relation.FromRelation(ctx, Visits, rel.Native(), true)
	require.NoError(t, err)

	got, err := rel.OrderBy(relational.Col("patient_id")).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Record{
		{"patient_id": "p1", "day": core.Date{Year: 2024, Month: time.June, Day: 1}, "codes": []any{"a", "b"}, "weight": 71.5},
		{"patient_id": "p2", "day": core.Date{Year: 2024, Month: time.June, Day: 2}, "codes": []any{}, "weight": nil},
	}, got)
}

func TestFromRelation_DescribeOnly(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		validate  bool
		columns   [][2]string
		wantCount int
	}{
		{
			name:     "valid with extra column",
			validate: true,
			columns:  [][2]string{{"id", "VARCHAR"}, {"status", "VARCHAR"}, {"value", "DOUBLE"}, {"extra", "BOOLEAN"}},
		},
		{
			name:      "k mismatches reported together",
			validate:  true,
			columns:   [][2]string{{"id", "BIGINT"}, {"status", "DECIMAL(4,1)"}},
			wantCount: 3,
		},
		{
			name:     "validate false issues no SQL",
			validate: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, mock := mockSession(t)
			if tt.validate {
				rows := sqlmock.NewRows([]string{"column_name", "column_type", "null", "key", "default", "extra"})
				for _, c := range tt.columns {
					rows.AddRow(c[0], c[1], "YES", nil, nil, nil)
				}
				mock.ExpectQuery(`DESCRIBE SELECT * FROM "obs"`).WillReturnRows(rows)
			}

			rel, err := relation.FromRelation(ctx, Observations, sess.Table("obs"), tt.validate)
			if tt.wantCount > 0 {
				se, ok := core.AsSchemaError(err)
				require.True(t, ok)
				assert.Len(t, se.Mismatches, tt.wantCount)
				assert.Nil(t, rel)
			} else {
				require.NoError(t, err)
				assert.Equal(t, typed.EngineRelational, rel.Engine())
			}
			assert.Zero(t, sess.Materializations())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRelation_WithColumnsReturnsNative(t *testing.T) {
	ctx := context.Background()
	sess := duckSession(t)
	rel, err := relation.FromDicts(ctx, sess, Observations, []core.Record{
		{"id": "1", "status": "final", "value": 98.6},
	})
	require.NoError(t, err)

	var out *relational.Relation = rel.WithColumns(
		relational.Named("value", rel.Col(rel.Cols().Value).Add(relational.Lit(1.0))),
		relational.Named("flag", relational.Lit(true)),
	)
	got, err := out.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 99.6, got[0]["value"], 1e-9)
	assert.Equal(t, true, got[0]["flag"])

	rewrapped, err := relation.FromRelation(ctx, Observations, out, true)
	require.NoError(t, err)
	assert.Same(t, out, rewrapped.Native())
}

func sortByID(recs []core.Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i]["id"].(string) < recs[j]["id"].(string) })
}

func TestAdapters_Equivalent(t *testing.T) {
	ctx := context.Background()
	sess := duckSession(t)
	adapters := []typed.Adapter{
		lazyframe.NewAdapter(lazy.NewSession(), Observations),
		relation.NewAdapter(sess, Observations),
		lazyframe.NewModelAdapter(lazy.NewSession(), Observations.Model),
		relation.NewModelAdapter(sess, Observations.Model),
	}

	inputs := []struct {
		name    string
		records []core.Record
		opts    []typed.RecordOption
	}{
		{
			name: "declared types",
			records: []core.Record{
				{"id": "1", "status": "final", "value": 98.6},
				{"id": "2", "status": "amended", "value": int64(100)},
				{"id": "3", "status": "final", "value": 99.1},
			},
		},
		{
			name: "strings with quotes and NUL bytes",
			records: []core.Record{
				{"id": "é\x00", "status": "it's", "value": 1.0},
				{"id": "\x00a\x00", "status": "", "value": 2.0},
			},
		},
		{
			name:    "null in required column",
			records: []core.Record{{"id": "1", "status": "final", "value": nil}},
		},
		{
			name:    "missing and extra keys",
			records: []core.Record{{"id": "1", "status": "final", "note": "x"}},
		},
		{
			name:    "unconvertible value",
			records: []core.Record{{"id": "1", "status": true, "value": "high"}},
		},
		{
			name:    "positional arity",
			records: []core.Record{{"id": "1", "status": "final", "value": 1.0}},
			opts:    []typed.RecordOption{typed.WithPositionalSchema(core.String)},
		},
	}

	for _, in := range inputs {
		t.Run(in.name, func(t *testing.T) {
			var results [][]core.Record
			var errs []error
			for _, a := range adapters {
				frame, err := a.FromRecords(ctx, in.records, in.opts...)
				errs = append(errs, err)
				if err != nil {
					results = append(results, nil)
					continue
				}
				assert.Equal(t, a.Engine(), frame.Engine())
				recs, err := frame.Records(ctx)
				require.NoError(t, err)
				sortByID(recs)
				results = append(results, recs)
			}

			for i := 1; i < len(adapters); i++ {
				assert.Equal(t, errs[0] == nil, errs[i] == nil, "errors: %v", errs)
				if errs[0] == nil || errs[i] == nil {
					assert.Equal(t, results[0], results[i], "adapter %d", i)
					continue
				}
				lse, lok := core.AsSchemaError(errs[0])
				rse, rok := core.AsSchemaError(errs[i])
				require.Equal(t, lok, rok)
				if lok {
					assert.Equal(t, lse.Mismatches, rse.Mismatches, "adapter %d", i)
				} else {
					assert.Equal(t, errs[0].Error(), errs[i].Error())
				}
			}
		})
	}
}
