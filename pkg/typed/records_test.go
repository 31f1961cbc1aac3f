package typed_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/schema"
	"github.com/leapstack-labs/das/pkg/typed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRecords(t *testing.T) {
	p, err := typed.PrepareRecords(observationModel(), []core.Record{
		{"id": "1", "status": "final", "value": 98.6},
		{"id": "2", "status": "amended", "value": 99},
		{"id": "3", "status": "final", "value": json.Number("101.5")},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "status", "value"}, core.FieldNames(p.Fields))
	assert.Equal(t, []any{98.6, 99.0, 101.5}, p.Column(2))
	assert.Equal(t, []any{"1", "final", 98.6}, p.Rows[0])
}

func TestPrepareRecords_Empty(t *testing.T) {
	p, err := typed.PrepareRecords(observationModel(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
	assert.Len(t, p.Fields, 3)
}

func TestPrepareRecords_Mismatches(t *testing.T) {
	tests := []struct {
		name    string
		records []core.Record
		want    []core.Mismatch
	}{
		{
			name:    "missing value",
			records: []core.Record{{"id": "1", "status": "final"}},
			want: []core.Mismatch{
				{Kind: core.MismatchMissing, Column: "value", Expected: "float64", Observed: "absent", Rows: []int{0}},
			},
		},
		{
			name: "extra key",
			records: []core.Record{
				{"id": "1", "status": "final", "value": 1.0},
				{"id": "2", "status": "final", "value": 2.0, "note": "x"},
			},
			want: []core.Mismatch{
				{Kind: core.MismatchUnexpected, Column: "note", Observed: "string", Rows: []int{1}},
			},
		},
		{
			name: "unconvertible and null",
			records: []core.Record{
				{"id": 1.5, "status": nil, "value": "high"},
				{"id": "2", "status": "final", "value": true},
			},
			want: []core.Mismatch{
				{Kind: core.MismatchType, Column: "id", Expected: "string", Observed: "float64", Rows: []int{0}},
				{Kind: core.MismatchType, Column: "status", Expected: "string", Observed: "null", Rows: []int{0}},
				{Kind: core.MismatchType, Column: "value", Expected: "float64", Observed: "bool|string", Rows: []int{0, 1}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := typed.PrepareRecords(observationModel(), tt.records)
			se, ok := core.AsSchemaError(err)
			require.True(t, ok, "expected schema error, got %v", err)
			assert.Equal(t, tt.want, se.Mismatches)
		})
	}
}

func TestPrepareRecords_Nullable(t *testing.T) {
	m := schema.NewBuilder("Reading").Columns(
		core.Field{Name: "at", Type: core.DateType.AsNullable()},
		core.Field{Name: "tags", Type: core.ListOf(core.String)},
	).MustBuild()

	p, err := typed.PrepareRecords(m, []core.Record{
		{"at": nil, "tags": []string{"a"}},
		{"at": "2024-03-01", "tags": []any{}},
		{"at": time.Date(2024, 3, 2, 13, 0, 0, 0, time.UTC), "tags": []string{"b", "c"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, core.Date{Year: 2024, Month: time.March, Day: 1}, core.Date{Year: 2024, Month: time.March, Day: 2}}, p.Column(0))
	assert.Equal(t, []any{"b", "c"}, p.Rows[2][1])
}

func TestPrepareRecords_ExplicitMapping(t *testing.T) {
	m := schema.NewBuilder("Point").Columns(
		core.Field{Name: "x", Type: core.Int64},
		core.Field{Name: "y", Type: core.Int64},
	).MustBuild()

	p, err := typed.PrepareRecords(m, []core.Record{{"x": 1, "y": 2}},
		typed.WithSchema(map[string]core.DataType{"y": core.Float64}))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), 2.0}, p.Rows[0])

	p, err = typed.PrepareRecords(m, []core.Record{{"x": 1, "y": 2}},
		typed.WithPositionalSchema(core.String, core.String))
	require.Error(t, err)
	assert.Nil(t, p)

	_, err = typed.PrepareRecords(m, []core.Record{{"x": 1, "y": 2}},
		typed.WithPositionalSchema(core.Int64))
	var recErr *core.RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "Point", recErr.Model)
}

func TestPrepareRecords_IntegerColumns(t *testing.T) {
	m := schema.NewBuilder("Count").Columns(core.Field{Name: "n", Type: core.Int64}).MustBuild()

	_, err := typed.PrepareRecords(m, []core.Record{{"n": 3.0}, {"n": json.Number("4")}})
	require.NoError(t, err)

	_, err = typed.PrepareRecords(m, []core.Record{{"n": 3.5}})
	se, ok := core.AsSchemaError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"n"}, se.Columns(core.MismatchType))
}

func TestPrepareRecords_IntegerOverflow(t *testing.T) {
	m := schema.NewBuilder("Count").Columns(core.Field{Name: "n", Type: core.Int64}).MustBuild()

	_, err := typed.PrepareRecords(m, []core.Record{{"n": json.Number("1e30")}})
	se, ok := core.AsSchemaError(err)
	require.True(t, ok, "expected schema error, got %v", err)
	assert.Equal(t, []string{"n"}, se.Columns(core.MismatchType))
}

func TestPrepareRecords_NullListElement(t *testing.T) {
	m := schema.NewBuilder("Tags").Columns(core.Field{Name: "tags", Type: core.ListOf(core.String)}).MustBuild()

	_, err := typed.PrepareRecords(m, []core.Record{{"tags": []any{"a", nil}}})
	se, ok := core.AsSchemaError(err)
	require.True(t, ok, "expected schema error, got %v", err)
	assert.Equal(t, []string{"tags"}, se.Columns(core.MismatchType))
}
