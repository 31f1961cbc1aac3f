package schema

import (
	"testing"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Point struct {
	X     Col[*int64]
	Y     Col[*int64]
	Color Col[*string]
}

type Point3D struct {
	Point
	Z Col[*int64]
}

type FillColor struct {
	FillColor Col[*string] `col:"fillcolor"`
}

type Point4D struct {
	Point3D
	FillColor
	T Col[*int64]
}

type IntList struct {
	Ints Col[[]int64]
}

type tagged struct {
	ID       Col[string]
	Internal Col[string]  `col:"-"`
	Value    Col[float64] `col:"reading"`
	note     string       //nolint:unused // unexported fields are ignored
}

func TestDefine(t *testing.T) {
	p := MustDefine[Point]()

	assert.Equal(t, "Point", p.Name())
	assert.Equal(t, []string{"x", "y", "color"}, p.Names())
	assert.Equal(t, "x", p.Cols.X.Name())
	assert.Equal(t, core.Int64.AsNullable(), p.Cols.X.Type())
	assert.Equal(t, "Point", p.Cols.Color.Model())
	assert.Equal(t, "Point.color", p.Cols.Color.String())
}

func TestDefine_Inheritance(t *testing.T) {
	tests := []struct {
		name  string
		names func() []string
		want  []string
	}{
		{
			name:  "single embedding",
			names: func() []string { return MustDefine[Point3D]().Names() },
			want:  []string{"x", "y", "color", "z"},
		},
		{
			name:  "multiple embedding",
			names: func() []string { return MustDefine[Point4D]().Names() },
			want:  []string{"x", "y", "color", "z", "fillcolor", "t"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.names())
		})
	}
}

func TestDefine_EmbeddedColumnsAreBound(t *testing.T) {
	p := MustDefine[Point4D]()
	assert.Equal(t, "x", p.Cols.X.Name())
	assert.Equal(t, "Point4D", p.Cols.X.Model())
	assert.Equal(t, "fillcolor", p.Cols.FillColor.FillColor.Name())
}

func TestDefine_ListColumn(t *testing.T) {
	l := MustDefine[IntList]()
	assert.Equal(t, core.ListOf(core.Int64), l.Cols.Ints.Type())
}

func TestDefine_Tags(t *testing.T) {
	m := MustDefine[tagged]()
	assert.Equal(t, []string{"id", "reading"}, m.Names())
	assert.False(t, m.Cols.Internal.Bound())
}

func TestDefine_Errors(t *testing.T) {
	type duplicate struct {
		A Col[string] `col:"a"`
		B Col[string] `col:"a"`
	}
	_, err := Define[duplicate]()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate column "a"`)

	type unsupported struct {
		M Col[map[string]int]
	}
	_, err = Define[unsupported]()
	assert.Error(t, err)

	_, err = Define[int]()
	assert.Error(t, err)
}

func TestUnboundColumnPanics(t *testing.T) {
	var c Col[string]

	assert.PanicsWithError(t, "column descriptor: read name before it was bound to a schema", func() {
		_ = c.Name()
	})

	b := NewBuilder("Late")
	d := b.Column("a", core.String)
	assert.Panics(t, func() { _ = d.Name() })

	b.MustBuild()
	assert.Equal(t, "a", d.Name())
}

func TestBuilder(t *testing.T) {
	b := NewBuilder("Observation")
	id := b.Column("id", core.String)
	b.Columns(
		core.Field{Name: "status", Type: core.String},
		core.Field{Name: "value", Type: core.Float64},
	)
	m, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "Observation(id: string, status: string, value: float64)", m.String())
	assert.Equal(t, id, m.MustColumn("id"))
	assert.True(t, m.Owns(id))

	_, ok := m.Column("missing")
	assert.False(t, ok)
	assert.Panics(t, func() { m.MustColumn("missing") })

	// binding is a one-time side effect
	assert.Panics(t, func() { _, _ = b.Build() })

	dyn := Dynamic(m)
	assert.Same(t, m, dyn.Model)
	assert.Equal(t, struct{}{}, dyn.Cols)
}

func TestBuilder_Errors(t *testing.T) {
	_, err := NewBuilder("").Build()
	assert.Error(t, err)

	b := NewBuilder("Bad")
	b.Column("", core.String)
	b.Column("x", core.DataType{})
	_, err = b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty name")
	assert.Contains(t, err.Error(), "no declared type")
}

func TestModelCheck(t *testing.T) {
	m := NewBuilder("Observation").Columns(
		core.Field{Name: "id", Type: core.String},
		core.Field{Name: "status", Type: core.String},
		core.Field{Name: "value", Type: core.Float64},
	).MustBuild()

	tests := []struct {
		name     string
		observed []core.Field
		want     []core.Mismatch
	}{
		{
			name: "exact match",
			observed: []core.Field{
				{Name: "id", Type: core.String},
				{Name: "status", Type: core.String.AsNullable()},
				{Name: "value", Type: core.Float64},
			},
		},
		{
			name: "extra columns tolerated",
			observed: []core.Field{
				{Name: "validation_errors", Type: core.ListOf(core.String)},
				{Name: "value", Type: core.Float64},
				{Name: "status", Type: core.String},
				{Name: "id", Type: core.String},
			},
		},
		{
			name: "missing and type mismatch",
			observed: []core.Field{
				{Name: "id", Type: core.Int64},
				{Name: "status", Type: core.String},
			},
			want: []core.Mismatch{
				{Kind: core.MismatchType, Column: "id", Expected: "string", Observed: "int64"},
				{Kind: core.MismatchMissing, Column: "value", Expected: "float64", Observed: "absent"},
			},
		},
		{
			name: "integer for float is strict",
			observed: []core.Field{
				{Name: "id", Type: core.String},
				{Name: "status", Type: core.String},
				{Name: "value", Type: core.Int64},
			},
			want: []core.Mismatch{
				{Kind: core.MismatchType, Column: "value", Expected: "float64", Observed: "int64"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Check(tt.observed))
		})
	}
}

func TestModelCheck_Widening(t *testing.T) {
	model := NewBuilder("Reading", WithWidening()).Columns(core.Field{Name: "value", Type: core.Float64}).MustBuild()

	assert.True(t, model.Widening())
	assert.Empty(t, model.Check([]core.Field{{Name: "value", Type: core.Int64}}))
}

func TestModelResolve(t *testing.T) {
	m := NewBuilder("Point").Columns(
		core.Field{Name: "x", Type: core.Int64},
		core.Field{Name: "color", Type: core.String},
	).MustBuild()

	fields, err := m.Resolve(Mapping{})
	require.NoError(t, err)
	assert.Equal(t, m.Fields(), fields)

	fields, err = m.Resolve(Mapping{Keyed: map[string]core.DataType{"x": core.Float64}})
	require.NoError(t, err)
	assert.Equal(t, core.Float64, fields[0].Type)
	assert.Equal(t, core.String, fields[1].Type)

	fields, err = m.Resolve(Mapping{Positional: []core.DataType{core.Int64, core.Int64}})
	require.NoError(t, err)
	assert.Equal(t, core.Int64, fields[1].Type)

	var recErr *core.RecordError
	_, err = m.Resolve(Mapping{Positional: []core.DataType{core.Int64}})
	require.ErrorAs(t, err, &recErr)
	assert.Contains(t, recErr.Reason, "1 types, schema declares 2 columns")

	_, err = m.Resolve(Mapping{Keyed: map[string]core.DataType{"z": core.Int64}})
	require.ErrorAs(t, err, &recErr)
	assert.Contains(t, recErr.Reason, "z")
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ID":                 "id",
		"Status":             "status",
		"ValueQuantityValue": "value_quantity_value",
		"HTTPStatus":         "http_status",
		"SubjectID":          "subject_id",
		"Value2":             "value2",
		"X":                  "x",
	}
	for in, want := range tests {
		assert.Equal(t, want, snakeCase(in), in)
	}
}
