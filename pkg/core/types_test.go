package core

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeFor(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		want DataType
	}{
		{"string", reflect.TypeOf(""), String},
		{"int", reflect.TypeOf(0), Int64},
		{"int32", reflect.TypeOf(int32(0)), Int64},
		{"float64", reflect.TypeOf(0.0), Float64},
		{"bool", reflect.TypeOf(false), Bool},
		{"time", reflect.TypeOf(time.Time{}), Timestamp},
		{"date", reflect.TypeOf(Date{}), DateType},
		{"nullable string", reflect.TypeOf((*string)(nil)), String.AsNullable()},
		{"string list", reflect.TypeOf([]string{}), ListOf(String)},
		{"nullable int list", reflect.TypeOf([]*int64{}), ListOf(Int64.AsNullable())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TypeFor(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeFor_Unsupported(t *testing.T) {
	_, err := TypeFor(reflect.TypeOf(map[string]int{}))
	assert.Error(t, err)

	_, err = TypeFor(nil)
	assert.Error(t, err)
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		name     string
		declared DataType
		observed DataType
		widen    bool
		want     bool
	}{
		{"same kind", String, String, false, true},
		{"nullability ignored", String, String.AsNullable(), false, true},
		{"int for float strict", Float64, Int64, false, false},
		{"int for float widened", Float64, Int64, true, true},
		{"float for int never", Int64, Float64, true, false},
		{"list elements", ListOf(String), ListOf(String), false, true},
		{"list element mismatch", ListOf(String), ListOf(Int64), false, false},
		{"list element widened", ListOf(Float64), ListOf(Int64), true, true},
		{"unknown never matches", UnknownType("STRUCT(a INT)"), UnknownType("STRUCT(a INT)"), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compatible(tt.declared, tt.observed, tt.widen))
		})
	}
}

func TestParseType_RoundTrip(t *testing.T) {
	for _, typ := range []DataType{
		String, Int64.AsNullable(), Float64, Bool, DateType, Timestamp,
		ListOf(String), ListOf(Float64.AsNullable()).AsNullable(),
	} {
		t.Run(typ.String(), func(t *testing.T) {
			got, err := ParseType(typ.String())
			require.NoError(t, err)
			assert.Equal(t, typ, got)
		})
	}

	_, err := ParseType("decimal")
	assert.Error(t, err)
}

func TestDate(t *testing.T) {
	d := DateOf(time.Date(2024, time.March, 5, 13, 0, 0, 0, time.UTC))
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 5}, d)
	assert.Equal(t, "2024-03-05", d.String())
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), d.Time())
}
