package schemafile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const observations = `
models:
  - name: Observation
    columns:
      - {name: id, type: string}
      - {name: status, type: string}
      - {name: value, type: 'float64?'}
      - {name: codes, type: list<string>}
    rules:
      - not_null: id
      - column: status
        one_of: [final, amended]
        name: known_status
      - column: id
        matches: '^\d+$'
        description: ids are numeric
  - name: Patient
    widening: true
    columns:
      - {name: id, type: string}
      - {name: weight, type: float64}
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(observations))
	require.NoError(t, err)
	assert.Equal(t, []string{"Observation", "Patient"}, c.Names())

	obs, err := c.Get("Observation")
	require.NoError(t, err)
	assert.Equal(t, "(id: string, status: string, value: float64?, codes: list<string>)", core.FormatFields(obs.Model.Fields()))
	require.Len(t, obs.Rules, 3)
	assert.Equal(t, "id_required", obs.Rules[0].Name)
	assert.Equal(t, "known_status", obs.Rules[1].Name)
	assert.Equal(t, "id_format", obs.Rules[2].Name)
	assert.Equal(t, "ids are numeric", obs.Rules[2].Description)

	patient, err := c.Get("Patient")
	require.NoError(t, err)
	assert.True(t, patient.Model.Widening())
	assert.Empty(t, patient.Rules)

	_, err = c.Get("Condition")
	assert.ErrorContains(t, err, "available: [Observation Patient]")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"unknown key", "models:\n  - name: A\n    colums: []\n", "colums"},
		{"bad type", "models:\n  - name: A\n    columns: [{name: x, type: decimal}]\n", "unknown column type"},
		{"duplicate column", "models:\n  - name: A\n    columns: [{name: x, type: int}, {name: x, type: int}]\n", "duplicate column"},
		{"duplicate model", "models:\n  - name: A\n    columns: [{name: x, type: int}]\n  - name: A\n    columns: [{name: x, type: int}]\n", "declared twice"},
		{"rule on unknown column", "models:\n  - name: A\n    columns: [{name: x, type: int}]\n    rules: [{not_null: y}]\n", "not declared"},
		{"rule with two checks", "models:\n  - name: A\n    columns: [{name: x, type: string}]\n    rules: [{column: x, matches: a, one_of: [b]}]\n", "exactly one"},
		{"bad pattern", "models:\n  - name: A\n    columns: [{name: x, type: string}]\n    rules: [{column: x, matches: '('}]\n", "x_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(observations), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Names(), 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Names())
}

func TestParse_GlobalOptions(t *testing.T) {
	c, err := Parse([]byte(observations))
	require.NoError(t, err)
	obs, err := c.Get("Observation")
	require.NoError(t, err)
	assert.False(t, obs.Model.Widening())
	patient, err := c.Get("Patient")
	require.NoError(t, err)
	assert.True(t, patient.Model.Widening())

	c, err = Parse([]byte(observations), schema.WithWidening())
	require.NoError(t, err)
	obs, err = c.Get("Observation")
	require.NoError(t, err)
	assert.True(t, obs.Model.Widening())
}
