package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_ConnectFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "obs.duckdb")

	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: path}))
	require.NoError(t, adp.Exec(ctx, "CREATE TABLE obs AS SELECT 'a1' AS id"))
	require.NoError(t, adp.Close())

	_, err := os.Stat(path)
	require.NoError(t, err)

	reopened := New(nil)
	require.NoError(t, reopened.Connect(ctx, core.AdapterConfig{Path: path}))
	t.Cleanup(func() { _ = reopened.Close() })
	md, err := reopened.GetTableMetadata(ctx, "obs")
	require.NoError(t, err)
	assert.EqualValues(t, 1, md.RowCount)
}

func TestAdapter_ConnectDefaults(t *testing.T) {
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{}))
	t.Cleanup(func() { _ = adp.Close() })

	assert.True(t, adp.IsConnected())
	assert.Equal(t, &Params{}, adp.Params())
}

func TestAdapter_ConnectAppliesSettings(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{
		Path:   ":memory:",
		Params: map[string]any{"settings": map[string]any{"threads": 2}},
	}))
	t.Cleanup(func() { _ = adp.Close() })
	assert.Equal(t, map[string]string{"threads": "2"}, adp.Params().Settings)

	rows, err := adp.Query(ctx, "SELECT current_setting('threads')")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var threads int64
	require.NoError(t, rows.Scan(&threads))
	assert.EqualValues(t, 2, threads)
}

func TestAdapter_ConnectBadSetting(t *testing.T) {
	adp := New(nil)
	err := adp.Connect(context.Background(), core.AdapterConfig{
		Path:   ":memory:",
		Params: map[string]any{"settings": map[string]any{"no_such_setting": "1"}},
	})
	assert.ErrorContains(t, err, "applying duckdb params")
	assert.False(t, adp.IsConnected())
}

func TestAdapter_GetTableMetadata(t *testing.T) {
	ctx := context.Background()
	adp := connected(t)
	require.NoError(t, adp.Exec(ctx, `CREATE SCHEMA raw`))
	require.NoError(t, adp.Exec(ctx, `CREATE TABLE raw.obs (id VARCHAR NOT NULL, status VARCHAR, value DOUBLE)`))
	require.NoError(t, adp.Exec(ctx, `INSERT INTO raw.obs VALUES ('a1', 'final', 98.6), ('a2', 'amended', NULL)`))

	tests := []struct {
		name    string
		table   string
		wantErr string
	}{
		{name: "qualified", table: "raw.obs"},
		{name: "unqualified resolves in main", table: "obs", wantErr: "table main.obs not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := adp.GetTableMetadata(ctx, tt.table)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "raw", md.Schema)
			assert.Equal(t, "obs", md.Name)
			assert.EqualValues(t, 2, md.RowCount)
			assert.Equal(t, []core.Column{
				{Name: "id", Type: "VARCHAR", Nullable: false, Position: 1},
				{Name: "status", Type: "VARCHAR", Nullable: true, Position: 2},
				{Name: "value", Type: "DOUBLE", Nullable: true, Position: 3},
			}, md.Columns)
		})
	}
}

func TestAdapter_LoadCSV(t *testing.T) {
	ctx := context.Background()
	adp := connected(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,status,value\na1,final,98.6\na2,amended,101.2\n"), 0o600))

	// Quoting keeps odd table names intact.
	require.NoError(t, adp.LoadCSV(ctx, `raw obs`, path))
	md, err := adp.GetTableMetadata(ctx, "raw obs")
	require.NoError(t, err)
	assert.EqualValues(t, 2, md.RowCount)
	assert.Equal(t, "DOUBLE", md.Columns[2].Type)

	// Loading again replaces the table.
	require.NoError(t, os.WriteFile(path, []byte("id,status,value\na3,final,1.0\n"), 0o600))
	require.NoError(t, adp.LoadCSV(ctx, `raw obs`, path))
	md, err = adp.GetTableMetadata(ctx, "raw obs")
	require.NoError(t, err)
	assert.EqualValues(t, 1, md.RowCount)

	err = adp.LoadCSV(ctx, "obs", filepath.Join(dir, "missing.csv"))
	assert.ErrorContains(t, err, "loading")

	assert.EqualError(t, New(nil).LoadCSV(ctx, "obs", path), "database connection not established")
}
