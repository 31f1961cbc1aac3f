package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("engine", "", "")
	fs.String("output", "", "")
	fs.String("log-level", "", "")
	fs.Bool("allow-widening", false, "")
	fs.Int("concurrency", 0, "")
	fs.String("duckdb-path", "", "")
	return fs
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, EngineLazy, cfg.Engine)
	assert.Equal(t, DefaultSchemas, cfg.Schemas)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultDuckDBPath, cfg.DuckDB.Path)
	assert.False(t, cfg.AllowWidening)
	assert.Empty(t, cfg.FileUsed)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "das.yaml"), []byte(`
engine: relational
output: json
concurrency: 2
report_db: ${DAS_TEST_HOME}/runs.db
duckdb:
  path: warehouse.duckdb
  params:
    extensions: [httpfs]
`), 0o600))

	t.Setenv("DAS_TEST_HOME", "/tmp/das")
	t.Setenv("DAS_CONCURRENCY", "8")
	t.Setenv("DAS_DUCKDB_PATH", "env.duckdb")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--engine", "lazy", "--allow-widening"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "das.yaml", cfg.FileUsed)
	assert.Equal(t, EngineLazy, cfg.Engine, "flag beats file")
	assert.Equal(t, "json", cfg.Output, "file beats default")
	assert.Equal(t, 8, cfg.Concurrency, "env beats file")
	assert.Equal(t, "env.duckdb", cfg.DuckDB.Path)
	assert.True(t, cfg.AllowWidening)
	assert.Equal(t, "/tmp/das/runs.db", cfg.ReportDB)
	assert.Equal(t, []any{"httpfs"}, cfg.DuckDB.Params["extensions"])
}

func TestLoad_UnchangedFlagsIgnored(t *testing.T) {
	chdir(t, t.TempDir())
	fs := testFlags()
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultOutput, cfg.Output)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		errSubstr string
	}{
		{"engine", []string{"--engine", "spark"}, "invalid engine"},
		{"output", []string{"--output", "xml"}, "invalid output"},
		{"concurrency", []string{"--concurrency", "0"}, "concurrency must be at least 1"},
		{"log level", []string{"--log-level", "loud"}, "invalid log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			fs := testFlags()
			require.NoError(t, fs.Parse(tt.args))
			_, err := Load("", fs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("nope.yaml", nil)
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "duckdb.path", envKey("DAS_DUCKDB_PATH"))
	assert.Equal(t, "log_level", envKey("DAS_LOG_LEVEL"))
	assert.Equal(t, "allow_widening", flagKey("allow-widening"))
	assert.Equal(t, "duckdb.path", flagKey("duckdb-path"))
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Default(), FromContext(ctx))
	assert.NotNil(t, GetLogger(ctx))

	cfg := Default()
	cfg.Engine = EngineRelational
	ctx = WithConfig(ctx, cfg)
	assert.Same(t, cfg, FromContext(ctx))

	logger := slog.New(slog.DiscardHandler)
	assert.Same(t, logger, GetLogger(WithLogger(ctx, logger)))
}
