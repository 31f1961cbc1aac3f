package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/leapstack-labs/das/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRoot_LoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	testutil.WriteFile(t, dir, "models.yaml", testutil.SchemaFile)
	testutil.WriteFile(t, dir, "das.yaml", "schemas: models.yaml\noutput: json\n")

	out, err := run(t, "models")
	require.NoError(t, err, out)
	assert.JSONEq(t, `["Observation"]`, out)

	// flags override the file
	out, err = run(t, "models", "--output", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| Observation |")

	_, err = run(t, "models", "--engine", "spark")
	assert.ErrorContains(t, err, "invalid engine")
}

func TestRoot_Subcommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"validate", "describe", "load", "models", "history", "version", "completion"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestCompletion(t *testing.T) {
	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "das")

	_, err = run(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "das v"+Version)
}
