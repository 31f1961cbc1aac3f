package commands

import (
	"testing"

	"github.com/leapstack-labs/das/internal/cli/testutil"
	"github.com/leapstack-labs/das/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{version: "0.3.0", want: "das v0.3.0\nTyped dataframes over Arrow and DuckDB\n"},
		{version: "dev", want: "das vdev\nTyped dataframes over Arrow and DuckDB\n"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			assert.Equal(t, "version", cmd.Use)
			assert.NotEmpty(t, cmd.Long)

			out, err := testutil.Execute(t, config.Default(), cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}
