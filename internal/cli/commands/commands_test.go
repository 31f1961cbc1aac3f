package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	assert.Equal(t, "validate [files...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	// engine and output are global persistent flags on root
	flags := []string{"model", "records", "table", "no-record", "clean"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history [run-id]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	for _, flag := range []string{"model", "limit"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewDescribeCommand(t *testing.T) {
	cmd := NewDescribeCommand()

	assert.Equal(t, "describe [file]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("table"))
}

func TestNewLoadCommand(t *testing.T) {
	cmd := NewLoadCommand()

	assert.Equal(t, "load <file.csv>", cmd.Use)
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
	table := cmd.Flags().Lookup("table")
	if assert.NotNil(t, table) {
		assert.Equal(t, "t", table.Shorthand)
	}
}

func TestNewModelsCommand(t *testing.T) {
	cmd := NewModelsCommand()

	assert.Equal(t, "models [name]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}
