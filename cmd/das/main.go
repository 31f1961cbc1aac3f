// Package main provides the das command.
package main

import (
	"errors"
	"os"

	"github.com/leapstack-labs/das/internal/cli"
	"github.com/leapstack-labs/das/internal/cli/commands"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.Is(err, commands.ErrValidationFailed) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
