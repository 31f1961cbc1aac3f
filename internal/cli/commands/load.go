package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "load <file.csv>",
		Short: "Load a csv file into a DuckDB table",
		Long: `Load a csv file into a table of the configured DuckDB database, replacing
any table of the same name. Column types are inferred from the file.

Loaded tables can be validated with validate --table. Set duckdb.path so the
table outlives the command.`,
		Example: `  das load obs.csv --table raw.obs
  das validate --model Observation --engine relational --table raw.obs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			ctx := cmd.Context()
			db, closeDB, err := cmdCtx.ConnectDuckDB(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := db.LoadCSV(ctx, table, args[0]); err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}
			cmdCtx.Logger.Info("loaded table", slog.String("table", table), slog.String("file", args[0]))
			return renderTable(ctx, cmdCtx.Renderer, db, table)
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Table to create (required)")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
