package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/das/internal/cli/output"
	"github.com/leapstack-labs/das/internal/config"
	"github.com/leapstack-labs/das/pkg/adapter"
	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/lazy"
	"github.com/leapstack-labs/das/pkg/relational"
	"github.com/spf13/cobra"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "describe [file]",
		Short: "Show the columns of a data file or table",
		Long: `Show the column names and types a data file would present to the
validator, without reading its rows.

With --table the columns of a table in the configured DuckDB database are
shown with its row count.`,
		Example: `  das describe obs.parquet
  das describe --engine relational obs.csv
  das describe --table raw.obs`,
		Args: func(cmd *cobra.Command, args []string) error {
			if table != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			if table != "" {
				return describeTable(cmd.Context(), cmdCtx, table)
			}
			path := args[0]

			var (
				fields []core.Field
				err    error
			)
			if cmdCtx.Cfg.Engine == config.EngineRelational {
				db, closeDB, cerr := cmdCtx.ConnectDuckDB(cmd.Context())
				if cerr != nil {
					return cerr
				}
				defer closeDB()
				sess := relational.NewSession(db, relational.WithLogger(cmdCtx.Logger))
				var rel *relational.Relation
				switch strings.ToLower(filepath.Ext(path)) {
				case ".csv", ".tsv":
					rel = sess.ReadCSV(path)
				case ".json", ".jsonl", ".ndjson":
					rel = sess.ReadJSON(path)
				default:
					rel = sess.ReadParquet(path)
				}
				fields, err = rel.Describe(cmd.Context())
			} else {
				fields, err = lazy.NewSession(lazy.WithLogger(cmdCtx.Logger)).ScanParquet(path).Columns()
			}
			if err != nil {
				return fmt.Errorf("describing %s: %w", path, err)
			}
			return renderFields(cmdCtx.Renderer, path, fields)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Describe a table of the DuckDB database instead of a file")
	return cmd
}

func describeTable(ctx context.Context, cmdCtx *CommandContext, table string) error {
	db, closeDB, err := cmdCtx.ConnectDuckDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()
	return renderTable(ctx, cmdCtx.Renderer, db, table)
}

// renderTable shows a table's columns, titled with its qualified name and
// row count.
func renderTable(ctx context.Context, r *output.Renderer, db adapter.Adapter, table string) error {
	md, err := db.GetTableMetadata(ctx, table)
	if err != nil {
		return fmt.Errorf("describing table %s: %w", table, err)
	}
	title := fmt.Sprintf("%s.%s (%d rows)", md.Schema, md.Name, md.RowCount)
	return renderFields(r, title, relational.FieldsFromColumns(md.Columns))
}

func renderFields(r *output.Renderer, title string, fields []core.Field) error {
	if r.EffectiveMode() == output.ModeJSON {
		type column struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		cols := make([]column, len(fields))
		for i, f := range fields {
			cols[i] = column{Name: f.Name, Type: f.Type.String()}
		}
		return r.JSON(cols)
	}
	r.Header(2, title)
	rows := make([][]any, len(fields))
	for i, f := range fields {
		rows[i] = []any{f.Name, f.Type.String()}
	}
	r.Table([]string{"Column", "Type"}, rows)
	return nil
}
