package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/das/internal/cli/output"
	"github.com/leapstack-labs/das/internal/config"
	"github.com/leapstack-labs/das/internal/report"
	"github.com/leapstack-labs/das/pkg/lazy"
	"github.com/leapstack-labs/das/pkg/relational"
	"github.com/leapstack-labs/das/pkg/typed"
	"github.com/leapstack-labs/das/pkg/typed/lazyframe"
	"github.com/leapstack-labs/das/pkg/typed/relation"
	"github.com/spf13/cobra"
)

// ErrValidationFailed is returned when at least one source did not pass.
var ErrValidationFailed = errors.New("validation failed")

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Model    string
	Records  string
	Tables   []string
	NoRecord bool
	Clean    bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate data files against a schema model",
		Long: `Validate data files or JSON records against a model from the schema file.

Each source is checked for missing columns, type mismatches and unexpected
columns, then the model's row rules are evaluated. Every run is recorded in
the run history unless --no-record is set.

The lazy engine reads parquet files. The relational engine reads parquet,
csv and json through DuckDB, and tables of the configured database.`,
		Example: `  # Validate parquet files with the lazy engine
  das validate --model Observation data/*.parquet

  # Validate a csv file through DuckDB
  das validate --model Observation --engine relational obs.csv

  # Normalize headers and blank strings before checking
  das validate --model Observation --engine relational --clean raw.csv

  # Validate a table loaded with das load
  das validate --model Observation --engine relational --table raw.obs

  # Validate JSON records
  das validate --model Observation --records obs.json --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Model to validate against (required)")
	cmd.Flags().StringVar(&opts.Records, "records", "", "JSON file holding an array of records")
	cmd.Flags().StringSliceVar(&opts.Tables, "table", nil, "Database table to validate (relational engine, repeatable)")
	cmd.Flags().BoolVar(&opts.NoRecord, "no-record", false, "Do not record runs in the history")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "Normalize column names and blank strings before checking")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	if len(args) == 0 && opts.Records == "" && len(opts.Tables) == 0 {
		return fmt.Errorf("nothing to validate\nHint: pass data files, --table or --records")
	}

	catalog, err := cmdCtx.LoadCatalog()
	if err != nil {
		return err
	}
	entry, err := catalog.Get(opts.Model)
	if err != nil {
		return err
	}

	sources := make([]source, 0, len(args)+1)
	for _, path := range args {
		sources = append(sources, source{name: path, path: path})
	}
	for _, table := range opts.Tables {
		sources = append(sources, source{name: table, table: table})
	}
	if opts.Records != "" {
		records, err := readRecords(opts.Records)
		if err != nil {
			return err
		}
		sources = append(sources, source{name: opts.Records, records: records})
	}

	v := &validator{
		entry:  entry,
		engine: typed.Engine(cfg.Engine),
		logger: cmdCtx.Logger,
		lazy:   lazy.NewSession(lazy.WithLogger(cmdCtx.Logger)),
		clean:  opts.Clean,
	}
	if cfg.Engine == config.EngineRelational {
		db, closeDB, err := cmdCtx.ConnectDuckDB(ctx)
		if err != nil {
			return err
		}
		defer closeDB()
		v.rel = relational.NewSession(db, relational.WithLogger(cmdCtx.Logger))
		v.adapter = relation.NewModelAdapter(v.rel, entry.Model)
	} else {
		v.adapter = lazyframe.NewModelAdapter(v.lazy, entry.Model)
	}

	runs, err := v.runAll(ctx, sources, cfg.Concurrency)
	if err != nil {
		return err
	}

	if !opts.NoRecord {
		store, closeStore, err := cmdCtx.OpenStore()
		if err != nil {
			return err
		}
		defer closeStore()
		for _, run := range runs {
			if err := store.Record(ctx, run); err != nil {
				return err
			}
		}
	}

	if err := renderRuns(cmdCtx.Renderer, runs); err != nil {
		return err
	}

	failed := 0
	for _, run := range runs {
		if run.Status != report.StatusPassed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d sources", ErrValidationFailed, failed, len(runs))
	}
	return nil
}

func renderRuns(r *output.Renderer, runs []*report.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}
	for _, run := range runs {
		renderRun(r, run)
	}
	return nil
}

func renderRun(r *output.Renderer, run *report.Run) {
	msg := fmt.Sprintf("%s: %s against %s (%s engine)", run.Status, run.Source, run.Model, run.Engine)
	if run.Status == report.StatusPassed {
		r.Success(msg)
	} else {
		r.Failure(msg)
	}
	if run.Error != "" {
		r.Println("  " + strings.ReplaceAll(run.Error, "\n", "\n  "))
	}
	if len(run.Mismatches) > 0 {
		rows := make([][]any, len(run.Mismatches))
		for i, m := range run.Mismatches {
			rows[i] = []any{m.Kind, m.Column, m.Expected, m.Observed}
		}
		r.Println()
		r.Table([]string{"Kind", "Column", "Expected", "Observed"}, rows)
	}
	if run.Rules != nil {
		r.Println()
		r.Println(output.FormatKeyValue("Records", fmt.Sprintf("%d", run.Rules.TotalRecords)))
		r.Println(output.FormatKeyValue("Valid", fmt.Sprintf("%d (%.1f%%)", run.Rules.ValidRecords, run.Rules.ValidityRate*100)))
		if len(run.Rules.ErrorsByRule) > 0 {
			rows := make([][]any, len(run.Rules.ErrorsByRule))
			for i, rc := range run.Rules.ErrorsByRule {
				rows[i] = []any{rc.Rule, rc.Count}
			}
			r.Println()
			r.Table([]string{"Rule", "Failures"}, rows)
		}
	}
	r.Println()
}
