package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/das/internal/cli/output"
	"github.com/leapstack-labs/das/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		model string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded validation runs",
		Long: `List recorded validation runs, newest first, or show one run in full
including its schema mismatches and rule failures.`,
		Example: `  # Recent runs
  das history

  # Runs of one model
  das history --model Observation --limit 5

  # One run
  das history 0b7c...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, cleanup, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer cleanup()

			r := cmdCtx.Renderer
			if len(args) == 1 {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(run)
				}
				renderRun(r, run)
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), model, limit)
			if err != nil {
				return err
			}
			return renderHistory(r, runs)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Only show runs of this model")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs")

	return cmd
}

func renderHistory(r *output.Renderer, runs []*report.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*report.Run{}
		}
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Println("No runs recorded")
		return nil
	}
	r.Header(1, "Validation Runs")
	rows := make([][]any, len(runs))
	for i, run := range runs {
		valid := "-"
		if run.Rules != nil {
			valid = fmt.Sprintf("%d/%d", run.Rules.ValidRecords, run.Rules.TotalRecords)
		}
		rows[i] = []any{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Model,
			run.Engine,
			run.Source,
			run.Status,
			valid,
		}
	}
	r.Table([]string{"ID", "Started", "Model", "Engine", "Source", "Status", "Valid"}, rows)
	return nil
}
