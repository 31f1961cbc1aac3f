package commands

import (
	"github.com/leapstack-labs/das/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewModelsCommand creates the models command.
func NewModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models [name]",
		Short: "List schema models and their rules",
		Long: `List the models declared in the schema file. With a name, show that
model's columns and row rules.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			r := cmdCtx.Renderer
			catalog, err := cmdCtx.LoadCatalog()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(catalog.Names())
				}
				r.Header(1, "Models")
				rows := make([][]any, 0, len(catalog.Names()))
				for _, name := range catalog.Names() {
					e, err := catalog.Get(name)
					if err != nil {
						return err
					}
					rows = append(rows, []any{name, e.Model.Len(), len(e.Rules), e.Model.Widening()})
				}
				r.Table([]string{"Model", "Columns", "Rules", "Widening"}, rows)
				return nil
			}

			e, err := catalog.Get(args[0])
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				type rule struct {
					Name        string `json:"name"`
					Description string `json:"description,omitempty"`
				}
				rs := make([]rule, len(e.Rules))
				for i, ru := range e.Rules {
					rs[i] = rule{Name: ru.Name, Description: ru.Description}
				}
				cols := make(map[string]string, e.Model.Len())
				for _, f := range e.Model.Fields() {
					cols[f.Name] = f.Type.String()
				}
				return r.JSON(map[string]any{"name": e.Model.Name(), "columns": cols, "rules": rs})
			}

			if err := renderFields(r, e.Model.Name(), e.Model.Fields()); err != nil {
				return err
			}
			if len(e.Rules) > 0 {
				r.Println()
				rows := make([][]any, len(e.Rules))
				for i, ru := range e.Rules {
					rows[i] = []any{ru.Name, ru.Description}
				}
				r.Table([]string{"Rule", "Description"}, rows)
			}
			return nil
		},
	}
}
