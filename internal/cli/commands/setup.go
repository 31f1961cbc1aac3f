package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/das/internal/cli/output"
	"github.com/leapstack-labs/das/internal/config"
	"github.com/leapstack-labs/das/internal/report"
	"github.com/leapstack-labs/das/internal/schemafile"
	"github.com/leapstack-labs/das/pkg/adapter"
	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/schema"
	"github.com/spf13/cobra"

	_ "github.com/leapstack-labs/das/pkg/adapters/duckdb" // registers the duckdb adapter
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds a CommandContext from the config and logger the
// root command stored in the command context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.FromContext(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
	}
}

// LoadCatalog loads the configured schema file.
func (c *CommandContext) LoadCatalog() (*schemafile.Catalog, error) {
	var opts []schema.Option
	if c.Cfg.AllowWidening {
		opts = append(opts, schema.WithWidening())
	}
	return schemafile.Load(c.Cfg.Schemas, opts...)
}

// OpenStore opens the run history database.
// Returns the store and a cleanup function that must be called (typically via defer).
func (c *CommandContext) OpenStore() (*report.Store, func(), error) {
	store := report.NewStore(c.Logger)
	if err := store.Open(c.Cfg.ReportDB); err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// ConnectDuckDB connects the relational engine's database.
// Returns the adapter and a cleanup function that must be called (typically via defer).
func (c *CommandContext) ConnectDuckDB(ctx context.Context) (adapter.Adapter, func(), error) {
	cfg := core.AdapterConfig{
		Type:   "duckdb",
		Path:   c.Cfg.DuckDB.Path,
		Params: c.Cfg.DuckDB.Params,
	}
	db, err := adapter.Open(ctx, cfg, c.Logger)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}
