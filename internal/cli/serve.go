package cli

import (
	"github.com/smallbiznis/commission/internal/migration"
	"github.com/smallbiznis/commission/internal/scheduler"
	"github.com/smallbiznis/commission/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API exposing recompute, turn assignment, read-side and
ledger hook endpoints. The schema is migrated on startup unless --skip-migrate
is set. With RECONCILE_ENABLED the budgets active today are also rebuilt
every RECONCILE_INTERVAL_SECONDS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := []fx.Option{server.Module, scheduler.Module}
			if !skipMigrate {
				extra = append([]fx.Option{migration.Module}, extra...)
			}
			app := fx.New(engineOptions(rootOpts, extra...))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not migrate the schema on startup")
	return cmd
}
