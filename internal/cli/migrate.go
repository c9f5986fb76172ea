package cli

import (
	"context"

	"github.com/smallbiznis/commission/internal/config"
	"github.com/smallbiznis/commission/internal/migration"
	"github.com/smallbiznis/commission/internal/observability"
	"github.com/smallbiznis/commission/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fxLogger(rootOpts),
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.Stop(context.WithoutCancel(ctx))
		},
	}
}
