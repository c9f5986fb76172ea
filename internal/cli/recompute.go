package cli

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	"github.com/smallbiznis/commission/internal/recalc"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// NewRecomputeCommand creates the recompute command group.
func NewRecomputeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild commission aggregates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "budget <budget-id>",
		Short: "Rebuild every seller of a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			budgetID, err := parseID("budget-id", args[0])
			if err != nil {
				return err
			}
			return runRecompute(cmd, rootOpts, func(ctx context.Context, t *recalc.Trigger) (*aggdomain.Summary, error) {
				return t.RecomputeBudget(ctx, budgetID)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "user <budget-id> <user-id>",
		Short: "Rebuild one seller of a budget",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			budgetID, err := parseID("budget-id", args[0])
			if err != nil {
				return err
			}
			userID, err := parseID("user-id", args[1])
			if err != nil {
				return err
			}
			return runRecompute(cmd, rootOpts, func(ctx context.Context, t *recalc.Trigger) (*aggdomain.Summary, error) {
				return t.RecomputeUser(ctx, budgetID, userID)
			})
		},
	})

	return cmd
}

func parseID(name, raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func runRecompute(cmd *cobra.Command, opts *RootOptions, run func(context.Context, *recalc.Trigger) (*aggdomain.Summary, error)) error {
	var trigger *recalc.Trigger
	app := fx.New(engineOptions(opts, fx.Populate(&trigger)))
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
	defer func() { _ = app.Stop(context.WithoutCancel(ctx)) }()

	summary, runErr := run(ctx, trigger)
	if summary != nil {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := formatter.Summary(summary); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if summary != nil && summary.Status == aggdomain.StatusBudgetNotFound {
		return fmt.Errorf("budget %s not found", summary.BudgetID)
	}
	return nil
}
