package cli

import (
	"context"
	"errors"

	"github.com/smallbiznis/commission/internal/config"
	"github.com/smallbiznis/commission/internal/recalc"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewConsumeCommand creates the consume command.
func NewConsumeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume ledger events and recompute the affected sellers",
		Long: `Consume sale.created, sale.updated and sale.deleted events from the
ledger queue. Each event recomputes the (budget, seller) pairs it touched;
malformed events are dropped and failed ones requeued.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(engineOptions(rootOpts, fx.Invoke(runConsumer)))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func runConsumer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, trigger *recalc.Trigger, log *zap.Logger) {
	var (
		consumer *recalc.Consumer
		cancel   context.CancelFunc
		done     = make(chan struct{})
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c, err := recalc.NewConsumer(cfg, log)
			if err != nil {
				return err
			}
			consumer = c

			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				err := consumer.Run(runCtx, trigger.HandleMessage)
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Error("ledger consumer stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
				select {
				case <-done:
				case <-ctx.Done():
				}
			}
			if consumer != nil {
				return consumer.Close()
			}
			return nil
		},
	})
}
