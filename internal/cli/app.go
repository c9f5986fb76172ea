package cli

import (
	"github.com/smallbiznis/commission/internal/aggregation"
	"github.com/smallbiznis/commission/internal/budget"
	"github.com/smallbiznis/commission/internal/clock"
	"github.com/smallbiznis/commission/internal/config"
	"github.com/smallbiznis/commission/internal/ledger"
	"github.com/smallbiznis/commission/internal/observability"
	"github.com/smallbiznis/commission/internal/recalc"
	"github.com/smallbiznis/commission/internal/turn"
	"github.com/smallbiznis/commission/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// engineOptions assembles the infrastructure and the engine modules every
// database-backed command needs.
func engineOptions(opts *RootOptions, extra ...fx.Option) fx.Option {
	base := []fx.Option{
		fxLogger(opts),

		// Core Infrastructure
		config.Module,
		fx.Decorate(func(cfg config.Config) config.Config {
			if opts.ConfigPath != "" {
				cfg.CommissionConfigPath = opts.ConfigPath
			}
			return cfg
		}),
		observability.Module,
		db.Module,
		clock.Module,

		// Functional Domains
		budget.Module,
		ledger.Module,
		turn.Module,
		aggregation.Module,
		recalc.Module,
	}
	return fx.Options(append(base, extra...)...)
}

func fxLogger(opts *RootOptions) fx.Option {
	if !opts.Verbose {
		return fx.NopLogger
	}
	return fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	})
}
