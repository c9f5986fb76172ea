// Package scheduler periodically rebuilds the budgets whose period covers the
// current day, catching up on anything the incremental path missed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	"github.com/smallbiznis/commission/internal/clock"
	obslogger "github.com/smallbiznis/commission/internal/observability/logger"
	"github.com/smallbiznis/commission/internal/recalc"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// BudgetRecomputer runs the batch path for one budget.
type BudgetRecomputer interface {
	RecomputeBudget(ctx context.Context, budgetID snowflake.ID) (*aggdomain.Summary, error)
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	BudgetRepo budgetdomain.Repository
	Recomputer BudgetRecomputer
	Config     Config `optional:"true"`
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	budgetRepo budgetdomain.Repository
	recomputer BudgetRecomputer
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.BudgetRepo == nil || p.Recomputer == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		budgetRepo: p.BudgetRepo,
		recomputer: p.Recomputer,
	}, nil
}

// RunOnce rebuilds every budget active today. One failing budget does not
// stop the others; their errors are joined.
func (s *Scheduler) RunOnce(parent context.Context) error {
	runID := ulid.Make().String()
	ctx := obslogger.WithRunID(parent, runID)
	log := s.log.With(zap.String("run_id", runID))

	budgets, err := s.budgetRepo.ListBudgetsForDate(ctx, s.db.WithContext(ctx), s.clock.Now())
	if err != nil {
		return fmt.Errorf("list active budgets: %w", err)
	}
	if len(budgets) == 0 {
		log.Debug("no active budgets to reconcile")
		return nil
	}

	var joined error
	for _, budget := range budgets {
		joined = errors.Join(joined, s.runJob(ctx, log, budget.ID))
	}
	return joined
}

func (s *Scheduler) runJob(parent context.Context, log *zap.Logger, budgetID snowflake.ID) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	log = obslogger.WithBudget(log, budgetID.String(), "")
	summary, err := s.recomputer.RecomputeBudget(ctx, budgetID)
	switch {
	case err == nil:
		log.Info("budget reconciled",
			zap.String("status", string(summary.Status)),
			zap.Int("users_processed", summary.UsersProcessed),
			zap.Duration("duration", s.clock.Now().Sub(start)),
		)
		return nil
	case errors.Is(err, recalc.ErrRecomputeInProgress):
		log.Info("budget busy, skipping reconcile")
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		// soft timeout; the next tick retries
		log.Warn("budget reconcile timed out", zap.Duration("timeout", s.cfg.JobTimeout))
		return nil
	default:
		log.Error("budget reconcile failed", zap.Error(err))
		return fmt.Errorf("reconcile budget %s: %w", budgetID, err)
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
