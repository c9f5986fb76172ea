package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	"github.com/smallbiznis/commission/internal/classification"
	"github.com/smallbiznis/commission/internal/clock"
	"github.com/smallbiznis/commission/internal/config"
	obsmetrics "github.com/smallbiznis/commission/internal/observability/metrics"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Config     *config.CommissionConfigHolder
	Repo       turndomain.Repository
	BudgetRepo budgetdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	config     *config.CommissionConfigHolder
	repo       turndomain.Repository
	budgetRepo budgetdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) turndomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("turn.service"),
		clock:      p.Clock,
		config:     p.Config,
		repo:       p.Repo,
		budgetRepo: p.BudgetRepo,
		obsMetrics: p.ObsMetrics,
	}
}

// AssignTurns sets a user's turns after checking the budget's capacity. A
// rejected assignment leaves stored turns untouched.
func (s *Service) AssignTurns(ctx context.Context, budgetID, userID snowflake.ID, turns int) (*turndomain.Assignment, error) {
	if budgetID == 0 || userID == 0 {
		return nil, turndomain.ErrInvalidAssignment
	}
	if turns < 0 {
		return nil, turndomain.ErrInvalidTurns
	}

	var result *turndomain.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		budget, err := s.budgetRepo.FindBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		if budget == nil {
			return budgetdomain.ErrBudgetNotFound
		}
		if err := s.repo.LockBudget(ctx, tx, budgetID); err != nil {
			return err
		}

		others, err := s.repo.SumAssigned(ctx, tx, budgetID, &userID)
		if err != nil {
			return err
		}

		capacity := budget.FixedTurns()
		if capacity > 0 && others+turns > capacity {
			available := capacity - others
			if available < 0 {
				available = 0
			}
			return &turndomain.CapacityError{
				BudgetID:  budgetID,
				UserID:    userID,
				Requested: turns,
				Available: available,
			}
		}

		if err := s.repo.Upsert(ctx, tx, &turndomain.BudgetUserTurn{
			BudgetID:      budgetID,
			UserID:        userID,
			AssignedTurns: turns,
			UpdatedAt:     s.clock.Now(),
		}); err != nil {
			return err
		}

		result = &turndomain.Assignment{
			BudgetID:      budgetID,
			UserID:        userID,
			AssignedTurns: turns,
			Capacity:      buildCapacity(budget, others+turns),
		}
		return nil
	})
	if err != nil {
		var capErr *turndomain.CapacityError
		if errors.As(err, &capErr) {
			s.obsMetrics.RecordTurnRejection(ctx)
			s.log.Info("turn assignment rejected",
				zap.String("budget_id", budgetID.String()),
				zap.String("user_id", userID.String()),
				zap.Int("requested", capErr.Requested),
				zap.Int("available", capErr.Available),
			)
		}
		return nil, err
	}

	s.log.Info("turns assigned",
		zap.String("budget_id", budgetID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("assigned_turns", turns),
	)
	return result, nil
}

func (s *Service) RemainingTurns(ctx context.Context, budgetID snowflake.ID) (*turndomain.Capacity, error) {
	conn := s.db.WithContext(ctx)
	budget, err := s.budgetRepo.FindBudget(ctx, conn, budgetID)
	if err != nil {
		return nil, err
	}
	if budget == nil {
		return nil, budgetdomain.ErrBudgetNotFound
	}

	assigned, err := s.repo.SumAssigned(ctx, conn, budgetID, nil)
	if err != nil {
		return nil, err
	}
	capacity := buildCapacity(budget, assigned)
	return &capacity, nil
}

// Allocation reports the user's budget slice as the aggregation writer sees it.
func (s *Service) Allocation(ctx context.Context, budgetID, userID snowflake.ID) (*turndomain.Allocation, error) {
	conn := s.db.WithContext(ctx)
	budget, err := s.budgetRepo.FindBudget(ctx, conn, budgetID)
	if err != nil {
		return nil, err
	}
	if budget == nil {
		return nil, budgetdomain.ErrBudgetNotFound
	}

	categories, err := s.budgetRepo.ListCategories(ctx, conn, budgetID)
	if err != nil {
		return nil, err
	}
	turns, err := s.repo.ListByBudget(ctx, conn, budgetID)
	if err != nil {
		return nil, err
	}

	cfg := s.config.Get()
	normalizer := classification.New(cfg.Classification)
	groups := budgetdomain.GroupCategories(categories, normalizer.Normalize)
	participation := make(map[string]decimal.Decimal, len(groups))
	for key, share := range groups {
		participation[key] = share.ParticipationPct
	}

	sum, assigned := 0, 0
	for _, t := range turns {
		sum += t.AssignedTurns
		if t.UserID == userID {
			assigned = t.AssignedTurns
		}
	}

	allocation := turndomain.Allocate(turndomain.AllocationInput{
		TargetAmount:       budget.TargetAmount,
		FixedTotalTurns:    budget.FixedTurns(),
		SumAssignedTurns:   sum,
		AssignedTurns:      assigned,
		FallbackTotalTurns: cfg.Turns.FallbackTotalTurns,
		GroupParticipation: participation,
	})
	return &allocation, nil
}

func buildCapacity(budget *budgetdomain.Budget, assigned int) turndomain.Capacity {
	capacity := turndomain.Capacity{
		BudgetID:      budget.ID,
		AssignedTurns: assigned,
	}
	if total := budget.FixedTurns(); total > 0 {
		remaining := total - assigned
		if remaining < 0 {
			remaining = 0
		}
		capacity.TotalTurns = &total
		capacity.RemainingTurns = &remaining
	}
	return capacity
}
