// Package recalc decides when aggregates are rebuilt: incrementally for ledger
// changes and turn assignments, and in batch on operator request.
package recalc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	ledgerdomain "github.com/smallbiznis/commission/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/commission/internal/observability/metrics"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	batchLockTTL     = 10 * time.Minute
	batchLockKeyBase = "commission:recompute:budget:"
)

var ErrRecomputeInProgress = errors.New("recompute_in_progress")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Aggregation aggdomain.Service
	Turns       turndomain.Service
	BudgetRepo  budgetdomain.Repository
	Lock        BatchLock           `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Trigger struct {
	db          *gorm.DB
	log         *zap.Logger
	aggregation aggdomain.Service
	turns       turndomain.Service
	budgetRepo  budgetdomain.Repository
	lock        BatchLock
	obsMetrics  *obsmetrics.Metrics
}

func NewTrigger(p Params) *Trigger {
	return &Trigger{
		db:          p.DB,
		log:         p.Log.Named("recalc.trigger"),
		aggregation: p.Aggregation,
		turns:       p.Turns,
		budgetRepo:  p.BudgetRepo,
		lock:        p.Lock,
		obsMetrics:  p.ObsMetrics,
	}
}

// RecomputeBudget is the operator batch path over every seller in the budget.
func (t *Trigger) RecomputeBudget(ctx context.Context, budgetID snowflake.ID) (*aggdomain.Summary, error) {
	if t.lock != nil {
		key := batchLockKeyBase + budgetID.String()
		token, ok, err := t.lock.TryLock(ctx, key, batchLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire batch lock: %w", err)
		}
		if !ok {
			return nil, ErrRecomputeInProgress
		}
		defer func() {
			if err := t.lock.Release(context.WithoutCancel(ctx), key, token); err != nil {
				t.log.Warn("release batch lock", zap.String("budget_id", budgetID.String()), zap.Error(err))
			}
		}()
	}
	return t.aggregation.Recompute(ctx, budgetID, nil)
}

// RecomputeUser is the incremental path for one (budget, seller) pair.
func (t *Trigger) RecomputeUser(ctx context.Context, budgetID, userID snowflake.ID) (*aggdomain.Summary, error) {
	return t.aggregation.Recompute(ctx, budgetID, []snowflake.ID{userID})
}

// AssignTurns stores the assignment and refreshes the affected aggregates. A
// fixed capacity leaves other sellers' shares unchanged, so only the user is
// recomputed; otherwise every share moved and the whole budget is.
//
// The assignment is committed before the refresh. A failed refresh is reported
// in the returned summary, not as an error, since the stored turns stand.
func (t *Trigger) AssignTurns(ctx context.Context, budgetID, userID snowflake.ID, turns int) (*turndomain.Assignment, *aggdomain.Summary, error) {
	assignment, err := t.turns.AssignTurns(ctx, budgetID, userID, turns)
	if err != nil {
		return nil, nil, err
	}

	var summary *aggdomain.Summary
	mode := aggdomain.ModeIncremental
	if assignment.Capacity.TotalTurns != nil {
		summary, err = t.RecomputeUser(ctx, budgetID, userID)
	} else {
		mode = aggdomain.ModeBatch
		summary, err = t.RecomputeBudget(ctx, budgetID)
	}
	if err != nil {
		t.log.Warn("turns stored, recompute failed",
			zap.String("budget_id", budgetID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		if summary == nil {
			summary = &aggdomain.Summary{
				BudgetID:        budgetID,
				Mode:            mode,
				TotalSalesUSD:   decimal.Zero,
				TotalSalesLocal: decimal.Zero,
				TotalCommission: decimal.Zero,
			}
		}
		summary.Status = aggdomain.StatusError
		summary.Message = err.Error()
	}
	return assignment, summary, nil
}

// scope is one budget and the sellers an event touched in it.
type scope struct {
	budgetID snowflake.ID
	userIDs  []snowflake.ID
}

// OnSaleEvent recomputes the sellers the event touched, one transaction per
// budget, so a sale moved between sellers changes both or neither. Sales
// outside any known budget are ignored.
func (t *Trigger) OnSaleEvent(ctx context.Context, evt ledgerdomain.SaleEvent) ([]*aggdomain.Summary, error) {
	evt.Normalize()
	if err := evt.Validate(); err != nil {
		t.obsMetrics.RecordLedgerEvent(ctx, string(evt.Type), "invalid")
		return nil, err
	}

	scopes, err := t.resolveScopes(ctx, evt.Touches())
	if err != nil {
		t.obsMetrics.RecordLedgerEvent(ctx, string(evt.Type), "error")
		return nil, err
	}

	summaries := make([]*aggdomain.Summary, 0, len(scopes))
	for _, sc := range scopes {
		summary, err := t.aggregation.Recompute(ctx, sc.budgetID, sc.userIDs)
		if err != nil {
			t.obsMetrics.RecordLedgerEvent(ctx, string(evt.Type), "error")
			return summaries, err
		}
		summaries = append(summaries, summary)
	}

	outcome := "ok"
	if len(scopes) == 0 {
		outcome = "ignored"
		t.log.Debug("ledger event outside any budget",
			zap.String("event_type", string(evt.Type)),
			zap.String("sale_id", evt.SaleID.String()),
		)
	}
	t.obsMetrics.RecordLedgerEvent(ctx, string(evt.Type), outcome)
	return summaries, nil
}

// resolveScopes groups touched sellers by budget. A sale without an explicit
// budget counts toward every budget whose period covers its date, so each of
// them is refreshed.
func (t *Trigger) resolveScopes(ctx context.Context, touches []ledgerdomain.Touch) ([]scope, error) {
	byBudget := make(map[snowflake.ID]map[snowflake.ID]struct{})
	add := func(budgetID, userID snowflake.ID) {
		users, ok := byBudget[budgetID]
		if !ok {
			users = make(map[snowflake.ID]struct{})
			byBudget[budgetID] = users
		}
		users[userID] = struct{}{}
	}

	conn := t.db.WithContext(ctx)
	for _, touch := range touches {
		if touch.BudgetID != nil && *touch.BudgetID != 0 {
			add(*touch.BudgetID, touch.SellerID)
			continue
		}
		budgets, err := t.budgetRepo.ListBudgetsForDate(ctx, conn, touch.SaleDate)
		if err != nil {
			return nil, err
		}
		for _, budget := range budgets {
			add(budget.ID, touch.SellerID)
		}
	}

	out := make([]scope, 0, len(byBudget))
	for budgetID, users := range byBudget {
		sc := scope{budgetID: budgetID, userIDs: make([]snowflake.ID, 0, len(users))}
		for userID := range users {
			sc.userIDs = append(sc.userIDs, userID)
		}
		sort.Slice(sc.userIDs, func(i, j int) bool { return sc.userIDs[i] < sc.userIDs[j] })
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].budgetID < out[j].budgetID })
	return out, nil
}
