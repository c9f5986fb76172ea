package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	"github.com/smallbiznis/commission/internal/classification"
	"github.com/smallbiznis/commission/internal/config"
	ledgerdomain "github.com/smallbiznis/commission/internal/ledger/domain"
	obslogger "github.com/smallbiznis/commission/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/commission/internal/observability/metrics"
	"github.com/smallbiznis/commission/internal/observability/tracing"
	"github.com/smallbiznis/commission/internal/rate"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
	"github.com/smallbiznis/commission/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const categoryColumn = "category_code"

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     *config.CommissionConfigHolder
	Repo       aggdomain.Repository
	BudgetRepo budgetdomain.Repository
	LedgerRepo ledgerdomain.Repository
	TurnRepo   turndomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	config     *config.CommissionConfigHolder
	repo       aggdomain.Repository
	budgetRepo budgetdomain.Repository
	ledgerRepo ledgerdomain.Repository
	turnRepo   turndomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) aggdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("aggregation.service"),
		config:     p.Config,
		repo:       p.Repo,
		budgetRepo: p.BudgetRepo,
		ledgerRepo: p.LedgerRepo,
		turnRepo:   p.TurnRepo,
		obsMetrics: p.ObsMetrics,
	}
}

// progress tracks where a run is so a failure can name its step.
type progress struct {
	step   string
	userID snowflake.ID
}

// Recompute replaces the aggregates of the budget, or of the given users only,
// inside one transaction. Missing budgets and budgets without categories are
// reported through Summary.Status; any other failure rolls everything back and
// returns a *RecomputeError alongside a Summary with StatusError.
func (s *Service) Recompute(ctx context.Context, budgetID snowflake.ID, userIDs []snowflake.ID) (_ *aggdomain.Summary, err error) {
	if budgetID == 0 {
		return nil, aggdomain.ErrInvalidBudgetID
	}

	mode := aggdomain.ModeBatch
	if userIDs != nil {
		mode = aggdomain.ModeIncremental
		userIDs = dedupe(userIDs)
	}

	runID := ulid.Make().String()
	ctx = obslogger.WithRunID(ctx, runID)
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("budget_id", budgetID.String()),
		zap.String("mode", string(mode)),
	)

	ctx, span := tracing.Start(ctx, "commission/aggregation", "aggregation.Recompute",
		attribute.String("budget_id", budgetID.String()),
		attribute.String("mode", string(mode)),
	)
	defer func() { tracing.End(span, err) }()

	summary := &aggdomain.Summary{
		RunID:           runID,
		BudgetID:        budgetID,
		Mode:            mode,
		Status:          aggdomain.StatusOK,
		TotalSalesUSD:   decimal.Zero,
		TotalSalesLocal: decimal.Zero,
		TotalCommission: decimal.Zero,
	}

	cfg := s.config.Get()
	prog := &progress{}
	conn := s.db.WithContext(ctx)
	err = conn.Transaction(func(tx *gorm.DB) error {
		return s.rebuild(ctx, tx, cfg, summary, userIDs, prog)
	}, db.SnapshotTxOptions(conn))
	if err != nil {
		failed := &aggdomain.Summary{
			RunID:           runID,
			BudgetID:        budgetID,
			Mode:            mode,
			Status:          aggdomain.StatusError,
			Message:         err.Error(),
			TotalSalesUSD:   decimal.Zero,
			TotalSalesLocal: decimal.Zero,
			TotalCommission: decimal.Zero,
		}
		s.obsMetrics.RecordRecompute(ctx, string(mode), string(failed.Status), 0)
		log.Error("recompute failed",
			zap.String("step", prog.step),
			zap.String("user_id", prog.userID.String()),
			zap.Error(err),
		)
		return failed, &aggdomain.RecomputeError{
			BudgetID: budgetID,
			UserID:   prog.userID,
			Step:     prog.step,
			Err:      err,
		}
	}

	s.obsMetrics.RecordRecompute(ctx, string(mode), string(summary.Status), summary.UsersProcessed)
	span.SetAttributes(
		attribute.String("status", string(summary.Status)),
		attribute.Int("users_processed", summary.UsersProcessed),
	)
	log.Info("recompute finished",
		zap.String("status", string(summary.Status)),
		zap.Int("users_processed", summary.UsersProcessed),
		zap.String("total_commission", summary.TotalCommission.StringFixed(2)),
	)
	return summary, nil
}

func (s *Service) rebuild(
	ctx context.Context,
	tx *gorm.DB,
	cfg config.CommissionConfig,
	summary *aggdomain.Summary,
	userIDs []snowflake.ID,
	prog *progress,
) error {
	prog.step = "load_budget"
	budget, err := s.budgetRepo.FindBudget(ctx, tx, summary.BudgetID)
	if err != nil {
		return err
	}
	if budget == nil {
		summary.Status = aggdomain.StatusBudgetNotFound
		summary.Message = "budget not found"
		return nil
	}

	prog.step = "load_categories"
	categories, err := s.budgetRepo.ListCategories(ctx, tx, budget.ID)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		summary.Status = aggdomain.StatusNoCategories
		summary.Message = "budget has no categories configured"
		return nil
	}

	normalizer := classification.New(cfg.Classification)
	resolver := rate.NewResolver(cfg)

	groups := budgetdomain.GroupCategories(categories, normalizer.Normalize)
	participation := make(map[string]decimal.Decimal, len(groups))
	groupOf := make(map[snowflake.ID]string, len(categories))
	categoryIDs := make([]snowflake.ID, 0, len(categories))
	vocabulary := make([]string, 0, len(categories))
	for key, share := range groups {
		participation[key] = share.ParticipationPct
		for _, id := range share.CategoryIDs {
			groupOf[id] = key
		}
	}
	for _, cat := range categories {
		categoryIDs = append(categoryIDs, cat.ID)
		vocabulary = append(vocabulary, cat.ClassificationCode)
	}

	filter := ledgerdomain.SalesFilter{
		BudgetID:     budget.ID,
		Start:        budget.PeriodStart(),
		EndExclusive: budget.PeriodEndExclusive(),
	}

	prog.step = "resolve_users"
	users := userIDs
	if users == nil {
		users, err = s.ledgerRepo.ListSellers(ctx, tx, filter)
		if err != nil {
			return err
		}
	}

	// Batch runs replace the whole budget; incremental runs only their users.
	var scope []snowflake.ID
	if userIDs != nil {
		scope = users
	}

	if len(users) == 0 {
		prog.step = "delete_totals"
		if scope == nil {
			return s.repo.DeleteTotals(ctx, tx, budget.ID, nil)
		}
		return nil
	}

	prog.step = "load_sales_vocabulary"
	codes, err := s.ledgerRepo.ListDistinctCodes(ctx, tx, filter)
	if err != nil {
		return err
	}
	vocabulary = append(vocabulary, codes...)
	sourceCodes, err := groupSourceCodes(normalizer.Groups(vocabulary))
	if err != nil {
		return err
	}

	prog.step = "load_rules"
	rules, err := s.budgetRepo.ListActiveRules(ctx, tx, categoryIDs)
	if err != nil {
		return err
	}
	table := rate.BuildRateTable(rules, groupOf)

	roles, err := s.budgetRepo.ListUserRoles(ctx, tx, users)
	if err != nil {
		return err
	}

	prog.step = "load_turns"
	turns, err := s.turnRepo.ListByBudget(ctx, tx, budget.ID)
	if err != nil {
		return err
	}
	assigned := make(map[snowflake.ID]int, len(turns))
	sumAssigned := 0
	for _, t := range turns {
		assigned[t.UserID] = t.AssignedTurns
		sumAssigned += t.AssignedTurns
	}

	prog.step = "load_period_totals"
	periodTotals, err := s.ledgerRepo.PeriodTotals(ctx, tx, filter)
	if err != nil {
		return err
	}
	blendedRate, hasBlended := periodTotals.BlendedRate()
	if hasBlended {
		summary.BlendedRate = decimal.NewNullDecimal(blendedRate)
	}

	prog.step = "group_sales"
	expr, exprArgs, err := normalizer.SQLExpr(categoryColumn, vocabulary)
	if err != nil {
		return err
	}
	salesFilter := filter
	salesFilter.SellerIDs = scope
	grouped, err := s.ledgerRepo.SumByGroup(ctx, tx, salesFilter, expr, exprArgs)
	if err != nil {
		return err
	}
	salesByUser := make(map[snowflake.ID]map[string]ledgerdomain.GroupedSales)
	for _, row := range grouped {
		if row.CategoryGroup == classification.UnmappedKey {
			return fmt.Errorf("seller %s: %w", row.SellerID, classification.ErrUnmappedClassification)
		}
		byGroup, ok := salesByUser[row.SellerID]
		if !ok {
			byGroup = make(map[string]ledgerdomain.GroupedSales)
			salesByUser[row.SellerID] = byGroup
		}
		byGroup[row.CategoryGroup] = row
	}

	prog.step = "delete_totals"
	if err := s.repo.DeleteTotals(ctx, tx, budget.ID, scope); err != nil {
		return err
	}

	prog.step = "compute_user"
	rows := make([]aggdomain.BudgetUserCategoryTotal, 0, len(users)*len(groups))
	for _, userID := range users {
		prog.userID = userID

		allocation := turndomain.Allocate(turndomain.AllocationInput{
			TargetAmount:       budget.TargetAmount,
			FixedTotalTurns:    budget.FixedTurns(),
			SumAssignedTurns:   sumAssigned,
			AssignedTurns:      assigned[userID],
			FallbackTotalTurns: cfg.Turns.FallbackTotalTurns,
			GroupParticipation: participation,
		})

		roleID, hasRole := roles[userID]
		sales := salesByUser[userID]
		for _, key := range groupKeys(participation, sales) {
			sale := sales[key]
			salesUSD := sale.TotalUSD.Round(2)
			salesLocal := sale.TotalLocal.Round(2)
			groupBudget := allocation.GroupBudgetUSD[key].Round(2)

			var compliance decimal.NullDecimal
			if groupBudget.IsPositive() {
				compliance = decimal.NewNullDecimal(salesUSD.Div(groupBudget).Mul(hundred).Round(2))
			}

			var rates rate.Rates
			found := false
			if hasRole {
				rates, found = table.Lookup(roleID, key)
			}
			result := resolver.Resolve(rates, found, compliance, resolver.Threshold(rates, budget.MinPctToQualify))
			commission, source := commissionFor(salesLocal, salesUSD, result.AppliedPct, blendedRate, hasBlended)

			rows = append(rows, aggdomain.BudgetUserCategoryTotal{
				BudgetID:         budget.ID,
				UserID:           userID,
				CategoryGroup:    key,
				SalesUSD:         salesUSD,
				SalesCOP:         salesLocal,
				CommissionCOP:    commission,
				AppliedPct:       result.AppliedPct.Round(2),
				GroupBudgetUSD:   groupBudget,
				CompliancePct:    compliance,
				CommissionSource: source,
				Provisional:      !result.Qualified,
				SourceCodes:      sourceCodes[key],
			})
		}
	}
	prog.userID = 0

	prog.step = "write_category_totals"
	if err := s.repo.InsertCategoryTotals(ctx, tx, rows); err != nil {
		return err
	}

	prog.step = "derive_user_totals"
	if err := s.repo.DeriveUserTotals(ctx, tx, budget.ID, scope); err != nil {
		return err
	}

	for _, row := range rows {
		summary.TotalSalesUSD = summary.TotalSalesUSD.Add(row.SalesUSD)
		summary.TotalSalesLocal = summary.TotalSalesLocal.Add(row.SalesCOP)
		summary.TotalCommission = summary.TotalCommission.Add(row.CommissionCOP)
	}
	summary.UsersProcessed = len(users)
	return nil
}

func (s *Service) UserTotals(ctx context.Context, budgetID snowflake.ID) ([]aggdomain.BudgetUserTotal, error) {
	if budgetID == 0 {
		return nil, aggdomain.ErrInvalidBudgetID
	}
	return s.repo.ListUserTotals(ctx, s.db, budgetID)
}

func (s *Service) CategoryTotals(ctx context.Context, budgetID, userID snowflake.ID) ([]aggdomain.BudgetUserCategoryTotal, error) {
	if budgetID == 0 {
		return nil, aggdomain.ErrInvalidBudgetID
	}
	return s.repo.ListCategoryTotals(ctx, s.db, budgetID, userID)
}

// commissionFor prefers local-currency sales. USD-only sales are converted at
// the blended rate, and with no rate the commission is zero.
func commissionFor(salesLocal, salesUSD, appliedPct, blendedRate decimal.Decimal, hasBlended bool) (decimal.Decimal, aggdomain.CommissionSource) {
	switch {
	case salesLocal.IsPositive():
		return salesLocal.Mul(appliedPct).Div(hundred).Round(2), aggdomain.SourceLocal
	case salesUSD.IsPositive() && hasBlended:
		return salesUSD.Mul(blendedRate).Mul(appliedPct).Div(hundred).Round(2), aggdomain.SourceBlendedRate
	default:
		return decimal.Zero, aggdomain.SourceNone
	}
}

// groupKeys is the sorted union of configured groups and groups with sales.
func groupKeys(configured map[string]decimal.Decimal, sales map[string]ledgerdomain.GroupedSales) []string {
	keys := make([]string, 0, len(configured)+len(sales))
	for key := range configured {
		keys = append(keys, key)
	}
	for key := range sales {
		if _, ok := configured[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// groupSourceCodes inverts a raw->group mapping into sorted JSON code lists.
func groupSourceCodes(groups map[string]string) (map[string]datatypes.JSON, error) {
	byGroup := make(map[string][]string)
	for raw, key := range groups {
		byGroup[key] = append(byGroup[key], raw)
	}
	out := make(map[string]datatypes.JSON, len(byGroup))
	for key, raws := range byGroup {
		sort.Strings(raws)
		encoded, err := json.Marshal(raws)
		if err != nil {
			return nil, err
		}
		out[key] = datatypes.JSON(encoded)
	}
	return out, nil
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
