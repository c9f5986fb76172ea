package rate

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/commission/internal/config"
)

type Tier string

const (
	TierNone    Tier = "none"
	TierBase    Tier = "base"
	TierTier100 Tier = "tier100"
	TierTier120 Tier = "tier120"
)

// Result is the outcome of resolving one group for one seller.
type Result struct {
	AppliedPct decimal.Decimal
	Tier       Tier
	// Qualified is false when compliance is undefined or under the threshold;
	// such rows are provisional.
	Qualified bool
}

// Resolver applies the tier boundaries and qualification default.
type Resolver struct {
	tier100       decimal.Decimal
	tier120       decimal.Decimal
	defaultMinPct decimal.Decimal
}

func NewResolver(cfg config.CommissionConfig) Resolver {
	return Resolver{
		tier100:       decimal.NewFromFloat(cfg.Tiers.Tier100Pct),
		tier120:       decimal.NewFromFloat(cfg.Tiers.Tier120Pct),
		defaultMinPct: decimal.NewFromFloat(cfg.Qualification.DefaultMinPct),
	}
}

// Threshold picks the group override, then the budget gate, then the configured default.
func (r Resolver) Threshold(rates Rates, budgetMin decimal.NullDecimal) decimal.Decimal {
	if rates.MinPctToQualify.Valid {
		return rates.MinPctToQualify.Decimal
	}
	if budgetMin.Valid {
		return budgetMin.Decimal
	}
	return r.defaultMinPct
}

// Resolve selects the applied percentage. Boundaries are inclusive and a null
// slot falls through to the next lower tier.
func (r Resolver) Resolve(rates Rates, found bool, compliance decimal.NullDecimal, threshold decimal.Decimal) Result {
	qualified := compliance.Valid && compliance.Decimal.GreaterThanOrEqual(threshold)
	if !found || !qualified {
		return Result{AppliedPct: decimal.Zero, Tier: TierNone, Qualified: qualified}
	}

	pct := compliance.Decimal
	var order []slot
	switch {
	case pct.GreaterThanOrEqual(r.tier120):
		order = []slot{{TierTier120, rates.Tier120}, {TierTier100, rates.Tier100}, {TierBase, rates.Base}}
	case pct.GreaterThanOrEqual(r.tier100):
		order = []slot{{TierTier100, rates.Tier100}, {TierBase, rates.Base}}
	default:
		order = []slot{{TierBase, rates.Base}}
	}

	for _, s := range order {
		if s.rate.Valid {
			return Result{AppliedPct: s.rate.Decimal, Tier: s.tier, Qualified: true}
		}
	}
	return Result{AppliedPct: decimal.Zero, Tier: TierNone, Qualified: true}
}

type slot struct {
	tier Tier
	rate decimal.NullDecimal
}
