package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// AllocationInput is everything Allocate needs; it performs no I/O.
type AllocationInput struct {
	TargetAmount decimal.Decimal
	// FixedTotalTurns is the budget's capacity, zero when unset.
	FixedTotalTurns    int
	SumAssignedTurns   int
	AssignedTurns      int
	FallbackTotalTurns int
	// GroupParticipation maps a category group to its participation percentage.
	GroupParticipation map[string]decimal.Decimal
}

// EffectiveTotalTurns picks the fixed capacity, else the assigned sum, else the fallback.
func EffectiveTotalTurns(fixed, sumAssigned, fallback int) int {
	switch {
	case fixed > 0:
		return fixed
	case sumAssigned > 0:
		return sumAssigned
	case fallback > 0:
		return fallback
	default:
		return 0
	}
}

// Allocate splits the budget target by turns and then by group participation.
// Stored values are taken as-is; capacity is enforced only on assignment.
func Allocate(in AllocationInput) Allocation {
	effective := EffectiveTotalTurns(in.FixedTotalTurns, in.SumAssignedTurns, in.FallbackTotalTurns)

	userBudget := decimal.Zero
	if effective > 0 && in.AssignedTurns > 0 {
		userBudget = in.TargetAmount.
			Mul(decimal.NewFromInt(int64(in.AssignedTurns))).
			Div(decimal.NewFromInt(int64(effective))).
			Round(2)
	}

	groups := make(map[string]decimal.Decimal, len(in.GroupParticipation))
	for key, pct := range in.GroupParticipation {
		groups[key] = userBudget.Mul(pct).Div(hundred).Round(2)
	}

	return Allocation{
		AssignedTurns:       in.AssignedTurns,
		EffectiveTotalTurns: effective,
		UserBudgetUSD:       userBudget,
		GroupBudgetUSD:      groups,
	}
}
