// Package rate resolves the commission percentage a seller earns in a
// category group from the role's tiered rules and the seller's compliance.
package rate

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
)

// Rates is the reduced rule of one (role, category group).
type Rates struct {
	Base            decimal.NullDecimal
	Tier100         decimal.NullDecimal
	Tier120         decimal.NullDecimal
	MinPctToQualify decimal.NullDecimal
}

type key struct {
	roleID snowflake.ID
	group  string
}

// Table maps (role, category group) to its rates.
type Table struct {
	rates map[key]Rates
}

// BuildRateTable reduces per-category rules into per-group rates. When several
// categories of a group carry a rule for the same role, each slot takes the
// highest non-null value and the qualification override takes the lowest
// non-null value. Rules for categories outside groupOf are ignored.
func BuildRateTable(rules []budgetdomain.RoleCommissionRule, groupOf map[snowflake.ID]string) Table {
	table := Table{rates: make(map[key]Rates)}
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		group, ok := groupOf[rule.CategoryID]
		if !ok {
			continue
		}
		k := key{roleID: rule.RoleID, group: group}
		current := table.rates[k]
		current.Base = maxNull(current.Base, rule.BasePct)
		current.Tier100 = maxNull(current.Tier100, rule.Tier100Pct)
		current.Tier120 = maxNull(current.Tier120, rule.Tier120Pct)
		current.MinPctToQualify = minNull(current.MinPctToQualify, rule.MinPctToQualify)
		table.rates[k] = current
	}
	return table
}

// Lookup returns the rates for the role in the group.
func (t Table) Lookup(roleID snowflake.ID, group string) (Rates, bool) {
	if t.rates == nil {
		return Rates{}, false
	}
	r, ok := t.rates[key{roleID: roleID, group: group}]
	return r, ok
}

func (t Table) Len() int { return len(t.rates) }

func maxNull(a, b decimal.NullDecimal) decimal.NullDecimal {
	switch {
	case !b.Valid:
		return a
	case !a.Valid:
		return b
	case b.Decimal.GreaterThan(a.Decimal):
		return b
	default:
		return a
	}
}

func minNull(a, b decimal.NullDecimal) decimal.NullDecimal {
	switch {
	case !b.Valid:
		return a
	case !a.Valid:
		return b
	case b.Decimal.LessThan(a.Decimal):
		return b
	default:
		return a
	}
}
