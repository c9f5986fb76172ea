// Package domain holds the budget, category and rule configuration consumed by
// the commission engine. These tables are owned by the configuration store;
// the engine only reads them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Budget is a rotating sales target for a date range.
type Budget struct {
	ID              snowflake.ID        `gorm:"primaryKey"`
	Name            string              `gorm:"type:text;not null;default:''"`
	TargetAmount    decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	TotalTurns      *int                `gorm:"column:total_turns"`
	StartDate       time.Time           `gorm:"not null"`
	EndDate         time.Time           `gorm:"not null"`
	MinPctToQualify decimal.NullDecimal `gorm:"type:numeric(7,2)"`
	CreatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Budget) TableName() string { return "budgets" }

// FixedTurns returns the configured turn capacity, or zero when unset.
func (b Budget) FixedTurns() int {
	if b.TotalTurns == nil || *b.TotalTurns < 0 {
		return 0
	}
	return *b.TotalTurns
}

// PeriodEndExclusive is the first instant after the budget's last day.
func (b Budget) PeriodEndExclusive() time.Time {
	end := b.EndDate.UTC()
	return time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// PeriodStart is the first instant of the budget's first day.
func (b Budget) PeriodStart() time.Time {
	start := b.StartDate.UTC()
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}

// Contains reports whether at falls inside the budget period, both days inclusive.
func (b Budget) Contains(at time.Time) bool {
	at = at.UTC()
	return !at.Before(b.PeriodStart()) && at.Before(b.PeriodEndExclusive())
}

// Category is a raw classification participating in a budget.
type Category struct {
	ID                 snowflake.ID    `gorm:"primaryKey"`
	BudgetID           snowflake.ID    `gorm:"not null;index"`
	ClassificationCode string          `gorm:"type:text;not null"`
	Name               string          `gorm:"type:text;not null;default:''"`
	ParticipationPct   decimal.Decimal `gorm:"type:numeric(7,2);not null"`
	CreatedAt          time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Category) TableName() string { return "budget_categories" }

// RoleCommissionRule holds the three rate slots for a role and a raw category.
type RoleCommissionRule struct {
	ID              snowflake.ID        `gorm:"primaryKey"`
	RoleID          snowflake.ID        `gorm:"not null;index"`
	CategoryID      snowflake.ID        `gorm:"not null;index"`
	BasePct         decimal.NullDecimal `gorm:"type:numeric(7,2)"`
	Tier100Pct      decimal.NullDecimal `gorm:"column:tier100_pct;type:numeric(7,2)"`
	Tier120Pct      decimal.NullDecimal `gorm:"column:tier120_pct;type:numeric(7,2)"`
	MinPctToQualify decimal.NullDecimal `gorm:"type:numeric(7,2)"`
	Active          bool                `gorm:"not null;default:true"`
	CreatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (RoleCommissionRule) TableName() string { return "role_commission_rules" }

// User is the seller/cashier directory entry; only the role matters here.
type User struct {
	ID     snowflake.ID  `gorm:"primaryKey"`
	Name   string        `gorm:"type:text;not null;default:''"`
	RoleID *snowflake.ID `gorm:"index"`
}

func (User) TableName() string { return "users" }

// GroupShare is a category group's slice of a budget: the summed participation
// of its member categories.
type GroupShare struct {
	Key              string
	ParticipationPct decimal.Decimal
	CategoryIDs      []snowflake.ID
}

// GroupCategories folds categories into their normalized groups.
func GroupCategories(categories []Category, normalize func(string) string) map[string]*GroupShare {
	out := make(map[string]*GroupShare)
	for _, cat := range categories {
		key := normalize(cat.ClassificationCode)
		share, ok := out[key]
		if !ok {
			share = &GroupShare{Key: key, ParticipationPct: decimal.Zero}
			out[key] = share
		}
		share.ParticipationPct = share.ParticipationPct.Add(cat.ParticipationPct)
		share.CategoryIDs = append(share.CategoryIDs, cat.ID)
	}
	return out
}
