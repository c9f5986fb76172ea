// Package domain models turn assignments and the allocation of a budget's
// target across them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BudgetUserTurn is the number of turns a user holds in a budget.
type BudgetUserTurn struct {
	BudgetID      snowflake.ID `gorm:"primaryKey"`
	UserID        snowflake.ID `gorm:"primaryKey"`
	AssignedTurns int          `gorm:"not null;default:0"`
	UpdatedAt     time.Time    `gorm:"not null"`
}

func (BudgetUserTurn) TableName() string { return "budget_user_turns" }

// Capacity describes how much of a budget's turn capacity is in use.
// TotalTurns and RemainingTurns are nil when the budget has no fixed capacity.
type Capacity struct {
	BudgetID       snowflake.ID `json:"budget_id"`
	TotalTurns     *int         `json:"total_turns"`
	AssignedTurns  int          `json:"assigned_turns"`
	RemainingTurns *int         `json:"remaining_turns"`
}

type Assignment struct {
	BudgetID      snowflake.ID `json:"budget_id"`
	UserID        snowflake.ID `json:"user_id"`
	AssignedTurns int          `json:"assigned_turns"`
	Capacity      Capacity     `json:"capacity"`
}

// Allocation is a user's slice of a budget target, in USD.
type Allocation struct {
	AssignedTurns       int                        `json:"assigned_turns"`
	EffectiveTotalTurns int                        `json:"effective_total_turns"`
	UserBudgetUSD       decimal.Decimal            `json:"user_budget_usd"`
	GroupBudgetUSD      map[string]decimal.Decimal `json:"group_budget_usd"`
}
