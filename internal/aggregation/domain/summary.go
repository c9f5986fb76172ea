package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOK             Status = "ok"
	StatusBudgetNotFound Status = "budget_not_found"
	StatusNoCategories   Status = "no_categories"
	StatusError          Status = "error"
)

type Mode string

const (
	ModeBatch       Mode = "batch"
	ModeIncremental Mode = "incremental"
)

// Summary reports a recompute run. Configuration outcomes are statuses, not errors.
type Summary struct {
	RunID           string              `json:"run_id"`
	BudgetID        snowflake.ID        `json:"budget_id"`
	Mode            Mode                `json:"mode"`
	Status          Status              `json:"status"`
	Message         string              `json:"message,omitempty"`
	UsersProcessed  int                 `json:"users_processed"`
	TotalSalesUSD   decimal.Decimal     `json:"total_sales_usd"`
	TotalSalesLocal decimal.Decimal     `json:"total_sales_local"`
	TotalCommission decimal.Decimal     `json:"total_commission"`
	BlendedRate     decimal.NullDecimal `json:"blended_rate"`
}

var ErrInvalidBudgetID = errors.New("invalid_budget_id")

// RecomputeError carries enough context for a caller to decide on a retry.
type RecomputeError struct {
	BudgetID snowflake.ID
	UserID   snowflake.ID
	Step     string
	Err      error
}

func (e *RecomputeError) Error() string {
	if e.UserID != 0 {
		return fmt.Sprintf("recompute budget %s user %s: %s: %v", e.BudgetID, e.UserID, e.Step, e.Err)
	}
	return fmt.Sprintf("recompute budget %s: %s: %v", e.BudgetID, e.Step, e.Err)
}

func (e *RecomputeError) Unwrap() error {
	return e.Err
}
