package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the only writer of the materialized tables. A nil userIDs
// slice scopes deletes to the whole budget.
type Repository interface {
	DeleteTotals(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, userIDs []snowflake.ID) error
	InsertCategoryTotals(ctx context.Context, db *gorm.DB, rows []BudgetUserCategoryTotal) error
	DeriveUserTotals(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, userIDs []snowflake.ID) error

	ListUserTotals(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) ([]BudgetUserTotal, error)
	ListCategoryTotals(ctx context.Context, db *gorm.DB, budgetID, userID snowflake.ID) ([]BudgetUserCategoryTotal, error)
}

type Service interface {
	// Recompute rebuilds the aggregates of budgetID. A nil userIDs recomputes
	// every seller with sales in the period.
	Recompute(ctx context.Context, budgetID snowflake.ID, userIDs []snowflake.ID) (*Summary, error)
	UserTotals(ctx context.Context, budgetID snowflake.ID) ([]BudgetUserTotal, error)
	CategoryTotals(ctx context.Context, budgetID, userID snowflake.ID) ([]BudgetUserCategoryTotal, error)
}
