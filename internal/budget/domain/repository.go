package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindBudget(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Budget, error)
	ListBudgetsForDate(ctx context.Context, db *gorm.DB, at time.Time) ([]Budget, error)
	ListCategories(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) ([]Category, error)
	ListActiveRules(ctx context.Context, db *gorm.DB, categoryIDs []snowflake.ID) ([]RoleCommissionRule, error)
	ListUserRoles(ctx context.Context, db *gorm.DB, userIDs []snowflake.ID) (map[snowflake.ID]snowflake.ID, error)
}

var (
	ErrBudgetNotFound = errors.New("budget_not_found")
	ErrInvalidBudget  = errors.New("invalid_budget")
)
