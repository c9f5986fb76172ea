package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListByBudget(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) ([]BudgetUserTurn, error)
	SumAssigned(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, excludeUserID *snowflake.ID) (int, error)
	Upsert(ctx context.Context, db *gorm.DB, item *BudgetUserTurn) error
	LockBudget(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) error
}

type Service interface {
	AssignTurns(ctx context.Context, budgetID, userID snowflake.ID, turns int) (*Assignment, error)
	RemainingTurns(ctx context.Context, budgetID snowflake.ID) (*Capacity, error)
	Allocation(ctx context.Context, budgetID, userID snowflake.ID) (*Allocation, error)
}
