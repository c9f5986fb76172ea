package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
	"github.com/smallbiznis/commission/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() turndomain.Repository {
	return &repo{}
}

func (r *repo) ListByBudget(ctx context.Context, conn *gorm.DB, budgetID snowflake.ID) ([]turndomain.BudgetUserTurn, error) {
	var items []turndomain.BudgetUserTurn
	err := conn.WithContext(ctx).Raw(
		`SELECT budget_id, user_id, assigned_turns, updated_at
		 FROM budget_user_turns
		 WHERE budget_id = ?
		 ORDER BY user_id ASC`,
		budgetID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SumAssigned(ctx context.Context, conn *gorm.DB, budgetID snowflake.ID, excludeUserID *snowflake.ID) (int, error) {
	query := `SELECT COALESCE(SUM(assigned_turns), 0) FROM budget_user_turns WHERE budget_id = ?`
	args := []any{budgetID}
	if excludeUserID != nil {
		query += ` AND user_id <> ?`
		args = append(args, *excludeUserID)
	}

	var total int64
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *repo) Upsert(ctx context.Context, conn *gorm.DB, item *turndomain.BudgetUserTurn) error {
	return conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "budget_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"assigned_turns", "updated_at"}),
	}).Create(item).Error
}

// LockBudget serializes concurrent assignments on the same budget. Dialects
// without row locks rely on the enclosing transaction alone.
func (r *repo) LockBudget(ctx context.Context, conn *gorm.DB, budgetID snowflake.ID) error {
	if !db.SupportsRowLocks(conn) {
		return nil
	}
	var id int64
	return conn.WithContext(ctx).Raw(
		`SELECT id FROM budgets WHERE id = ? FOR UPDATE`,
		budgetID,
	).Scan(&id).Error
}
