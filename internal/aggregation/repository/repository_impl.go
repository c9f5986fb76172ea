package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

type repo struct{}

func Provide() aggdomain.Repository {
	return &repo{}
}

func scope(budgetID snowflake.ID, userIDs []snowflake.ID) (string, []any) {
	if userIDs == nil {
		return "budget_id = ?", []any{budgetID}
	}
	return "budget_id = ? AND user_id IN ?", []any{budgetID, userIDs}
}

// DeleteTotals clears both tables for the scope; category rows of groups that
// no longer have sales disappear here.
func (r *repo) DeleteTotals(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, userIDs []snowflake.ID) error {
	if userIDs != nil && len(userIDs) == 0 {
		return nil
	}
	where, args := scope(budgetID, userIDs)
	if err := db.WithContext(ctx).Exec(`DELETE FROM budget_user_totals WHERE `+where, args...).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM budget_user_category_totals WHERE `+where, args...).Error
}

func (r *repo) InsertCategoryTotals(ctx context.Context, db *gorm.DB, rows []aggdomain.BudgetUserCategoryTotal) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(&rows, insertBatchSize).Error
}

// DeriveUserTotals writes each grand-total row from the category rows already
// stored in the same transaction.
func (r *repo) DeriveUserTotals(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, userIDs []snowflake.ID) error {
	if userIDs != nil && len(userIDs) == 0 {
		return nil
	}
	where, args := scope(budgetID, userIDs)
	args = append([]any{string(aggdomain.SourceBlendedRate)}, args...)
	return db.WithContext(ctx).Exec(
		`INSERT INTO budget_user_totals (
			budget_id, user_id, total_sales_usd, total_sales_cop, total_commission_cop, approximated
		)
		SELECT budget_id, user_id,
			COALESCE(SUM(sales_usd), 0),
			COALESCE(SUM(sales_cop), 0),
			COALESCE(SUM(commission_cop), 0),
			CASE WHEN SUM(CASE WHEN commission_source = ? THEN 1 ELSE 0 END) > 0 THEN TRUE ELSE FALSE END
		FROM budget_user_category_totals
		WHERE `+where+`
		GROUP BY budget_id, user_id`,
		args...,
	).Error
}

func (r *repo) ListUserTotals(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) ([]aggdomain.BudgetUserTotal, error) {
	var items []aggdomain.BudgetUserTotal
	err := db.WithContext(ctx).
		Where("budget_id = ?", budgetID).
		Order("user_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListCategoryTotals(ctx context.Context, db *gorm.DB, budgetID, userID snowflake.ID) ([]aggdomain.BudgetUserCategoryTotal, error) {
	var items []aggdomain.BudgetUserCategoryTotal
	err := db.WithContext(ctx).
		Where("budget_id = ? AND user_id = ?", budgetID, userID).
		Order("category_group ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
