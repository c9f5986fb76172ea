package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	"github.com/smallbiznis/commission/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() budgetdomain.Repository {
	return &repo{}
}

func (r *repo) FindBudget(ctx context.Context, db *gorm.DB, id snowflake.ID) (*budgetdomain.Budget, error) {
	return repository.ProvideStore[budgetdomain.Budget](db).FindOne(ctx, &budgetdomain.Budget{ID: id})
}

// ListBudgetsForDate returns every budget whose period covers at, oldest first.
func (r *repo) ListBudgetsForDate(ctx context.Context, db *gorm.DB, at time.Time) ([]budgetdomain.Budget, error) {
	at = at.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	items, err := repository.ProvideStore[budgetdomain.Budget](db).Find(ctx, &budgetdomain.Budget{},
		repository.Where("start_date <= ? AND end_date >= ?", day, day),
		repository.OrderBy("start_date ASC, id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]budgetdomain.Budget, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) ([]budgetdomain.Category, error) {
	var items []budgetdomain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, budget_id, classification_code, name, participation_pct, created_at
		 FROM budget_categories
		 WHERE budget_id = ?
		 ORDER BY id ASC`,
		budgetID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListActiveRules(ctx context.Context, db *gorm.DB, categoryIDs []snowflake.ID) ([]budgetdomain.RoleCommissionRule, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	var items []budgetdomain.RoleCommissionRule
	err := db.WithContext(ctx).Raw(
		`SELECT id, role_id, category_id, base_pct, tier100_pct, tier120_pct, min_pct_to_qualify, active, created_at
		 FROM role_commission_rules
		 WHERE active = ? AND category_id IN ?
		 ORDER BY id ASC`,
		true,
		categoryIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListUserRoles(ctx context.Context, db *gorm.DB, userIDs []snowflake.ID) (map[snowflake.ID]snowflake.ID, error) {
	out := make(map[snowflake.ID]snowflake.ID, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ID     snowflake.ID  `gorm:"column:id"`
		RoleID *snowflake.ID `gorm:"column:role_id"`
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT id, role_id FROM users WHERE id IN ?`,
		userIDs,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.RoleID != nil && *row.RoleID != 0 {
			out[row.ID] = *row.RoleID
		}
	}
	return out, nil
}
