package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/commission/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

// periodWhere matches unassigned sales and sales tagged to the budget inside
// [start, end).
func periodWhere(filter ledgerdomain.SalesFilter) (string, []any) {
	clauses := []string{
		"(budget_id IS NULL OR budget_id = ?)",
		"sale_date >= ?",
		"sale_date < ?",
	}
	args := []any{filter.BudgetID, filter.Start.UTC(), filter.EndExclusive.UTC()}
	if len(filter.SellerIDs) > 0 {
		clauses = append(clauses, "seller_id IN ?")
		args = append(args, filter.SellerIDs)
	}
	return strings.Join(clauses, " AND "), args
}

func (r *repo) ListDistinctCodes(ctx context.Context, db *gorm.DB, filter ledgerdomain.SalesFilter) ([]string, error) {
	where, args := periodWhere(filter)
	var codes []string
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT category_code FROM sales
		 WHERE category_code IS NOT NULL AND `+where,
		args...,
	).Scan(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *repo) ListSellers(ctx context.Context, db *gorm.DB, filter ledgerdomain.SalesFilter) ([]snowflake.ID, error) {
	where, args := periodWhere(filter)
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT seller_id FROM sales WHERE `+where+` ORDER BY seller_id ASC`,
		args...,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SumByGroup aggregates the period by seller and by the category group that
// groupExpr computes from sales.category_code.
func (r *repo) SumByGroup(ctx context.Context, db *gorm.DB, filter ledgerdomain.SalesFilter, groupExpr string, groupArgs []any) ([]ledgerdomain.GroupedSales, error) {
	where, whereArgs := periodWhere(filter)
	args := make([]any, 0, len(groupArgs)+len(whereArgs))
	args = append(args, groupArgs...)
	args = append(args, whereArgs...)

	var rows []ledgerdomain.GroupedSales
	err := db.WithContext(ctx).Raw(
		`SELECT seller_id, category_group,
			COALESCE(SUM(amount_usd), 0) AS total_usd,
			COALESCE(SUM(amount_local), 0) AS total_local
		 FROM (
			SELECT seller_id, `+groupExpr+` AS category_group, amount_usd, amount_local
			FROM sales
			WHERE `+where+`
		 ) grouped
		 GROUP BY seller_id, category_group
		 ORDER BY seller_id ASC, category_group ASC`,
		args...,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) PeriodTotals(ctx context.Context, db *gorm.DB, filter ledgerdomain.SalesFilter) (ledgerdomain.PeriodTotals, error) {
	filter.SellerIDs = nil
	where, args := periodWhere(filter)
	var totals ledgerdomain.PeriodTotals
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_usd), 0) AS total_usd,
			COALESCE(SUM(amount_local), 0) AS total_local
		 FROM sales WHERE `+where,
		args...,
	).Scan(&totals).Error
	return totals, err
}
