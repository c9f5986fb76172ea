package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListDistinctCodes(ctx context.Context, db *gorm.DB, filter SalesFilter) ([]string, error)
	ListSellers(ctx context.Context, db *gorm.DB, filter SalesFilter) ([]snowflake.ID, error)
	SumByGroup(ctx context.Context, db *gorm.DB, filter SalesFilter, groupExpr string, groupArgs []any) ([]GroupedSales, error)
	PeriodTotals(ctx context.Context, db *gorm.DB, filter SalesFilter) (PeriodTotals, error)
}
