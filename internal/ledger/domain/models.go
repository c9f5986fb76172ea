// Package domain describes the sales ledger as the commission engine sees it:
// a read-only table of sales plus the change events the ledger emits.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Sale is a single ledger line attributed to a seller.
type Sale struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	BudgetID     *snowflake.ID   `gorm:"index"`
	SellerID     snowflake.ID    `gorm:"not null;index"`
	CategoryCode *string         `gorm:"type:text"`
	SaleDate     time.Time       `gorm:"not null;index"`
	AmountLocal  decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	AmountUSD    decimal.Decimal `gorm:"column:amount_usd;type:numeric(18,4);not null"`
	ExchangeRate decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Sale) TableName() string { return "sales" }

// SalesFilter scopes ledger reads to one budget period.
type SalesFilter struct {
	BudgetID     snowflake.ID
	Start        time.Time
	EndExclusive time.Time
	SellerIDs    []snowflake.ID
}

// GroupedSales is the per (seller, category group) sum of a period.
type GroupedSales struct {
	SellerID      snowflake.ID    `gorm:"column:seller_id"`
	CategoryGroup string          `gorm:"column:category_group"`
	TotalUSD      decimal.Decimal `gorm:"column:total_usd"`
	TotalLocal    decimal.Decimal `gorm:"column:total_local"`
}

// PeriodTotals sums every sale of a period regardless of seller.
type PeriodTotals struct {
	TotalUSD   decimal.Decimal `gorm:"column:total_usd"`
	TotalLocal decimal.Decimal `gorm:"column:total_local"`
}

// BlendedRate is local per USD across the period. ok is false when the period
// carries no USD volume.
func (t PeriodTotals) BlendedRate() (rate decimal.Decimal, ok bool) {
	if !t.TotalUSD.IsPositive() {
		return decimal.Zero, false
	}
	return t.TotalLocal.DivRound(t.TotalUSD, 8), true
}
