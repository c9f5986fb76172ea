// Package domain holds the materialized commission aggregates and the
// outcome of a recompute run.
package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CommissionSource records how the local-currency commission was obtained.
type CommissionSource string

const (
	// SourceLocal means commission was taken from local-currency sales.
	SourceLocal CommissionSource = "local"
	// SourceBlendedRate means USD sales were converted at the period's blended
	// rate; the amount is an approximation.
	SourceBlendedRate CommissionSource = "blended_rate"
	SourceNone        CommissionSource = "none"
)

// BudgetUserCategoryTotal is one seller's result in one category group.
// SourceCodes lists the raw classification codes folded into the group.
type BudgetUserCategoryTotal struct {
	BudgetID         snowflake.ID        `gorm:"primaryKey" json:"budget_id"`
	UserID           snowflake.ID        `gorm:"primaryKey" json:"user_id"`
	CategoryGroup    string              `gorm:"primaryKey;type:varchar(128)" json:"category_group"`
	SalesUSD         decimal.Decimal     `gorm:"column:sales_usd;type:numeric(18,2);not null" json:"sales_usd"`
	SalesCOP         decimal.Decimal     `gorm:"column:sales_cop;type:numeric(18,2);not null" json:"sales_cop"`
	CommissionCOP    decimal.Decimal     `gorm:"column:commission_cop;type:numeric(18,2);not null" json:"commission_cop"`
	AppliedPct       decimal.Decimal     `gorm:"type:numeric(7,2);not null" json:"applied_pct"`
	GroupBudgetUSD   decimal.Decimal     `gorm:"column:group_budget_usd;type:numeric(18,2);not null" json:"group_budget_usd"`
	CompliancePct    decimal.NullDecimal `gorm:"type:numeric(18,2)" json:"compliance_pct"`
	CommissionSource CommissionSource    `gorm:"type:varchar(32);not null" json:"commission_source"`
	Provisional      bool                `gorm:"not null" json:"provisional"`
	SourceCodes      datatypes.JSON      `gorm:"type:json" json:"source_codes"`
}

func (BudgetUserCategoryTotal) TableName() string { return "budget_user_category_totals" }

// BudgetUserTotal is the sum of a seller's category rows for a budget.
type BudgetUserTotal struct {
	BudgetID           snowflake.ID    `gorm:"primaryKey" json:"budget_id"`
	UserID             snowflake.ID    `gorm:"primaryKey" json:"user_id"`
	TotalSalesUSD      decimal.Decimal `gorm:"column:total_sales_usd;type:numeric(18,2);not null" json:"total_sales_usd"`
	TotalSalesCOP      decimal.Decimal `gorm:"column:total_sales_cop;type:numeric(18,2);not null" json:"total_sales_cop"`
	TotalCommissionCOP decimal.Decimal `gorm:"column:total_commission_cop;type:numeric(18,2);not null" json:"total_commission_cop"`
	Approximated       bool            `gorm:"not null" json:"approximated"`
}

func (BudgetUserTotal) TableName() string { return "budget_user_totals" }
