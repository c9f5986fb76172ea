// Package testutil opens throwaway sqlite databases carrying the commission
// schema and seeds them for service tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	"github.com/smallbiznis/commission/internal/config"
	ledgerdomain "github.com/smallbiznis/commission/internal/ledger/domain"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// OpenDB returns an isolated in-memory database with every table migrated.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:commission_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&budgetdomain.Budget{},
		&budgetdomain.Category{},
		&budgetdomain.RoleCommissionRule{},
		&budgetdomain.User{},
		&turndomain.BudgetUserTurn{},
		&ledgerdomain.Sale{},
		&aggdomain.BudgetUserCategoryTotal{},
		&aggdomain.BudgetUserTotal{},
	))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func ConfigHolder() *config.CommissionConfigHolder {
	return config.NewStaticCommissionConfigHolder(config.DefaultCommissionConfig())
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func Pct(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Seeder writes collaborator rows with generated ids.
type Seeder struct {
	t  *testing.T
	db *gorm.DB
	id int64
}

func NewSeeder(t *testing.T, db *gorm.DB) *Seeder {
	return &Seeder{t: t, db: db, id: 1000}
}

func (s *Seeder) nextID() snowflake.ID {
	s.id++
	return snowflake.ID(s.id)
}

func (s *Seeder) create(v any) {
	s.t.Helper()
	require.NoError(s.t, s.db.Create(v).Error)
}

// Budget seeds a budget covering March 2024.
func (s *Seeder) Budget(id snowflake.ID, target string, totalTurns *int) *budgetdomain.Budget {
	b := &budgetdomain.Budget{
		ID:           id,
		Name:         "march",
		TargetAmount: Dec(target),
		TotalTurns:   totalTurns,
		StartDate:    Date(2024, time.March, 1),
		EndDate:      Date(2024, time.March, 31),
	}
	s.create(b)
	return b
}

func (s *Seeder) Category(budgetID snowflake.ID, code, participation string) *budgetdomain.Category {
	c := &budgetdomain.Category{
		ID:                 s.nextID(),
		BudgetID:           budgetID,
		ClassificationCode: code,
		ParticipationPct:   Dec(participation),
	}
	s.create(c)
	return c
}

func (s *Seeder) Rule(roleID, categoryID snowflake.ID, base, tier100, tier120 decimal.NullDecimal) *budgetdomain.RoleCommissionRule {
	r := &budgetdomain.RoleCommissionRule{
		ID:         s.nextID(),
		RoleID:     roleID,
		CategoryID: categoryID,
		BasePct:    base,
		Tier100Pct: tier100,
		Tier120Pct: tier120,
		Active:     true,
	}
	s.create(r)
	return r
}

func (s *Seeder) User(id, roleID snowflake.ID) {
	role := roleID
	s.create(&budgetdomain.User{ID: id, RoleID: &role})
}

func (s *Seeder) Turns(budgetID, userID snowflake.ID, turns int) {
	s.create(&turndomain.BudgetUserTurn{
		BudgetID:      budgetID,
		UserID:        userID,
		AssignedTurns: turns,
		UpdatedAt:     Date(2024, time.March, 1),
	})
}

// Sale seeds a ledger row dated inside March 2024 and returns its id.
func (s *Seeder) Sale(sellerID snowflake.ID, code string, day int, usd, local string) snowflake.ID {
	id := s.nextID()
	value := code
	s.create(&ledgerdomain.Sale{
		ID:           id,
		SellerID:     sellerID,
		CategoryCode: &value,
		SaleDate:     time.Date(2024, time.March, day, 15, 0, 0, 0, time.UTC),
		AmountUSD:    Dec(usd),
		AmountLocal:  Dec(local),
	})
	return id
}
