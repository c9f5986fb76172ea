package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	budgetrepo "github.com/smallbiznis/commission/internal/budget/repository"
	"github.com/smallbiznis/commission/internal/clock"
	"github.com/smallbiznis/commission/internal/testutil"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
	turnrepo "github.com/smallbiznis/commission/internal/turn/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const budgetID = snowflake.ID(1)

func newTestService(t *testing.T, totalTurns *int) (turndomain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	seed := testutil.NewSeeder(t, db)
	seed.Budget(budgetID, "100000", totalTurns)
	seed.Category(budgetID, "7", "20")

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clock.NewManual(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)),
		Config:     testutil.ConfigHolder(),
		Repo:       turnrepo.Provide(),
		BudgetRepo: budgetrepo.Provide(),
	})
	return svc, db
}

func storedTurns(t *testing.T, db *gorm.DB, userID snowflake.ID) int {
	t.Helper()
	var row turndomain.BudgetUserTurn
	err := db.Where("budget_id = ? AND user_id = ?", budgetID, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return -1
	}
	require.NoError(t, err)
	return row.AssignedTurns
}

func TestAssignTurnsWithinCapacity(t *testing.T) {
	total := 100
	svc, db := newTestService(t, &total)
	ctx := context.Background()

	res, err := svc.AssignTurns(ctx, budgetID, 10, 60)
	require.NoError(t, err)
	require.NotNil(t, res.Capacity.RemainingTurns)
	assert.Equal(t, 40, *res.Capacity.RemainingTurns)

	res, err = svc.AssignTurns(ctx, budgetID, 11, 40)
	require.NoError(t, err)
	assert.Equal(t, 0, *res.Capacity.RemainingTurns)

	// reassigning the same user replaces rather than adds
	res, err = svc.AssignTurns(ctx, budgetID, 10, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, *res.Capacity.RemainingTurns)
	assert.Equal(t, 50, storedTurns(t, db, 10))
}

func TestAssignTurnsRejectsOverCapacityWithoutMutation(t *testing.T) {
	total := 100
	svc, db := newTestService(t, &total)
	ctx := context.Background()

	_, err := svc.AssignTurns(ctx, budgetID, 10, 70)
	require.NoError(t, err)
	_, err = svc.AssignTurns(ctx, budgetID, 11, 20)
	require.NoError(t, err)

	_, err = svc.AssignTurns(ctx, budgetID, 11, 31)
	require.Error(t, err)
	assert.ErrorIs(t, err, turndomain.ErrCapacityExceeded)

	var capErr *turndomain.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 30, capErr.Available)
	assert.Equal(t, 31, capErr.Requested)

	assert.Equal(t, 20, storedTurns(t, db, 11))

	_, err = svc.AssignTurns(ctx, budgetID, 12, 11)
	assert.ErrorIs(t, err, turndomain.ErrCapacityExceeded)
	assert.Equal(t, -1, storedTurns(t, db, 12))

	capacity, err := svc.RemainingTurns(ctx, budgetID)
	require.NoError(t, err)
	assert.Equal(t, 90, capacity.AssignedTurns)
	assert.Equal(t, 10, *capacity.RemainingTurns)
}

func TestAssignTurnsWithoutFixedCapacity(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.AssignTurns(ctx, budgetID, 10, 500)
	require.NoError(t, err)
	assert.Nil(t, res.Capacity.RemainingTurns)
	assert.Nil(t, res.Capacity.TotalTurns)
	assert.Equal(t, 500, res.Capacity.AssignedTurns)
}

func TestAssignTurnsValidation(t *testing.T) {
	total := 100
	svc, _ := newTestService(t, &total)
	ctx := context.Background()

	_, err := svc.AssignTurns(ctx, budgetID, 10, -1)
	assert.ErrorIs(t, err, turndomain.ErrInvalidTurns)

	_, err = svc.AssignTurns(ctx, budgetID, 0, 1)
	assert.ErrorIs(t, err, turndomain.ErrInvalidAssignment)

	_, err = svc.AssignTurns(ctx, snowflake.ID(404), 10, 1)
	assert.ErrorIs(t, err, budgetdomain.ErrBudgetNotFound)

	_, err = svc.RemainingTurns(ctx, snowflake.ID(404))
	assert.ErrorIs(t, err, budgetdomain.ErrBudgetNotFound)
}

func TestAllocationProportionality(t *testing.T) {
	total := 100
	svc, _ := newTestService(t, &total)
	ctx := context.Background()

	_, err := svc.AssignTurns(ctx, budgetID, 10, 25)
	require.NoError(t, err)

	alloc, err := svc.Allocation(ctx, budgetID, 10)
	require.NoError(t, err)
	assert.Equal(t, 100, alloc.EffectiveTotalTurns)
	assert.Equal(t, "25000.00", alloc.UserBudgetUSD.StringFixed(2))
	assert.Equal(t, "5000.00", alloc.GroupBudgetUSD["7"].StringFixed(2))
}

func TestAllocationFallsBackToAssignedSum(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.AssignTurns(ctx, budgetID, 10, 30)
	require.NoError(t, err)
	_, err = svc.AssignTurns(ctx, budgetID, 11, 10)
	require.NoError(t, err)

	alloc, err := svc.Allocation(ctx, budgetID, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, alloc.EffectiveTotalTurns)
	assert.Equal(t, "75000.00", alloc.UserBudgetUSD.StringFixed(2))
}
