package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	budgetrepo "github.com/smallbiznis/commission/internal/budget/repository"
	"github.com/smallbiznis/commission/internal/clock"
	"github.com/smallbiznis/commission/internal/recalc"
	"github.com/smallbiznis/commission/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recomputerStub struct {
	calls []snowflake.ID
	errs  map[snowflake.ID]error
}

func (s *recomputerStub) RecomputeBudget(ctx context.Context, budgetID snowflake.ID) (*aggdomain.Summary, error) {
	s.calls = append(s.calls, budgetID)
	if err := s.errs[budgetID]; err != nil {
		return nil, err
	}
	return &aggdomain.Summary{BudgetID: budgetID, Status: aggdomain.StatusOK}, nil
}

func newTestScheduler(t *testing.T, now time.Time, stub *recomputerStub) (*Scheduler, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	s, err := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clock.NewManual(now),
		BudgetRepo: budgetrepo.Provide(),
		Recomputer: stub,
	})
	require.NoError(t, err)
	return s, db
}

func seedBudget(t *testing.T, db *gorm.DB, id snowflake.ID, start, end time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&budgetdomain.Budget{
		ID:           id,
		Name:         "budget",
		TargetAmount: testutil.Dec("1000"),
		StartDate:    start,
		EndDate:      end,
	}).Error)
}

func TestRunOnceRecomputesBudgetsActiveToday(t *testing.T) {
	stub := &recomputerStub{}
	s, db := newTestScheduler(t, time.Date(2024, time.March, 31, 22, 0, 0, 0, time.UTC), stub)

	seedBudget(t, db, 1, testutil.Date(2024, time.March, 1), testutil.Date(2024, time.March, 31))
	seedBudget(t, db, 2, testutil.Date(2024, time.April, 1), testutil.Date(2024, time.April, 30))
	seedBudget(t, db, 3, testutil.Date(2024, time.March, 15), testutil.Date(2024, time.April, 15))

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []snowflake.ID{1, 3}, stub.calls)
}

func TestRunOnceWithoutActiveBudgets(t *testing.T) {
	stub := &recomputerStub{}
	s, db := newTestScheduler(t, testutil.Date(2024, time.June, 1), stub)
	seedBudget(t, db, 1, testutil.Date(2024, time.March, 1), testutil.Date(2024, time.March, 31))

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, stub.calls)
}

func TestRunOnceSkipsBusyBudgetAndJoinsFailures(t *testing.T) {
	boom := errors.New("boom")
	stub := &recomputerStub{errs: map[snowflake.ID]error{
		1: recalc.ErrRecomputeInProgress,
		2: boom,
	}}
	s, db := newTestScheduler(t, testutil.Date(2024, time.March, 10), stub)

	seedBudget(t, db, 1, testutil.Date(2024, time.March, 1), testutil.Date(2024, time.March, 31))
	seedBudget(t, db, 2, testutil.Date(2024, time.March, 2), testutil.Date(2024, time.March, 31))
	seedBudget(t, db, 3, testutil.Date(2024, time.March, 3), testutil.Date(2024, time.March, 31))

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, recalc.ErrRecomputeInProgress)
	assert.Equal(t, []snowflake.ID{1, 2, 3}, stub.calls)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 10*time.Minute, cfg.JobTimeout)
	assert.False(t, cfg.Enabled)
}
