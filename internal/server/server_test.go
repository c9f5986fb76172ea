package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	aggrepo "github.com/smallbiznis/commission/internal/aggregation/repository"
	aggservice "github.com/smallbiznis/commission/internal/aggregation/service"
	budgetrepo "github.com/smallbiznis/commission/internal/budget/repository"
	"github.com/smallbiznis/commission/internal/clock"
	ledgerrepo "github.com/smallbiznis/commission/internal/ledger/repository"
	"github.com/smallbiznis/commission/internal/observability"
	"github.com/smallbiznis/commission/internal/recalc"
	"github.com/smallbiznis/commission/internal/testutil"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
	turnrepo "github.com/smallbiznis/commission/internal/turn/repository"
	turnservice "github.com/smallbiznis/commission/internal/turn/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBudget = snowflake.ID(1)
	testRole   = snowflake.ID(500)
	sellerA    = snowflake.ID(100)
	sellerB    = snowflake.ID(200)
)

func newTestServer(t *testing.T) (*gin.Engine, *testutil.Seeder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	log := zap.NewNop()
	holder := testutil.ConfigHolder()

	turns := turnservice.NewService(turnservice.Params{
		DB:         db,
		Log:        log,
		Clock:      clock.NewManual(testutil.Date(2024, 3, 10)),
		Config:     holder,
		Repo:       turnrepo.Provide(),
		BudgetRepo: budgetrepo.Provide(),
	})
	agg := aggservice.NewService(aggservice.Params{
		DB:         db,
		Log:        log,
		Config:     holder,
		Repo:       aggrepo.Provide(),
		BudgetRepo: budgetrepo.Provide(),
		LedgerRepo: ledgerrepo.Provide(),
		TurnRepo:   turnrepo.Provide(),
	})
	trigger := recalc.NewTrigger(recalc.Params{
		DB:          db,
		Log:         log,
		Aggregation: agg,
		Turns:       turns,
		BudgetRepo:  budgetrepo.Provide(),
	})

	engine := NewEngine(observability.Config{LogLevel: "info", Environment: "test"}, log, nil)
	NewServer(ServerParams{
		Gin:         engine,
		Log:         log,
		Trigger:     trigger,
		TurnSvc:     turns,
		Aggregation: agg,
	})
	return engine, testutil.NewSeeder(t, db)
}

// seedMarch: seller A holds 40 of 200 turns, so group "7" carries a 3000 USD
// budget and 3600 USD of sales lands on the 120% tier.
func seedMarch(s *testutil.Seeder) {
	total := 200
	s.Budget(testBudget, "50000", &total)
	cat := s.Category(testBudget, "7", "30")
	s.Rule(testRole, cat.ID, testutil.Pct("2"), testutil.Pct("3"), testutil.Pct("4"))
	s.User(sellerA, testRole)
	s.User(sellerB, testRole)
	s.Turns(testBudget, sellerA, 40)
	s.Sale(sellerA, "7", 5, "3600", "14400000")
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doRequest(t, engine, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRecomputeBudgetThenReadTotals(t *testing.T) {
	engine, seed := newTestServer(t)
	seedMarch(seed)

	rec := doRequest(t, engine, http.MethodPost, "/v1/budgets/1/recompute", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary struct {
		Data aggdomain.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, aggdomain.StatusOK, summary.Data.Status)
	assert.Equal(t, aggdomain.ModeBatch, summary.Data.Mode)
	assert.Equal(t, 1, summary.Data.UsersProcessed)

	rec = doRequest(t, engine, http.MethodGet, "/v1/budgets/1/totals", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var totals struct {
		Data []aggdomain.BudgetUserTotal `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	require.Len(t, totals.Data, 1)
	assert.Equal(t, sellerA, totals.Data[0].UserID)
	assert.True(t, testutil.Dec("576000").Equal(totals.Data[0].TotalCommissionCOP), totals.Data[0].TotalCommissionCOP.String())

	rec = doRequest(t, engine, http.MethodGet, "/v1/budgets/1/users/100/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var categories struct {
		Data []aggdomain.BudgetUserCategoryTotal `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories.Data, 1)
	assert.Equal(t, "7", categories.Data[0].CategoryGroup)
	assert.True(t, testutil.Dec("4").Equal(categories.Data[0].AppliedPct))
	assert.True(t, testutil.Dec("120").Equal(categories.Data[0].CompliancePct.Decimal))
}

func TestRecomputeUnknownBudget(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doRequest(t, engine, http.MethodPost, "/v1/budgets/99/recompute", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "budget_not_found", decodeError(t, rec).Type)
}

func TestRecomputeRejectsMalformedID(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doRequest(t, engine, http.MethodPost, "/v1/budgets/abc/recompute", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "id", payload.Errors[0].Field)
}

func TestAssignTurns(t *testing.T) {
	engine, seed := newTestServer(t)
	seedMarch(seed)

	rec := doRequest(t, engine, http.MethodPut, "/v1/budgets/1/turns/200", gin.H{"assigned_turns": 50})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Assignment turndomain.Assignment `json:"assignment"`
			Recompute  aggdomain.Summary     `json:"recompute"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 50, resp.Data.Assignment.AssignedTurns)
	assert.Equal(t, aggdomain.ModeIncremental, resp.Data.Recompute.Mode)

	rec = doRequest(t, engine, http.MethodGet, "/v1/budgets/1/turns/remaining", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var capacity struct {
		Data turndomain.Capacity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &capacity))
	assert.Equal(t, 90, capacity.Data.AssignedTurns)
	require.NotNil(t, capacity.Data.RemainingTurns)
	assert.Equal(t, 110, *capacity.Data.RemainingTurns)
}

func TestAssignTurnsOverCapacity(t *testing.T) {
	engine, seed := newTestServer(t)
	seedMarch(seed)

	rec := doRequest(t, engine, http.MethodPut, "/v1/budgets/1/turns/200", gin.H{"assigned_turns": 170})

	require.Equal(t, http.StatusConflict, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "turn_capacity_exceeded", payload.Type)
	assert.EqualValues(t, 160, payload.Details["remaining"])

	rec = doRequest(t, engine, http.MethodGet, "/v1/budgets/1/turns/remaining", nil)
	var capacity struct {
		Data turndomain.Capacity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &capacity))
	assert.Equal(t, 40, capacity.Data.AssignedTurns)
}

func TestAssignTurnsValidation(t *testing.T) {
	engine, seed := newTestServer(t)
	seedMarch(seed)

	rec := doRequest(t, engine, http.MethodPut, "/v1/budgets/1/turns/200", gin.H{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "assigned_turns", decodeError(t, rec).Errors[0].Field)

	rec = doRequest(t, engine, http.MethodPut, "/v1/budgets/1/turns/200", gin.H{"assigned_turns": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_turns", decodeError(t, rec).Errors[0].Code)
}

func TestIngestLedgerEvent(t *testing.T) {
	engine, seed := newTestServer(t)
	seedMarch(seed)

	rec := doRequest(t, engine, http.MethodPost, "/v1/ledger/events", gin.H{
		"type":      "sale.created",
		"sale_id":   "9001",
		"seller_id": "100",
		"sale_date": "2024-03-05T15:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data []aggdomain.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, testBudget, resp.Data[0].BudgetID)
	assert.Equal(t, aggdomain.StatusOK, resp.Data[0].Status)

	rec = doRequest(t, engine, http.MethodPost, "/v1/ledger/events", gin.H{
		"type":      "sale.archived",
		"seller_id": "100",
		"sale_date": "2024-03-05T15:00:00Z",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_ledger_event_type", decodeError(t, rec).Errors[0].Code)
}

func TestUnknownRoute(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doRequest(t, engine, http.MethodGet, "/v1/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}
