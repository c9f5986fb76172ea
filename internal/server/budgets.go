package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	obslogger "github.com/smallbiznis/commission/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) RecomputeBudget(c *gin.Context) {
	budgetID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.trigger.RecomputeBudget(c.Request.Context(), budgetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondSummary(c, summary)
}

func (s *Server) RecomputeUser(c *gin.Context) {
	budgetID, userID, err := budgetAndUser(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.trigger.RecomputeUser(c.Request.Context(), budgetID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondSummary(c, summary)
}

func (s *Server) ListUserTotals(c *gin.Context) {
	budgetID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.aggregation.UserTotals(c.Request.Context(), budgetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCategoryTotals(c *gin.Context) {
	budgetID, userID, err := budgetAndUser(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.aggregation.CategoryTotals(c.Request.Context(), budgetID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAllocation(c *gin.Context) {
	budgetID, userID, err := budgetAndUser(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.turnSvc.Allocation(c.Request.Context(), budgetID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// respondSummary reports configuration outcomes in the body; only a missing
// budget changes the status code.
func (s *Server) respondSummary(c *gin.Context, summary *aggdomain.Summary) {
	if summary == nil {
		AbortWithError(c, ErrInternal)
		return
	}
	if summary.Status == aggdomain.StatusBudgetNotFound {
		AbortWithError(c, budgetdomain.ErrBudgetNotFound)
		return
	}

	obslogger.WithContext(c.Request.Context(), s.log).Info("recompute finished",
		zap.String("run_id", summary.RunID),
		zap.String("budget_id", summary.BudgetID.String()),
		zap.String("status", string(summary.Status)),
		zap.Int("users_processed", summary.UsersProcessed),
	)
	c.JSON(http.StatusOK, gin.H{"data": summary})
}
