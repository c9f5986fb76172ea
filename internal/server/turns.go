package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type assignTurnsRequest struct {
	AssignedTurns *int `json:"assigned_turns"`
}

func (s *Server) AssignTurns(c *gin.Context) {
	budgetID, userID, err := budgetAndUser(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req assignTurnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.AssignedTurns == nil {
		AbortWithError(c, newValidationError("assigned_turns", "required", "assigned_turns is required"))
		return
	}

	assignment, summary, err := s.trigger.AssignTurns(c.Request.Context(), budgetID, userID, *req.AssignedTurns)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"assignment": assignment,
		"recompute":  summary,
	}})
}

func (s *Server) GetRemainingTurns(c *gin.Context) {
	budgetID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.turnSvc.RemainingTurns(c.Request.Context(), budgetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
