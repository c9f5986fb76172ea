package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseSnowflakeParam(c *gin.Context, name string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(c.Param(name))
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return parsed, nil
}

func budgetAndUser(c *gin.Context) (snowflake.ID, snowflake.ID, error) {
	budgetID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	userID, err := parseSnowflakeParam(c, "user_id")
	if err != nil {
		return 0, 0, err
	}
	return budgetID, userID, nil
}
