package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/commission/internal/ledger/domain"
)

// IngestLedgerEvent is the synchronous twin of the queue consumer.
func (s *Server) IngestLedgerEvent(c *gin.Context) {
	var evt ledgerdomain.SaleEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	summaries, err := s.trigger.OnSaleEvent(c.Request.Context(), evt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summaries})
}
