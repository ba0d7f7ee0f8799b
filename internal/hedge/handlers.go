package hedge

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/vediex/book-api/pkg/response"
)

// GinHandlers contains HTTP handlers for hedge ledger endpoints
type GinHandlers struct {
	engine *Engine
}

func NewGinHandlers(engine *Engine) *GinHandlers {
	return &GinHandlers{engine: engine}
}

// GetHedgeStatusHandler handles GET requests for a ledger record plus
// the provider's live order data when reachable.
// URL parameter: lp_trade_id
func (h *GinHandlers) GetHedgeStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lpTradeID := c.Param("lp_trade_id")

		lpTrade, liveData, err := h.engine.GetHedgeStatus(c.Request.Context(), lpTradeID)
		if err != nil {
			if errors.Is(err, ErrHedgeNotFound) {
				response.NotFound(c, err.Error())
				return
			}
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{
			"lp_trade":     lpTrade,
			"lp_live_data": liveData,
		})
	}
}

// CancelHedgeHandler handles POST requests to cancel a PENDING or
// FAILED hedge record.
// URL parameter: lp_trade_id
func (h *GinHandlers) CancelHedgeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lpTradeID := c.Param("lp_trade_id")
		adminID := c.GetString("adminID")

		lpTrade, err := h.engine.Cancel(lpTradeID, adminID)
		if err != nil {
			switch {
			case errors.Is(err, ErrHedgeNotFound):
				response.NotFound(c, err.Error())
			case errors.Is(err, ErrNotCancellable):
				response.Conflict(c, err.Error())
			default:
				response.InternalError(c, err.Error())
			}
			return
		}

		response.Success(c, gin.H{"lp_trade": lpTrade})
	}
}
